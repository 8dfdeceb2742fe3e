package echoapi

import (
	"bytes"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/printer"
	"github.com/trezcool/kazi/core/submission"
)

type studentApi struct {
	sessions    *Sessions
	submissions *submission.Service
	assignments *assignment.Service
	validate    *validator.Validate
	logger      core.Logger
}

// AssignmentResponse is an assignment as a student sees it.
type AssignmentResponse struct {
	assignment.Assignment
	SolutionsUnlocked bool `json:"solutionsUnlocked"`
}

func registerStudentAPI(g *echo.Group, auth, optionalAuth echo.MiddlewareFunc, api studentApi) {
	g.GET("/assignments/:assignment", api.getAssignment, optionalAuth)

	sg := g.Group("/student")

	// un-authed endpoints
	sg.POST("/session", api.login)

	// authed endpoints
	ag := sg.Group("", auth)
	ag.PUT("/answers", api.saveAnswer)
	ag.GET("/answers/:assignment", api.answers)
	ag.POST("/submit", api.submit)
	ag.POST("/solutions/:assignment/unlock", api.unlockSolutions)
	ag.GET("/print/:assignment", api.print)
}

func studentClaims(ctx echo.Context) (Claims, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return Claims{}, err
	}
	if claims.Role != roleStudent {
		return Claims{}, errForbidden
	}
	return claims, nil
}

// Handlers

func (api *studentApi) login(ctx echo.Context) error {
	var data StudentLoginRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	info, err := api.submissions.Authenticate(ctx.Request().Context(), data.StudentKey, data.Mode)
	if err != nil {
		return errors.Wrap(err, "authenticating student")
	}

	claims := api.sessions.StudentClaims(info)
	token, err := api.sessions.GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	api.logger.Info("student logged in", claims.Identity())
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

// getAssignment hides the solutions unless the student unlocked them.
func (api *studentApi) getAssignment(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	id := param(ctx, "assignment")

	claims, err := studentClaims(ctx)
	if err != nil {
		a, err := api.assignments.Get(rctx, id)
		if err != nil {
			return errors.Wrap(err, "getting assignment")
		}
		return ctx.JSON(http.StatusOK, AssignmentResponse{Assignment: a.WithoutSolutions()})
	}

	a, unlocked, err := api.assignments.ForStudent(rctx, claims.Subject, id)
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, AssignmentResponse{Assignment: a, SolutionsUnlocked: unlocked})
}

func (api *studentApi) saveAnswer(ctx echo.Context) error {
	claims, err := studentClaims(ctx)
	if err != nil {
		return err
	}
	var data submission.AnswerInput
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	if err = api.submissions.SaveAnswer(claims.Subject, data); err != nil {
		return errors.Wrap(err, "saving answer")
	}
	return ctx.NoContent(http.StatusAccepted)
}

func (api *studentApi) answers(ctx echo.Context) error {
	claims, err := studentClaims(ctx)
	if err != nil {
		return err
	}
	answers, err := api.submissions.Answers(ctx.Request().Context(), claims.Subject, param(ctx, "assignment"))
	if err != nil {
		return errors.Wrap(err, "reading answers")
	}
	return ctx.JSON(http.StatusOK, answers)
}

func (api *studentApi) submit(ctx echo.Context) error {
	claims, err := studentClaims(ctx)
	if err != nil {
		return err
	}
	payload, err := api.submissions.Submit(ctx.Request().Context(), claims.Student())
	if err != nil {
		return errors.Wrap(err, "submitting")
	}
	return ctx.JSON(http.StatusOK, payload)
}

func (api *studentApi) unlockSolutions(ctx echo.Context) error {
	claims, err := studentClaims(ctx)
	if err != nil {
		return err
	}
	var data UnlockRequest
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	rctx := ctx.Request().Context()
	id := param(ctx, "assignment")

	ok, err := api.assignments.UnlockSolutions(rctx, claims.Subject, id, data.Key)
	if err != nil {
		return errors.Wrap(err, "unlocking solutions")
	}
	if !ok {
		return core.NewValidationError(nil, core.FieldError{Field: "key", Error: "invalid solution key"})
	}

	a, unlocked, err := api.assignments.ForStudent(rctx, claims.Subject, id)
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, AssignmentResponse{Assignment: a, SolutionsUnlocked: unlocked})
}

func (api *studentApi) print(ctx echo.Context) error {
	claims, err := studentClaims(ctx)
	if err != nil {
		return err
	}
	doc, err := api.submissions.PrintData(ctx.Request().Context(), claims.Subject, param(ctx, "assignment"))
	if err != nil {
		return errors.Wrap(err, "gathering answers")
	}
	doc.Student = claims.Name

	var buf bytes.Buffer
	if err = printer.Answers(&buf, doc); err != nil {
		return errors.Wrap(err, "printing answers")
	}
	return ctx.HTMLBlob(http.StatusOK, buf.Bytes())
}
