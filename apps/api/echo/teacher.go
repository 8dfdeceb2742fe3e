package echoapi

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/draft"
	"github.com/trezcool/kazi/core/export"
	"github.com/trezcool/kazi/core/feedback"
	"github.com/trezcool/kazi/core/printer"
	archivesvc "github.com/trezcool/kazi/services/archive"
)

var errMissingPath = core.NewValidationError(nil, core.FieldError{Field: "path", Error: "this field is required"})

type teacherApi struct {
	sessions    *Sessions
	drafts      *draft.Service
	assignments *assignment.Service
	feedback    *feedback.Service
	exports     *export.Service
	archive     *archivesvc.Service
	validate    *validator.Validate
	logger      core.Logger
	now         func() time.Time
}

func registerTeacherAPI(g *echo.Group, auth echo.MiddlewareFunc, api teacherApi) {
	tg := g.Group("/teacher")

	// un-authed endpoints
	tg.POST("/session", api.login)

	// authed endpoints
	ag := tg.Group("", auth)
	ag.GET("/drafts", api.listDrafts)
	ag.GET("/drafts/content", api.draftContent)
	ag.GET("/classes/:class/assignments", api.classAssignments)
	ag.GET("/classes/:class/assignments/:assignment/grid", api.liveGrid)
	ag.GET("/classes/:class/students/:student/draft", api.studentDraft)
	ag.GET("/classes/:class/students/:student/compare", api.compareVersions)
	ag.GET("/submissions", api.submissions)
	ag.GET("/submission", api.submission)
	ag.GET("/filters", api.filters)
	ag.GET("/answers", api.filteredAnswers)

	ag.GET("/assignments", api.listAssignments)
	ag.GET("/assignments/:assignment", api.getAssignment)
	ag.PUT("/assignments/:assignment", api.saveAssignment)

	ag.GET("/feedback/:class/:assignment/:student", api.getFeedback)
	ag.POST("/assess", api.assess)
	ag.POST("/assess/bulk", api.bulkAssess)

	ag.GET("/exports", api.exportHistory)
	ag.GET("/export/:class/:assignment/:kind", api.export)
	ag.POST("/export/:class/:assignment/mail", api.mail)
	ag.POST("/backup/:class", api.backup)

	ag.GET("/print/:class/:assignment", api.printClass)
	ag.GET("/print/:class/:assignment/:student", api.printStudent)
}

// param returns the unescaped path param; echo leaves %-escapes of ids with spaces in place.
func param(ctx echo.Context, name string) string {
	val := ctx.Param(name)
	if u, err := url.PathUnescape(val); err == nil {
		return u
	}
	return val
}

func teacherKey(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	return claims.TeacherKey, nil
}

// Handlers

func (api *teacherApi) login(ctx echo.Context) error {
	var data TeacherLoginRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}

	key := core.CleanString(data.TeacherKey)
	// the backend rejects unknown keys on any action
	if _, err := api.drafts.ListDrafts(ctx.Request().Context(), key); err != nil {
		return errors.Wrap(err, "validating teacher key")
	}

	token, err := api.sessions.GenerateToken(api.sessions.TeacherClaims(key))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	api.logger.Info("teacher logged in", core.Identity{Role: roleTeacher})
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *teacherApi) listDrafts(ctx echo.Context) error {
	key, err := teacherKey(ctx)
	if err != nil {
		return err
	}
	idx, err := api.drafts.ListDrafts(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "listing drafts")
	}
	return ctx.JSON(http.StatusOK, idx)
}

func (api *teacherApi) draftContent(ctx echo.Context) error {
	key, err := teacherKey(ctx)
	if err != nil {
		return err
	}
	path := strings.TrimSpace(ctx.QueryParam("path"))
	if path == "" {
		return errMissingPath
	}
	d, err := api.drafts.Draft(ctx.Request().Context(), key, path)
	if err != nil {
		return errors.Wrap(err, "reading draft")
	}
	return ctx.JSON(http.StatusOK, d)
}

// classAssignments lists the assignments of a class; ?q= narrows them down to the closest matches.
func (api *teacherApi) classAssignments(ctx echo.Context) error {
	key, err := teacherKey(ctx)
	if err != nil {
		return err
	}
	ids, err := api.drafts.Assignments(ctx.Request().Context(), key, param(ctx, "class"))
	if err != nil {
		return errors.Wrap(err, "scanning assignments")
	}
	if q := strings.TrimSpace(ctx.QueryParam("q")); q != "" {
		ids = draft.SuggestAssignments(q, ids)
	}
	return ctx.JSON(http.StatusOK, ids)
}

// masterTotal returns the question count of the stored master; 0 when there is none.
func (api *teacherApi) masterTotal(ctx context.Context, assignmentID string) (int, error) {
	master, err := api.assignments.Master(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, assignment.ErrNotFound) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "reading master")
	}
	return master.TotalQuestions(), nil
}

func (api *teacherApi) liveGrid(ctx echo.Context) error {
	key, err := teacherKey(ctx)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()
	assignmentID := param(ctx, "assignment")

	total, err := api.masterTotal(rctx, assignmentID)
	if err != nil {
		return err
	}
	rows, err := api.drafts.LiveGrid(rctx, key, param(ctx, "class"), assignmentID, total)
	if err != nil {
		return errors.Wrap(err, "building live grid")
	}
	return ctx.JSON(http.StatusOK, GridResponse{AssignmentID: assignmentID, Total: total, Rows: rows})
}

func (api *teacherApi) studentDraft(ctx echo.Context) error {
	key, err := teacherKey(ctx)
	if err != nil {
		return err
	}
	sd, err := api.drafts.StudentDraft(ctx.Request().Context(), key, param(ctx, "class"), param(ctx, "student"), ctx.QueryParam("assignment"))
	if err != nil {
		return errors.Wrap(err, "reading student draft")
	}
	return ctx.JSON(http.StatusOK, sd)
}

func (api *teacherApi) compareVersions(ctx echo.Context) error {
	key, err := teacherKey(ctx)
	if err != nil {
		return err
	}
	score, err := api.drafts.CompareVersions(ctx.Request().Context(), key, param(ctx, "class"), param(ctx, "student"))
	if err != nil {
		return errors.Wrap(err, "comparing versions")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"similarityScore": score, "flagged": draft.IsFlagged(score)})
}

func (api *teacherApi) submissions(ctx echo.Context) error {
	key, err := teacherKey(ctx)
	if err != nil {
		return err
	}
	subs, err := api.drafts.Submissions(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *teacherApi) submission(ctx echo.Context) error {
	key, err := teacherKey(ctx)
	if err != nil {
		return err
	}
	path := strings.TrimSpace(ctx.QueryParam("path"))
	if path == "" {
		return errMissingPath
	}
	d, err := api.drafts.Submission(ctx.Request().Context(), key, path)
	if err != nil {
		return errors.Wrap(err, "reading submission")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *teacherApi) filters(ctx echo.Context) error {
	key, err := teacherKey(ctx)
	if err != nil {
		return err
	}
	data, err := api.drafts.FilterData(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "reading filter data")
	}
	return ctx.JSON(http.StatusOK, data)
}

func (api *teacherApi) filteredAnswers(ctx echo.Context) error {
	key, err := teacherKey(ctx)
	if err != nil {
		return err
	}
	var filter draft.AnswerFilter
	if err = bindAndValidate(ctx, api.validate, &filter); err != nil {
		return err
	}
	answers, err := api.drafts.FilteredAnswers(ctx.Request().Context(), key, filter)
	if err != nil {
		return errors.Wrap(err, "filtering answers")
	}
	return ctx.JSON(http.StatusOK, answers)
}

func (api *teacherApi) listAssignments(ctx echo.Context) error {
	list, err := api.assignments.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *teacherApi) getAssignment(ctx echo.Context) error {
	a, err := api.assignments.Get(ctx.Request().Context(), param(ctx, "assignment"))
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *teacherApi) saveAssignment(ctx echo.Context) error {
	var data assignment.Assignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Assignment")
	}
	data.ID = param(ctx, "assignment")

	a, err := api.assignments.Save(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "saving assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func feedbackKey(ctx echo.Context) feedback.Key {
	return feedback.Key{
		Class:      param(ctx, "class"),
		Assignment: param(ctx, "assignment"),
		Student:    param(ctx, "student"),
	}
}

func (api *teacherApi) getFeedback(ctx echo.Context) error {
	h, err := api.feedback.Get(ctx.Request().Context(), feedbackKey(ctx))
	if err != nil {
		return errors.Wrap(err, "getting feedback")
	}
	return ctx.JSON(http.StatusOK, h)
}

// assess grades one student. Without studentData, the student's draft of the assignment is used.
func (api *teacherApi) assess(ctx echo.Context) error {
	key, err := teacherKey(ctx)
	if err != nil {
		return err
	}
	var data AssessRequest
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	rctx := ctx.Request().Context()

	if len(data.StudentData) == 0 {
		sd, err := api.drafts.StudentDraft(rctx, key, data.ClassName, data.StudentName, data.AssignmentID)
		if err != nil {
			return errors.Wrap(err, "reading student draft")
		}
		data.StudentData, _ = sd.Draft.Assignment(data.AssignmentID)
	}

	h, err := api.feedback.Assess(rctx, feedback.Request{
		Key:         feedback.Key{Class: data.ClassName, Assignment: data.AssignmentID, Student: data.StudentName},
		StudentData: data.StudentData,
	})
	if err != nil {
		return errors.Wrap(err, "assessing student")
	}
	return ctx.JSON(http.StatusOK, h)
}

// bulkAssess grades every student of a class holding the assignment, one after the other.
func (api *teacherApi) bulkAssess(ctx echo.Context) error {
	key, err := teacherKey(ctx)
	if err != nil {
		return err
	}
	var data BulkAssessRequest
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	rctx := ctx.Request().Context()

	rows, err := api.drafts.LiveGrid(rctx, key, data.ClassName, data.AssignmentID, 0)
	if err != nil {
		return errors.Wrap(err, "reading class drafts")
	}
	reqs := make([]feedback.Request, 0, len(rows))
	for _, row := range rows {
		if row.Draft == nil {
			continue
		}
		if subs, ok := row.Draft.Assignment(data.AssignmentID); ok {
			reqs = append(reqs, feedback.Request{
				Key:         feedback.Key{Class: data.ClassName, Assignment: data.AssignmentID, Student: row.Student},
				StudentData: subs,
			})
		}
	}

	res, err := api.feedback.BulkAssess(rctx, reqs, func(p feedback.Progress) {
		api.logger.Debug("bulk assessment progress", map[string]interface{}{
			"class": data.ClassName, "processed": p.Processed, "total": p.Total, "student": p.Student,
		})
	})
	if err != nil && !res.Canceled {
		return errors.Wrap(err, "bulk assessing")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *teacherApi) export(ctx echo.Context) error {
	key, err := teacherKey(ctx)
	if err != nil {
		return err
	}
	f, err := api.exports.Export(ctx.Request().Context(), ctx.Param("kind"), key, param(ctx, "class"), param(ctx, "assignment"))
	if err != nil {
		return errors.Wrap(err, "exporting")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+f.Name+`"`)
	return ctx.Blob(http.StatusOK, f.ContentType, f.Content)
}

func (api *teacherApi) mail(ctx echo.Context) error {
	key, err := teacherKey(ctx)
	if err != nil {
		return err
	}
	var data MailRequest
	if err = bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	err = api.exports.Mail(ctx.Request().Context(), data.To, key, param(ctx, "class"), param(ctx, "assignment"), data.Kinds...)
	if err != nil {
		return errors.Wrap(err, "mailing export")
	}
	return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: "The export is on its way to " + data.To + "."})
}

func (api *teacherApi) exportHistory(ctx echo.Context) error {
	logs, err := api.exports.History(ctx.Request().Context(), historyLimit(ctx))
	if err != nil {
		return errors.Wrap(err, "listing exports")
	}
	return ctx.JSON(http.StatusOK, logs)
}

func (api *teacherApi) backup(ctx echo.Context) error {
	if api.archive == nil {
		return echo.ErrNotFound
	}
	key, err := teacherKey(ctx)
	if err != nil {
		return err
	}
	res, err := api.archive.Backup(ctx.Request().Context(), key, param(ctx, "class"))
	if err != nil {
		return errors.Wrap(err, "archiving class")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *teacherApi) printStudent(ctx echo.Context) error {
	var opts PrintOptions
	if err := opts.Bind(ctx); err != nil {
		return err
	}
	fbKey := feedbackKey(ctx)
	h, err := api.feedback.Get(ctx.Request().Context(), fbKey)
	if err != nil {
		return errors.Wrap(err, "getting feedback")
	}
	entry, _ := h.Latest()
	return api.renderFeedback(ctx, fbKey.Assignment, []printer.StudentFeedback{{Student: fbKey.Student, Entry: entry}}, opts)
}

// printClass prints the latest feedback of every assessed student of a class.
func (api *teacherApi) printClass(ctx echo.Context) error {
	key, err := teacherKey(ctx)
	if err != nil {
		return err
	}
	var opts PrintOptions
	if err = opts.Bind(ctx); err != nil {
		return err
	}
	rctx := ctx.Request().Context()
	class, assignmentID := param(ctx, "class"), param(ctx, "assignment")

	students, err := api.drafts.ClassFiles(rctx, key, class)
	if err != nil {
		return errors.Wrap(err, "listing class")
	}
	var pages []printer.StudentFeedback
	for _, name := range core.SortedKeys(students) {
		h, err := api.feedback.Get(rctx, feedback.Key{Class: class, Assignment: assignmentID, Student: name})
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return errors.Wrap(err, "getting feedback")
		}
		if entry, ok := h.Latest(); ok {
			pages = append(pages, printer.StudentFeedback{Student: name, Entry: entry})
		}
	}
	return api.renderFeedback(ctx, assignmentID, pages, opts)
}

func (api *teacherApi) renderFeedback(ctx echo.Context, assignmentID string, pages []printer.StudentFeedback, opts PrintOptions) error {
	var buf bytes.Buffer
	if err := printer.Feedback(&buf, assignmentID, pages, opts.Mode, opts.Points, api.now()); err != nil {
		return errors.Wrap(err, "printing feedback")
	}
	return ctx.HTMLBlob(http.StatusOK, buf.Bytes())
}
