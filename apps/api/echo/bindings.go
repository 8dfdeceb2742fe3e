package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/draft"
	"github.com/trezcool/kazi/core/printer"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type (
	TeacherLoginRequest struct {
		TeacherKey string `json:"teacherKey" validate:"required"`
	}

	StudentLoginRequest struct {
		StudentKey string `json:"studentKey" validate:"required"`
		Mode       string `json:"mode"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	AssessRequest struct {
		ClassName    string                    `json:"className" validate:"required"`
		AssignmentID string                    `json:"assignmentId" validate:"required,assignmentid"`
		StudentName  string                    `json:"studentName" validate:"required"`
		StudentData  map[string]draft.SubDraft `json:"studentData"`
	}

	BulkAssessRequest struct {
		ClassName    string `json:"className" validate:"required"`
		AssignmentID string `json:"assignmentId" validate:"required,assignmentid"`
	}

	MailRequest struct {
		To    string   `json:"to" validate:"required,email"`
		Kinds []string `json:"kinds" validate:"required,min=1,dive,oneof=analysis.csv analysis.xlsx grades.csv raw.json"`
	}

	UnlockRequest struct {
		Key string `json:"key" validate:"required"`
	}

	// PrintOptions are the query options of feedback prints.
	PrintOptions struct {
		Mode   printer.Mode
		Points bool
	}

	GridResponse struct {
		AssignmentID string      `json:"assignmentId"`
		Total        int         `json:"total"`
		Rows         []draft.Row `json:"rows"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

// bindAndValidate binds the request into data and validates it.
func bindAndValidate(ctx echo.Context, validate *validator.Validate, data interface{}) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrapf(err, "binding to %T", data)
	}
	return validate.Struct(data)
}

// Bind reads ?mode=full|concise&points=true; points default to shown.
func (opts *PrintOptions) Bind(ctx echo.Context) error {
	mode, err := printer.ParseMode(ctx.QueryParam("mode"))
	if err != nil {
		return err
	}
	opts.Mode = mode
	opts.Points = true
	if val := ctx.QueryParam("points"); val != "" {
		if opts.Points, err = strconv.ParseBool(val); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "points must be a boolean")
		}
	}
	return nil
}

func historyLimit(ctx echo.Context) int {
	limit, err := strconv.Atoi(ctx.QueryParam("limit"))
	if err != nil || limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}
