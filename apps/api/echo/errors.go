package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/draft"
	"github.com/trezcool/kazi/core/export"
	"github.com/trezcool/kazi/core/feedback"
	"github.com/trezcool/kazi/core/printer"
	"github.com/trezcool/kazi/core/submission"
	assessorsvc "github.com/trezcool/kazi/services/assessor"
)

// backend errors of this action are rejected student keys
const studentLoginAction = "authenticateStudent"

var (
	notFoundErrs = []error{
		core.ErrNotFound,
		assignment.ErrNotFound,
		draft.ErrClassNotFound,
		draft.ErrStudentNotFound,
		draft.ErrNoDrafts,
		export.ErrUnknownKind,
	}
	badRequestErrs = []error{
		submission.ErrNothingToSubmit,
		export.ErrNoAttachment,
		printer.ErrUnknownMode,
		feedback.ErrNoStudentData,
	}
)

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}
		var remoteErr *core.RemoteError

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				message = origErr.FieldMap()
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			switch {
			case errors.Is(err, core.ErrInvalidTeacherKey):
				code = http.StatusUnauthorized
				message = core.ErrInvalidTeacherKey.Error()
			case isAny(err, notFoundErrs):
				code = http.StatusNotFound
				message = errors.Cause(err).Error()
			case isAny(err, badRequestErrs):
				code = http.StatusBadRequest
				message = errors.Cause(err).Error()
			case errors.As(err, &remoteErr) && remoteErr.Action == studentLoginAction:
				code = http.StatusUnauthorized
				message = remoteErr.Message
			case errors.As(err, &remoteErr):
				code = http.StatusBadGateway
				message = remoteErr.Message
			case errors.Is(err, assessorsvc.ErrEmptyAssessment):
				code = http.StatusBadGateway
				message = assessorsvc.ErrEmptyAssessment.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var args []interface{}
				args = append(args, errors.Wrap(err, msg))
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					args = append(args, claims.Identity())
				}
				logger.Error(msg, args...)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
