package core

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// FieldMap returns the field errors keyed by field name.
func (err ValidationError) FieldMap() map[string]string {
	fields := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		fields[f.Field] = f.Error
	}
	return fields
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

// ErrInvalidTeacherKey is matched by remote errors rejecting the teacher key.
// Clients holding such a key must drop their session and log in again.
var ErrInvalidTeacherKey = errors.New("invalid teacher key")

const invalidTeacherKeyMessage = "Invalid teacher key"

// RemoteError is an error reported by the remote backend, as {"status": "error", "message": ...}.
type RemoteError struct {
	Action  string
	Message string
}

func (err RemoteError) Error() string {
	if err.Action == "" {
		return "backend: " + err.Message
	}
	return "backend " + err.Action + ": " + err.Message
}

func (err RemoteError) Is(target error) bool {
	return target == ErrInvalidTeacherKey && strings.Contains(err.Message, invalidTeacherKeyMessage)
}
