package core

// Logger is any service that reports application events.
//
// args may hold errors, map[string]interface{} extras and at most one Identity;
// the Identity is attached to the report as the acting person.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Identity describes who triggered a logged event.
type Identity struct {
	ID    string
	Name  string
	Class string
	Role  string // teacher | student
}
