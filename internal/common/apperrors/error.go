// Package apperrors provides layered application errors. Errors form a
// hierarchy: each error derived with New keeps a reference to its base, so
// errors.Is matches an error against any of its ancestors as well as any
// wrapped causes.
package apperrors

type Error interface {
	error
	// New derives a child error from this one. The child matches this error
	// and all of its ancestors under errors.Is.
	New(msg string) Error
	// Msg returns a copy of this error with a different message.
	Msg(msg string) Error
	// Err returns a copy of this error wrapping the given causes.
	Err(err ...error) Error
	Unwrap() []error
	Is(target error) bool
	// SetStatusCode attaches a transport status hint to the error.
	SetStatusCode(code int) Error
	StatusCode() int
}
