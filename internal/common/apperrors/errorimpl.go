package apperrors

import "errors"

type appError struct {
	msg        string
	base       *appError
	causes     []error
	statusCode int
}

// New creates a root error with no base.
func New(msg string) Error {
	return &appError{msg: msg}
}

func (e *appError) Error() string {
	return e.msg
}

func (e *appError) New(msg string) Error {
	return &appError{
		msg:        msg,
		base:       e,
		statusCode: e.statusCode,
	}
}

func (e *appError) clone() *appError {
	c := *e
	c.causes = append([]error(nil), e.causes...)
	return &c
}

func (e *appError) Msg(msg string) Error {
	c := e.clone()
	c.msg = msg
	// keep the original as an ancestor so errors.Is still matches it
	c.base = e
	return c
}

func (e *appError) Err(err ...error) Error {
	c := e.clone()
	c.base = e
	c.causes = append(c.causes, err...)
	return c
}

func (e *appError) Unwrap() []error {
	return e.causes
}

func (e *appError) Is(target error) bool {
	for b := e; b != nil; b = b.base {
		if error(b) == target {
			return true
		}
	}
	for _, cause := range e.causes {
		if errors.Is(cause, target) {
			return true
		}
	}
	return false
}

func (e *appError) SetStatusCode(code int) Error {
	c := e.clone()
	c.statusCode = code
	return c
}

func (e *appError) StatusCode() int {
	return e.statusCode
}
