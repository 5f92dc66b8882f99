package param

import "fmt"

// Error reports a rejected parameter value. Field is the parameter name and
// may be empty when the Param was used outside a Set.
type Error struct {
	Field string
	Cause error
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("param: %v", e.Cause)
	}
	return fmt.Sprintf("param %s: %v", e.Field, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(field string, format string, args ...any) *Error {
	return &Error{Field: field, Cause: fmt.Errorf(format, args...)}
}
