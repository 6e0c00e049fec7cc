package function

import (
	"errors"
	"fmt"
)

// ErrInvalidArguments is returned when a call's arguments are not a JSON object.
var ErrInvalidArguments = errors.New("tool arguments must be a JSON object")

// UnknownToolError is returned when a tool call names no declared function.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %q", e.Name)
}

// MissingArgumentError is returned when a required parameter is absent.
type MissingArgumentError struct {
	Function string
	Name     string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("function %q: missing required argument %q", e.Function, e.Name)
}

// ArgumentTypeMismatchError is returned when an argument cannot be coerced
// to its declared type.
type ArgumentTypeMismatchError struct {
	Function string
	Name     string
	Want     Type
	Got      string
	Cause    error
}

func (e *ArgumentTypeMismatchError) Error() string {
	msg := fmt.Sprintf("argument %q: cannot use %s as %s", e.Name, e.Got, e.Want)
	if e.Function != "" {
		msg = fmt.Sprintf("function %q: %s", e.Function, msg)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ArgumentTypeMismatchError) Unwrap() error {
	return e.Cause
}

// InvocationError wraps a failure returned by the underlying callable.
type InvocationError struct {
	Function string
	Cause    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("function %q execution failed: %v", e.Function, e.Cause)
}

func (e *InvocationError) Unwrap() error {
	return e.Cause
}
