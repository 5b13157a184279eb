package method

import (
	"errors"
	"fmt"
)

// Machine-readable codes carried by *ParamError.
const (
	CodeMissingParameter = "missing_parameter"
	CodeInvalidParameter = "invalid_parameter"
)

var (
	ErrMissingParameter = errors.New("missing parameter")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrMissingHandler   = errors.New("missing handler")

	// ErrWildcardRegister is what a wildcard pattern returns for anything but
	// Before, After and Catch: it has no single main handler.
	ErrWildcardRegister = errors.New("register method does not support wildcards")
)

// ParamError reports a parameter that failed the method's check schema.
type ParamError struct {
	Code   string
	Name   string
	Method string
}

func (e *ParamError) Error() string {
	switch e.Code {
	case CodeMissingParameter:
		return fmt.Sprintf("missing parameter %q", e.Name)
	default:
		return fmt.Sprintf("invalid parameter %q", e.Name)
	}
}

func (e *ParamError) Is(target error) bool {
	switch target {
	case ErrMissingParameter:
		return e.Code == CodeMissingParameter
	case ErrInvalidParameter:
		return e.Code == CodeInvalidParameter
	}
	return false
}

// MissingHandlerError is the outcome of calling a method nobody registered.
type MissingHandlerError struct {
	Method string
}

func (e *MissingHandlerError) Error() string {
	return fmt.Sprintf("please register a handler for method %s", e.Method)
}

func (e *MissingHandlerError) Is(target error) bool { return target == ErrMissingHandler }
