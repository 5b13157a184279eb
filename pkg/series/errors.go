package series

import (
	"errors"
	"fmt"
)

var (
	// ErrNotCallable is returned when something other than a supported
	// handler shape is offered for wrapping.
	ErrNotCallable = errors.New("series: argument must be a function")

	// ErrAmbiguousCompletion fails a run whose handler returned a future and
	// also invoked its continuation.
	ErrAmbiguousCompletion = errors.New("series: please don't use the continuation in a handler that returns a future")

	// ErrDoubleCompletion is reported (never returned to the run's caller)
	// when a handler signals completion more than once.
	ErrDoubleCompletion = errors.New("series: completion has already been signalled")
)

// PanicError carries a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("series: handler panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// StepError ties a completion-protocol violation to the handler that made it.
type StepError struct {
	Handler string
	Source  string
	Err     error
}

func (e *StepError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%v (handler %s at %s)", e.Err, e.Handler, e.Source)
	}
	return fmt.Sprintf("%v (handler %s)", e.Err, e.Handler)
}

func (e *StepError) Unwrap() error { return e.Err }

func stepError(h *Handler, err error) error {
	return &StepError{Handler: h.Name(), Source: h.Source(), Err: err}
}
