package action

import (
	"github.com/feynman-go/actionkit/promise"
	"github.com/pkg/errors"
)

// UnexpectedMessage is reported for failures that carry no message of their
// own.
const UnexpectedMessage = "An unexpected error occurred"

// ActionError is implemented by exactly two types, ValidationError and
// ProcessingError, which tell apart where a task failed.
type ActionError interface {
	error
	Tag() string
	actionError()
}

// ValidationError means the input was rejected before any processing.
type ValidationError struct {
	Message string
	Field   string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Tag() string {
	return "ValidationError"
}

func (*ValidationError) actionError() {}

// ProcessingError means a step failed after the input was accepted.
type ProcessingError struct {
	Message string
	Cause   error
}

func (e *ProcessingError) Error() string {
	if e.Cause == nil || e.Cause.Error() == e.Message {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *ProcessingError) Tag() string {
	return "ProcessingError"
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

func (*ProcessingError) actionError() {}

// ErrorMessage turns any task failure into the single line reported to the
// host.
func ErrorMessage(err error) string {
	if err == nil {
		return UnexpectedMessage
	}

	var ae ActionError
	if errors.As(err, &ae) {
		switch e := ae.(type) {
		case *ValidationError:
			return nonEmpty(e.Message)
		case *ProcessingError:
			return nonEmpty(e.Message)
		}
	}

	var pe *promise.PanicError
	if errors.As(err, &pe) {
		if cause, ok := pe.Value.(error); ok {
			return nonEmpty(cause.Error())
		}
		return UnexpectedMessage
	}
	return nonEmpty(err.Error())
}

func nonEmpty(msg string) string {
	if msg == "" {
		return UnexpectedMessage
	}
	return msg
}
