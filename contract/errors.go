package contract

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOperation is returned when invoking an operation that was
	// never registered.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrDuplicateOperation is returned when registering a name twice.
	ErrDuplicateOperation = errors.New("duplicate operation")

	// ErrInvalidArguments is returned when an argument blob fails validation.
	ErrInvalidArguments = errors.New("invalid arguments")
)

type UnknownOperationError struct {
	Op string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation %q", e.Op)
}

func (e *UnknownOperationError) Is(target error) bool {
	return target == ErrUnknownOperation
}

// ValidationError reports an argument blob rejected by an operation's schema.
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid arguments: %v", e.Op, e.Err)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidArguments
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
