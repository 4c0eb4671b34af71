package domain

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

type ErrorType string

const (
	ErrTypeInvalidInput ErrorType = "INVALID_INPUT"
	ErrTypeUnavailable  ErrorType = "UNAVAILABLE"
	ErrTypeInternal     ErrorType = "INTERNAL"
)

// DomainError carries the error class the API maps to a status code.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Stack   []byte
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) StackTrace() []byte {
	return e.Stack
}

func NewError(errType ErrorType, message string, err error) *DomainError {
	var stack []byte
	if err != nil {
		if stackErr, ok := err.(*goerrors.Error); ok {
			stack = stackErr.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}

	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

func InvalidInput(message string, err error) *DomainError {
	return NewError(ErrTypeInvalidInput, message, err)
}

func Unavailable(message string, err error) *DomainError {
	return NewError(ErrTypeUnavailable, message, err)
}

func Internal(message string, err error) *DomainError {
	return NewError(ErrTypeInternal, message, err)
}
