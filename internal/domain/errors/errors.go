package errors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindTransient      Kind = "transient"
	KindPermanent      Kind = "permanent"
	KindInternal       Kind = "internal"

	// KindConfiguration is fatal at startup and never retried.
	KindConfiguration Kind = "configuration"
	KindClone         Kind = "clone"
	KindCheckout      Kind = "checkout"
)

type AppError struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string, cause error) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

func (appError *AppError) Error() string {
	if appError.Cause == nil {
		return fmt.Sprintf("%s: %s", appError.Kind, appError.Message)
	}

	return fmt.Sprintf("%s: %s (%v)", appError.Kind, appError.Message, appError.Cause)
}

func (appError *AppError) Unwrap() error {
	return appError.Cause
}

// KindOf returns the kind of the outermost AppError in the chain, or the empty kind.
func KindOf(err error) Kind {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Kind
	}

	return ""
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch KindOf(err) {
	case KindValidation:
		return 2
	case KindAuthentication:
		return 3
	case KindNotFound:
		return 4
	case KindConfiguration:
		return 6
	case KindClone:
		return 7
	case KindCheckout:
		return 8
	case KindTransient:
		return 10
	default:
		return 1
	}
}
