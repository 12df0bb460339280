package errors

import (
	"errors"
	"strings"
)

// Wrap wraps an error with additional context, creating a WebError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *WebError {
	if err == nil {
		return nil
	}

	// Keep the inner operation/file so the outermost message still points at the failing template.
	var we *WebError
	if errors.As(err, &we) {
		return &WebError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       we,
			Context:     we.Context,
			Operation:   we.Operation,
			FilePath:    we.FilePath,
			Recoverable: we.Recoverable,
		}
	}

	return &WebError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeConnection,
	}
}

// WrapConnection wraps an I/O error as a connection error
func WrapConnection(err error, code, message string) *WebError {
	return Wrap(err, ErrorTypeConnection, code, message)
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *WebError {
	webErr := Wrap(err, ErrorTypeConfig, code, message)
	if webErr != nil {
		webErr.Recoverable = false
	}
	return webErr
}

// ExtractCause returns the innermost non-WebError cause of err.
func ExtractCause(err error) error {
	for {
		var we *WebError
		if !errors.As(err, &we) || we.Cause == nil {
			return err
		}
		err = we.Cause
	}
}

// CombineErrors joins the non-nil errors into one, or returns nil when there are none.
func CombineErrors(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}

	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	}

	messages := make([]string, len(nonNil))
	for i, err := range nonNil {
		messages[i] = err.Error()
	}

	return &WebError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: "multiple errors: " + strings.Join(messages, "; "),
		Cause:   errors.Join(nonNil...),
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
