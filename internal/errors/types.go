// Package errors defines the structured error kinds shared by the template
// engine and the serving runtime.
//
// Every failure surfaced by the engine is a *WebError carrying one of the
// kinds below. Template errors propagate synchronously up the render call
// chain; connection errors stop at the worker boundary where ErrorHandler
// logs them.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeLoadFile      ErrorType = "load_file"
	ErrorTypeParseTemplate ErrorType = "parse_template"
	ErrorTypeInvalidParams ErrorType = "invalid_params"
	ErrorTypeConnection    ErrorType = "connection"
	ErrorTypeConfig        ErrorType = "config"
	ErrorTypeInternal      ErrorType = "internal"
)

// WebError is a structured error type with context.
type WebError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Operation   string
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *WebError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Operation != "" {
		parts = append(parts, "operation:"+e.Operation)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *WebError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *WebError) Is(target error) bool {
	var t *WebError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *WebError) WithContext(key string, value interface{}) *WebError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithFile records the template or static file the error refers to.
func (e *WebError) WithFile(filePath string) *WebError {
	e.FilePath = filePath

	return e
}

// WithOperation records the template operation that failed.
func (e *WebError) WithOperation(name string) *WebError {
	e.Operation = name

	return e
}

// NewLoadFileError creates an error for a template or file that could not be read.
func NewLoadFileError(path string, cause error) *WebError {
	return &WebError{
		Type:        ErrorTypeLoadFile,
		Code:        ErrCodeFileNotFound,
		Message:     "could not read file " + path,
		Cause:       cause,
		FilePath:    path,
		Recoverable: false,
	}
}

// NewParseTemplateError creates an error for malformed or unresolvable
// operation regions.
func NewParseTemplateError(code, message string) *WebError {
	return &WebError{
		Type:        ErrorTypeParseTemplate,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInvalidParamsError creates an error for operations called with the wrong
// parameter shape or resolving to the wrong value shape.
func NewInvalidParamsError(code, message string) *WebError {
	return &WebError{
		Type:        ErrorTypeInvalidParams,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewConnectionError creates a connection-scoped I/O or framing error.
func NewConnectionError(code, message string, cause error) *WebError {
	return &WebError{
		Type:        ErrorTypeConnection,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *WebError {
	return &WebError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *WebError {
	return &WebError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// TypeOf returns the ErrorType of err, or the empty string when err is not a
// *WebError.
func TypeOf(err error) ErrorType {
	var we *WebError
	if errors.As(err, &we) {
		return we.Type
	}

	return ""
}

// IsLoadFile reports whether err is a LoadFile error.
func IsLoadFile(err error) bool {
	return TypeOf(err) == ErrorTypeLoadFile
}

// IsParseTemplate reports whether err is a ParseTemplate error.
func IsParseTemplate(err error) bool {
	return TypeOf(err) == ErrorTypeParseTemplate
}

// IsInvalidParams reports whether err is an InvalidParams error.
func IsInvalidParams(err error) bool {
	return TypeOf(err) == ErrorTypeInvalidParams
}

// IsConnection reports whether err is a Connection error.
func IsConnection(err error) bool {
	return TypeOf(err) == ErrorTypeConnection
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var we *WebError
	if errors.As(err, &we) {
		return we.Recoverable
	}

	return false
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Handle processes an error with appropriate logging.
func (h *ErrorHandler) Handle(ctx context.Context, err error, fields ...interface{}) {
	if err == nil || h.logger == nil {
		return
	}

	var we *WebError
	if !errors.As(err, &we) {
		h.logger.Error(ctx, err, "Unhandled error occurred", fields...)

		return
	}

	fields = append(fields, "type", we.Type, "code", we.Code)
	if cause := ExtractCause(err); cause != err {
		fields = append(fields, "cause", cause.Error())
	}
	switch we.Type {
	case ErrorTypeConnection:
		h.logger.Warn(ctx, err, "Connection error occurred", fields...)
	case ErrorTypeLoadFile, ErrorTypeParseTemplate, ErrorTypeInvalidParams:
		h.logger.Error(ctx, err, "Template error occurred",
			append(fields, "operation", we.Operation, "file", we.FilePath)...)
	default:
		h.logger.Error(ctx, err, "Error occurred", fields...)
	}
}

// Common error codes.
const (
	ErrCodeFileNotFound       = "ERR_FILE_NOT_FOUND"
	ErrCodeNoOperation        = "ERR_NO_OPERATION"
	ErrCodeUnknownOperation   = "ERR_UNKNOWN_OPERATION"
	ErrCodeParamCount         = "ERR_PARAM_COUNT"
	ErrCodeAttributeNotFound  = "ERR_ATTRIBUTE_NOT_FOUND"
	ErrCodeAttributeShape     = "ERR_ATTRIBUTE_SHAPE"
	ErrCodeMissingChildren    = "ERR_MISSING_CHILDREN"
	ErrCodeInvalidPath        = "ERR_INVALID_PATH"
	ErrCodeSlotOutsideComp    = "ERR_SLOT_OUTSIDE_COMPONENT"
	ErrCodeMalformedRequest   = "ERR_MALFORMED_REQUEST"
	ErrCodeReadFailed         = "ERR_READ_FAILED"
	ErrCodeBodyLength         = "ERR_BODY_LENGTH"
	ErrCodeBodyEncoding       = "ERR_BODY_ENCODING"
	ErrCodeWriteFailed        = "ERR_WRITE_FAILED"
	ErrCodeConnectionFailed   = "ERR_CONNECTION_FAILED"
	ErrCodeConfigInvalid      = "ERR_CONFIG_INVALID"
	ErrCodeInternalError      = "ERR_INTERNAL"
	ErrCodeTaskPanicked       = "ERR_TASK_PANICKED"
	ErrCodeMarkdownConversion = "ERR_MARKDOWN_CONVERSION"
	ErrCodeManifestInvalid    = "ERR_MANIFEST_INVALID"
)
