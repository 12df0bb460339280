package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *WebError
		contains []string
	}{
		{
			name:     "load file",
			err:      NewLoadFileError("templates/missing.html", io.EOF),
			contains: []string{"[ERR_FILE_NOT_FOUND]", "templates/missing.html", "EOF"},
		},
		{
			name:     "operation context",
			err:      NewInvalidParamsError(ErrCodeParamCount, "expected 1 parameters, got 2").WithOperation("slot"),
			contains: []string{"[ERR_PARAM_COUNT]", "operation:slot", "expected 1 parameters"},
		},
		{
			name:     "connection",
			err:      NewConnectionError(ErrCodeMalformedRequest, "malformed request line", nil),
			contains: []string{"malformed request line"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, part := range tt.contains {
				assert.Contains(t, msg, part)
			}
		})
	}
}

func TestTypePredicates(t *testing.T) {
	loadErr := NewLoadFileError("a.html", nil)
	parseErr := NewParseTemplateError(ErrCodeNoOperation, "empty operation")
	paramsErr := NewInvalidParamsError(ErrCodeAttributeNotFound, "x not found")
	connErr := NewConnectionError(ErrCodeReadFailed, "read failed", io.ErrUnexpectedEOF)

	assert.True(t, IsLoadFile(loadErr))
	assert.True(t, IsParseTemplate(parseErr))
	assert.True(t, IsInvalidParams(paramsErr))
	assert.True(t, IsConnection(connErr))

	assert.False(t, IsLoadFile(parseErr))
	assert.False(t, IsConnection(io.EOF))
	assert.Equal(t, ErrorType(""), TypeOf(io.EOF))

	wrapped := fmt.Errorf("rendering page: %w", paramsErr)
	assert.True(t, IsInvalidParams(wrapped))
	assert.True(t, IsRecoverable(connErr))
	assert.False(t, IsRecoverable(loadErr))
}

func TestWebErrorIs(t *testing.T) {
	a := NewInvalidParamsError(ErrCodeParamCount, "first")
	b := NewInvalidParamsError(ErrCodeParamCount, "second")
	c := NewInvalidParamsError(ErrCodeAttributeShape, "third")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
	assert.True(t, errors.Is(NewConnectionError(ErrCodeReadFailed, "x", io.EOF), io.EOF))
}

func TestWrapKeepsLocation(t *testing.T) {
	inner := NewInvalidParamsError(ErrCodeAttributeNotFound, "title not found").
		WithOperation("get").
		WithFile("card.html")

	outer := Wrap(inner, ErrorTypeParseTemplate, ErrCodeUnknownOperation, "component failed")
	require.NotNil(t, outer)
	assert.Equal(t, "get", outer.Operation)
	assert.Equal(t, "card.html", outer.FilePath)
	assert.Same(t, inner, errors.Unwrap(outer))

	assert.Nil(t, Wrap(nil, ErrorTypeInternal, ErrCodeInternalError, "nothing"))

	conn := WrapConnection(io.EOF, ErrCodeReadFailed, "reading headers")
	assert.True(t, conn.Recoverable)
	assert.Equal(t, io.EOF, ExtractCause(conn))
}

func TestCombineErrors(t *testing.T) {
	assert.NoError(t, CombineErrors(nil, nil))

	single := io.EOF
	assert.Equal(t, single, CombineErrors(nil, single))

	combined := CombineErrors(io.EOF, io.ErrClosedPipe)
	require.Error(t, combined)
	assert.Contains(t, combined.Error(), "multiple errors")
	assert.True(t, errors.Is(combined, io.ErrClosedPipe))
}

type recordingLogger struct {
	errors []string
	warns  []string
	fields [][]interface{}
}

func (r *recordingLogger) Error(_ context.Context, _ error, msg string, fields ...interface{}) {
	r.errors = append(r.errors, msg)
	r.fields = append(r.fields, fields)
}

func (r *recordingLogger) Warn(_ context.Context, _ error, msg string, fields ...interface{}) {
	r.warns = append(r.warns, msg)
	r.fields = append(r.fields, fields)
}

func TestErrorHandler(t *testing.T) {
	logger := &recordingLogger{}
	handler := NewErrorHandler(logger)
	ctx := context.Background()

	handler.Handle(ctx, nil)
	handler.Handle(ctx, NewConnectionError(ErrCodeReadFailed, "read", io.EOF))
	handler.Handle(ctx, NewParseTemplateError(ErrCodeNoOperation, "empty"))
	handler.Handle(ctx, io.EOF)

	assert.Equal(t, []string{"Connection error occurred"}, logger.warns)
	assert.Equal(t, []string{"Template error occurred", "Unhandled error occurred"}, logger.errors)

	NewErrorHandler(nil).Handle(ctx, io.EOF)
}

func TestErrorHandlerLogsRootCause(t *testing.T) {
	logger := &recordingLogger{}
	handler := NewErrorHandler(logger)

	inner := NewConnectionError(ErrCodeBodyLength, "short body", io.ErrUnexpectedEOF)
	handler.Handle(context.Background(), WrapConnection(inner, ErrCodeReadFailed, "read failed"), "remote_addr", "pipe")
	handler.Handle(context.Background(), NewParseTemplateError(ErrCodeNoOperation, "empty"))

	require.Len(t, logger.fields, 2)
	assert.Equal(t, []interface{}{
		"remote_addr", "pipe",
		"type", ErrorTypeConnection, "code", ErrCodeReadFailed,
		"cause", io.ErrUnexpectedEOF.Error(),
	}, logger.fields[0])
	assert.NotContains(t, logger.fields[1], "cause")
}
