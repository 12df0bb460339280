// Package templates implements the {* *} template language: the context
// model, operation parsing, the evaluator loop and the built-in operations.
package templates

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/conneroisu/unchained/internal/errors"
	"github.com/conneroisu/unchained/internal/textparse"
)

const tracerName = "github.com/conneroisu/unchained/internal/templates"

// Default operation markers.
const (
	DefaultOpening = "{*"
	DefaultClosing = "*}"
)

// OperationFunc renders one operation call against the current scope.
type OperationFunc func(ctx context.Context, call *OperationCall, data ContextMap, opts *RenderOptions) (string, error)

// RenderOptions configures one render. The operation registry is passed
// down through every nested render so custom operations can call back into
// LoadTemplate and RenderHTML.
type RenderOptions struct {
	Opening    string
	Closing    string
	Operations map[string]OperationFunc
	FS         fs.FS
}

// DefaultOptions returns options with the default markers, no custom
// operations and templates read relative to the working directory.
func DefaultOptions() *RenderOptions {
	return &RenderOptions{
		Opening:    DefaultOpening,
		Closing:    DefaultClosing,
		Operations: map[string]OperationFunc{},
		FS:         os.DirFS("."),
	}
}

// WithOperation returns a copy of o with fn registered under name.
// Registering nil disables the name.
func (o *RenderOptions) WithOperation(name string, fn OperationFunc) *RenderOptions {
	out := o.clone()
	out.Operations[name] = fn

	return out
}

// WithFS returns a copy of o reading templates from fsys.
func (o *RenderOptions) WithFS(fsys fs.FS) *RenderOptions {
	out := o.clone()
	out.FS = fsys

	return out
}

// WithMarkers returns a copy of o using the given operation markers.
func (o *RenderOptions) WithMarkers(opening, closing string) *RenderOptions {
	out := o.clone()
	out.Opening = opening
	out.Closing = closing

	return out
}

func (o *RenderOptions) clone() *RenderOptions {
	if o == nil {
		return DefaultOptions()
	}

	ops := make(map[string]OperationFunc, len(o.Operations)+1)
	for k, v := range o.Operations {
		ops[k] = v
	}

	return &RenderOptions{
		Opening:    o.Opening,
		Closing:    o.Closing,
		Operations: ops,
		FS:         o.FS,
	}
}

// normalized fills unset fields with defaults without touching o.
func (o *RenderOptions) normalized() *RenderOptions {
	if o != nil && o.Opening != "" && o.Closing != "" && o.FS != nil {
		return o
	}

	out := o.clone()
	if out.Opening == "" {
		out.Opening = DefaultOpening
	}
	if out.Closing == "" {
		out.Closing = DefaultClosing
	}
	if out.FS == nil {
		out.FS = os.DirFS(".")
	}

	return out
}

// resolve finds the handler for name: built-ins first, then the custom
// registry, then attribute lookup.
func (o *RenderOptions) resolve(name string) (OperationFunc, bool) {
	if fn := builtin(name); fn != nil {
		return fn, true
	}
	if fn, ok := o.Operations[name]; ok {
		return fn, fn != nil
	}

	return getOperation, true
}

// RenderHTML evaluates every operation region in content, leftmost and
// outermost first, and returns the resulting document. Any operation error
// aborts the render.
func RenderHTML(ctx context.Context, content string, data ContextMap, opts *RenderOptions) (string, error) {
	opts = opts.normalized()
	if data == nil {
		data = ContextMap{}
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "templates.RenderHTML",
		trace.WithAttributes(attribute.Int("template.length", len(content))))
	defer span.End()

	out, err := render(ctx, content, data, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return "", err
	}
	span.SetStatus(codes.Ok, "")

	return out, nil
}

func render(ctx context.Context, content string, data ContextMap, opts *RenderOptions) (string, error) {
	offset := 0
	for {
		m, ok := textparse.BetweenConnected(content[offset:], opts.Opening, opts.Closing)
		if !ok {
			return content, nil
		}
		m.From += offset
		m.To += offset

		call, ok := ParseOperation(m.Content)
		if !ok {
			return "", errors.NewParseTemplateError(errors.ErrCodeNoOperation,
				fmt.Sprintf("could not create operation from %q", m.Content))
		}

		fn, ok := opts.resolve(call.Name)
		if !ok {
			return "", errors.NewParseTemplateError(errors.ErrCodeUnknownOperation,
				"no template operation specified for "+call.Name).WithOperation(call.Name)
		}

		replacement, err := invoke(ctx, fn, call, data, opts)
		if err != nil {
			return "", err
		}

		// Output is rescanned from the start of the replaced region so that
		// operations returning template text (if) are evaluated in turn.
		content = textparse.Replace(content, m, replacement)
		offset = m.From
	}
}

func invoke(ctx context.Context, fn OperationFunc, call *OperationCall, data ContextMap, opts *RenderOptions) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "templates.operation",
		trace.WithAttributes(
			attribute.String("operation.name", call.Name),
			attribute.Int("operation.params", len(call.Parameters)),
		))
	defer span.End()

	out, err := fn(ctx, call, data, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return out, err
}

// LoadTemplate reads path from opts.FS and renders it with data.
func LoadTemplate(ctx context.Context, name string, data ContextMap, opts *RenderOptions) (string, error) {
	opts = opts.normalized()

	content, err := ReadFile(opts.FS, name)
	if err != nil {
		return "", err
	}

	out, err := RenderHTML(ctx, content, data, opts)
	if err != nil {
		var we *errors.WebError
		if errors.As(err, &we) && we.FilePath == "" {
			we.WithFile(name)
		}

		return "", err
	}

	return out, nil
}

// ReadFile reads a UTF-8 template from fsys. Failures are LoadFile errors.
func ReadFile(fsys fs.FS, name string) (string, error) {
	clean := CleanPath(name)
	if !fs.ValidPath(clean) {
		return "", errors.NewLoadFileError(name, fs.ErrInvalid)
	}

	data, err := fs.ReadFile(fsys, clean)
	if err != nil {
		return "", errors.NewLoadFileError(name, err)
	}

	return string(data), nil
}

// CleanPath turns a template reference such as "./templates/a.html" or
// "/templates/a.html" into a slash-separated fs.FS path.
func CleanPath(name string) string {
	name = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(name, "\\", "/")), "/")
	if name == "" {
		return "."
	}

	return name
}
