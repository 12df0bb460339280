// Package extensions provides the custom template operations shipped with
// the server: md, title and slug.
package extensions

import (
	"bytes"
	"context"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/conneroisu/unchained/internal/errors"
	"github.com/conneroisu/unchained/internal/templates"
)

// Operation names registered by Register.
const (
	OpMarkdown = "md"
	OpTitle    = "title"
	OpSlug     = "slug"
)

// Options configures the extension operations.
type Options struct {
	// Sanitize passes rendered Markdown through a user-generated-content
	// policy before it is spliced into the page.
	Sanitize bool
	// HardWraps renders single newlines in Markdown as <br>.
	HardWraps bool
}

// Register returns a copy of opts with every extension operation added.
func Register(opts *templates.RenderOptions, cfg Options) *templates.RenderOptions {
	return opts.
		WithOperation(OpMarkdown, Markdown(cfg)).
		WithOperation(OpTitle, Title).
		WithOperation(OpSlug, Slug)
}

// Markdown returns the md operation. Its single parameter is either the name
// of a string value holding a file path, or the path itself. The file is
// rendered as a template first and the result converted from GitHub
// flavoured Markdown to HTML.
func Markdown(cfg Options) templates.OperationFunc {
	rendererOpts := []goldmark.Option{
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	}
	if cfg.HardWraps {
		rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(html.WithHardWraps()))
	}
	md := goldmark.New(rendererOpts...)

	var policy *bluemonday.Policy
	if cfg.Sanitize {
		policy = bluemonday.UGCPolicy()
	}

	return func(ctx context.Context, call *templates.OperationCall, data templates.ContextMap, opts *templates.RenderOptions) (string, error) {
		params, err := templates.ExpectParams(call, 1)
		if err != nil {
			return "", err
		}

		path := params[0]
		if leaf, ok := data[path].(templates.Leaf); ok {
			if s, ok := leaf.Value.(templates.Str); ok {
				path = string(s)
			}
		}

		source, err := templates.LoadTemplate(ctx, path, data, opts)
		if err != nil {
			return "", err
		}

		var buf bytes.Buffer
		if err := md.Convert([]byte(source), &buf); err != nil {
			return "", errors.NewInternalError(errors.ErrCodeMarkdownConversion,
				"could not convert markdown", err).WithFile(path).WithOperation(call.Name)
		}

		if policy != nil {
			return policy.Sanitize(buf.String()), nil
		}

		return buf.String(), nil
	}
}
