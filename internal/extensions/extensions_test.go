package extensions

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/unchained/internal/errors"
	"github.com/conneroisu/unchained/internal/templates"
)

func newOptions(cfg Options) *templates.RenderOptions {
	fsys := fstest.MapFS{
		"templates/markdown/courses/cs101.md": {Data: []byte("# Intro to {* course *}\n\nSome *text* and ~~old~~ news.\n")},
		"templates/markdown/links.md":         {Data: []byte("[site](https://example.com) <script>alert(1)</script>\n")},
	}

	return Register(templates.DefaultOptions().WithFS(fsys), cfg)
}

func TestMarkdownOperation(t *testing.T) {
	opts := newOptions(Options{})
	data := templates.ContextMap{
		"course":          templates.StrLeaf("Go"),
		"course_md_path":  templates.StrLeaf("templates/markdown/courses/cs101.md"),
		"not_a_path_leaf": templates.NumLeaf(3),
	}

	t.Run("path from context", func(t *testing.T) {
		out, err := templates.RenderHTML(context.Background(), "<article>{* md course_md_path *}</article>", data, opts)
		require.NoError(t, err)
		assert.Contains(t, out, `<h1 id="intro-to-go">Intro to Go</h1>`)
		assert.Contains(t, out, "<em>text</em>")
		assert.Contains(t, out, "<del>old</del>")
	})

	t.Run("literal path", func(t *testing.T) {
		out, err := templates.RenderHTML(context.Background(), "{* md templates/markdown/courses/cs101.md *}", data, opts)
		require.NoError(t, err)
		assert.Contains(t, out, "Intro to Go")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := templates.RenderHTML(context.Background(), "{* md templates/markdown/none.md *}", data, opts)
		require.Error(t, err)
		assert.True(t, errors.IsLoadFile(err))
	})

	t.Run("arity", func(t *testing.T) {
		_, err := templates.RenderHTML(context.Background(), "{* md a b *}", data, opts)
		require.Error(t, err)
		assert.True(t, errors.IsInvalidParams(err))
	})
}

func TestMarkdownSanitize(t *testing.T) {
	ctx := context.Background()

	plain, err := templates.RenderHTML(ctx, "{* md templates/markdown/links.md *}", nil, newOptions(Options{}))
	require.NoError(t, err)
	assert.Contains(t, plain, "raw HTML omitted")

	clean, err := templates.RenderHTML(ctx, "{* md templates/markdown/links.md *}", nil, newOptions(Options{Sanitize: true}))
	require.NoError(t, err)
	assert.NotContains(t, clean, "raw HTML omitted")
	assert.NotContains(t, clean, "<script>")
	assert.Contains(t, clean, `rel="nofollow"`)
}

func TestTextOperations(t *testing.T) {
	opts := newOptions(Options{})
	data := templates.ContextMap{
		"name":  templates.StrLeaf("hello wide world"),
		"title": templates.StrLeaf("Héllo, World!"),
		"list":  templates.List(),
	}

	tests := []struct {
		name     string
		template string
		want     string
		wantErr  bool
	}{
		{name: "title", template: "{* title name *}", want: "Hello Wide World"},
		{name: "slug", template: "/posts/{* slug title *}", want: "/posts/hello-world"},
		{name: "title of array", template: "{* title list *}", wantErr: true},
		{name: "slug of missing", template: "{* slug nope *}", wantErr: true},
		{name: "title arity", template: "{* title *}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := templates.RenderHTML(context.Background(), tt.template, data, opts)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalidParams(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRegisterKeepsBaseOptions(t *testing.T) {
	base := templates.DefaultOptions()
	registered := Register(base, Options{})

	assert.Empty(t, base.Operations)
	assert.Contains(t, registered.Operations, OpMarkdown)
	assert.Contains(t, registered.Operations, OpTitle)
	assert.Contains(t, registered.Operations, OpSlug)
}
