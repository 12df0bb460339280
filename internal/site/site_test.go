package site

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/unchained/internal/errors"
	"github.com/conneroisu/unchained/internal/logging"
	"github.com/conneroisu/unchained/internal/monitoring"
	"github.com/conneroisu/unchained/internal/router"
	"github.com/conneroisu/unchained/internal/templates"
)

const testManifest = `
context:
  year: 2024
  title: Home
pages:
  - path: /
    template: templates/landing.html
    context:
      title: Landing
  - path: /about
    template: templates/about.html
    headers:
      Cache-Control: no-store
  - path: courses/:courseid
    template: templates/course.html
    dynamic: true
    bind:
      course_md_path: "templates/markdown/courses/:courseid.md"
files: ["/images/*"]
not_found: templates/404.html
headers:
  X-Frame-Options: DENY
`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"site.yml":                             {Data: []byte(testManifest)},
		"templates/landing.html":               {Data: []byte("<h1>{* get title *}</h1><p>{* get year *}</p>")},
		"templates/about.html":                 {Data: []byte("about {* get title *}")},
		"templates/course.html":                {Data: []byte("<h2>{* get params.courseid *}</h2>{* md course_md_path *}")},
		"templates/markdown/courses/cs101.md":  {Data: []byte("# Intro\n")},
		"templates/markdown/courses/broken.md": {Data: []byte("{* nope *}")},
		"templates/404.html":                   {Data: []byte("missing {* get year *}")},
		"images/logo.svg":                      {Data: []byte("<svg/>")},
	}
}

type renderCounter struct {
	mu     sync.Mutex
	ok     int
	failed int
}

func (c *renderCounter) RenderCompleted(_ time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failed++
	} else {
		c.ok++
	}
}

func loadSite(t *testing.T, fsys fstest.MapFS, options ...Option) *Site {
	t.Helper()

	s, err := Load(fsys, "site.yml", nil, options...)
	require.NoError(t, err)
	require.NoError(t, s.Render(context.Background()))

	return s
}

func get(r *router.Router, path string) *router.Response {
	return r.Handle(&router.Request{Verb: router.GET, Path: path})
}

func mustString(t *testing.T, data templates.ContextMap, attribute string) string {
	t.Helper()

	s, err := templates.LookupString(data, attribute)
	require.NoError(t, err)

	return s
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(testManifest))
	require.NoError(t, err)

	require.Len(t, m.Pages, 3)
	assert.Equal(t, "/", m.Pages[0].Path)
	assert.Equal(t, "Landing", m.Pages[0].Context["title"])
	assert.True(t, m.Pages[2].Dynamic)
	assert.Equal(t, "templates/markdown/courses/:courseid.md", m.Pages[2].Bind["course_md_path"])
	assert.Equal(t, []string{"/images/*"}, m.Files)
	assert.Equal(t, "templates/404.html", m.NotFound)
	assert.Equal(t, "DENY", m.Headers["X-Frame-Options"])
	assert.Equal(t, 2024, m.Context["year"])
}

func TestParseManifestErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{name: "unknown key", manifest: "pagez: []"},
		{name: "not yaml", manifest: "pages: [unterminated"},
		{name: "page without path", manifest: "pages: [{template: a.html}]"},
		{name: "page without template", manifest: "pages: [{path: /}]"},
		{name: "bind on static page", manifest: "pages: [{path: /a, template: a.html, bind: {x: y}}]"},
		{name: "duplicate page", manifest: "pages: [{path: /a, template: a.html}, {path: a/, template: b.html}]"},
		{name: "empty files pattern", manifest: "files: ['']"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.manifest))
			require.Error(t, err)
			assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
		})
	}
}

func TestParseManifestEmpty(t *testing.T) {
	m, err := ParseManifest(nil)
	require.NoError(t, err)
	assert.Empty(t, m.Pages)
}

func TestLoadManifestMissing(t *testing.T) {
	_, err := LoadManifest(fstest.MapFS{}, "site.yml")
	require.Error(t, err)
	assert.True(t, errors.IsLoadFile(err))
}

func TestSiteRoutes(t *testing.T) {
	metrics := &renderCounter{}
	s := loadSite(t, testFS(), WithMetrics(metrics))
	r := s.Router()

	tests := []struct {
		name        string
		path        string
		status      int
		body        string
		contains    []string
		contentType string
	}{
		{name: "static page", path: "/", status: 200, body: "<h1>Landing</h1><p>2024</p>"},
		{name: "base context", path: "/about", status: 200, body: "about Home"},
		{name: "trailing slash", path: "/about/", status: 200, body: "about Home"},
		{
			name:     "dynamic page",
			path:     "/courses/cs101",
			status:   200,
			contains: []string{"<h2>cs101</h2>", `<h1 id="intro">Intro</h1>`},
		},
		{name: "dynamic page missing file", path: "/courses/cs999", status: 404, body: "missing 2024"},
		{name: "files", path: "/images/logo.svg", status: 200, body: "<svg/>", contentType: "image/svg+xml"},
		{name: "missing file", path: "/images/none.png", status: 404, body: ""},
		{name: "not found", path: "/nowhere/at/all", status: 404, body: "missing 2024"},
		{name: "query ignored", path: "/about?ref=home", status: 200, body: "about Home"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(r, tt.path)

			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.contains != nil {
				for _, want := range tt.contains {
					assert.Contains(t, string(resp.Body), want)
				}
			} else {
				assert.Equal(t, tt.body, string(resp.Body))
			}
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, resp.Headers["Content-Type"])
			}
		})
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	assert.Equal(t, 4, metrics.ok, "two static pages, the not-found page and one dynamic page")
	assert.Equal(t, 1, metrics.failed)
}

func TestSiteRouteHeaders(t *testing.T) {
	s := loadSite(t, testFS())

	resp := get(s.Router(), "/about")
	assert.Equal(t, "no-store", resp.Headers["Cache-Control"])
}

func TestDynamicRenderFailure(t *testing.T) {
	s := loadSite(t, testFS())

	resp := get(s.Router(), "/courses/broken")
	assert.Equal(t, 500, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "nope")
}

func TestStaticRenderFailure(t *testing.T) {
	fsys := testFS()
	fsys["templates/about.html"] = &fstest.MapFile{Data: []byte("{* get missing.value *}")}

	s, err := Load(fsys, "site.yml", nil)
	require.NoError(t, err)

	err = s.Render(context.Background())
	require.Error(t, err)

	resp := get(s.Router(), "/about")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, err.Error(), string(resp.Body))
	assert.Equal(t, []string{"/about"}, s.Failures())

	status, msg := s.HealthCheck(context.Background())
	assert.Equal(t, monitoring.HealthStatusUnhealthy, status)
	assert.Contains(t, msg, "/about")
}

func TestRenderLogsEachPage(t *testing.T) {
	fsys := testFS()
	fsys["templates/about.html"] = &fstest.MapFile{Data: []byte("{* get missing.value *}")}

	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Format: "text", Output: &buf})
	s, err := Load(fsys, "site.yml", nil, WithLogger(logger))
	require.NoError(t, err)
	require.Error(t, s.Render(context.Background()))

	var completed, failed []string
	for _, line := range strings.Split(buf.String(), "\n") {
		switch {
		case strings.Contains(line, "Operation completed"):
			completed = append(completed, line)
		case strings.Contains(line, "Operation failed"):
			failed = append(failed, line)
		}
	}

	require.Len(t, failed, 1)
	assert.Contains(t, failed[0], "path=/about")
	assert.Contains(t, failed[0], "template=templates/about.html")
	assert.Contains(t, failed[0], "operation=render")
	assert.NotEmpty(t, completed)
	assert.Contains(t, buf.String(), "duration_ms=")
}

func TestHealthyAfterRender(t *testing.T) {
	s := loadSite(t, testFS())

	status, msg := s.HealthCheck(context.Background())
	assert.Equal(t, monitoring.HealthStatusHealthy, status)
	assert.Empty(t, msg)
}

func TestNoNotFoundPage(t *testing.T) {
	m, err := ParseManifest([]byte("pages: [{path: /, template: images/logo.svg}]"))
	require.NoError(t, err)

	s, err := New(m, testFS(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Render(context.Background()))

	resp := get(s.Router(), "/elsewhere")
	assert.Equal(t, 404, resp.StatusCode)
	assert.Empty(t, resp.Body)
	assert.Len(t, s.Routes(), 1)
}

func TestBindParams(t *testing.T) {
	p := page{Page: Page{Bind: map[string]string{
		"both": "/:id/:idx",
		"none": "static",
	}}}

	data := bindParams(p, map[string]string{"id": "a", "idx": "b"})

	assert.Equal(t, "/a/b", mustString(t, data, "both"))
	assert.Equal(t, "static", mustString(t, data, "none"))
	assert.Equal(t, "a", mustString(t, data, "params.id"))
	assert.Equal(t, "b", mustString(t, data, "params.idx"))
}

func TestDescribe(t *testing.T) {
	s := loadSite(t, testFS())

	infos := s.Describe()
	require.Len(t, infos, 5)
	assert.Equal(t, "static", infos[0].Kind)
	assert.Equal(t, "dynamic", infos[2].Kind)
	assert.Equal(t, "files", infos[3].Kind)
	assert.Equal(t, RouteInfo{Verb: router.GET, Path: "/*", Kind: "not-found", Template: "templates/404.html"}, infos[4])
	assert.Len(t, s.Routes(), len(infos))
}

func TestWatchReRenders(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "templates"), 0o755))
	page := filepath.Join(root, "templates", "index.html")
	require.NoError(t, os.WriteFile(page, []byte("v1"), 0o644))

	m, err := ParseManifest([]byte("pages: [{path: /, template: templates/index.html}]"))
	require.NoError(t, err)

	s, err := New(m, os.DirFS(root), nil)
	require.NoError(t, err)
	require.NoError(t, s.Render(context.Background()))
	r := s.Router()
	assert.Equal(t, "v1", string(get(r, "/").Body))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fw, err := s.Watch(ctx, root, 20*time.Millisecond)
	require.NoError(t, err)
	defer fw.Stop()

	require.NoError(t, os.WriteFile(page, []byte("v2"), 0o644))

	require.Eventually(t, func() bool {
		return strings.TrimSpace(string(get(r, "/").Body)) == "v2"
	}, 3*time.Second, 20*time.Millisecond)
}
