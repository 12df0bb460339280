package site

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/conneroisu/unchained/internal/errors"
	"github.com/conneroisu/unchained/internal/extensions"
	"github.com/conneroisu/unchained/internal/logging"
	"github.com/conneroisu/unchained/internal/monitoring"
	"github.com/conneroisu/unchained/internal/router"
	"github.com/conneroisu/unchained/internal/templates"
	"github.com/conneroisu/unchained/internal/watcher"
)

// ParamsKey is the context key holding a dynamic page's captured path
// parameters as a Branch of strings.
const ParamsKey = "params"

// Metrics receives render measurements.
type Metrics interface {
	RenderCompleted(elapsed time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) RenderCompleted(time.Duration, error) {}

// Option customizes a Site.
type Option func(*Site)

// WithLogger sets the logger for render failures and reloads.
func WithLogger(logger logging.Logger) Option {
	return func(s *Site) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the render metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Site) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Site serves the pages of a manifest. Static pages are rendered by Render
// and held in a snapshot that Render replaces atomically, so the route
// table never changes while pages are re-rendered.
type Site struct {
	manifest *Manifest
	fsys     fs.FS
	opts     *templates.RenderOptions
	base     templates.ContextMap
	pages    []page
	logger   logging.Logger
	metrics  Metrics

	current atomic.Pointer[snapshot]
}

type page struct {
	Page
	data templates.ContextMap
}

type snapshot struct {
	bodies   map[string]string
	notFound string
	failures []string
}

// New prepares a site whose templates and files are read from fsys. opts
// supplies the markers and any custom operations; the manifest's markdown
// settings and fsys are applied on top. Call Render before serving.
func New(m *Manifest, fsys fs.FS, opts *templates.RenderOptions, options ...Option) (*Site, error) {
	if opts == nil {
		opts = templates.DefaultOptions()
	}
	opts = extensions.Register(opts.WithFS(fsys), extensions.Options{
		Sanitize:  m.Markdown.Sanitize,
		HardWraps: m.Markdown.HardWraps,
	})

	base, err := templates.MapFromValue(m.Context)
	if err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeManifestInvalid, "invalid base context")
	}

	s := &Site{
		manifest: m,
		fsys:     fsys,
		opts:     opts,
		base:     base,
		pages:    make([]page, 0, len(m.Pages)),
		logger:   logging.Discard(),
		metrics:  noopMetrics{},
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.WithComponent("site")

	for _, p := range m.Pages {
		data, err := templates.MapFromValue(p.Context)
		if err != nil {
			return nil, errors.WrapConfig(err, errors.ErrCodeManifestInvalid,
				fmt.Sprintf("invalid context for page %q", p.Path))
		}
		s.pages = append(s.pages, page{Page: p, data: base.Merge(data)})
	}

	s.current.Store(&snapshot{bodies: map[string]string{}})

	return s, nil
}

// Load reads the manifest called name from fsys and prepares the site.
func Load(fsys fs.FS, name string, opts *templates.RenderOptions, options ...Option) (*Site, error) {
	m, err := LoadManifest(fsys, name)
	if err != nil {
		return nil, err
	}

	return New(m, fsys, opts, options...)
}

// Manifest returns the manifest the site was built from.
func (s *Site) Manifest() *Manifest {
	return s.manifest
}

// Render renders every static page and the not-found page, then swaps them
// in. A page that fails to render serves the error text as its body; the
// failures are also returned combined.
func (s *Site) Render(ctx context.Context) error {
	next := &snapshot{bodies: make(map[string]string, len(s.pages))}

	var errs []error
	for _, p := range s.pages {
		if p.Dynamic {
			continue
		}

		body, err := s.renderPage(ctx, p.Path, p.Template, p.data)
		if err != nil {
			errs = append(errs, err)
			next.failures = append(next.failures, p.Path)
			body = err.Error()
		}
		next.bodies[p.Path] = body
	}

	if s.manifest.NotFound != "" {
		body, err := s.renderPage(ctx, "/"+router.Wildcard, s.manifest.NotFound, s.base)
		if err != nil {
			errs = append(errs, err)
			next.failures = append(next.failures, s.manifest.NotFound)
			body = err.Error()
		}
		next.notFound = body
	}

	s.current.Store(next)
	s.logger.Info(ctx, "Pages rendered",
		"pages", len(next.bodies),
		"failures", len(next.failures))

	return errors.CombineErrors(errs...)
}

// renderPage renders one template for the page at path, logging the
// duration or the failure.
func (s *Site) renderPage(ctx context.Context, path, name string, data templates.ContextMap) (string, error) {
	op := logging.StartOperation(s.logger.With("path", path, "template", name), "render")
	start := time.Now()
	body, err := templates.LoadTemplate(ctx, name, data, s.opts)
	s.metrics.RenderCompleted(time.Since(start), err)

	if err != nil {
		op.EndWithError(ctx, err)
	} else {
		op.End(ctx)
	}

	return body, err
}

// Failures lists the pages whose last render failed.
func (s *Site) Failures() []string {
	snap := s.current.Load()
	out := make([]string, len(snap.failures))
	copy(out, snap.failures)

	return out
}

// HealthCheck reports unhealthy while any static page fails to render.
func (s *Site) HealthCheck(context.Context) (monitoring.HealthStatus, string) {
	failures := s.Failures()
	if len(failures) == 0 {
		return monitoring.HealthStatusHealthy, ""
	}

	return monitoring.HealthStatusUnhealthy,
		fmt.Sprintf("%d pages failed to render: %s", len(failures), strings.Join(failures, ", "))
}

// Routes builds the route table: pages in manifest order, then file
// patterns, then a catch-all for the not-found page.
func (s *Site) Routes() []router.Route {
	routes := make([]router.Route, 0, len(s.pages)+len(s.manifest.Files)+1)

	for _, p := range s.pages {
		var handler router.HandlerFunc
		if p.Dynamic {
			handler = s.dynamicHandler(p)
		} else {
			handler = s.staticHandler(p.Path)
		}
		routes = append(routes, router.NewWithHeaders(router.GET, p.Path, handler, p.Headers))
	}

	for _, pattern := range s.manifest.Files {
		routes = append(routes, router.New(router.GET, pattern, router.Files{FS: s.fsys}))
	}

	if s.manifest.NotFound != "" {
		routes = append(routes, router.New(router.GET, "/"+router.Wildcard,
			router.HandlerFunc(func(*router.Request) *router.Response {
				return s.notFound()
			})))
	}

	return routes
}

// Router returns a router over Routes.
func (s *Site) Router() *router.Router {
	return router.NewRouter(s.Routes()...)
}

func (s *Site) notFound() *router.Response {
	return router.NewResponse([]byte(s.current.Load().notFound), 404)
}

func (s *Site) staticHandler(path string) router.HandlerFunc {
	return func(*router.Request) *router.Response {
		return router.OK(s.current.Load().bodies[path])
	}
}

func (s *Site) dynamicHandler(p page) router.HandlerFunc {
	return func(req *router.Request) *router.Response {
		ctx := context.Background()
		body, err := s.renderPage(ctx, req.Path, p.Template, bindParams(p, req.PathParams))
		if err == nil {
			return router.OK(body)
		}

		if errors.IsLoadFile(err) {
			return s.notFound()
		}

		return router.NewResponse([]byte(err.Error()), 500)
	}
}

// bindParams adds the captured parameters, and every bind entry with its
// placeholders filled in, to the page context.
func bindParams(p page, params map[string]string) templates.ContextMap {
	captured := make(templates.Branch, len(params))
	for k, v := range params {
		captured[k] = templates.StrLeaf(v)
	}
	data := p.data.With(ParamsKey, captured)

	// Longest names first so ":id" cannot clobber ":idx".
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	for key, value := range p.Bind {
		for _, name := range names {
			value = strings.ReplaceAll(value, ":"+name, params[name])
		}
		data = data.With(key, templates.StrLeaf(value))
	}

	return data
}

// Watch re-renders the site whenever a template under root changes.
// Stop the returned watcher to end watching.
func (s *Site) Watch(ctx context.Context, root string, debounce time.Duration) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(debounce, watcher.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}

	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoEditorFilter)
	fw.AddFilter(watcher.ExtensionFilter(".html", ".htm", ".md", ".txt", ".svg", ".xml"))
	fw.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		s.logger.Info(ctx, "Templates changed, re-rendering", "files", len(events))
		return s.Render(ctx)
	})

	if err := fw.AddRecursive(root); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, err
	}

	return fw, nil
}

// RouteInfo describes one route for listing.
type RouteInfo struct {
	Verb     router.Verb `json:"verb"`
	Path     string      `json:"path"`
	Kind     string      `json:"kind"`
	Template string      `json:"template,omitempty"`
}

// Describe lists the routes in the order Routes returns them.
func (s *Site) Describe() []RouteInfo {
	infos := make([]RouteInfo, 0, len(s.pages)+len(s.manifest.Files)+1)
	for _, p := range s.pages {
		kind := "static"
		if p.Dynamic {
			kind = "dynamic"
		}
		infos = append(infos, RouteInfo{Verb: router.GET, Path: p.Path, Kind: kind, Template: p.Template})
	}
	for _, pattern := range s.manifest.Files {
		infos = append(infos, RouteInfo{Verb: router.GET, Path: pattern, Kind: "files"})
	}
	if s.manifest.NotFound != "" {
		infos = append(infos, RouteInfo{
			Verb:     router.GET,
			Path:     "/" + router.Wildcard,
			Kind:     "not-found",
			Template: s.manifest.NotFound,
		})
	}

	return infos
}
