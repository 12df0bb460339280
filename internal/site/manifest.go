// Package site turns a YAML manifest into a route table: pages rendered
// from templates, static file passthrough and a not-found page.
package site

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/unchained/internal/errors"
	"github.com/conneroisu/unchained/internal/router"
	"github.com/conneroisu/unchained/internal/templates"
)

// Manifest describes a site.
//
//	context: {current_year: 2024}
//	pages:
//	  - path: /
//	    template: templates/landing.html
//	  - path: courses/:courseid
//	    template: templates/course-detail.html
//	    dynamic: true
//	    bind: {course_md_path: "templates/markdown/courses/:courseid.md"}
//	files: ["/images/*", "favicon.ico"]
//	not_found: templates/404.html
//	headers: {Cache-Control: max-age=300}
type Manifest struct {
	// Context is the base context every page starts from.
	Context map[string]interface{} `yaml:"context"`
	Pages   []Page                 `yaml:"pages"`
	// Files are route patterns answered with the file at the request path.
	Files []string `yaml:"files"`
	// NotFound is the template served with status 404 for unmatched GETs.
	NotFound string `yaml:"not_found"`
	// Headers are sent with every response.
	Headers  map[string]string `yaml:"headers"`
	Markdown MarkdownConfig    `yaml:"markdown"`
}

// Page binds a route pattern to a template.
type Page struct {
	Path     string                 `yaml:"path"`
	Template string                 `yaml:"template"`
	Context  map[string]interface{} `yaml:"context"`
	// Dynamic pages are rendered per request with the captured path
	// parameters; static pages are rendered once up front.
	Dynamic bool `yaml:"dynamic"`
	// Bind adds string values to a dynamic page's context. ":name" in a
	// value is replaced by the captured parameter of that name.
	Bind    map[string]string `yaml:"bind"`
	Headers map[string]string `yaml:"headers"`
}

// MarkdownConfig configures the md operation.
type MarkdownConfig struct {
	Sanitize  bool `yaml:"sanitize"`
	HardWraps bool `yaml:"hard_wraps"`
}

// ParseManifest decodes and validates a manifest. Unknown keys are errors.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && err != io.EOF {
		return nil, errors.WrapConfig(err, errors.ErrCodeManifestInvalid, "could not decode site manifest")
	}

	if err := m.validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// LoadManifest reads and parses the manifest called name from fsys.
func LoadManifest(fsys fs.FS, name string) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, templates.CleanPath(name))
	if err != nil {
		return nil, errors.NewLoadFileError(name, err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		var we *errors.WebError
		if errors.As(err, &we) {
			return nil, we.WithFile(name)
		}
		return nil, err
	}

	return m, nil
}

func (m *Manifest) validate() error {
	seen := make(map[string]bool, len(m.Pages))
	for i, page := range m.Pages {
		if strings.TrimSpace(page.Path) == "" {
			return manifestError(fmt.Sprintf("page %d has no path", i))
		}
		if strings.TrimSpace(page.Template) == "" {
			return manifestError(fmt.Sprintf("page %q has no template", page.Path))
		}
		if len(page.Bind) > 0 && !page.Dynamic {
			return manifestError(fmt.Sprintf("page %q binds parameters but is not dynamic", page.Path))
		}

		key := strings.Join(router.Segments(page.Path), "/")
		if seen[key] {
			return manifestError(fmt.Sprintf("page %q is declared twice", page.Path))
		}
		seen[key] = true
	}

	for _, pattern := range m.Files {
		if strings.TrimSpace(pattern) == "" {
			return manifestError("empty files pattern")
		}
	}

	return nil
}

func manifestError(msg string) error {
	return errors.NewConfigError(errors.ErrCodeManifestInvalid, msg)
}
