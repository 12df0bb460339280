// Package router matches requests against an immutable route table and
// produces responses.
package router

import (
	"io/fs"
	"mime"
	"os"
	"path"
	"strings"
)

// Verb is an HTTP method as transmitted on the request line.
type Verb string

// Supported verbs.
const (
	GET    Verb = "GET"
	POST   Verb = "POST"
	UPDATE Verb = "UPDATE"
	DELETE Verb = "DELETE"
	HEAD   Verb = "HEAD"
)

// Request is a parsed HTTP request. PathParams is filled in by the router
// once a route with ":name" segments matches.
type Request struct {
	Verb       Verb
	Path       string
	Query      string
	PathParams map[string]string
	Headers    map[string]string
	Body       string
}

// Param returns the captured path parameter name, or "".
func (r *Request) Param(name string) string {
	return r.PathParams[name]
}

// Response is what a route produces. A nil Body is sent as an empty body.
type Response struct {
	Body       []byte
	StatusCode int
	Headers    map[string]string
}

// NewResponse creates a response with the given body and status.
func NewResponse(body []byte, status int) *Response {
	return &Response{
		Body:       body,
		StatusCode: status,
		Headers:    map[string]string{},
	}
}

// OK returns a 200 response carrying body.
func OK(body string) *Response {
	return NewResponse([]byte(body), 200)
}

// NotFound returns an empty 404 response.
func NotFound() *Response {
	return NewResponse(nil, 404)
}

// AddHeader sets a response header.
func (r *Response) AddHeader(key, value string) *Response {
	if r.Headers == nil {
		r.Headers = map[string]string{}
	}
	r.Headers[key] = value

	return r
}

// Content produces the response for a matched route.
type Content interface {
	respond(req *Request) *Response
}

// String is a fixed text body.
type String string

// Bytes is a fixed binary body.
type Bytes []byte

// HandlerFunc computes a response from the matched request.
type HandlerFunc func(req *Request) *Response

// Files serves the request path, relative to FS, as a file.
type Files struct {
	FS fs.FS
}

func (s String) respond(*Request) *Response {
	return OK(string(s))
}

func (b Bytes) respond(*Request) *Response {
	return NewResponse([]byte(b), 200)
}

func (h HandlerFunc) respond(req *Request) *Response {
	resp := h(req)
	if resp == nil {
		return NotFound()
	}

	return resp
}

func (f Files) respond(req *Request) *Response {
	fsys := f.FS
	if fsys == nil {
		fsys = os.DirFS(".")
	}

	name := strings.TrimPrefix(path.Clean("/"+req.Path), "/")
	if name == "" || !fs.ValidPath(name) {
		return NotFound()
	}

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return NotFound()
	}

	resp := NewResponse(data, 200)
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		resp.AddHeader("Content-Type", ct)
	}

	return resp
}

// Route pairs a verb and path pattern with the content to serve. Headers
// are added to every response the route produces.
type Route struct {
	Verb    Verb
	Path    string
	Content Content
	Headers map[string]string
}

// New creates a route without extra headers.
func New(verb Verb, pattern string, content Content) Route {
	return Route{Verb: verb, Path: pattern, Content: content}
}

// NewWithHeaders creates a route that adds headers to its responses.
func NewWithHeaders(verb Verb, pattern string, content Content, headers map[string]string) Route {
	return Route{Verb: verb, Path: pattern, Content: content, Headers: headers}
}

// FolderAccess serves files below root for every GET matching pattern.
func FolderAccess(pattern, root string) Route {
	return New(GET, pattern, Files{FS: os.DirFS(root)})
}

// Router holds the route table. It is immutable after construction and safe
// for concurrent use.
type Router struct {
	routes []Route
}

// NewRouter copies routes into a new Router. Order is significant: the
// first matching route wins.
func NewRouter(routes ...Route) *Router {
	table := make([]Route, len(routes))
	copy(table, routes)

	return &Router{routes: table}
}

// Routes returns a copy of the route table.
func (r *Router) Routes() []Route {
	out := make([]Route, len(r.routes))
	copy(out, r.routes)

	return out
}

// Resolve finds the first route matching req and returns its response.
func (r *Router) Resolve(req *Request) (*Response, bool) {
	reqPath, query, _ := strings.Cut(req.Path, "?")

	for _, route := range r.routes {
		if route.Verb != req.Verb {
			continue
		}
		params, ok := MatchPath(route.Path, reqPath)
		if !ok {
			continue
		}

		matched := *req
		matched.Path = reqPath
		matched.Query = query
		matched.PathParams = params

		resp := route.Content.respond(&matched)
		if len(route.Headers) > 0 {
			headers := make(map[string]string, len(route.Headers)+len(resp.Headers))
			for k, v := range route.Headers {
				headers[k] = v
			}
			for k, v := range resp.Headers {
				headers[k] = v
			}
			resp.Headers = headers
		}

		return resp, true
	}

	return nil, false
}

// Handle resolves req, answering an empty 404 when nothing matches.
func (r *Router) Handle(req *Request) *Response {
	if resp, ok := r.Resolve(req); ok {
		return resp
	}

	return NotFound()
}
