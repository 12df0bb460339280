// Package server accepts TCP connections, parses one HTTP/1.1 request per
// connection, answers it through a router and closes the connection.
// Connections are handled on a fixed-size worker pool.
package server

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/conneroisu/unchained/internal/errors"
	"github.com/conneroisu/unchained/internal/logging"
	"github.com/conneroisu/unchained/internal/router"
	"github.com/conneroisu/unchained/internal/workers"
)

const tracerName = "github.com/conneroisu/unchained/internal/server"

// Options configures a Server.
type Options struct {
	// Address is the host:port to listen on.
	Address string
	// Threads is the number of connection workers.
	Threads int
	// DefaultHeaders are sent with every response unless the route or the
	// response sets the same key.
	DefaultHeaders map[string]string
}

// DefaultOptions listens on all interfaces, port 8080, with four workers.
func DefaultOptions() Options {
	return Options{
		Address:        "0.0.0.0:8080",
		Threads:        workers.DefaultSize,
		DefaultHeaders: map[string]string{},
	}
}

// Metrics receives per-connection measurements. If it also implements
// workers.Metrics, the pool reports to it as well.
type Metrics interface {
	ConnectionAccepted()
	ConnectionFailed()
	RequestServed(verb string, status int, elapsed time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ConnectionAccepted()                      {}
func (noopMetrics) ConnectionFailed()                        {}
func (noopMetrics) RequestServed(string, int, time.Duration) {}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the logger for connection errors and lifecycle events.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Server is a one-request-per-connection HTTP server.
type Server struct {
	router  *router.Router
	options Options
	logger  logging.Logger
	metrics Metrics

	mu           sync.Mutex
	listener     net.Listener
	shutdownOnce sync.Once
	closing      chan struct{}
}

// New creates a server answering requests with r.
func New(r *router.Router, opts Options, options ...Option) *Server {
	defaults := DefaultOptions()
	if opts.Address == "" {
		opts.Address = defaults.Address
	}
	if opts.Threads < 1 {
		opts.Threads = defaults.Threads
	}
	if opts.DefaultHeaders == nil {
		opts.DefaultHeaders = defaults.DefaultHeaders
	}

	s := &Server{
		router:  r,
		options: opts,
		logger:  logging.Discard(),
		metrics: noopMetrics{},
		closing: make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.WithComponent("server")

	return s
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled or Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.options.Address)
	if err != nil {
		return errors.WrapConnection(err, errors.ErrCodeConnectionFailed,
			"could not listen on "+s.options.Address)
	}

	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln and hands each to the worker pool. It
// returns once the listener is closed and every queued connection has been
// answered.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	if s.isClosing() {
		_ = ln.Close()
	}

	poolOpts := []workers.Option{workers.WithLogger(s.logger)}
	if pm, ok := s.metrics.(workers.Metrics); ok {
		poolOpts = append(poolOpts, workers.WithMetrics(pm))
	}
	pool := workers.New(s.options.Threads, poolOpts...)
	defer pool.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Shutdown()
		case <-stop:
		}
	}()

	s.logger.Info(ctx, "Server started",
		"address", ln.Addr().String(),
		"threads", s.options.Threads)

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() {
				s.logger.Info(ctx, "Server stopped", "address", ln.Addr().String())
				return nil
			}

			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > time.Second {
				delay = time.Second
			}
			s.logger.Warn(ctx, err, "Could not handle tcp connection", "retry_in", delay)
			time.Sleep(delay)

			continue
		}
		delay = 0

		s.metrics.ConnectionAccepted()
		if err := pool.Post(func() error { return s.handle(ctx, conn) }); err != nil {
			_ = conn.Close()
			return err
		}
	}
}

// Shutdown stops accepting connections. Connections already accepted are
// still answered before Serve returns.
func (s *Server) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.closing)

		s.mu.Lock()
		ln := s.listener
		s.mu.Unlock()

		if ln != nil {
			err = ln.Close()
		}
	})

	return err
}

// Addr returns the listener address, or nil before Serve is called.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

func (s *Server) isClosing() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}

// handle reads a single request from conn, writes the routed response and
// closes the connection.
func (s *Server) handle(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "server.connection",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("net.peer.addr", remote)))
	defer span.End()

	fail := func(err error) error {
		s.metrics.ConnectionFailed()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var we *errors.WebError
		if errors.As(err, &we) {
			return we.WithContext("remote_addr", remote)
		}

		return err
	}

	start := time.Now()
	req, err := ReadRequest(bufio.NewReader(conn))
	if err != nil {
		return fail(err)
	}
	span.SetAttributes(
		attribute.String("http.method", string(req.Verb)),
		attribute.String("http.target", req.Path))

	resp := s.router.Handle(req)
	if err := WriteResponse(conn, resp, s.options.DefaultHeaders); err != nil {
		return fail(err)
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	span.SetStatus(codes.Ok, "")
	s.metrics.RequestServed(string(req.Verb), resp.StatusCode, time.Since(start))

	return nil
}
