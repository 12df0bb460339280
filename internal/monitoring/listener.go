package monitoring

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conneroisu/unchained/internal/errors"
	"github.com/conneroisu/unchained/internal/logging"
)

// Mux returns the handler tree served on the metrics listener.
func Mux(metrics *Metrics, health *Health) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	if health != nil {
		mux.Handle("/healthz", health.Handler())
	}

	return mux
}

// Serve runs the metrics listener on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, metrics *Metrics, health *Health, logger logging.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapConnection(err, errors.ErrCodeConnectionFailed, "could not listen for metrics on "+addr)
	}

	return ServeListener(ctx, ln, metrics, health, logger)
}

// ServeListener is Serve on an existing listener.
func ServeListener(ctx context.Context, ln net.Listener, metrics *Metrics, health *Health, logger logging.Logger) error {
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent("monitoring")

	srv := &http.Server{
		Handler:           Mux(metrics, health),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "Metrics listener started", "address", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.WrapConnection(err, errors.ErrCodeConnectionFailed, "metrics listener failed")
	}

	return nil
}
