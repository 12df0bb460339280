package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/unchained/internal/config"
	"github.com/conneroisu/unchained/internal/logging"
	"github.com/conneroisu/unchained/internal/monitoring"
	"github.com/conneroisu/unchained/internal/server"
	"github.com/conneroisu/unchained/internal/site"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Render the site and serve it",
	Long: `Render every static page of the site manifest and serve the site.

Dynamic pages are rendered per request. With --watch, static pages are
re-rendered whenever a template under the site root changes.

Examples:
  unchained serve                        # Serve site.yml on 0.0.0.0:8080
  unchained serve -a 127.0.0.1:3000      # Serve on another address
  unchained serve --watch                # Re-render on template changes
  unchained serve --metrics              # Expose /metrics and /healthz`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("address", "a", config.DefaultServerAddress, "Address to listen on")
	serveCmd.Flags().IntP("threads", "t", config.DefaultThreads, "Number of connection workers")
	serveCmd.Flags().StringP("manifest", "m", config.DefaultManifest, "Site manifest, relative to the site root")
	serveCmd.Flags().BoolP("watch", "w", false, "Re-render pages when templates change")
	serveCmd.Flags().Bool("metrics", false, "Serve Prometheus metrics and health checks")
	serveCmd.Flags().String("metrics-address", config.DefaultMetricsAddress, "Address for the metrics listener")

	_ = viper.BindPFlag("server.address", serveCmd.Flags().Lookup("address"))
	_ = viper.BindPFlag("server.threads", serveCmd.Flags().Lookup("threads"))
	_ = viper.BindPFlag("site.manifest", serveCmd.Flags().Lookup("manifest"))
	_ = viper.BindPFlag("development.watch", serveCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("metrics.enabled", serveCmd.Flags().Lookup("metrics"))
	_ = viper.BindPFlag("metrics.address", serveCmd.Flags().Lookup("metrics-address"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

func serve(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	fsys := os.DirFS(cfg.Site.Root)

	var metrics *monitoring.Metrics
	siteOpts := []site.Option{site.WithLogger(logger)}
	serverOpts := []server.Option{server.WithLogger(logger)}
	if cfg.Metrics.Enabled {
		metrics = monitoring.NewMetrics(monitoring.DefaultMetricsConfig())
		siteOpts = append(siteOpts, site.WithMetrics(metrics))
		serverOpts = append(serverOpts, server.WithMetrics(metrics))
	}

	s, err := site.Load(fsys, cfg.Site.Manifest, renderOptions(cfg, fsys), siteOpts...)
	if err != nil {
		return err
	}

	// Failed pages serve their error text; the server still starts.
	if err := s.Render(ctx); err != nil {
		logger.Warn(ctx, err, "Some pages failed to render", "pages", s.Failures())
	}

	if cfg.Development.Watch {
		fw, err := s.Watch(ctx, cfg.Site.Root, cfg.Development.Debounce)
		if err != nil {
			return err
		}
		defer fw.Stop()
		logger.Info(ctx, "Watching templates", "root", cfg.Site.Root, "debounce", cfg.Development.Debounce)
	}

	if metrics != nil {
		health := monitoring.NewHealth()
		health.Register("pages", false, s.HealthCheck)
		go func() {
			if err := monitoring.Serve(ctx, cfg.Metrics.Address, metrics, health, logger); err != nil {
				logger.Error(ctx, err, "Metrics listener stopped")
			}
		}()
	}

	headers := make(map[string]string, len(cfg.Server.DefaultHeaders)+len(s.Manifest().Headers))
	for k, v := range cfg.Server.DefaultHeaders {
		headers[k] = v
	}
	for k, v := range s.Manifest().Headers {
		headers[k] = v
	}

	srv := server.New(s.Router(), server.Options{
		Address:        cfg.Server.Address,
		Threads:        cfg.Server.Threads,
		DefaultHeaders: headers,
	}, serverOpts...)

	return srv.ListenAndServe(ctx)
}
