package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/docgate/config"
	gatewayhttp "github.com/sagarc03/docgate/http"
	"github.com/sagarc03/docgate/metrics"
)

const defaultShutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway",
	Long: `Start the docgate HTTP gateway.

Routes:
  GET /download/{key}   stream an object (bearer token required)
  GET /list             pass through a bucket listing (bearer token required)
  GET /healthz          liveness probe`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP server port (env: DOCGATE_SERVER_PORT)")
	serveCmd.Flags().String("token", "", "shared bearer token (env: DOCGATE_SERVER_TOKEN)")
	serveCmd.Flags().String("strategy", "", "outbound authentication: direct or scoped (env: DOCGATE_SIGNING_STRATEGY)")
	serveCmd.Flags().String("store-type", "", "scoped token store: none, sqlite, postgres (env: DOCGATE_TOKEN_STORE_TYPE)")
	serveCmd.Flags().String("store-dsn", "", "scoped token store connection string (env: DOCGATE_TOKEN_STORE_DSN)")
	serveCmd.Flags().Bool("metrics", false, "expose Prometheus metrics (env: DOCGATE_METRICS_ENABLED)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	gateway, cleanup, err := buildGateway(ctx, cfg, m)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}
	defer cleanup()

	if cfg.Server.Token == "" {
		slog.Warn("server.token is empty; every download and list request will be refused")
	}

	handlerConfig := gatewayhttp.HandlerConfig{
		Token: cfg.Server.Token,
		CORS:  cfg.CORS,
	}
	if m != nil {
		handlerConfig.Recorder = m
		handlerConfig.MetricsHandler = m.Handler()
		handlerConfig.MetricsPath = cfg.Metrics.Path
		handlerConfig.Middleware = append(handlerConfig.Middleware, m.Middleware)
	}

	handler := gatewayhttp.NewHandler(&handlerConfig, gateway)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		slog.Info("shutting down server...")
		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server",
		"addr", addr,
		"strategy", gateway.Strategy(),
		"bucket", cfg.Backend.ToBucket().String(),
		"metrics", cfg.Metrics.Enabled,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
