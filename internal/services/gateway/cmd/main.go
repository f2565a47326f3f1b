package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/decentrahub/hub/internal/pkg/env"
	"github.com/decentrahub/hub/internal/pkg/metrics"
	"github.com/decentrahub/hub/internal/pkg/middleware"
	"github.com/decentrahub/hub/internal/pkg/router"
	"github.com/decentrahub/hub/internal/services/gateway/internal/config"
	"github.com/decentrahub/hub/internal/services/gateway/internal/proxy"
)

func routes(cfg config.Config) ([]proxy.Route, error) {
	authURL, err := url.Parse(cfg.AuthURL)
	if err != nil {
		return nil, fmt.Errorf("parse AUTH_SERVICE_URL: %w", err)
	}
	contentURL, err := url.Parse(cfg.ContentURL)
	if err != nil {
		return nil, fmt.Errorf("parse CONTENT_SERVICE_URL: %w", err)
	}

	return []proxy.Route{
		{Name: "auth", Prefix: "/api/v1/auth/", Target: authURL},
		{Name: "auth", Prefix: "/api/v1/users/", Target: authURL},
		{Name: "auth", Prefix: "/api/v1/lens/", Target: authURL},
		{Name: "content", Prefix: "/api/v1/content/", Target: contentURL},
	}, nil
}

func run(ctx context.Context) error {
	if err := env.Load(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := config.FromEnv()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))
	slog.Info("starting api gateway")

	m := metrics.New("gateway")

	rts, err := routes(cfg)
	if err != nil {
		return err
	}
	p, err := proxy.New(rts, m)
	if err != nil {
		return fmt.Errorf("failed to build proxy: %w", err)
	}

	trusted, err := middleware.ParsePrefixes(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid GATEWAY_TRUSTED_PROXIES: %w", err)
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, middleware.WithTrustedProxies(trusted...))
	go limiter.RunCleanup(ctx, time.Minute, 10*time.Minute)

	r := router.New()
	r.Use(middleware.Recover(), middleware.Log(), middleware.Metrics(m))
	r.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := p.Ready(r.Context()); err != nil {
			slog.Warn("gateway not ready", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("GET /metrics", m.Handler())
	r.Handle("/api/", p, limiter.Middleware())

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.ListenAddr,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		Handler:      r,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("HTTP server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("api gateway terminated with error", "error", err)
		os.Exit(1)
	}
}
