package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/decentrahub/hub/internal/pkg/env"
	"github.com/decentrahub/hub/internal/pkg/events"
	"github.com/decentrahub/hub/internal/pkg/metrics"
	"github.com/decentrahub/hub/internal/pkg/middleware"
	"github.com/decentrahub/hub/internal/pkg/router"
	"github.com/decentrahub/hub/internal/services/content/internal/config"
	"github.com/decentrahub/hub/internal/services/content/internal/ipfs"
	"github.com/decentrahub/hub/internal/services/content/internal/minter"
	"github.com/decentrahub/hub/internal/services/content/internal/rest"
	"github.com/decentrahub/hub/internal/services/content/internal/service"
)

func run(ctx context.Context) error {
	if err := env.Load(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := config.FromEnv()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))
	slog.Info("starting content service")

	if cfg.Pinata.APIKey == "" || cfg.Pinata.SecretAPIKey == "" {
		slog.Warn("pinata credentials missing, pinning will fail")
	}

	m := metrics.New("content")

	pub := events.FromConfig(events.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		WriteTimeout: cfg.Kafka.WriteTimeout,
	})
	defer pub.Close()

	srv := service.NewContent(
		service.WithPinner(ipfs.NewPinata(ipfs.PinataConfig{
			BaseURL:      cfg.Pinata.BaseURL,
			APIKey:       cfg.Pinata.APIKey,
			SecretAPIKey: cfg.Pinata.SecretAPIKey,
			Timeout:      cfg.Pinata.Timeout,
			Metrics:      m,
		})),
		service.WithMinter(minter.NewBonsai(minter.WithMetrics(m))),
		service.WithEvents(pub),
		service.WithMetrics(m),
		service.WithMediaLimits(service.MediaLimits{
			MaxSize:   cfg.Media.MaxSize,
			MaxWidth:  cfg.Media.MaxWidth,
			MaxHeight: cfg.Media.MaxHeight,
		}),
		service.WithExternalURL(cfg.Mint.ExternalURL),
		service.WithAppID(cfg.Mint.AppID),
	)

	api := rest.NewAPI(
		rest.WithContentService(srv),
		rest.WithMaxMediaSize(cfg.Media.MaxSize),
		rest.WithAuth(middleware.Auth([]byte(cfg.AuthSecret))),
	)

	r := router.New()
	r.Use(middleware.Recover(), middleware.Log(), middleware.Metrics(m))
	r.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("GET /metrics", m.Handler())
	r.Mount("/api/v1", api)

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
		slog.Error("content service terminated with error", "error", err)
		os.Exit(1)
	}
}
