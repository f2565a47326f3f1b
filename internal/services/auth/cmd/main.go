package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/decentrahub/hub/internal/pkg/env"
	"github.com/decentrahub/hub/internal/pkg/events"
	"github.com/decentrahub/hub/internal/pkg/httpx"
	"github.com/decentrahub/hub/internal/pkg/metrics"
	"github.com/decentrahub/hub/internal/pkg/middleware"
	"github.com/decentrahub/hub/internal/pkg/router"
	"github.com/decentrahub/hub/internal/services/auth/internal/config"
	"github.com/decentrahub/hub/internal/services/auth/internal/nonce"
	"github.com/decentrahub/hub/internal/services/auth/internal/rest"
	"github.com/decentrahub/hub/internal/services/auth/internal/service"
	"github.com/decentrahub/hub/internal/services/auth/internal/social"
	"github.com/decentrahub/hub/internal/services/auth/internal/store"
	"github.com/decentrahub/hub/internal/services/auth/internal/token"
)

const limiterIdle = 10 * time.Minute

func run(ctx context.Context) error {
	if err := env.Load(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := config.FromEnv()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))
	slog.Info("starting auth service")

	db, err := store.NewPostgresDB(ctx, store.PostgresConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DB:       cfg.DB.Name,
		SSLMode:  cfg.DB.SSLMode,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to db: %w", err)
	}
	defer db.Close()

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}

	nonces := nonce.NewRedis(nonce.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.NonceTTL,
	})
	defer nonces.Close()

	m := metrics.New("auth")

	lens := social.NewCached(social.NewLens(social.LensConfig{
		Endpoint: cfg.Lens.APIURL,
		Timeout:  cfg.Lens.Timeout,
		Metrics:  m,
	}), cfg.Lens.CacheMaxKeys, cfg.Lens.CacheTTL)
	defer lens.Close()

	pub := events.FromConfig(events.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		WriteTimeout: cfg.Kafka.WriteTimeout,
	})
	defer pub.Close()

	secret := token.NewSecretString(cfg.JWT.Secret)
	if secret.Weak() {
		slog.Warn("JWT_SECRET is shorter than recommended", "min_length", token.MinSecretLength)
	}

	srv := service.NewUsers(
		service.WithStore(store.NewPostgresStore(db)),
		service.WithSocial(lens),
		service.WithNonces(nonces),
		service.WithSessions(token.NewJWTIssuer(token.JwtConfig{
			Secret: secret,
			Issuer: cfg.JWT.Issuer,
			TTL:    cfg.JWT.TTL,
		})),
		service.WithEvents(pub),
		service.WithMetrics(m),
		service.WithRequireSignature(cfg.RequireSignature),
	)

	trusted, err := middleware.ParsePrefixes(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid RATE_LIMIT_TRUSTED_PROXIES: %w", err)
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, middleware.WithTrustedProxies(trusted...))
	go limiter.RunCleanup(ctx, time.Minute, limiterIdle)

	api := rest.NewAPI(srv,
		rest.WithAuth(middleware.Auth(secret.Get())),
		rest.WithRateLimit(limiter.Middleware()),
	)

	mux := router.New()
	mux.Use(middleware.Recover(), middleware.Log(), middleware.Metrics(m))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			httpx.HandleErr(w, r, fmt.Errorf("ping db: %w", err))
			return
		}
		if err := nonces.Ping(r.Context()); err != nil {
			httpx.HandleErr(w, r, fmt.Errorf("ping redis: %w", err))
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", m.Handler())
	mux.Mount("/api/v1", api)

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.ListenAddr,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		Handler:      mux,
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
		slog.Error("auth service terminated with error", "error", err)
		os.Exit(1)
	}
}
