package config

import (
	"log/slog"
	"time"

	"github.com/decentrahub/hub/internal/pkg/env"
)

type Config struct {
	HTTP       httpConfig
	AuthURL    string
	ContentURL string
	RateLimit  rateLimitConfig
	LogLevel   slog.Level
}

type httpConfig struct {
	ListenAddr      string
	IdleTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type rateLimitConfig struct {
	RPS   float64
	Burst int

	// empty unless the gateway itself sits behind a load balancer
	TrustedProxies []string
}

func FromEnv() Config {
	return Config{
		HTTP: httpConfig{
			ListenAddr:      env.String("HTTP_LISTEN_ADDR", ":8080"),
			IdleTimeout:     env.Duration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ReadTimeout:     env.Duration("HTTP_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:    env.Duration("HTTP_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: env.Duration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		AuthURL:    env.String("AUTH_SERVICE_URL", "http://localhost:8082"),
		ContentURL: env.String("CONTENT_SERVICE_URL", "http://localhost:8081"),
		RateLimit: rateLimitConfig{
			RPS:            env.Float64("GATEWAY_RATE_LIMIT_RPS", 50),
			Burst:          env.Int("GATEWAY_RATE_LIMIT_BURST", 100),
			TrustedProxies: env.Strings("GATEWAY_TRUSTED_PROXIES", nil),
		},
		LogLevel: logLevel(env.String("LOG_LEVEL", "info")),
	}
}

func logLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
