package config

import (
	"log/slog"
	"time"

	"github.com/decentrahub/hub/internal/pkg/env"
)

type Config struct {
	HTTP      httpConfig
	DB        dbConfig
	JWT       jwtConfig
	Redis     redisConfig
	Lens      lensConfig
	Kafka     kafkaConfig
	RateLimit rateLimitConfig
	LogLevel  slog.Level

	RequireSignature bool
}

type httpConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type dbConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type jwtConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

type redisConfig struct {
	Addr     string
	Password string
	DB       int
	NonceTTL time.Duration
}

type lensConfig struct {
	APIURL       string
	Timeout      time.Duration
	CacheTTL     time.Duration
	CacheMaxKeys int64
}

type kafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

type rateLimitConfig struct {
	RPS            float64
	Burst          int
	TrustedProxies []string
}

// The gateway reaches the service over loopback or a private network by default.
var defaultTrustedProxies = []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}

func FromEnv() Config {
	return Config{
		HTTP: httpConfig{
			ListenAddr:      env.String("HTTP_LISTEN_ADDR", ":8082"),
			ReadTimeout:     env.Duration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    env.Duration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     env.Duration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: env.Duration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		DB: dbConfig{
			Host:     env.String("DB_HOST", "localhost"),
			Port:     env.String("DB_PORT", "5432"),
			User:     env.RequireString("DB_USER"),
			Password: env.RequireString("DB_PASSWORD"),
			Name:     env.String("DB_NAME", "decentrahub"),
			SSLMode:  env.String("DB_SSLMODE", "disable"),
		},
		JWT: jwtConfig{
			Secret: env.RequireString("JWT_SECRET"),
			Issuer: env.String("JWT_ISSUER", "decentrahub-auth"),
			TTL:    env.Duration("JWT_TTL", 24*time.Hour),
		},
		Redis: redisConfig{
			Addr:     env.String("REDIS_ADDR", "localhost:6379"),
			Password: env.String("REDIS_PASSWORD", ""),
			DB:       env.Int("REDIS_DB", 0),
			NonceTTL: env.Duration("NONCE_TTL", 5*time.Minute),
		},
		Lens: lensConfig{
			APIURL:       env.String("LENS_API_URL", "https://api-v2.lens.dev"),
			Timeout:      env.Duration("LENS_TIMEOUT", 5*time.Second),
			CacheTTL:     env.Duration("LENS_CACHE_TTL", time.Minute),
			CacheMaxKeys: env.Int64("LENS_CACHE_MAX_KEYS", 10_000),
		},
		Kafka: kafkaConfig{
			Brokers:      env.Strings("KAFKA_BROKERS", nil),
			Topic:        env.String("KAFKA_TOPIC", "decentrahub.users"),
			WriteTimeout: env.Duration("KAFKA_WRITE_TIMEOUT", 5*time.Second),
		},
		RateLimit: rateLimitConfig{
			RPS:            env.Float64("RATE_LIMIT_RPS", 5),
			Burst:          env.Int("RATE_LIMIT_BURST", 10),
			TrustedProxies: env.Strings("RATE_LIMIT_TRUSTED_PROXIES", defaultTrustedProxies),
		},
		LogLevel:         logLevel(env.String("LOG_LEVEL", "info")),
		RequireSignature: env.Bool("AUTH_REQUIRE_SIGNATURE", false),
	}
}

func logLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
