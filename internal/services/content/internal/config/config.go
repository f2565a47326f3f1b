package config

import (
	"log/slog"
	"time"

	"github.com/decentrahub/hub/internal/pkg/env"
)

type Config struct {
	AuthSecret string
	HTTP       httpConfig
	Pinata     pinataConfig
	Media      mediaConfig
	Mint       mintConfig
	Kafka      kafkaConfig
	LogLevel   slog.Level
}

type httpConfig struct {
	ListenAddr      string
	IdleTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type pinataConfig struct {
	BaseURL      string
	APIKey       string
	SecretAPIKey string
	Timeout      time.Duration
}

type mediaConfig struct {
	MaxSize   int64
	MaxWidth  int
	MaxHeight int
}

type mintConfig struct {
	ExternalURL string
	AppID       string
}

type kafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

func FromEnv() Config {
	return Config{
		AuthSecret: env.RequireString("JWT_SECRET"),
		HTTP: httpConfig{
			ListenAddr:      env.String("HTTP_LISTEN_ADDR", ":8081"),
			IdleTimeout:     env.Duration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ReadTimeout:     env.Duration("HTTP_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:    env.Duration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: env.Duration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Pinata: pinataConfig{
			BaseURL:      env.String("PINATA_BASE_URL", "https://api.pinata.cloud"),
			APIKey:       env.String("PINATA_API_KEY", ""),
			SecretAPIKey: env.String("PINATA_SECRET_API_KEY", ""),
			Timeout:      env.Duration("PINATA_TIMEOUT", 30*time.Second),
		},
		Media: mediaConfig{
			MaxSize:   env.Int64("MEDIA_MAX_SIZE", 50*1024*1024),
			MaxWidth:  env.Int("MEDIA_MAX_WIDTH", 4096),
			MaxHeight: env.Int("MEDIA_MAX_HEIGHT", 4096),
		},
		Mint: mintConfig{
			ExternalURL: env.String("MINT_EXTERNAL_URL", "https://decentrahub.xyz"),
			AppID:       env.String("MINT_APP_ID", "DecentraHub"),
		},
		Kafka: kafkaConfig{
			Brokers:      env.Strings("KAFKA_BROKERS", nil),
			Topic:        env.String("KAFKA_TOPIC", "decentrahub.content"),
			WriteTimeout: env.Duration("KAFKA_WRITE_TIMEOUT", 5*time.Second),
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
