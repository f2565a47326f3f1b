// Package nonce issues one-time sign-in challenges for wallet signatures.
package nonce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("nonce not found or expired")

type Challenge struct {
	Nonce     string
	Message   string
	ExpiresAt time.Time
}

// Message is the text the wallet signs with personal_sign.
func Message(address, nonce string) string {
	return fmt.Sprintf("Sign in to DecentraHub\n\nWallet: %s\nNonce: %s", address, nonce)
}

type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedis(cfg RedisConfig) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Redis{
		rdb: rdb,
		ttl: cfg.TTL,
	}
}

func key(address string) string {
	return "nonce:" + address
}

// Issue stores a fresh challenge for address, replacing any pending one.
func (r *Redis) Issue(ctx context.Context, address string) (Challenge, error) {
	n := uuid.NewString()
	msg := Message(address, n)

	if err := r.rdb.Set(ctx, key(address), msg, r.ttl).Err(); err != nil {
		return Challenge{}, fmt.Errorf("store nonce in redis: %w", err)
	}

	return Challenge{
		Nonce:     n,
		Message:   msg,
		ExpiresAt: time.Now().Add(r.ttl),
	}, nil
}

// Consume returns the pending challenge message for address and deletes it.
func (r *Redis) Consume(ctx context.Context, address string) (string, error) {
	msg, err := r.rdb.GetDel(ctx, key(address)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("retrieve nonce from redis: %w", err)
	}

	return msg, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
