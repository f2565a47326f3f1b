package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/decentrahub/hub/internal/pkg/events"
	"github.com/decentrahub/hub/internal/pkg/metrics"
	"github.com/decentrahub/hub/internal/pkg/serr"
	"github.com/decentrahub/hub/internal/services/auth/internal/nonce"
	"github.com/decentrahub/hub/internal/services/auth/internal/social"
	"github.com/decentrahub/hub/internal/services/auth/internal/store"
	"github.com/decentrahub/hub/internal/services/auth/internal/token"
)

// nonceStore issues and redeems sign-in challenges
type nonceStore interface {
	Issue(ctx context.Context, address string) (nonce.Challenge, error)
	Consume(ctx context.Context, address string) (string, error)
}

// sessionIssuer signs session tokens for verified wallets
type sessionIssuer interface {
	Issue(wallet, role string) (token.Session, error)
}

type publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Users verifies wallets and manages their profiles
type Users struct {
	store            store.Store
	social           social.Lookup
	nonces           nonceStore
	sessions         sessionIssuer
	events           publisher
	metrics          *metrics.Metrics
	requireSignature bool
}

// UsersOption defines a functional option for configuring the Users service
type UsersOption func(*Users) *Users

func WithStore(st store.Store) UsersOption {
	return func(s *Users) *Users {
		s.store = st
		return s
	}
}

func WithSocial(l social.Lookup) UsersOption {
	return func(s *Users) *Users {
		s.social = l
		return s
	}
}

func WithNonces(n nonceStore) UsersOption {
	return func(s *Users) *Users {
		s.nonces = n
		return s
	}
}

func WithSessions(iss sessionIssuer) UsersOption {
	return func(s *Users) *Users {
		s.sessions = iss
		return s
	}
}

func WithEvents(p publisher) UsersOption {
	return func(s *Users) *Users {
		s.events = p
		return s
	}
}

func WithMetrics(m *metrics.Metrics) UsersOption {
	return func(s *Users) *Users {
		s.metrics = m
		return s
	}
}

// WithRequireSignature makes a signed challenge mandatory for every verification.
func WithRequireSignature(required bool) UsersOption {
	return func(s *Users) *Users {
		s.requireSignature = required
		return s
	}
}

// NewUsers creates a new Users service with the provided options
func NewUsers(opts ...UsersOption) *Users {
	s := &Users{events: events.Nop{}}
	for _, opt := range opts {
		s = opt(s)
	}

	if s.store == nil {
		panic("store is required")
	}

	if s.social == nil {
		panic("social lookup is required")
	}

	if s.nonces == nil {
		panic("nonce store is required")
	}

	if s.sessions == nil {
		panic("session issuer is required")
	}

	return s
}

func (s *Users) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		slog.Warn("failed to publish event", "type", e.Type, "key", e.Key, "error", err)
	}
}

func (s *Users) outcome(op string, err error) {
	if s.metrics != nil {
		s.metrics.Outcome(op, err)
	}
}

func conflictErr(cErr *store.ConflictError) *serr.ServiceError {
	fields := strings.Join(cErr.Fields, ", ")
	return serr.Conflict(cErr, "Conflict: A user with this %s already exists.", fields).With("fields", fields)
}

// storeErr maps store sentinels onto service errors and leaves anything else untouched.
func storeErr(err error, notFoundMsg string) error {
	var cErr *store.ConflictError
	switch {
	case errors.As(err, &cErr):
		return conflictErr(cErr)
	case errors.Is(err, store.ErrNotFound):
		return serr.NotFound(err, "%s", notFoundMsg)
	}
	return err
}
