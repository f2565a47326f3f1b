package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/decentrahub/hub/internal/pkg/events"
	"github.com/decentrahub/hub/internal/pkg/serr"
	"github.com/decentrahub/hub/internal/services/auth/internal/nonce"
	"github.com/decentrahub/hub/internal/services/auth/internal/social"
	"github.com/decentrahub/hub/internal/services/auth/internal/store"
	"github.com/decentrahub/hub/internal/services/auth/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory store.Store enforcing the same unique columns as the users table.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]store.Profile
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]store.Profile)}
}

func (m *memStore) find(match func(store.Profile) bool) (store.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.rows {
		if match(p) {
			return p, nil
		}
	}
	return store.Profile{}, store.ErrNotFound
}

func (m *memStore) GetByAddress(ctx context.Context, address string) (store.Profile, error) {
	return m.find(func(p store.Profile) bool { return p.WalletAddress == address })
}

func (m *memStore) GetByExternalID(ctx context.Context, id string) (store.Profile, error) {
	return m.find(func(p store.Profile) bool { return p.ExternalProfileID == id })
}

func (m *memStore) GetByHandle(ctx context.Context, handle string) (store.Profile, error) {
	return m.find(func(p store.Profile) bool { return p.ExternalHandle == handle })
}

// conflicts must be called with mu held
func (m *memStore) conflicts(p store.Profile) *store.ConflictError {
	for addr, other := range m.rows {
		if addr == p.WalletAddress {
			continue
		}
		for _, f := range []store.Field{store.FieldExternalProfileID, store.FieldExternalHandle, store.FieldEmail} {
			if p.Get(f) != "" && p.Get(f) == other.Get(f) {
				return &store.ConflictError{Fields: []string{string(f)}}
			}
		}
	}
	return nil
}

func (m *memStore) Create(ctx context.Context, p store.Profile) (store.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[p.WalletAddress]; ok {
		return store.Profile{}, &store.ConflictError{Fields: []string{"walletAddress"}}
	}
	if cErr := m.conflicts(p); cErr != nil {
		return store.Profile{}, cErr
	}

	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.rows[p.WalletAddress] = p
	return p, nil
}

func (m *memStore) Update(ctx context.Context, address string, patch store.ProfilePatch) (store.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.rows[address]
	if !ok {
		return store.Profile{}, store.ErrNotFound
	}

	next := patch.Apply(cur)
	if cErr := m.conflicts(next); cErr != nil {
		return store.Profile{}, cErr
	}

	next.UpdatedAt = time.Now()
	m.rows[address] = next
	return next, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type mockStore struct {
	getByAddressFunc    func(ctx context.Context, address string) (store.Profile, error)
	getByExternalIDFunc func(ctx context.Context, id string) (store.Profile, error)
	getByHandleFunc     func(ctx context.Context, handle string) (store.Profile, error)
	createFunc          func(ctx context.Context, p store.Profile) (store.Profile, error)
	updateFunc          func(ctx context.Context, address string, patch store.ProfilePatch) (store.Profile, error)
}

func (m *mockStore) GetByAddress(ctx context.Context, address string) (store.Profile, error) {
	return m.getByAddressFunc(ctx, address)
}

func (m *mockStore) GetByExternalID(ctx context.Context, id string) (store.Profile, error) {
	return m.getByExternalIDFunc(ctx, id)
}

func (m *mockStore) GetByHandle(ctx context.Context, handle string) (store.Profile, error) {
	return m.getByHandleFunc(ctx, handle)
}

func (m *mockStore) Create(ctx context.Context, p store.Profile) (store.Profile, error) {
	return m.createFunc(ctx, p)
}

func (m *mockStore) Update(ctx context.Context, address string, patch store.ProfilePatch) (store.Profile, error) {
	return m.updateFunc(ctx, address, patch)
}

type mockSocial struct {
	byHandleFunc  func(ctx context.Context, handle string) *social.Profile
	byAddressFunc func(ctx context.Context, address string) *social.Profile
	followsFunc   func(ctx context.Context, observer, profileID string) bool
}

func (m *mockSocial) ByHandle(ctx context.Context, handle string) *social.Profile {
	if m.byHandleFunc == nil {
		return nil
	}
	return m.byHandleFunc(ctx, handle)
}

func (m *mockSocial) ByAddress(ctx context.Context, address string) *social.Profile {
	if m.byAddressFunc == nil {
		return nil
	}
	return m.byAddressFunc(ctx, address)
}

func (m *mockSocial) Follows(ctx context.Context, observer, profileID string) bool {
	if m.followsFunc == nil {
		return false
	}
	return m.followsFunc(ctx, observer, profileID)
}

type mockNonces struct {
	issueFunc   func(ctx context.Context, address string) (nonce.Challenge, error)
	consumeFunc func(ctx context.Context, address string) (string, error)
}

func (m *mockNonces) Issue(ctx context.Context, address string) (nonce.Challenge, error) {
	return m.issueFunc(ctx, address)
}

func (m *mockNonces) Consume(ctx context.Context, address string) (string, error) {
	return m.consumeFunc(ctx, address)
}

type mockSessions struct {
	issueFunc func(wallet, role string) (token.Session, error)
}

func (m *mockSessions) Issue(wallet, role string) (token.Session, error) {
	if m.issueFunc == nil {
		return token.Session{Token: "session-" + wallet}, nil
	}
	return m.issueFunc(wallet, role)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := make([]string, 0, len(p.events))
	for _, e := range p.events {
		res = append(res, e.Type)
	}
	return res
}

func newUsers(st store.Store, sl social.Lookup, opts ...UsersOption) *Users {
	base := []UsersOption{
		WithStore(st),
		WithSocial(sl),
		WithNonces(&mockNonces{}),
		WithSessions(&mockSessions{}),
	}
	return NewUsers(append(base, opts...)...)
}

func requireStatus(t *testing.T, err error, status int) *serr.ServiceError {
	t.Helper()

	var se *serr.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, status, se.StatusCode, se.Msg)
	return se
}

func ptr[T any](v T) *T {
	return &v
}
