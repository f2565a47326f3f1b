package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	ErrNotConnected = errors.New("wallet is not connected")
	ErrBusy         = errors.New("verification already in progress")
	ErrNotVerified  = errors.New("session is not verified")
	ErrStale        = errors.New("session changed while the request was in flight")
)

type backend interface {
	VerifyWallet(ctx context.Context, req VerifyRequest) (VerifyResult, error)
	UpdateProfile(ctx context.Context, token string, fields ProfileFields) (User, error)
}

// Shell owns the session state and performs the calls the state machine asks for.
// It allows one verification at a time; results that arrive after the wallet
// changed or disconnected are dropped.
type Shell struct {
	mu      sync.Mutex
	state   State
	gen     uint64
	api     backend
	observe func(State)
}

type ShellOption func(*Shell) *Shell

// WithObserver registers f to receive every state the shell goes through, the
// transient error state included. f is called without the shell lock held.
func WithObserver(f func(State)) ShellOption {
	return func(s *Shell) *Shell {
		s.observe = f
		return s
	}
}

func NewShell(api backend, opts ...ShellOption) *Shell {
	if api == nil {
		panic("session backend is required")
	}

	s := &Shell{api: api}
	for _, opt := range opts {
		s = opt(s)
	}
	return s
}

func (s *Shell) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect reports a wallet connection from the wallet library.
func (s *Shell) Connect(address string) {
	s.dispatch(WalletConnected{Address: address})
}

// Disconnect resets the session and invalidates any request in flight.
func (s *Shell) Disconnect() {
	s.dispatch(WalletDisconnected{})
}

func (s *Shell) Logout() {
	s.Disconnect()
}

// SubmitRole verifies the connected wallet with role and fields and blocks until the
// backend answers. The returned error is the verification failure, if any.
func (s *Shell) SubmitRole(ctx context.Context, role string, fields ProfileFields) error {
	s.mu.Lock()
	switch s.state.Status {
	case Verifying:
		s.mu.Unlock()
		return ErrBusy
	case ConnectedUnverified:
	default:
		s.mu.Unlock()
		return ErrNotConnected
	}

	emitted := s.apply(RoleSubmitted{Role: role, Fields: fields})
	gen := s.gen
	req := VerifyRequest{WalletAddress: s.state.Address, Role: role, ProfileFields: fields}
	s.mu.Unlock()
	s.emit(emitted)

	res, err := s.api.VerifyWallet(ctx, req)

	s.mu.Lock()
	if gen != s.gen || s.state.Status != Verifying {
		s.mu.Unlock()
		slog.Debug("dropping stale verification result", "address", req.WalletAddress)
		return ErrStale
	}

	var ev Event = VerifySucceeded{Result: res}
	if err != nil {
		ev = VerifyFailed{Err: err}
	}
	emitted = s.apply(ev)
	s.mu.Unlock()
	s.emit(emitted)

	return err
}

// UpdateProfile sends explicit profile changes with the session token and caches the
// returned user.
func (s *Shell) UpdateProfile(ctx context.Context, fields ProfileFields) (User, error) {
	s.mu.Lock()
	if s.state.Status != Verified || s.state.Session == nil {
		s.mu.Unlock()
		return User{}, ErrNotVerified
	}
	gen := s.gen
	token := s.state.Session.Token
	s.mu.Unlock()

	u, err := s.api.UpdateProfile(ctx, token, fields)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return User{}, ErrStale
	}
	emitted := s.apply(ProfileUpdated{User: u})
	s.mu.Unlock()
	s.emit(emitted)

	return u, nil
}

func (s *Shell) dispatch(e Event) {
	s.mu.Lock()
	emitted := s.apply(e)
	s.mu.Unlock()
	s.emit(emitted)
}

// apply must be called with mu held. It returns the states to report, in order.
func (s *Shell) apply(e Event) []State {
	prev := s.state
	next := Next(prev, e)

	var emitted []State
	if next.Status == Failed {
		emitted = append(emitted, next)
		next = Settle(next)
	}
	emitted = append(emitted, next)

	// anything that moves away from the current account or request invalidates in-flight calls
	if next.Status == Disconnected || next.Address != prev.Address {
		s.gen++
	}
	s.state = next
	return emitted
}

func (s *Shell) emit(states []State) {
	if s.observe == nil {
		return
	}
	for _, st := range states {
		s.observe(st)
	}
}
