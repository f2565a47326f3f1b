// Package session holds the client side wallet session: a pure state machine over
// wallet and verification events and a Shell that drives the network calls.
package session

import (
	"strings"
	"time"
)

type Status int

const (
	Disconnected Status = iota
	ConnectedUnverified
	Verifying
	Verified
	Failed
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case ConnectedUnverified:
		return "connected-unverified"
	case Verifying:
		return "verifying"
	case Verified:
		return "verified"
	case Failed:
		return "error"
	}
	return "unknown"
}

type Submission struct {
	Role   string
	Fields ProfileFields
}

type Session struct {
	User        User
	LensProfile *LensProfile
	Token       string
	ExpiresAt   time.Time
}

// State is the whole client session. Only the fields relevant to Status are set:
// Pending while verifying, Session once verified. Err keeps the last failure
// until the next submission.
type State struct {
	Status     Status
	Address    string
	PromptRole bool
	Pending    *Submission
	Session    *Session
	Err        error
}

type Event interface {
	event()
}

type WalletConnected struct {
	Address string
}

type RoleSubmitted struct {
	Role   string
	Fields ProfileFields
}

type VerifySucceeded struct {
	Result VerifyResult
}

type VerifyFailed struct {
	Err error
}

type WalletDisconnected struct{}

type ProfileUpdated struct {
	User User
}

func (WalletConnected) event()    {}
func (RoleSubmitted) event()      {}
func (VerifySucceeded) event()    {}
func (VerifyFailed) event()       {}
func (WalletDisconnected) event() {}
func (ProfileUpdated) event()     {}

// Next applies e to s. Events that make no sense in the current status leave s unchanged.
// A failed verification yields the transient Failed status, see Settle.
func Next(s State, e Event) State {
	switch e := e.(type) {
	case WalletConnected:
		addr := strings.ToLower(e.Address)
		if addr == "" {
			return s
		}
		if s.Status != Disconnected && s.Address == addr {
			return s
		}
		// a new account starts over, whatever was cached for the previous one
		return State{Status: ConnectedUnverified, Address: addr, PromptRole: true}

	case RoleSubmitted:
		if s.Status != ConnectedUnverified {
			return s
		}
		return State{
			Status:  Verifying,
			Address: s.Address,
			Pending: &Submission{Role: e.Role, Fields: e.Fields},
		}

	case VerifySucceeded:
		if s.Status != Verifying {
			return s
		}
		r := e.Result
		return State{
			Status:  Verified,
			Address: s.Address,
			Session: &Session{
				User:        r.User,
				LensProfile: r.LensProfile,
				Token:       r.Token,
				ExpiresAt:   r.ExpiresAt,
			},
		}

	case VerifyFailed:
		if s.Status != Verifying {
			return s
		}
		return State{Status: Failed, Address: s.Address, Err: e.Err}

	case WalletDisconnected:
		return State{Status: Disconnected}

	case ProfileUpdated:
		if s.Status != Verified || s.Session == nil {
			return s
		}
		sess := *s.Session
		sess.User = e.User
		s.Session = &sess
		return s
	}

	return s
}

// Settle resolves transient statuses. Failed goes back to ConnectedUnverified with the
// role prompt shown again and the error kept for display.
func Settle(s State) State {
	if s.Status != Failed {
		return s
	}
	return State{Status: ConnectedUnverified, Address: s.Address, PromptRole: true, Err: s.Err}
}

// Reduce is Next followed by Settle.
func Reduce(s State, e Event) State {
	return Settle(Next(s, e))
}
