package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/decentrahub/hub/internal/pkg/events"
	"github.com/decentrahub/hub/internal/pkg/serr"
	"github.com/decentrahub/hub/internal/pkg/wallet"
	"github.com/decentrahub/hub/internal/services/auth/internal/nonce"
	"github.com/decentrahub/hub/internal/services/auth/internal/social"
	"github.com/decentrahub/hub/internal/services/auth/internal/store"
	"github.com/decentrahub/hub/internal/services/auth/internal/token"
)

type VerifyRequest struct {
	Address   string
	Role      string
	Fields    ProfileFields
	Signature string
}

type VerifyResult struct {
	Profile   store.Profile
	Social    *social.Profile
	IsNewUser bool
	Session   token.Session
}

type verifiedPayload struct {
	WalletAddress string `json:"walletAddress"`
	Role          string `json:"role"`
	IsNewUser     bool   `json:"isNewUser"`
	LensProfileID string `json:"lensProfileId,omitempty"`
}

// Verify finds or creates the profile of a connecting wallet, records its role and any
// supplied fields, and enriches it from the social graph without overwriting local data.
func (s *Users) Verify(ctx context.Context, r VerifyRequest) (res VerifyResult, err error) {
	defer func() { s.outcome("verify", err) }()

	if r.Address == "" || r.Role == "" {
		return VerifyResult{}, serr.BadRequest(nil, "Wallet address and role are required.")
	}

	address, err := wallet.Normalize(r.Address)
	if err != nil {
		return VerifyResult{}, serr.BadRequest(err, "Invalid wallet address.")
	}

	role := store.Role(r.Role)
	if !role.Valid() {
		return VerifyResult{}, serr.BadRequest(nil, `Invalid role specified. Must be "creator" or "consumer".`).With("role", r.Role)
	}

	if err := r.Fields.validate(); err != nil {
		return VerifyResult{}, err
	}

	if err := s.checkSignature(ctx, address, r.Signature); err != nil {
		return VerifyResult{}, err
	}

	patch := r.Fields.patch()
	patch.Role = &role

	profile, isNew, err := s.upsert(ctx, address, patch)
	if err != nil {
		return VerifyResult{}, err
	}

	sp := s.social.ByAddress(ctx, address)
	if sp != nil {
		profile, err = s.enrich(ctx, profile, sp)
		if err != nil {
			return VerifyResult{}, err
		}
	}

	session, err := s.sessions.Issue(profile.WalletAddress, string(profile.Role))
	if err != nil {
		return VerifyResult{}, fmt.Errorf("issue session: %w", err)
	}

	s.publish(ctx, events.New(events.UserVerified, address, verifiedPayload{
		WalletAddress: address,
		Role:          string(profile.Role),
		IsNewUser:     isNew,
		LensProfileID: profile.ExternalProfileID,
	}))

	slog.Info("wallet verified", "address", address, "role", profile.Role, "new_user", isNew, "lens_profile", sp != nil)
	return VerifyResult{
		Profile:   profile,
		Social:    sp,
		IsNewUser: isNew,
		Session:   session,
	}, nil
}

func (s *Users) upsert(ctx context.Context, address string, patch store.ProfilePatch) (store.Profile, bool, error) {
	_, err := s.store.GetByAddress(ctx, address)
	switch {
	case err == nil:
		p, err := s.store.Update(ctx, address, patch)
		if err != nil {
			return store.Profile{}, false, fmt.Errorf("update profile: %w", storeErr(err, "User not found."))
		}
		return p, false, nil

	case errors.Is(err, store.ErrNotFound):
		p, err := s.store.Create(ctx, patch.Apply(store.Profile{WalletAddress: address}))
		if err != nil {
			return store.Profile{}, false, fmt.Errorf("create profile: %w", storeErr(err, "User not found."))
		}
		return p, true, nil

	default:
		return store.Profile{}, false, fmt.Errorf("get profile: %w", err)
	}
}

// enrich fills absent local fields from sp. A social identity already linked to
// another wallet is not claimed twice: on conflict the lens id and handle are dropped
// and the remaining fields are still applied.
func (s *Users) enrich(ctx context.Context, p store.Profile, sp *social.Profile) (store.Profile, error) {
	patch := MergeIfAbsent(p, fromSocial(sp), EnrichFields)
	if patch.IsEmpty() {
		return p, nil
	}

	updated, err := s.store.Update(ctx, p.WalletAddress, patch)
	var cErr *store.ConflictError
	if errors.As(err, &cErr) {
		slog.Warn("social identity already linked, enriching without it",
			"address", p.WalletAddress,
			"lens_profile", sp.ID,
			"fields", cErr.Fields)

		patch.ExternalProfileID = nil
		patch.ExternalHandle = nil
		if patch.IsEmpty() {
			return p, nil
		}
		updated, err = s.store.Update(ctx, p.WalletAddress, patch)
	}
	if err != nil {
		return store.Profile{}, fmt.Errorf("enrich profile: %w", err)
	}

	return updated, nil
}

// checkSignature redeems the pending challenge of address against sig. It is a no-op
// when no signature is supplied and signatures are optional.
func (s *Users) checkSignature(ctx context.Context, address, sig string) error {
	if sig == "" {
		if s.requireSignature {
			return serr.Unauthorized(nil, "A signed sign-in challenge is required.")
		}
		return nil
	}

	msg, err := s.nonces.Consume(ctx, address)
	if err != nil {
		if errors.Is(err, nonce.ErrNotFound) {
			return serr.Unauthorized(err, "Sign-in challenge expired or missing.")
		}
		return fmt.Errorf("consume nonce: %w", err)
	}

	if err := wallet.VerifySignature(address, msg, sig); err != nil {
		return serr.Unauthorized(err, "Invalid signature.")
	}

	return nil
}
