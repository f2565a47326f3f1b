package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/decentrahub/hub/internal/pkg/events"
	"github.com/decentrahub/hub/internal/pkg/serr"
	"github.com/decentrahub/hub/internal/pkg/wallet"
	"github.com/decentrahub/hub/internal/services/auth/internal/nonce"
	"github.com/decentrahub/hub/internal/services/auth/internal/social"
	"github.com/decentrahub/hub/internal/services/auth/internal/store"
)

var handlePattern = regexp.MustCompile(`(?i)^[\w.-]+\.(lens|test|eth)$`)

// LookupResult pairs the local record and the social profile found for an identifier.
// Either may be nil, never both.
type LookupResult struct {
	Local  *store.Profile
	Social *social.Profile
}

// PublicProfile is the merged view of a LookupResult: local fields win, social ones fill gaps.
type PublicProfile struct {
	UserID        int64
	Address       string
	Role          store.Role
	FullName      string
	Bio           string
	Email         string
	AvatarURL     string
	Website       string
	TwitterHandle string
	LensProfileID string
	LensHandle    string
	LensStats     *social.Stats
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r LookupResult) Merged() PublicProfile {
	var v PublicProfile
	if p := r.Local; p != nil {
		v = PublicProfile{
			UserID:        p.ID,
			Address:       p.WalletAddress,
			Role:          p.Role,
			FullName:      p.FullName,
			Bio:           p.Bio,
			Email:         p.Email,
			AvatarURL:     p.AvatarURL,
			Website:       p.Website,
			TwitterHandle: p.TwitterHandle,
			LensProfileID: p.ExternalProfileID,
			LensHandle:    p.ExternalHandle,
			CreatedAt:     p.CreatedAt,
			UpdatedAt:     p.UpdatedAt,
		}
	}

	if sp := r.Social; sp != nil {
		fill := func(dst *string, v string) {
			if *dst == "" {
				*dst = v
			}
		}
		fill(&v.Address, strings.ToLower(sp.OwnedBy))
		fill(&v.FullName, sp.DisplayName)
		fill(&v.Bio, sp.Bio)
		fill(&v.AvatarURL, sp.PictureURL)
		fill(&v.LensProfileID, sp.ID)
		fill(&v.LensHandle, sp.Handle)
		stats := sp.Stats
		v.LensStats = &stats
	}

	return v
}

// Lookup resolves identifier, a wallet address or a social handle, to the local
// record and social profile behind it.
func (s *Users) Lookup(ctx context.Context, identifier string) (LookupResult, error) {
	identifier = strings.TrimSpace(identifier)

	var (
		res LookupResult
		err error
	)
	switch {
	case wallet.IsAddress(identifier):
		res, err = s.lookupAddress(ctx, identifier)
	case handlePattern.MatchString(identifier):
		res, err = s.lookupHandle(ctx, identifier)
	default:
		return LookupResult{}, serr.BadRequest(nil, "Invalid identifier format. Must be a Lens handle or wallet address.").With("identifier", identifier)
	}
	if err != nil {
		return LookupResult{}, err
	}

	if res.Local == nil && res.Social == nil {
		return LookupResult{}, serr.NotFound(nil, "User profile not found.").With("identifier", identifier)
	}
	return res, nil
}

func (s *Users) lookupAddress(ctx context.Context, identifier string) (LookupResult, error) {
	address, err := wallet.Normalize(identifier)
	if err != nil {
		return LookupResult{}, serr.BadRequest(err, "Invalid wallet address.")
	}

	local, err := s.findLocal(ctx, s.store.GetByAddress, address)
	if err != nil {
		return LookupResult{}, err
	}

	var sp *social.Profile
	switch {
	case local != nil && local.ExternalHandle != "":
		sp = s.social.ByHandle(ctx, local.ExternalHandle)
	default:
		sp = s.social.ByAddress(ctx, address)
	}

	return LookupResult{Local: local, Social: sp}, nil
}

func (s *Users) lookupHandle(ctx context.Context, handle string) (LookupResult, error) {
	sp := s.social.ByHandle(ctx, handle)
	if sp == nil {
		local, err := s.findLocal(ctx, s.store.GetByHandle, handle)
		return LookupResult{Local: local}, err
	}

	local, err := s.findLocal(ctx, s.store.GetByExternalID, sp.ID)
	if err != nil {
		return LookupResult{}, err
	}

	if local == nil && wallet.IsAddress(sp.OwnedBy) {
		owner, _ := wallet.Normalize(sp.OwnedBy)
		local, err = s.findLocal(ctx, s.store.GetByAddress, owner)
		if err != nil {
			return LookupResult{}, err
		}
	}

	return LookupResult{Local: local, Social: sp}, nil
}

func (s *Users) findLocal(ctx context.Context, get func(context.Context, string) (store.Profile, error), key string) (*store.Profile, error) {
	p, err := get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// Me returns the profile of the authenticated wallet.
func (s *Users) Me(ctx context.Context, address string) (store.Profile, error) {
	p, err := s.store.GetByAddress(ctx, address)
	if err != nil {
		return store.Profile{}, storeErr(err, "Authenticated user profile not found.")
	}
	return p, nil
}

// UpdateProfile overwrites the supplied fields of the authenticated wallet's profile.
func (s *Users) UpdateProfile(ctx context.Context, address string, fields ProfileFields) (p store.Profile, err error) {
	defer func() { s.outcome("update_profile", err) }()

	if fields.IsEmpty() {
		return store.Profile{}, serr.BadRequest(nil, "No valid fields provided for update.")
	}
	if err := fields.validate(); err != nil {
		return store.Profile{}, err
	}

	p, err = s.store.Update(ctx, address, fields.patch())
	if err != nil {
		return store.Profile{}, storeErr(err, "User not found. Cannot update profile.")
	}

	s.publish(ctx, events.New(events.UserUpdated, address, map[string]any{
		"walletAddress": address,
	}))
	return p, nil
}

// Challenge issues a one-time message for address to sign before verifying.
func (s *Users) Challenge(ctx context.Context, address string) (nonce.Challenge, error) {
	normalized, err := wallet.Normalize(address)
	if err != nil {
		return nonce.Challenge{}, serr.BadRequest(err, "Invalid wallet address.")
	}

	ch, err := s.nonces.Issue(ctx, normalized)
	if err != nil {
		return nonce.Challenge{}, fmt.Errorf("issue challenge: %w", err)
	}
	return ch, nil
}

func (s *Users) SocialProfile(ctx context.Context, handle string) (*social.Profile, error) {
	sp := s.social.ByHandle(ctx, strings.TrimSpace(handle))
	if sp == nil {
		return nil, serr.NotFound(nil, "Lens profile not found.").With("handle", handle)
	}
	return sp, nil
}

func (s *Users) Follows(ctx context.Context, observer, profileID string) (bool, error) {
	address, err := wallet.Normalize(observer)
	if err != nil {
		return false, serr.BadRequest(err, "Invalid observer address.")
	}
	if strings.TrimSpace(profileID) == "" {
		return false, serr.BadRequest(nil, "Profile id is required.")
	}

	return s.social.Follows(ctx, address, profileID), nil
}
