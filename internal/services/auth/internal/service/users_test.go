package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/decentrahub/hub/internal/pkg/events"
	"github.com/decentrahub/hub/internal/services/auth/internal/nonce"
	"github.com/decentrahub/hub/internal/services/auth/internal/social"
	"github.com/decentrahub/hub/internal/services/auth/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, st *memStore, p store.Profile) store.Profile {
	t.Helper()
	created, err := st.Create(t.Context(), p)
	require.NoError(t, err)
	return created
}

func TestLookup_ByAddressLocalOnly(t *testing.T) {
	st := newMemStore()
	seed(t, st, store.Profile{WalletAddress: addr, Role: store.RoleCreator, FullName: "Alice"})

	res, err := newUsers(st, noSocial()).Lookup(t.Context(), "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)

	require.NotNil(t, res.Local)
	assert.Nil(t, res.Social)
	assert.Equal(t, "Alice", res.Merged().FullName)
	assert.Nil(t, res.Merged().LensStats)
}

func TestLookup_ByAddressUsesStoredHandle(t *testing.T) {
	st := newMemStore()
	seed(t, st, store.Profile{WalletAddress: addr, ExternalHandle: "alice.lens"})

	var gotHandle string
	sl := &mockSocial{
		byHandleFunc: func(ctx context.Context, handle string) *social.Profile {
			gotHandle = handle
			return lensAlice()
		},
		byAddressFunc: func(ctx context.Context, address string) *social.Profile {
			t.Error("unexpected address lookup")
			return nil
		},
	}

	res, err := newUsers(st, sl).Lookup(t.Context(), addr)
	require.NoError(t, err)

	assert.Equal(t, "alice.lens", gotHandle)
	assert.NotNil(t, res.Social)
}

func TestLookup_ByAddressSocialOnly(t *testing.T) {
	sl := &mockSocial{byAddressFunc: func(ctx context.Context, address string) *social.Profile {
		p := lensAlice()
		p.Stats = social.Stats{Followers: 10, Following: 2, Posts: 5}
		return p
	}}

	res, err := newUsers(newMemStore(), sl).Lookup(t.Context(), addr)
	require.NoError(t, err)

	assert.Nil(t, res.Local)
	merged := res.Merged()
	assert.Equal(t, addr, merged.Address)
	assert.Equal(t, "Alice Lens", merged.FullName)
	assert.Equal(t, "0x01", merged.LensProfileID)
	require.NotNil(t, merged.LensStats)
	assert.Equal(t, int64(10), merged.LensStats.Followers)
}

func TestLookup_ByHandle(t *testing.T) {
	st := newMemStore()
	seed(t, st, store.Profile{WalletAddress: addr, ExternalProfileID: "0x01", Bio: "local bio"})

	sl := &mockSocial{byHandleFunc: func(ctx context.Context, handle string) *social.Profile {
		assert.Equal(t, "alice.lens", handle)
		return lensAlice()
	}}

	res, err := newUsers(st, sl).Lookup(t.Context(), "alice.lens")
	require.NoError(t, err)

	require.NotNil(t, res.Local)
	merged := res.Merged()
	assert.Equal(t, "local bio", merged.Bio)
	assert.Equal(t, "Alice Lens", merged.FullName)
	assert.Equal(t, "alice.lens", merged.LensHandle)
}

func TestLookup_ByHandleFallsBackToOwner(t *testing.T) {
	st := newMemStore()
	seed(t, st, store.Profile{WalletAddress: addr})

	sl := &mockSocial{byHandleFunc: func(ctx context.Context, handle string) *social.Profile {
		p := lensAlice()
		p.OwnedBy = "0x1111111111111111111111111111111111111111"
		return p
	}}

	res, err := newUsers(st, sl).Lookup(t.Context(), "alice.lens")
	require.NoError(t, err)

	require.NotNil(t, res.Local)
	assert.Equal(t, addr, res.Local.WalletAddress)
}

func TestLookup_ByHandleLocalOnly(t *testing.T) {
	st := newMemStore()
	seed(t, st, store.Profile{WalletAddress: addr, ExternalHandle: "alice.lens"})

	res, err := newUsers(st, noSocial()).Lookup(t.Context(), "alice.lens")
	require.NoError(t, err)

	require.NotNil(t, res.Local)
	assert.Nil(t, res.Social)
}

func TestLookup_Errors(t *testing.T) {
	tbl := []struct {
		name       string
		identifier string
		status     int
	}{
		{"unknown address", addr, http.StatusNotFound},
		{"unknown handle", "bob.lens", http.StatusNotFound},
		{"garbage", "not a handle", http.StatusBadRequest},
		{"short address", "0x1234", http.StatusBadRequest},
		{"empty", "", http.StatusBadRequest},
	}

	for _, c := range tbl {
		t.Run(c.name, func(t *testing.T) {
			_, err := newUsers(newMemStore(), noSocial()).Lookup(t.Context(), c.identifier)
			requireStatus(t, err, c.status)
		})
	}
}

func TestLookup_StoreError(t *testing.T) {
	boom := errors.New("db down")
	st := &mockStore{getByAddressFunc: func(ctx context.Context, address string) (store.Profile, error) {
		return store.Profile{}, boom
	}}

	_, err := newUsers(st, noSocial()).Lookup(t.Context(), addr)
	assert.ErrorIs(t, err, boom)
}

func TestMe(t *testing.T) {
	st := newMemStore()
	seed(t, st, store.Profile{WalletAddress: addr, Role: store.RoleConsumer})
	s := newUsers(st, noSocial())

	p, err := s.Me(t.Context(), addr)
	require.NoError(t, err)
	assert.Equal(t, store.RoleConsumer, p.Role)

	_, err = s.Me(t.Context(), "0x2222222222222222222222222222222222222222")
	se := requireStatus(t, err, http.StatusNotFound)
	assert.Equal(t, "Authenticated user profile not found.", se.Msg)
}

func TestUpdateProfile(t *testing.T) {
	st := newMemStore()
	seed(t, st, store.Profile{WalletAddress: addr, Role: store.RoleCreator, FullName: "Alice", Bio: "bio"})
	pub := &recordingPublisher{}
	s := newUsers(st, noSocial(), WithEvents(pub))

	p, err := s.UpdateProfile(t.Context(), addr, ProfileFields{Bio: ptr("new bio"), TwitterHandle: ptr("  alice ")})
	require.NoError(t, err)

	assert.Equal(t, "Alice", p.FullName)
	assert.Equal(t, "new bio", p.Bio)
	assert.Equal(t, "alice", p.TwitterHandle)
	assert.Equal(t, store.RoleCreator, p.Role)
	assert.Equal(t, []string{events.UserUpdated}, pub.types())
}

func TestUpdateProfile_Errors(t *testing.T) {
	st := newMemStore()
	seed(t, st, store.Profile{WalletAddress: addr})
	seed(t, st, store.Profile{WalletAddress: "0x2222222222222222222222222222222222222222", Email: "taken@example.com"})
	s := newUsers(st, noSocial())

	tbl := []struct {
		name    string
		address string
		fields  ProfileFields
		status  int
	}{
		{"no fields", addr, ProfileFields{}, http.StatusBadRequest},
		{"invalid avatar", addr, ProfileFields{AvatarURL: ptr("ftp://x")}, http.StatusBadRequest},
		{"unknown user", "0x3333333333333333333333333333333333333333", ProfileFields{Bio: ptr("x")}, http.StatusNotFound},
		{"email taken", addr, ProfileFields{Email: ptr("taken@example.com")}, http.StatusConflict},
	}

	for _, c := range tbl {
		t.Run(c.name, func(t *testing.T) {
			_, err := s.UpdateProfile(t.Context(), c.address, c.fields)
			requireStatus(t, err, c.status)
		})
	}
}

func TestUpdateProfile_AcceptsIPFSAvatar(t *testing.T) {
	st := newMemStore()
	seed(t, st, store.Profile{WalletAddress: addr})

	p, err := newUsers(st, noSocial()).UpdateProfile(t.Context(), addr, ProfileFields{AvatarURL: ptr("ipfs://QmHash/avatar.png")})
	require.NoError(t, err)
	assert.Equal(t, "ipfs://QmHash/avatar.png", p.AvatarURL)
}

func TestChallenge(t *testing.T) {
	expires := time.Now().Add(time.Minute)
	nonces := &mockNonces{issueFunc: func(ctx context.Context, address string) (nonce.Challenge, error) {
		assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", address)
		return nonce.Challenge{Nonce: "n-1", Message: nonce.Message(address, "n-1"), ExpiresAt: expires}, nil
	}}
	s := newUsers(newMemStore(), noSocial(), WithNonces(nonces))

	ch, err := s.Challenge(t.Context(), "0xABCDEF0123456789ABCDEF0123456789ABCDEF01")
	require.NoError(t, err)
	assert.Equal(t, "n-1", ch.Nonce)
	assert.Contains(t, ch.Message, "n-1")

	_, err = s.Challenge(t.Context(), "nope")
	requireStatus(t, err, http.StatusBadRequest)
}

func TestSocialProfile(t *testing.T) {
	sl := &mockSocial{byHandleFunc: func(ctx context.Context, handle string) *social.Profile {
		if handle == "alice.lens" {
			return lensAlice()
		}
		return nil
	}}
	s := newUsers(newMemStore(), sl)

	sp, err := s.SocialProfile(t.Context(), "alice.lens")
	require.NoError(t, err)
	assert.Equal(t, "0x01", sp.ID)

	_, err = s.SocialProfile(t.Context(), "bob.lens")
	requireStatus(t, err, http.StatusNotFound)
}

func TestFollows(t *testing.T) {
	sl := &mockSocial{followsFunc: func(ctx context.Context, observer, profileID string) bool {
		return observer == addr && profileID == "0x01"
	}}
	s := newUsers(newMemStore(), sl)

	ok, err := s.Follows(t.Context(), addr, "0x01")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Follows(t.Context(), addr, "0x02")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Follows(t.Context(), "bad", "0x01")
	requireStatus(t, err, http.StatusBadRequest)

	_, err = s.Follows(t.Context(), addr, " ")
	requireStatus(t, err, http.StatusBadRequest)
}
