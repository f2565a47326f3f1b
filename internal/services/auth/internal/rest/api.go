package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/decentrahub/hub/internal/pkg/httpx"
	"github.com/decentrahub/hub/internal/pkg/middleware"
	"github.com/decentrahub/hub/internal/pkg/router"
	"github.com/decentrahub/hub/internal/pkg/serr"
	"github.com/decentrahub/hub/internal/services/auth/internal/nonce"
	"github.com/decentrahub/hub/internal/services/auth/internal/service"
	"github.com/decentrahub/hub/internal/services/auth/internal/social"
	"github.com/decentrahub/hub/internal/services/auth/internal/store"
)

type usersService interface {
	Verify(ctx context.Context, r service.VerifyRequest) (service.VerifyResult, error)
	Lookup(ctx context.Context, identifier string) (service.LookupResult, error)
	Me(ctx context.Context, address string) (store.Profile, error)
	UpdateProfile(ctx context.Context, address string, fields service.ProfileFields) (store.Profile, error)
	Challenge(ctx context.Context, address string) (nonce.Challenge, error)
	SocialProfile(ctx context.Context, handle string) (*social.Profile, error)
	Follows(ctx context.Context, observer, profileID string) (bool, error)
}

type API struct {
	srv   usersService
	auth  router.Middleware
	limit router.Middleware
	mux   *router.Router
}

type APIOption func(*API) *API

// WithAuth sets the middleware guarding the session endpoints.
func WithAuth(mw router.Middleware) APIOption {
	return func(a *API) *API {
		a.auth = mw
		return a
	}
}

// WithRateLimit sets the middleware throttling the public sign-in endpoints.
func WithRateLimit(mw router.Middleware) APIOption {
	return func(a *API) *API {
		a.limit = mw
		return a
	}
}

func NewAPI(srv usersService, opts ...APIOption) *API {
	api := &API{
		srv:   srv,
		limit: passThrough,
		mux:   router.New(),
	}
	for _, opt := range opts {
		api = opt(api)
	}

	if api.auth == nil {
		panic("auth middleware is required")
	}

	api.mount()
	return api
}

func passThrough(next http.Handler) http.Handler {
	return next
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *API) mount() {
	a.mux.HandleFunc("POST /auth/verify-wallet", a.handleVerifyWallet, a.limit)
	a.mux.HandleFunc("GET /auth/nonce", a.handleNonce, a.limit)
	a.mux.HandleFunc("GET /users/profile/me", a.handleGetMe, a.auth)
	a.mux.HandleFunc("PUT /users/profile/me", a.handleUpdateMe, a.auth)
	a.mux.HandleFunc("GET /users/{identifier}", a.handleGetUser)
	a.mux.HandleFunc("GET /lens/profile/{handle}", a.handleLensProfile)
	a.mux.HandleFunc("GET /lens/follows", a.handleLensFollows)
}

// optString tells an absent JSON member from a present one. A present null clears the column.
type optString struct {
	val *string
}

func (o *optString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		empty := ""
		o.val = &empty
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	o.val = &s
	return nil
}

type profileFields struct {
	FullName      optString `json:"fullName"`
	Bio           optString `json:"bio"`
	Email         optString `json:"email"`
	AvatarURL     optString `json:"avatarUrl"`
	Website       optString `json:"website"`
	TwitterHandle optString `json:"twitterHandle"`
}

func (f profileFields) toService() service.ProfileFields {
	return service.ProfileFields{
		FullName:      f.FullName.val,
		Bio:           f.Bio.val,
		Email:         f.Email.val,
		AvatarURL:     f.AvatarURL.val,
		Website:       f.Website.val,
		TwitterHandle: f.TwitterHandle.val,
	}
}

type verifyWalletRequest struct {
	WalletAddress string `json:"walletAddress"`
	Role          string `json:"role"`
	Signature     string `json:"signature"`
	profileFields
}

type userResponse struct {
	UserID        int64     `json:"userId"`
	Address       string    `json:"address"`
	Role          string    `json:"role"`
	FullName      *string   `json:"fullName"`
	Bio           *string   `json:"bio"`
	Email         *string   `json:"email"`
	AvatarURL     *string   `json:"avatarUrl"`
	Website       *string   `json:"website"`
	TwitterHandle *string   `json:"twitterHandle"`
	LensProfileID *string   `json:"lensProfileId"`
	LensHandle    *string   `json:"lensHandle"`
	IsNewUser     bool      `json:"isNewUser"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func newUserResponse(p store.Profile, isNew bool) userResponse {
	return userResponse{
		UserID:        p.ID,
		Address:       p.WalletAddress,
		Role:          string(p.Role),
		FullName:      nullable(p.FullName),
		Bio:           nullable(p.Bio),
		Email:         nullable(p.Email),
		AvatarURL:     nullable(p.AvatarURL),
		Website:       nullable(p.Website),
		TwitterHandle: nullable(p.TwitterHandle),
		LensProfileID: nullable(p.ExternalProfileID),
		LensHandle:    nullable(p.ExternalHandle),
		IsNewUser:     isNew,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type lensProfileResponse struct {
	ID      string       `json:"id"`
	Handle  string       `json:"handle"`
	OwnedBy string       `json:"ownedBy"`
	Stats   social.Stats `json:"stats"`
}

func newLensProfileResponse(sp *social.Profile) *lensProfileResponse {
	if sp == nil {
		return nil
	}
	return &lensProfileResponse{
		ID:      sp.ID,
		Handle:  sp.Handle,
		OwnedBy: sp.OwnedBy,
		Stats:   sp.Stats,
	}
}

type verifyWalletResponse struct {
	Message     string               `json:"message"`
	User        userResponse         `json:"user"`
	LensProfile *lensProfileResponse `json:"lensProfile"`
	Token       string               `json:"token"`
	ExpiresAt   time.Time            `json:"expiresAt"`
}

func verifyMessage(res service.VerifyResult) string {
	msg := "Existing user data updated, wallet verified, role processed."
	if res.IsNewUser {
		msg = "New user created, wallet verified, role processed."
	}
	if res.Social != nil {
		return msg + " Lens profile fetched."
	}
	return msg + " No Lens profile found."
}

func (a *API) handleVerifyWallet(w http.ResponseWriter, r *http.Request) {
	var req verifyWalletRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.HandleErr(w, r, serr.BadRequest(err, "Invalid request body."))
		return
	}

	res, err := a.srv.Verify(r.Context(), service.VerifyRequest{
		Address:   req.WalletAddress,
		Role:      req.Role,
		Fields:    req.profileFields.toService(),
		Signature: req.Signature,
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	status := http.StatusOK
	if res.IsNewUser {
		status = http.StatusCreated
	}

	err = httpx.WriteJSON(w, status, verifyWalletResponse{
		Message:     verifyMessage(res),
		User:        newUserResponse(res.Profile, res.IsNewUser),
		LensProfile: newLensProfileResponse(res.Social),
		Token:       res.Session.Token,
		ExpiresAt:   res.Session.ExpiresAt,
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
}

type nonceResponse struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (a *API) handleNonce(w http.ResponseWriter, r *http.Request) {
	ch, err := a.srv.Challenge(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	err = httpx.WriteJSON(w, http.StatusOK, nonceResponse{
		Nonce:     ch.Nonce,
		Message:   ch.Message,
		ExpiresAt: ch.ExpiresAt,
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
}

type publicProfileResponse struct {
	UserID        *int64        `json:"userId"`
	Address       string        `json:"address"`
	Role          *string       `json:"role"`
	FullName      *string       `json:"fullName"`
	Bio           *string       `json:"bio"`
	Email         *string       `json:"email"`
	AvatarURL     *string       `json:"avatarUrl"`
	Website       *string       `json:"website"`
	TwitterHandle *string       `json:"twitterHandle"`
	LensProfileID *string       `json:"lensProfileId"`
	LensHandle    *string       `json:"lensHandle"`
	LensStats     *social.Stats `json:"lensStats"`
	CreatedAt     *time.Time    `json:"createdAt"`
	UpdatedAt     *time.Time    `json:"updatedAt"`
}

type userProfileResponse struct {
	Message string                `json:"message"`
	Profile publicProfileResponse `json:"profile"`
}

func newPublicProfileResponse(res service.LookupResult) publicProfileResponse {
	v := res.Merged()
	resp := publicProfileResponse{
		Address:       v.Address,
		FullName:      nullable(v.FullName),
		Bio:           nullable(v.Bio),
		Email:         nullable(v.Email),
		AvatarURL:     nullable(v.AvatarURL),
		Website:       nullable(v.Website),
		TwitterHandle: nullable(v.TwitterHandle),
		LensProfileID: nullable(v.LensProfileID),
		LensHandle:    nullable(v.LensHandle),
		LensStats:     v.LensStats,
	}
	if res.Local != nil {
		role := string(v.Role)
		resp.UserID = &v.UserID
		resp.Role = &role
		resp.CreatedAt = &v.CreatedAt
		resp.UpdatedAt = &v.UpdatedAt
	}
	return resp
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	res, err := a.srv.Lookup(r.Context(), r.PathValue("identifier"))
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	err = httpx.WriteJSON(w, http.StatusOK, userProfileResponse{
		Message: "User profile fetched successfully.",
		Profile: newPublicProfileResponse(res),
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
}

type meResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

func (a *API) handleGetMe(w http.ResponseWriter, r *http.Request) {
	p, err := a.srv.Me(r.Context(), middleware.WalletFromContext(r.Context()))
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	err = httpx.WriteJSON(w, http.StatusOK, meResponse{
		Message: "Authenticated user profile fetched successfully.",
		User:    newUserResponse(p, false),
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
}

func (a *API) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req profileFields
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.HandleErr(w, r, serr.BadRequest(err, "Invalid request body."))
		return
	}

	p, err := a.srv.UpdateProfile(r.Context(), middleware.WalletFromContext(r.Context()), req.toService())
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	err = httpx.WriteJSON(w, http.StatusOK, meResponse{
		Message: "Profile updated successfully.",
		User:    newUserResponse(p, false),
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
}

func (a *API) handleLensProfile(w http.ResponseWriter, r *http.Request) {
	sp, err := a.srv.SocialProfile(r.Context(), r.PathValue("handle"))
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	if err := httpx.WriteJSON(w, http.StatusOK, sp); err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
}

type followsResponse struct {
	Following bool `json:"following"`
}

func (a *API) handleLensFollows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	following, err := a.srv.Follows(r.Context(), q.Get("observer"), q.Get("profileId"))
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	if err := httpx.WriteJSON(w, http.StatusOK, followsResponse{Following: following}); err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
}
