package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ProfileFields are the optional profile values. A nil field is left out of the
// request so the server keeps what it has; a pointer to "" clears the value.
type ProfileFields struct {
	FullName      *string `json:"fullName,omitempty"`
	Bio           *string `json:"bio,omitempty"`
	Email         *string `json:"email,omitempty"`
	AvatarURL     *string `json:"avatarUrl,omitempty"`
	Website       *string `json:"website,omitempty"`
	TwitterHandle *string `json:"twitterHandle,omitempty"`
}

type VerifyRequest struct {
	WalletAddress string `json:"walletAddress"`
	Role          string `json:"role"`
	Signature     string `json:"signature,omitempty"`
	ProfileFields
}

type User struct {
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

type LensStats struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
	Posts     int64 `json:"posts"`
}

type LensProfile struct {
	ID      string    `json:"id"`
	Handle  string    `json:"handle"`
	OwnedBy string    `json:"ownedBy"`
	Stats   LensStats `json:"stats"`
}

type VerifyResult struct {
	Message     string       `json:"message"`
	User        User         `json:"user"`
	LensProfile *LensProfile `json:"lensProfile"`
	Token       string       `json:"token"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}

type meResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
}

// APIError is a non-2xx answer from the backend. Message is meant for the user,
// Detail names what collided on a conflict.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%d: %s (%s)", e.StatusCode, e.Message, e.Detail)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Conflict() bool {
	return e.StatusCode == http.StatusConflict
}

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

type ClientOption func(*Client) *Client

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) *Client {
		cl.http = c
		return cl
	}
}

// WithTimeout bounds every request. It applies to a copy of the HTTP client,
// so a client passed to WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) *Client {
		cl.timeout = d
		return cl
	}
}

// NewClient talks to the API behind baseURL, usually the gateway.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		c = opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

func (c *Client) VerifyWallet(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	var res VerifyResult
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/verify-wallet", "", req, &res)
	return res, err
}

func (c *Client) UpdateProfile(ctx context.Context, token string, fields ProfileFields) (User, error) {
	var res meResponse
	if err := c.do(ctx, http.MethodPut, "/api/v1/users/profile/me", token, fields, &res); err != nil {
		return User{}, err
	}
	return res.User, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func apiError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	e := &APIError{StatusCode: resp.StatusCode}
	if gjson.ValidBytes(raw) {
		e.Message = gjson.GetBytes(raw, "message").String()
		e.Detail = gjson.GetBytes(raw, "error").String()
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
