package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/decentrahub/hub/internal/pkg/metrics"
	"github.com/tidwall/gjson"
)

const maxResponseBytes = 1 << 20

const profileFields = `
	id
	ownedBy { address }
	handle { fullHandle localName }
	metadata {
		displayName
		bio
		picture {
			... on ImageSet { optimized { uri } raw { uri } }
			... on NftImage { image { optimized { uri } raw { uri } } }
		}
	}
	stats { followers following posts }`

const (
	profileByHandleQuery = `query Profile($handle: Handle!) {
	profile(request: { forHandle: $handle }) {` + profileFields + `
	}
}`

	defaultProfileQuery = `query DefaultProfile($address: EvmAddress!) {
	defaultProfile(request: { for: $address }) {` + profileFields + `
	}
}`

	ownedProfilesQuery = `query Profiles($address: EvmAddress!) {
	profiles(request: { where: { ownedBy: [$address] }, limit: Fifty }) {
		items {` + profileFields + `
		}
	}
}`

	followingQuery = `query Following($id: ProfileId!) {
	following(request: { for: $id, limit: Fifty }) {
		items { id }
	}
}`
)

var pictureURLPaths = []string{
	"optimized.uri",
	"raw.uri",
	"original.url",
	"uri",
	"url",
	"image.optimized.uri",
	"image.raw.uri",
}

var errUpstream = errors.New("lens upstream error")

type LensConfig struct {
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

// Lens queries the Lens v2 GraphQL API.
type Lens struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	metrics  *metrics.Metrics
}

func NewLens(cfg LensConfig) *Lens {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Lens{
		endpoint: cfg.Endpoint,
		timeout:  timeout,
		client:   client,
		metrics:  cfg.Metrics,
	}
}

// ByHandle looks up a profile by handle. ByHandle, ByAddress and Follows each
// run under a single deadline of the configured timeout.
func (l *Lens) ByHandle(ctx context.Context, handle string) *Profile {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	data, err := l.query(ctx, profileByHandleQuery, map[string]any{"handle": handle})
	if err != nil {
		slog.Warn("lens profile lookup failed", "handle", handle, "error", err)
		return nil
	}

	return parseProfile(data.Get("profile"))
}

// ByAddress returns the default profile of address, falling back to the first
// profile it owns in upstream order.
func (l *Lens) ByAddress(ctx context.Context, address string) *Profile {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	return l.byAddress(ctx, address)
}

func (l *Lens) byAddress(ctx context.Context, address string) *Profile {
	data, err := l.query(ctx, defaultProfileQuery, map[string]any{"address": address})
	if err != nil {
		slog.Warn("lens default profile lookup failed", "address", address, "error", err)
		return nil
	}
	if p := parseProfile(data.Get("defaultProfile")); p != nil {
		return p
	}

	data, err = l.query(ctx, ownedProfilesQuery, map[string]any{"address": address})
	if err != nil {
		slog.Warn("lens owned profiles lookup failed", "address", address, "error", err)
		return nil
	}

	for _, item := range data.Get("profiles.items").Array() {
		if p := parseProfile(item); p != nil {
			return p
		}
	}
	return nil
}

// Follows reports whether the profile of observerAddress follows profileID.
// Only the first page of followed profiles is inspected.
func (l *Lens) Follows(ctx context.Context, observerAddress, profileID string) bool {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	observer := l.byAddress(ctx, observerAddress)
	if observer == nil {
		return false
	}

	data, err := l.query(ctx, followingQuery, map[string]any{"id": observer.ID})
	if err != nil {
		slog.Warn("lens following lookup failed", "observer", observer.ID, "error", err)
		return false
	}

	for _, item := range data.Get("following.items").Array() {
		if item.Get("id").String() == profileID {
			return true
		}
	}
	return false
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func (l *Lens) query(ctx context.Context, query string, vars map[string]any) (res gjson.Result, err error) {
	if l.metrics != nil {
		defer func(start time.Time) { l.metrics.ObserveUpstream("lens", start, err) }(time.Now())
	}

	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("%w: status %d", errUpstream, resp.StatusCode)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("%w: malformed json", errUpstream)
	}

	doc := gjson.ParseBytes(raw)
	if errs := doc.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		return gjson.Result{}, fmt.Errorf("%w: %s", errUpstream, errs.Get("0.message").String())
	}

	return doc.Get("data"), nil
}

// parseProfile extracts a profile from a Lens payload. Anything without an id is absent.
func parseProfile(res gjson.Result) *Profile {
	if !res.IsObject() {
		return nil
	}

	id := strings.TrimSpace(res.Get("id").String())
	if id == "" {
		return nil
	}

	handle := res.Get("handle.fullHandle").String()
	if handle == "" {
		handle = res.Get("handle.localName").String()
	}

	return &Profile{
		ID:          id,
		Handle:      handle,
		OwnedBy:     res.Get("ownedBy.address").String(),
		DisplayName: res.Get("metadata.displayName").String(),
		Bio:         res.Get("metadata.bio").String(),
		PictureURL:  pictureURL(res.Get("metadata.picture")),
		Stats: Stats{
			Followers: res.Get("stats.followers").Int(),
			Following: res.Get("stats.following").Int(),
			Posts:     res.Get("stats.posts").Int(),
		},
	}
}

func pictureURL(pic gjson.Result) string {
	if !pic.IsObject() {
		return ""
	}

	for _, path := range pictureURLPaths {
		if v := pic.Get(path); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
