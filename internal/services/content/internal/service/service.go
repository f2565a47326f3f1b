package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/decentrahub/hub/internal/pkg/events"
	"github.com/decentrahub/hub/internal/pkg/metrics"
	"github.com/decentrahub/hub/internal/services/content/internal/minter"
)

type pinner interface {
	PinJSON(ctx context.Context, v any) (string, error)
	PinFile(ctx context.Context, name string, r io.Reader) (string, error)
}

type nftMinter interface {
	Mint(ctx context.Context, creator, metadataURL string) (minter.Result, error)
}

type publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// MediaLimits bound uploaded media. Width and height apply to images only.
type MediaLimits struct {
	MaxSize   int64
	MaxWidth  int
	MaxHeight int
}

// Content pins creator media and mints it as Smart Media NFTs.
type Content struct {
	pinner      pinner
	minter      nftMinter
	events      publisher
	metrics     *metrics.Metrics
	limits      MediaLimits
	externalURL string
	appID       string
}

type ContentOption func(*Content) *Content

func WithPinner(p pinner) ContentOption {
	return func(c *Content) *Content {
		c.pinner = p
		return c
	}
}

func WithMinter(m nftMinter) ContentOption {
	return func(c *Content) *Content {
		c.minter = m
		return c
	}
}

func WithEvents(p publisher) ContentOption {
	return func(c *Content) *Content {
		c.events = p
		return c
	}
}

func WithMetrics(m *metrics.Metrics) ContentOption {
	return func(c *Content) *Content {
		c.metrics = m
		return c
	}
}

func WithMediaLimits(l MediaLimits) ContentOption {
	return func(c *Content) *Content {
		c.limits = l
		return c
	}
}

// WithExternalURL sets the base of the external_url written into NFT metadata.
func WithExternalURL(base string) ContentOption {
	return func(c *Content) *Content {
		c.externalURL = base
		return c
	}
}

func WithAppID(id string) ContentOption {
	return func(c *Content) *Content {
		c.appID = id
		return c
	}
}

func NewContent(opts ...ContentOption) *Content {
	c := &Content{
		events: events.Nop{},
		limits: MediaLimits{
			MaxSize:   50 << 20,
			MaxWidth:  4096,
			MaxHeight: 4096,
		},
		externalURL: "https://decentrahub.xyz",
		appID:       "DecentraHub",
	}
	for _, opt := range opts {
		c = opt(c)
	}

	if c.pinner == nil {
		panic("pinner is required")
	}

	if c.minter == nil {
		panic("minter is required")
	}

	return c
}

func (c *Content) publish(ctx context.Context, e events.Event) {
	if err := c.events.Publish(ctx, e); err != nil {
		slog.Warn("failed to publish event", "type", e.Type, "key", e.Key, "error", err)
	}
}

func (c *Content) outcome(op string, err error) {
	if c.metrics != nil {
		c.metrics.Outcome(op, err)
	}
}
