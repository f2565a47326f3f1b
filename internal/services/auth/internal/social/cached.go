package social

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cached memoizes positive lookups of another Lookup for a fixed TTL.
type Cached struct {
	next  Lookup
	cache *ristretto.Cache[string, Profile]
	ttl   time.Duration
}

func NewCached(next Lookup, maxKeys int64, ttl time.Duration) *Cached {
	c, err := ristretto.NewCache(&ristretto.Config[string, Profile]{
		NumCounters:        maxKeys * 10,
		MaxCost:            maxKeys,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to create social profile cache: %v", err))
	}

	return &Cached{next: next, cache: c, ttl: ttl}
}

func (c *Cached) ByHandle(ctx context.Context, handle string) *Profile {
	return c.lookup("handle:"+strings.ToLower(handle), func() *Profile {
		return c.next.ByHandle(ctx, handle)
	})
}

func (c *Cached) ByAddress(ctx context.Context, address string) *Profile {
	return c.lookup("addr:"+strings.ToLower(address), func() *Profile {
		return c.next.ByAddress(ctx, address)
	})
}

func (c *Cached) Follows(ctx context.Context, observerAddress, profileID string) bool {
	return c.next.Follows(ctx, observerAddress, profileID)
}

func (c *Cached) Close() {
	c.cache.Close()
}

func (c *Cached) lookup(key string, fetch func() *Profile) *Profile {
	if p, ok := c.cache.Get(key); ok {
		return &p
	}

	p := fetch()
	if p == nil {
		return nil
	}

	c.cache.SetWithTTL(key, *p, 1, c.ttl)
	c.cache.Wait()

	cp := *p
	return &cp
}
