package notify

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// refreshMargin is how long before expiry a cached token is replaced.
const refreshMargin = 10 * time.Minute

// FetchFunc obtains a fresh access token and its lifetime.
type FetchFunc func(ctx context.Context) (string, time.Duration, error)

// TokenCache holds one access token and refreshes it shortly before it expires.
type TokenCache struct {
	fetch FetchFunc
	now   func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenCache(fetch FetchFunc) *TokenCache {
	return &TokenCache{fetch: fetch, now: time.Now}
}

func (c *TokenCache) Get(ctx context.Context) (string, error) {
	const op = "notify.TokenCache.Get"

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && now.Before(c.expiresAt.Add(-refreshMargin)) {
		return c.token, nil
	}

	token, ttl, err := c.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	c.token = token
	c.expiresAt = now.Add(ttl)

	return token, nil
}

// Invalidate drops the cached token so the next Get fetches a new one.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}
