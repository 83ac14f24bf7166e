package carrier

import (
	"context"
	"sync"
	"time"
)

// tokenExpiryMargin is subtracted from the provider's TTL so a token is
// never used right at its expiry boundary.
const tokenExpiryMargin = 60 * time.Second

// tokenSource caches one bearer token and re-fetches it transparently once
// the (margin-adjusted) TTL passes. The mutex makes refresh races harmless:
// the worst case is one redundant authentication call.
type tokenSource struct {
	mu        sync.Mutex
	fetch     func(ctx context.Context) (token string, ttl time.Duration, err error)
	token     string
	expiresAt time.Time
}

func newTokenSource(fetch func(ctx context.Context) (string, time.Duration, error)) *tokenSource {
	return &tokenSource{fetch: fetch}
}

// Token returns the cached token while unexpired, otherwise fetches a new one.
func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Now().Before(t.expiresAt) {
		return t.token, nil
	}

	token, ttl, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}

	t.token = token
	t.expiresAt = time.Now().Add(ttl - tokenExpiryMargin)
	return token, nil
}

// Invalidate drops the cached token, forcing the next Token call to re-fetch.
func (t *tokenSource) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = ""
}
