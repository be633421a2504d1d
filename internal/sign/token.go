package sign

import (
	"context"
	"sync"
	"time"
)

// DefaultRefreshMargin is how much validity must remain on a cached token
// before it is considered usable; tokens closer to expiry are refreshed.
const DefaultRefreshMargin = 5 * time.Minute

// Token is a bearer credential with an absolute expiry.
type Token struct {
	Value  string
	Expiry time.Time
}

// TokenSource caches a bearer token obtained from a client-credentials style
// exchange (Baidu OAuth, IBM IAM). The fetch runs while the mutex is held, so
// concurrent callers seeing an expired token wait for the one in-flight
// exchange instead of issuing their own; each caller re-checks the cache
// after acquiring the lock.
type TokenSource struct {
	fetch  func(ctx context.Context) (Token, error)
	margin time.Duration

	mu  sync.Mutex
	tok Token
}

// NewTokenSource builds a source around fetch. A margin of zero uses
// DefaultRefreshMargin.
func NewTokenSource(fetch func(ctx context.Context) (Token, error), margin time.Duration) *TokenSource {
	if margin <= 0 {
		margin = DefaultRefreshMargin
	}
	return &TokenSource{fetch: fetch, margin: margin}
}

// Token returns the cached value while it retains more than the refresh
// margin of validity, otherwise performs a single-flight refresh.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.tok.Value != "" && time.Now().Add(ts.margin).Before(ts.tok.Expiry) {
		return ts.tok.Value, nil
	}

	tok, err := ts.fetch(ctx)
	if err != nil {
		return "", err
	}
	ts.tok = tok
	return tok.Value, nil
}

// Invalidate drops the cached token so the next Token call refreshes.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	ts.tok = Token{}
	ts.mu.Unlock()
}
