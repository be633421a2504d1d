package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/snarg/stt-gateway/internal/credstore"
	"github.com/snarg/stt-gateway/internal/metrics"
	"github.com/snarg/stt-gateway/internal/speech"
)

var (
	// ErrUnknownProvider means the id names no registered backend.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrNotConfigured means the backend exists but the store lacks the
	// credential fields its auth family requires.
	ErrNotConfigured = errors.New("provider not configured")
)

// ProviderSource constructs configured providers on demand from the current
// credential snapshot. Providers are cheap per-request values; nothing is
// cached, so a hot-reloaded credential file takes effect on the next call.
type ProviderSource struct {
	store *credstore.Store
	opts  speech.Options
}

func NewProviderSource(store *credstore.Store, opts speech.Options) *ProviderSource {
	return &ProviderSource{store: store, opts: opts}
}

// Provider returns a ready provider for id, or a typed error when the id is
// unknown or its credentials are incomplete. Callers own Release.
func (s *ProviderSource) Provider(id string) (speech.Provider, error) {
	desc, ok := speech.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	creds, _ := s.store.Get(id)
	if !speech.HasRequired(desc.Auth, creds) {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, id)
	}

	opts := s.opts
	opts.Retry.OnRetry = func(int, error, time.Duration) {
		metrics.ProviderRetriesTotal.WithLabelValues(id).Inc()
	}
	p := speech.New(id, creds, opts)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	return p, nil
}

// Configured reports whether id has every credential field its auth family
// requires.
func (s *ProviderSource) Configured(id string) bool {
	desc, ok := speech.Lookup(id)
	if !ok {
		return false
	}
	creds, _ := s.store.Get(id)
	return speech.HasRequired(desc.Auth, creds)
}

// ConfiguredCount returns how many registered providers are usable right now.
func (s *ProviderSource) ConfiguredCount() int {
	n := 0
	for _, d := range speech.Descriptors() {
		if s.Configured(d.ID) {
			n++
		}
	}
	return n
}

// providerStatus maps a Provider() failure onto an HTTP status.
func providerStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnknownProvider):
		return http.StatusNotFound
	case errors.Is(err, ErrNotConfigured):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
