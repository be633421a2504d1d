// Package speech implements a uniform transcription contract over cloud
// speech-to-text backends. Callers obtain a Provider from the Registry,
// hand it canonical PCM (16 kHz, mono, 16-bit little-endian), and get back
// a Result or a coded Error regardless of which vendor sits behind it.
//
// Providers differ in three dimensions the package absorbs: how requests
// are authenticated (internal/sign), how audio travels (single REST call,
// upload-and-poll, or realtime WebSocket), and how responses are shaped.
// Each provider file owns the vendor-specific parts; the shared transport
// drivers in rest.go, poll.go and stream.go own everything else.
package speech

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/stt-gateway/internal/retry"
)

// Provider is the interface every speech-to-text backend implements.
// Transcribe takes canonical PCM; TranscribeFile takes a pre-encoded
// container (WAV, MP3, ...) for backends that accept uploads directly.
type Provider interface {
	// Transcribe converts canonical PCM audio to text. It fails fast with
	// ErrAudioTooShort below the provider's minimum-duration floor, before
	// any network traffic.
	Transcribe(ctx context.Context, pcm []byte, language string) (*Result, error)

	// TranscribeFile converts pre-encoded audio to text. mimeType names the
	// container ("audio/wav", "audio/mpeg"); providers that only accept raw
	// PCM re-encode or reject as appropriate.
	TranscribeFile(ctx context.Context, data []byte, mimeType, language string) (*Result, error)

	// ValidateCredentials performs a cheap authenticated call and reports
	// whether the stored credentials work. Failures carry a ValidationCode.
	ValidateCredentials(ctx context.Context) error

	// Descriptor returns the provider's immutable identity record.
	Descriptor() Descriptor

	// Release frees pooled connections. The provider must not be used after.
	Release()
}

// Options tune transport behavior shared by all providers. The zero value
// is not usable; start from DefaultOptions.
type Options struct {
	// HTTPTimeout bounds each individual HTTP exchange.
	HTTPTimeout time.Duration
	// StreamTimeout overrides the descriptor's realtime deadline when set.
	StreamTimeout time.Duration
	// Retry governs re-execution of transient network failures.
	Retry retry.Config
	// PollInterval and PollAttempts bound async upload-and-poll loops.
	PollInterval time.Duration
	PollAttempts int
	// Logger receives per-call diagnostics. Defaults to a no-op logger.
	Logger zerolog.Logger
}

// DefaultOptions returns the tuning used when callers pass nothing:
// 30s per HTTP exchange, 60x1s polling, three linear-backoff attempts.
func DefaultOptions() Options {
	return Options{
		HTTPTimeout:  30 * time.Second,
		Retry:        retry.DefaultConfig(),
		PollInterval: time.Second,
		PollAttempts: 60,
		Logger:       zerolog.Nop(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = d.HTTPTimeout
	}
	if o.Retry.Attempts <= 0 {
		o.Retry = d.Retry
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.PollAttempts <= 0 {
		o.PollAttempts = d.PollAttempts
	}
	return o
}

// client is the shared base embedded by every provider: descriptor,
// credentials, tuned options, one HTTP client, and a scoped logger.
type client struct {
	desc  Descriptor
	creds Credentials
	opts  Options
	httpc *http.Client
	log   zerolog.Logger
}

func newClient(desc Descriptor, creds Credentials, opts Options) client {
	opts = opts.withDefaults()
	return client{
		desc:  desc,
		creds: creds,
		opts:  opts,
		httpc: &http.Client{Timeout: opts.HTTPTimeout},
		log:   opts.Logger.With().Str("provider", desc.ID).Logger(),
	}
}

// Descriptor returns the provider's identity record.
func (c *client) Descriptor() Descriptor { return c.desc }

// Release drops pooled keep-alive connections.
func (c *client) Release() { c.httpc.CloseIdleConnections() }

// checkAudio enforces the minimum-duration floor before any network call.
func (c *client) checkAudio(pcm []byte) error {
	if min := c.desc.minAudioBytes(); len(pcm) < min {
		return newError(ErrAudioTooShort, "audio too short: %d bytes, need at least %d", len(pcm), min)
	}
	return nil
}

// streamDeadline resolves the realtime timeout: explicit option first,
// then the descriptor's per-provider value.
func (c *client) streamDeadline() time.Duration {
	if c.opts.StreamTimeout > 0 {
		return c.opts.StreamTimeout
	}
	return c.desc.streamTimeout()
}

// result builds a Result stamped with this provider's identity.
func (c *client) result(text, language, model string) *Result {
	return &Result{
		Text:     text,
		Language: language,
		Provider: c.desc.ID,
		Model:    model,
	}
}
