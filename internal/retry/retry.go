// Package retry provides a bounded retry harness for provider transport
// calls. Only network-class failures are retried; everything else aborts
// after the first attempt.
package retry

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
	"time"
)

// Config controls retry behavior for a single wrapped operation.
type Config struct {
	// Attempts is the total attempt budget, including the first try.
	Attempts int
	// BaseDelay is multiplied by the attempt number for linear backoff
	// (attempt 1 failing waits 1×BaseDelay, attempt 2 waits 2×BaseDelay).
	BaseDelay time.Duration
	// RetryIf overrides the default network-class classifier.
	RetryIf func(error) bool
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns the shared provider defaults: three attempts with a
// 500ms linear backoff step.
func DefaultConfig() Config {
	return Config{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
	}
}

// Do runs fn up to cfg.Attempts times, sleeping attempt×BaseDelay between
// tries. A failure is retried only when the classifier reports it as
// network-class; other failures are returned immediately. Context
// cancellation aborts between attempts and during backoff.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = IsNetworkError
	}

	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryIf(err) {
			return zero, err
		}
		if attempt == cfg.Attempts {
			break
		}

		delay := time.Duration(attempt) * cfg.BaseDelay
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// Func runs an operation that returns only an error.
func Func(ctx context.Context, cfg Config, fn func() error) error {
	_, err := Do(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// networkErrorPatterns catches wrapped transport failures whose types were
// flattened into strings by an intermediate layer.
var networkErrorPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"tls handshake timeout",
	"unexpected eof",
}

// IsNetworkError reports whether err is a transient network-class failure:
// DNS resolution, connect/reset/timeout from the socket layer, or a known
// transport message pattern. Context cancellation is never network-class.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range networkErrorPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
