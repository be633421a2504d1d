package api

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/stt-gateway/internal/audio"
	"github.com/snarg/stt-gateway/internal/credstore"
	"github.com/snarg/stt-gateway/internal/retry"
	"github.com/snarg/stt-gateway/internal/speech"
)

// newTestStore loads a credential store from literal JSON.
func newTestStore(t *testing.T, contents string) *credstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
	s := credstore.New(path, zerolog.Nop())
	if err := s.Load(); err != nil {
		t.Fatalf("load credentials: %v", err)
	}
	return s
}

// testSource builds a provider source with fast retry and poll tuning.
func testSource(t *testing.T, contents string) *ProviderSource {
	t.Helper()
	opts := speech.Options{
		HTTPTimeout:  5 * time.Second,
		Retry:        retry.Config{Attempts: 1, BaseDelay: time.Millisecond},
		PollInterval: time.Millisecond,
		PollAttempts: 5,
		Logger:       zerolog.Nop(),
	}
	return NewProviderSource(newTestStore(t, contents), opts)
}

// whisperCreds configures the whisper backend against a local test server.
// Whisper honors service_url, which makes it the one backend a handler test
// can exercise end to end without real credentials.
func whisperCreds(serviceURL string) string {
	return fmt.Sprintf(`{"whisper": {"api_key": "sk-test", "service_url": %q}}`, serviceURL)
}

// testPCM is 500ms of canonical PCM, comfortably above every provider floor.
func testPCM() []byte {
	pcm := audio.Silence(500 * time.Millisecond)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	return pcm
}

// shortPCM is 50ms of canonical PCM, below the 100ms minimum-duration floor.
func shortPCM() []byte {
	return audio.Silence(50 * time.Millisecond)
}
