// Package credstore loads per-provider credentials from a JSON file and
// overlays them with environment variables. The file maps provider ids to
// flat secret fields:
//
//	{
//	  "deepgram": {"api_key": "..."},
//	  "iflytek":  {"app_id": "...", "api_key": "...", "api_secret": "..."}
//	}
//
// Environment variables of the form STT_<PROVIDER>_<FIELD> override file
// values, e.g. STT_DEEPGRAM_API_KEY or STT_AWS_SECRET_KEY. The store only
// ever reads; it never writes secrets anywhere, including its logs.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/snarg/stt-gateway/internal/speech"
)

const reloadDebounce = 500 * time.Millisecond

// Store holds the current credential set and hot-reloads it when the backing
// file changes.
type Store struct {
	path string
	log  zerolog.Logger

	mu    sync.RWMutex
	creds map[string]speech.Credentials

	watcher *fsnotify.Watcher

	// Debounce: coalesce rapid Create+Write events on the same file.
	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	reloads        atomic.Int64
	reloadFailures atomic.Int64
}

// New returns a Store backed by the JSON file at path. Call Load before
// serving requests; call Watch to hot-reload on file changes.
func New(path string, log zerolog.Logger) *Store {
	return &Store{
		path:  path,
		log:   log.With().Str("component", "credstore").Logger(),
		creds: make(map[string]speech.Credentials),
	}
}

// Load reads the credentials file and applies the environment overlay. A
// missing file is not an error: the store starts empty and environment
// variables alone can supply credentials.
func (s *Store) Load() error {
	creds, err := s.read()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		s.log.Debug().Str("path", s.path).Msg("credentials file not found, using environment only")
		creds = make(map[string]speech.Credentials)
	}
	applyEnv(creds)

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
	return nil
}

// Get returns the credentials for a provider id. The returned value is a
// copy; callers cannot mutate the store through it.
func (s *Store) Get(id string) (speech.Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[id]
	return c, ok
}

// Snapshot returns a copy of every stored credential set, keyed by provider id.
func (s *Store) Snapshot() map[string]speech.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]speech.Credentials, len(s.creds))
	for id, c := range s.creds {
		out[id] = c
	}
	return out
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Providers returns how many provider ids currently have credentials.
func (s *Store) Providers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}

// Reloads returns how many file changes have been applied since Watch started.
func (s *Store) Reloads() int64 {
	return s.reloads.Load()
}

// ReloadFailures returns how many file changes failed to parse. A failed
// reload keeps the previous credential set.
func (s *Store) ReloadFailures() int64 {
	return s.reloadFailures.Load()
}

// Watch starts an fsnotify watcher that hot-reloads the file on change. It
// watches the containing directory rather than the file itself so that
// rename-replace writes (editors, configmap mounts) keep working.
func (s *Store) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return err
	}
	s.watcher = w

	go s.watchLoop()

	s.log.Info().Str("path", s.path).Msg("watching credentials file")
	return nil
}

// Stop closes the watcher and cancels any pending debounced reload.
func (s *Store) Stop() {
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.debounceMu.Lock()
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	s.debounceMu.Unlock()
}

func (s *Store) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			s.scheduleReload()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleReload debounces reloads by 500ms. This coalesces rapid
// Create+Write events and ensures the file is fully written before reading.
func (s *Store) scheduleReload() {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()

	if s.debounceTimer != nil {
		s.debounceTimer.Reset(reloadDebounce)
		return
	}
	s.debounceTimer = time.AfterFunc(reloadDebounce, func() {
		s.debounceMu.Lock()
		s.debounceTimer = nil
		s.debounceMu.Unlock()

		s.reload()
	})
}

// reload re-reads the file. On any error, including the file vanishing
// mid-replace, the previous credential set stays in effect.
func (s *Store) reload() {
	creds, err := s.read()
	if err != nil {
		s.reloadFailures.Add(1)
		s.log.Warn().Err(err).Str("path", s.path).Msg("credentials reload failed, keeping previous set")
		return
	}
	applyEnv(creds)

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()

	s.reloads.Add(1)
	s.log.Info().Int("providers", len(creds)).Msg("credentials reloaded")
}

func (s *Store) read() (map[string]speech.Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var creds map[string]speech.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if creds == nil {
		creds = make(map[string]speech.Credentials)
	}
	return creds, nil
}

var envFields = []struct {
	suffix string
	set    func(*speech.Credentials, string)
}{
	{"API_KEY", func(c *speech.Credentials, v string) { c.APIKey = v }},
	{"API_SECRET", func(c *speech.Credentials, v string) { c.APISecret = v }},
	{"APP_ID", func(c *speech.Credentials, v string) { c.AppID = v }},
	{"ACCESS_KEY", func(c *speech.Credentials, v string) { c.AccessKey = v }},
	{"SECRET_KEY", func(c *speech.Credentials, v string) { c.SecretKey = v }},
	{"REGION", func(c *speech.Credentials, v string) { c.Region = v }},
	{"SERVICE_URL", func(c *speech.Credentials, v string) { c.ServiceURL = v }},
	{"PROJECT_ID", func(c *speech.Credentials, v string) { c.ProjectID = v }},
	{"SERVICE_ACCOUNT", func(c *speech.Credentials, v string) { c.ServiceAccount = v }},
}

// applyEnv overlays STT_<PROVIDER>_<FIELD> environment variables onto creds,
// creating entries for providers configured through the environment alone.
func applyEnv(creds map[string]speech.Credentials) {
	for _, d := range speech.Descriptors() {
		prefix := "STT_" + strings.ToUpper(d.ID) + "_"
		c := creds[d.ID]
		changed := false
		for _, f := range envFields {
			if v, ok := os.LookupEnv(prefix + f.suffix); ok && v != "" {
				f.set(&c, v)
				changed = true
			}
		}
		if changed {
			creds[d.ID] = c
		}
	}
}
