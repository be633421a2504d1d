package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestAssemblyAI(t *testing.T, srvURL string) *assemblyAIProvider {
	t.Helper()
	p := newAssemblyAI(mustLookup(t, ProviderAssemblyAI), Credentials{APIKey: "aai-key"}, testOptions())
	p.baseURL = srvURL
	return p
}

// The full async pipeline: upload, create, then poll until completed.
func TestAssemblyAI_UploadAndPoll(t *testing.T) {
	var uploads, creates, polls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("authorization"); got != "aai-key" {
			t.Errorf("authorization = %q, want aai-key", got)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload":
			uploads.Add(1)
			json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/audio/1"})
		case r.Method == http.MethodPost && r.URL.Path == "/transcript":
			creates.Add(1)
			var req map[string]string
			json.NewDecoder(r.Body).Decode(&req)
			if req["audio_url"] != "https://cdn.example/audio/1" {
				t.Errorf("audio_url = %q, want uploaded url", req["audio_url"])
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "tx-123", "status": "queued"})
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/transcript/"):
			if r.URL.Path != "/transcript/tx-123" {
				t.Errorf("poll path = %q, want /transcript/tx-123", r.URL.Path)
			}
			n := polls.Add(1)
			status := "processing"
			text := ""
			if n >= 2 {
				status = "completed"
				text = "Hello world"
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "tx-123", "status": status, "text": text})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := newTestAssemblyAI(t, srv.URL)
	res, err := p.Transcribe(context.Background(), testPCM(), "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "Hello world" {
		t.Errorf("Text = %q, want %q", res.Text, "Hello world")
	}
	if uploads.Load() != 1 || creates.Load() != 1 || polls.Load() != 2 {
		t.Errorf("calls = %d uploads, %d creates, %d polls; want 1, 1, 2",
			uploads.Load(), creates.Load(), polls.Load())
	}
}

func TestAssemblyAI_JobFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/upload":
			json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/audio/2"})
		case r.URL.Path == "/transcript" && r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]string{"id": "tx-bad", "status": "queued"})
		default:
			json.NewEncoder(w).Encode(map[string]string{"id": "tx-bad", "status": "error", "error": "codec unsupported"})
		}
	}))
	defer srv.Close()

	p := newTestAssemblyAI(t, srv.URL)
	_, err := p.Transcribe(context.Background(), testPCM(), "en")
	if got := CodeOf(err); got != ErrTranscriptionError {
		t.Errorf("CodeOf = %v, want %v", got, ErrTranscriptionError)
	}
	if err == nil || !strings.Contains(err.Error(), "codec unsupported") {
		t.Errorf("error = %v, want provider message included", err)
	}
}

func TestAssemblyAI_PollBudgetExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/upload":
			json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/audio/3"})
		case r.URL.Path == "/transcript" && r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]string{"id": "tx-slow", "status": "queued"})
		default:
			json.NewEncoder(w).Encode(map[string]string{"id": "tx-slow", "status": "processing"})
		}
	}))
	defer srv.Close()

	opts := testOptions()
	opts.PollAttempts = 3
	p := newAssemblyAI(mustLookup(t, ProviderAssemblyAI), Credentials{APIKey: "aai-key"}, opts)
	p.baseURL = srv.URL

	_, err := p.Transcribe(context.Background(), testPCM(), "en")
	if got := CodeOf(err); got != ErrTranscriptionTimeout {
		t.Errorf("CodeOf = %v, want %v", got, ErrTranscriptionTimeout)
	}
}

func TestAssemblyAI_UploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"storage full"}`, http.StatusInsufficientStorage)
	}))
	defer srv.Close()

	p := newTestAssemblyAI(t, srv.URL)
	_, err := p.Transcribe(context.Background(), testPCM(), "en")
	if got := CodeOf(err); got != ErrUploadFailed {
		t.Errorf("CodeOf = %v, want %v", got, ErrUploadFailed)
	}
}

func TestAssemblyAI_CreateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/upload" {
			json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/audio/4"})
			return
		}
		http.Error(w, `{"error":"bad language"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p := newTestAssemblyAI(t, srv.URL)
	_, err := p.Transcribe(context.Background(), testPCM(), "en")
	if got := CodeOf(err); got != ErrCreateTranscriptFailed {
		t.Errorf("CodeOf = %v, want %v", got, ErrCreateTranscriptFailed)
	}
}

func TestJobOutcome(t *testing.T) {
	tests := []struct {
		status string
		done   bool
		failed bool
	}{
		{"completed", true, false},
		{"COMPLETED", true, false},
		{"error", false, true},
		{"failed", false, true},
		{"queued", false, false},
		{"processing", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%s", tt.status), func(t *testing.T) {
			done, failed := jobOutcome(tt.status)
			if done != tt.done || failed != tt.failed {
				t.Errorf("jobOutcome(%q) = (%v, %v), want (%v, %v)", tt.status, done, failed, tt.done, tt.failed)
			}
		})
	}
}
