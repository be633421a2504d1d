package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestElevenLabs_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speech-to-text" {
			t.Errorf("path = %q, want /speech-to-text", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "xi-test" {
			t.Errorf("xi-api-key = %q, want xi-test", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := r.FormValue("model_id"); got != "scribe_v1" {
			t.Errorf("model_id = %q, want scribe_v1", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "dispatch to main", "language_code": "en"})
	}))
	defer srv.Close()

	p := newElevenLabs(mustLookup(t, ProviderElevenLabs), Credentials{APIKey: "xi-test"}, testOptions())
	p.baseURL = srv.URL

	res, err := p.Transcribe(context.Background(), testPCM(), "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "dispatch to main" {
		t.Errorf("Text = %q, want %q", res.Text, "dispatch to main")
	}
}

func TestElevenLabs_KeyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := newElevenLabs(mustLookup(t, ProviderElevenLabs), Credentials{APIKey: "bad"}, testOptions())
	p.baseURL = srv.URL

	err := p.ValidateCredentials(context.Background())
	if got := ValidationCodeOf(err); got != ValidationInvalidCredentials {
		t.Errorf("ValidationCodeOf = %v, want %v", got, ValidationInvalidCredentials)
	}
}
