package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestIBM(t *testing.T, srvURL string) *ibmProvider {
	t.Helper()
	p := newIBM(mustLookup(t, ProviderIBM), Credentials{APIKey: "iam-key", ServiceURL: srvURL}, testOptions())
	p.tokenURL = srvURL + "/identity/token"
	return p
}

func TestIBM_Transcribe(t *testing.T) {
	var tokenCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/identity/token":
			tokenCalls.Add(1)
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
				return
			}
			if r.PostForm.Get("apikey") != "iam-key" {
				t.Errorf("apikey = %q, want iam-key", r.PostForm.Get("apikey"))
			}
			if got := r.PostForm.Get("grant_type"); got != "urn:ibm:params:oauth:grant-type:apikey" {
				t.Errorf("grant_type = %q", got)
			}
			json.NewEncoder(w).Encode(map[string]any{"access_token": "iam-tok", "expires_in": 3600})
		case "/v1/recognize":
			if got := r.Header.Get("Authorization"); got != "Bearer iam-tok" {
				t.Errorf("Authorization = %q, want Bearer iam-tok", got)
			}
			if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "audio/l16") {
				t.Errorf("Content-Type = %q, want audio/l16", ct)
			}
			if got := r.URL.Query().Get("model"); got != "en_US_BroadbandModel" {
				t.Errorf("model = %q, want en_US_BroadbandModel", got)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{"final": true, "alternatives": []map[string]any{{"transcript": "unit five "}}},
					{"final": true, "alternatives": []map[string]any{{"transcript": "on scene"}}},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	p := newTestIBM(t, srv.URL)
	ctx := context.Background()

	res, err := p.Transcribe(ctx, testPCM(), "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "unit five on scene" {
		t.Errorf("Text = %q, want joined trimmed results", res.Text)
	}

	if _, err := p.Transcribe(ctx, testPCM(), "en"); err != nil {
		t.Fatalf("second Transcribe: %v", err)
	}
	if tokenCalls.Load() != 1 {
		t.Errorf("token endpoint calls = %d, want 1 (cached)", tokenCalls.Load())
	}
}

func TestIBM_UnauthorizedInvalidatesToken(t *testing.T) {
	var tokenCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/identity/token" {
			tokenCalls.Add(1)
			json.NewEncoder(w).Encode(map[string]any{"access_token": "iam-tok", "expires_in": 3600})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := newTestIBM(t, srv.URL)
	ctx := context.Background()

	if _, err := p.Transcribe(ctx, testPCM(), "en"); err == nil {
		t.Fatal("Transcribe error = nil, want 401 failure")
	}
	// The stale token was dropped, so the next call re-fetches.
	p.Transcribe(ctx, testPCM(), "en")
	if tokenCalls.Load() != 2 {
		t.Errorf("token endpoint calls = %d, want 2 after invalidation", tokenCalls.Load())
	}
}

func TestIBM_ValidateCredentials(t *testing.T) {
	t.Run("bad_api_key", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"errorCode":"BXNIM0415E"}`, http.StatusBadRequest)
		}))
		defer srv.Close()
		err := newTestIBM(t, srv.URL).ValidateCredentials(context.Background())
		if got := ValidationCodeOf(err); got != ValidationInvalidCredentials {
			t.Errorf("ValidationCodeOf = %v, want %v", got, ValidationInvalidCredentials)
		}
	})

	t.Run("accepted", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/identity/token" {
				json.NewEncoder(w).Encode(map[string]any{"access_token": "iam-tok", "expires_in": 3600})
				return
			}
			w.Write([]byte(`{"models":[]}`))
		}))
		defer srv.Close()
		if err := newTestIBM(t, srv.URL).ValidateCredentials(context.Background()); err != nil {
			t.Errorf("ValidateCredentials: %v", err)
		}
	})
}
