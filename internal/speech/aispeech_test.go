package speech

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/snarg/stt-gateway/internal/sign"
)

func newTestAISpeech(t *testing.T, srvURL string) *aispeechProvider {
	t.Helper()
	p := newAISpeech(mustLookup(t, ProviderAISpeech), fullCreds(ProviderAISpeech), testOptions())
	p.baseURL = srvURL
	return p
}

func TestAISpeech_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/asr/v1/short" {
			t.Errorf("path = %q, want /asr/v1/short", r.URL.Path)
		}
		q := r.URL.Query()
		cred := sign.NonceCredential{
			AccessKey: q.Get("appkey"),
			Timestamp: q.Get("time"),
			Nonce:     q.Get("nonce"),
			RequestID: q.Get("requestId"),
			Signature: q.Get("sign"),
		}
		if !cred.VerifySigned("sk-1") {
			t.Errorf("signature %q does not verify against secret", cred.Signature)
		}
		if got := q.Get("productId"); got != "prod-1" {
			t.Errorf("productId = %q, want prod-1", got)
		}
		if got := q.Get("res"); got != "eng" {
			t.Errorf("res = %q, want eng", got)
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) != len(testPCM()) {
			t.Errorf("body = %d bytes, want %d", len(body), len(testPCM()))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"errno": 0, "result": map[string]any{"rec": "unit five on scene"},
		})
	}))
	defer srv.Close()

	p := newTestAISpeech(t, srv.URL)
	res, err := p.Transcribe(context.Background(), testPCM(), "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "unit five on scene" {
		t.Errorf("Text = %q, want unit five on scene", res.Text)
	}
}

func TestAISpeech_ServiceErrno(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"errno": 7, "error": "productId not provisioned"})
	}))
	defer srv.Close()

	p := newTestAISpeech(t, srv.URL)
	_, err := p.Transcribe(context.Background(), testPCM(), "zh")
	if got := CodeOf(err); got != ErrRecognitionFailed {
		t.Fatalf("CodeOf = %v, want %v (err: %v)", got, ErrRecognitionFailed, err)
	}
	if !strings.Contains(err.Error(), "productId not provisioned") {
		t.Errorf("err = %v, want service message", err)
	}
}

func TestAISpeech_EmptyRecIsSilence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"errno": 0, "result": map[string]any{"rec": ""}})
	}))
	defer srv.Close()

	p := newTestAISpeech(t, srv.URL)
	_, err := p.Transcribe(context.Background(), testPCM(), "zh")
	if got := CodeOf(err); got != ErrNoSpeechDetected {
		t.Errorf("CodeOf = %v, want %v", got, ErrNoSpeechDetected)
	}
}

func TestAISpeech_ValidateCredentials(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"errno": 0, "result": map[string]any{"rec": ""}})
		}))
		defer srv.Close()
		if err := newTestAISpeech(t, srv.URL).ValidateCredentials(context.Background()); err != nil {
			t.Errorf("ValidateCredentials: %v", err)
		}
	})

	t.Run("bad_signature", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"errno": 3, "error": "sign check failed"})
		}))
		defer srv.Close()
		err := newTestAISpeech(t, srv.URL).ValidateCredentials(context.Background())
		if got := ValidationCodeOf(err); got != ValidationInvalidCredentials {
			t.Errorf("ValidationCodeOf = %v, want %v (err: %v)", got, ValidationInvalidCredentials, err)
		}
	})
}

func TestAISpeechRes(t *testing.T) {
	if got := aispeechRes("en"); got != "eng" {
		t.Errorf("aispeechRes(en) = %q, want eng", got)
	}
	if got := aispeechRes("zh"); got != "comm" {
		t.Errorf("aispeechRes(zh) = %q, want comm", got)
	}
	if got := aispeechRes(""); got != "comm" {
		t.Errorf(`aispeechRes("") = %q, want comm`, got)
	}
}
