package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGoogle_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speech:recognize" {
			t.Errorf("path = %q, want /speech:recognize", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "g-key" {
			t.Errorf("key = %q, want g-key", got)
		}
		var req googleRecognizeRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Config.Encoding != "LINEAR16" {
			t.Errorf("encoding = %q, want LINEAR16", req.Config.Encoding)
		}
		if req.Config.SampleRateHertz != 16000 {
			t.Errorf("sampleRateHertz = %d, want 16000", req.Config.SampleRateHertz)
		}
		if req.Config.LanguageCode != "en-US" {
			t.Errorf("languageCode = %q, want en-US", req.Config.LanguageCode)
		}
		pcm, err := base64.StdEncoding.DecodeString(req.Audio.Content)
		if err != nil || len(pcm) != len(testPCM()) {
			t.Errorf("audio content = %d bytes (err %v), want %d", len(pcm), err, len(testPCM()))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"alternatives": []map[string]any{{"transcript": "first part"}}},
				{"alternatives": []map[string]any{{"transcript": "second part"}}},
			},
		})
	}))
	defer srv.Close()

	p := newGoogle(mustLookup(t, ProviderGoogle), Credentials{APIKey: "g-key"}, testOptions())
	p.baseURL = srv.URL

	res, err := p.Transcribe(context.Background(), testPCM(), "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "first part second part" {
		t.Errorf("Text = %q, want joined results", res.Text)
	}
	if res.Language != "en-US" {
		t.Errorf("Language = %q, want en-US", res.Language)
	}
}

func TestGoogle_ServiceAccountBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sa-token" {
			t.Errorf("Authorization = %q, want Bearer sa-token", got)
		}
		if r.URL.Query().Get("key") != "" {
			t.Error("key param present, want bearer-only auth")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"alternatives": []map[string]any{{"transcript": "ok"}}}},
		})
	}))
	defer srv.Close()

	p := newGoogle(mustLookup(t, ProviderGoogle), Credentials{ServiceAccount: "sa-token"}, testOptions())
	p.baseURL = srv.URL

	if _, err := p.Transcribe(context.Background(), testPCM(), "en"); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
}

func TestGoogle_SilenceGivesNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := newGoogle(mustLookup(t, ProviderGoogle), Credentials{APIKey: "g-key"}, testOptions())
	p.baseURL = srv.URL

	_, err := p.Transcribe(context.Background(), testPCM(), "en")
	if got := CodeOf(err); got != ErrNoSpeechDetected {
		t.Errorf("CodeOf = %v, want %v", got, ErrNoSpeechDetected)
	}
}

func TestBCP47(t *testing.T) {
	tests := []struct {
		in, fallback, want string
	}{
		{"", "en-US", "en-US"},
		{"en", "", "en-US"},
		{"zh", "", "zh-CN"},
		{"ja", "", "ja-JP"},
		{"pt", "", "pt-BR"},
		{"en-GB", "", "en-GB"},
		{"zh_cn", "", "zh_cn"},
		{"xx", "", "xx"},
	}
	for _, tt := range tests {
		if got := bcp47(tt.in, tt.fallback); got != tt.want {
			t.Errorf("bcp47(%q, %q) = %q, want %q", tt.in, tt.fallback, got, tt.want)
		}
	}
}
