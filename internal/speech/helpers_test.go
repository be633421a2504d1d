package speech

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/snarg/stt-gateway/internal/audio"
	"github.com/snarg/stt-gateway/internal/retry"
)

// testOptions keeps provider tests fast: one attempt, millisecond polling.
func testOptions() Options {
	return Options{
		HTTPTimeout:  5 * time.Second,
		Retry:        retry.Config{Attempts: 1, BaseDelay: time.Millisecond},
		PollInterval: time.Millisecond,
		PollAttempts: 60,
		Logger:       zerolog.Nop(),
	}
}

func mustLookup(t *testing.T, id string) Descriptor {
	t.Helper()
	d, ok := Lookup(id)
	if !ok {
		t.Fatalf("Lookup(%q) returned no descriptor", id)
	}
	return d
}

// fullCreds returns a bundle that passes HasRequired for the provider.
func fullCreds(id string) Credentials {
	switch id {
	case ProviderWhisper, ProviderElevenLabs, ProviderDeepgram, ProviderAssemblyAI, ProviderGoogle:
		return Credentials{APIKey: "test-key"}
	case ProviderBaidu:
		return Credentials{APIKey: "client-id", APISecret: "client-secret"}
	case ProviderAzure:
		return Credentials{APIKey: "subscription-key", Region: "westus"}
	case ProviderAWS:
		return Credentials{AccessKey: "AKIDEXAMPLE", SecretKey: "secret", Region: "us-east-1"}
	case ProviderIBM:
		return Credentials{APIKey: "iam-key", ServiceURL: "https://stt.example.ibm.com"}
	case ProviderIFlytek, ProviderTencent:
		return Credentials{AppID: "app-1", APIKey: "key-1", APISecret: "secret-1"}
	case ProviderUnisound:
		return Credentials{AccessKey: "ak-1", SecretKey: "sk-1"}
	case ProviderAISpeech:
		return Credentials{AccessKey: "ak-1", SecretKey: "sk-1", AppID: "prod-1"}
	}
	return Credentials{}
}

// speech bytes long enough to clear every provider floor.
func testPCM() []byte {
	pcm := audio.Silence(500 * time.Millisecond)
	for i := range pcm {
		pcm[i] = byte(i) // non-silent ramp
	}
	return pcm
}

// wsTestServer upgrades every request and runs handler on the connection.
// The returned URL carries the ws scheme.
func wsTestServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) string {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// closeNormally sends the close frame realtime backends finish with.
func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// newRejectingServer refuses every upgrade with the given status. Used to
// exercise handshake failure paths; URL carries the ws scheme.
func newRejectingServer(t *testing.T, status int) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(status), status)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}
