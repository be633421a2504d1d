package speech

import (
	"context"
	"strings"
	"time"

	"github.com/snarg/stt-gateway/internal/sign"
)

const (
	defaultUnisoundWS = "wss://ws-asr.hivoice.cn/v1/asr"

	// unisoundChunkBytes is 100ms of canonical PCM per binary frame.
	unisoundChunkBytes = 3200
)

// unisoundProvider dials with freshly minted AK/SK query credentials
// (HMAC-SHA256, hex), sends a JSON start frame, streams binary PCM, and
// closes the utterance with an end frame. Partial results arrive until the
// final frame carries the settled text.
type unisoundProvider struct {
	client
	wsURL string
}

func newUnisound(desc Descriptor, creds Credentials, opts Options) *unisoundProvider {
	return &unisoundProvider{
		client: newClient(desc, creds, opts),
		wsURL:  defaultUnisoundWS,
	}
}

type unisoundStart struct {
	Type     string `json:"type"`
	Format   string `json:"format"`
	Language string `json:"language,omitempty"`
}

type unisoundMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

func (p *unisoundProvider) Transcribe(ctx context.Context, pcm []byte, language string) (*Result, error) {
	if err := p.checkAudio(pcm); err != nil {
		return nil, err
	}

	cred := sign.NewNonceCredential(p.creds.AccessKey, p.creds.SecretKey, time.Now())
	wsURL := p.wsURL + "?" + cred.Query()

	var finalText string
	send := func(ws *wsConn) error {
		start := unisoundStart{Type: "start", Format: "pcm16k", Language: language}
		if err := ws.writeJSON(start); err != nil {
			return err
		}
		if err := ws.sendPaced(ctx, pcm, unisoundChunkBytes, 0); err != nil {
			return err
		}
		return ws.text([]byte(`{"type":"end"}`))
	}
	recv := func(msgType int, data []byte) (bool, error) {
		var msg unisoundMessage
		if err := decodeJSON(data, &msg); err != nil {
			return false, err
		}
		switch msg.Type {
		case "error":
			return false, newError(ErrRecognitionFailed, "service error: %s", msg.Message)
		case "final":
			finalText = msg.Text
			return true, nil
		default:
			// Partial hypotheses never resolve the call.
			return false, nil
		}
	}

	if err := p.stream(ctx, wsURL, nil, send, recv); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(finalText)
	if text == "" {
		return nil, newError(ErrNoSpeechDetected, "empty transcript")
	}
	return p.result(text, language, ""), nil
}

func (p *unisoundProvider) TranscribeFile(ctx context.Context, data []byte, mimeType, language string) (*Result, error) {
	pcm, ok := trimToPCM(data, mimeType)
	if !ok {
		return nil, newError(ErrRecognitionFailed, "unsupported container %q for streaming input", mimeType)
	}
	return p.Transcribe(ctx, pcm, language)
}

func (p *unisoundProvider) ValidateCredentials(ctx context.Context) error {
	cred := sign.NewNonceCredential(p.creds.AccessKey, p.creds.SecretKey, time.Now())
	return p.validateStream(ctx, p.wsURL+"?"+cred.Query(), nil)
}
