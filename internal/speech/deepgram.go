package speech

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/snarg/stt-gateway/internal/audio"
	"github.com/snarg/stt-gateway/internal/sign"
)

const (
	defaultDeepgramAPI = "https://api.deepgram.com/v1/listen"
	defaultDeepgramWS  = "wss://api.deepgram.com/v1/listen"

	// deepgramChunkBytes is 100ms of canonical PCM per binary frame.
	deepgramChunkBytes = 3200
)

// deepgramProvider speaks both Deepgram transports: live transcription
// over WebSocket for raw PCM and the prerecorded endpoint for containers.
// The key travels as "Token <key>" on both.
type deepgramProvider struct {
	client
	apiURL string
	wsURL  string
	model  string
	key    sign.APIKey
}

func newDeepgram(desc Descriptor, creds Credentials, opts Options) *deepgramProvider {
	return &deepgramProvider{
		client: newClient(desc, creds, opts),
		apiURL: defaultDeepgramAPI,
		wsURL:  defaultDeepgramWS,
		model:  "nova-2",
		key:    sign.APIKey{Key: creds.APIKey, Prefix: "Token "},
	}
}

// deepgramMessage covers both live frames (type Results/Metadata) and the
// prerecorded response shape.
type deepgramMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (p *deepgramProvider) Transcribe(ctx context.Context, pcm []byte, language string) (*Result, error) {
	if err := p.checkAudio(pcm); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("model", p.model)
	params.Set("encoding", "linear16")
	params.Set("sample_rate", strconv.Itoa(audio.SampleRate))
	params.Set("channels", strconv.Itoa(audio.Channels))
	params.Set("punctuate", "true")
	if language != "" {
		params.Set("language", language)
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+p.creds.APIKey)

	var finals []string
	send := func(ws *wsConn) error {
		if err := ws.sendPaced(ctx, pcm, deepgramChunkBytes, 0); err != nil {
			return err
		}
		return ws.text([]byte(`{"type":"CloseStream"}`))
	}
	recv := func(msgType int, data []byte) (bool, error) {
		var msg deepgramMessage
		if err := decodeJSON(data, &msg); err != nil {
			return false, nil // tolerate unknown frames
		}
		switch msg.Type {
		case "Results":
			// Interim hypotheses never resolve the call; only finals count.
			if !msg.IsFinal || len(msg.Channel.Alternatives) == 0 {
				return false, nil
			}
			if t := strings.TrimSpace(msg.Channel.Alternatives[0].Transcript); t != "" {
				finals = append(finals, t)
			}
			return false, nil
		case "Metadata":
			// Sent once after CloseStream is processed.
			return true, nil
		default:
			return false, nil
		}
	}

	if err := p.stream(ctx, p.wsURL+"?"+params.Encode(), header, send, recv); err != nil {
		return nil, err
	}
	text := strings.Join(finals, " ")
	if text == "" {
		return nil, newError(ErrNoSpeechDetected, "no final transcript")
	}
	return p.result(text, language, p.model), nil
}

func (p *deepgramProvider) TranscribeFile(ctx context.Context, data []byte, mimeType, language string) (*Result, error) {
	params := url.Values{}
	params.Set("model", p.model)
	params.Set("punctuate", "true")
	if language != "" {
		params.Set("language", language)
	}

	resp, err := p.doBytes(ctx, http.MethodPost, p.apiURL+"?"+params.Encode(), mimeType, data, apiKeySigner(p.key))
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, p.statusError(resp)
	}
	var out deepgramMessage
	if err := decodeJSON(resp.body, &out); err != nil {
		return nil, err
	}
	if len(out.Results.Channels) == 0 || len(out.Results.Channels[0].Alternatives) == 0 {
		return nil, newError(ErrNoSpeechDetected, "no alternatives returned")
	}
	text := strings.TrimSpace(out.Results.Channels[0].Alternatives[0].Transcript)
	if text == "" {
		return nil, newError(ErrNoSpeechDetected, "empty transcript")
	}
	return p.result(text, language, p.model), nil
}

func (p *deepgramProvider) ValidateCredentials(ctx context.Context) error {
	// The projects endpoint is the cheapest authenticated call.
	base := strings.TrimSuffix(p.apiURL, "/listen")
	return p.validate(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/projects", nil)
		if err != nil {
			return nil, err
		}
		p.key.Apply(req)
		return req, nil
	})
}
