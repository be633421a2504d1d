package speech

import (
	"context"
	"net/http"
	"strings"

	"github.com/snarg/stt-gateway/internal/audio"
	"github.com/snarg/stt-gateway/internal/sign"
)

const defaultWhisperBase = "https://api.openai.com/v1"

// whisperProvider calls an OpenAI-compatible /audio/transcriptions endpoint.
// ServiceURL in the credentials repoints it at self-hosted deployments
// (speaches, faster-whisper-server) that speak the same protocol.
type whisperProvider struct {
	client
	baseURL string
	model   string
	key     sign.APIKey
}

func newWhisper(desc Descriptor, creds Credentials, opts Options) *whisperProvider {
	base := strings.TrimSuffix(creds.ServiceURL, "/")
	if base == "" {
		base = defaultWhisperBase
	}
	return &whisperProvider{
		client:  newClient(desc, creds, opts),
		baseURL: base,
		model:   "whisper-1",
		key:     sign.APIKey{Key: creds.APIKey, Prefix: "Bearer "},
	}
}

type whisperResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (p *whisperProvider) Transcribe(ctx context.Context, pcm []byte, language string) (*Result, error) {
	if err := p.checkAudio(pcm); err != nil {
		return nil, err
	}
	return p.TranscribeFile(ctx, audio.WAV(pcm), "audio/wav", language)
}

func (p *whisperProvider) TranscribeFile(ctx context.Context, data []byte, mimeType, language string) (*Result, error) {
	fields := [][2]string{
		{"model", p.model},
		{"response_format", "json"},
	}
	if language != "" {
		fields = append(fields, [2]string{"language", language})
	}
	contentType, body, err := multipartBody("file", uploadName(mimeType), data, fields)
	if err != nil {
		return nil, wrapError(ErrRecognitionFailed, err, "build upload")
	}

	resp, err := p.doBytes(ctx, http.MethodPost, p.baseURL+"/audio/transcriptions", contentType, body, apiKeySigner(p.key))
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, p.statusError(resp)
	}
	var out whisperResponse
	if err := decodeJSON(resp.body, &out); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return nil, newError(ErrNoSpeechDetected, "empty transcript")
	}
	lang := out.Language
	if lang == "" {
		lang = language
	}
	return p.result(text, lang, p.model), nil
}

func (p *whisperProvider) ValidateCredentials(ctx context.Context) error {
	return p.validate(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
		if err != nil {
			return nil, err
		}
		p.key.Apply(req)
		return req, nil
	})
}
