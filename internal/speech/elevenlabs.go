package speech

import (
	"context"
	"net/http"
	"strings"

	"github.com/snarg/stt-gateway/internal/audio"
	"github.com/snarg/stt-gateway/internal/sign"
)

const defaultElevenLabsBase = "https://api.elevenlabs.io/v1"

// elevenLabsProvider calls the Scribe speech-to-text endpoint. The key
// travels in the xi-api-key header with no scheme prefix.
type elevenLabsProvider struct {
	client
	baseURL string
	model   string
	key     sign.APIKey
}

func newElevenLabs(desc Descriptor, creds Credentials, opts Options) *elevenLabsProvider {
	return &elevenLabsProvider{
		client:  newClient(desc, creds, opts),
		baseURL: defaultElevenLabsBase,
		model:   "scribe_v1",
		key:     sign.APIKey{Key: creds.APIKey, Header: "xi-api-key"},
	}
}

type elevenLabsResponse struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code"`
}

func (p *elevenLabsProvider) Transcribe(ctx context.Context, pcm []byte, language string) (*Result, error) {
	if err := p.checkAudio(pcm); err != nil {
		return nil, err
	}
	return p.TranscribeFile(ctx, audio.WAV(pcm), "audio/wav", language)
}

func (p *elevenLabsProvider) TranscribeFile(ctx context.Context, data []byte, mimeType, language string) (*Result, error) {
	fields := [][2]string{{"model_id", p.model}}
	if language != "" {
		fields = append(fields, [2]string{"language_code", language})
	}
	contentType, body, err := multipartBody("file", uploadName(mimeType), data, fields)
	if err != nil {
		return nil, wrapError(ErrRecognitionFailed, err, "build upload")
	}

	resp, err := p.doBytes(ctx, http.MethodPost, p.baseURL+"/speech-to-text", contentType, body, apiKeySigner(p.key))
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, p.statusError(resp)
	}
	var out elevenLabsResponse
	if err := decodeJSON(resp.body, &out); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return nil, newError(ErrNoSpeechDetected, "empty transcript")
	}
	lang := out.LanguageCode
	if lang == "" {
		lang = language
	}
	return p.result(text, lang, p.model), nil
}

func (p *elevenLabsProvider) ValidateCredentials(ctx context.Context) error {
	return p.validate(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/user", nil)
		if err != nil {
			return nil, err
		}
		p.key.Apply(req)
		return req, nil
	})
}
