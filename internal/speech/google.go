package speech

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/snarg/stt-gateway/internal/audio"
	"github.com/snarg/stt-gateway/internal/sign"
)

const defaultGoogleBase = "https://speech.googleapis.com/v1"

// googleProvider posts base64 audio to the synchronous recognize endpoint.
// It accepts either a plain API key (key= query parameter) or a
// service-account access token (bearer header).
type googleProvider struct {
	client
	baseURL string
	key     sign.APIKey
}

func newGoogle(desc Descriptor, creds Credentials, opts Options) *googleProvider {
	key := sign.APIKey{Key: creds.APIKey, Query: "key"}
	if creds.APIKey == "" {
		key = sign.APIKey{Key: creds.ServiceAccount, Prefix: "Bearer "}
	}
	return &googleProvider{
		client:  newClient(desc, creds, opts),
		baseURL: defaultGoogleBase,
		key:     key,
	}
}

type googleRecognizeRequest struct {
	Config googleRecognitionConfig `json:"config"`
	Audio  googleRecognitionAudio  `json:"audio"`
}

type googleRecognitionConfig struct {
	Encoding        string `json:"encoding,omitempty"`
	SampleRateHertz int    `json:"sampleRateHertz,omitempty"`
	LanguageCode    string `json:"languageCode"`
}

type googleRecognitionAudio struct {
	Content string `json:"content"`
}

type googleRecognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"results"`
}

func (p *googleProvider) Transcribe(ctx context.Context, pcm []byte, language string) (*Result, error) {
	if err := p.checkAudio(pcm); err != nil {
		return nil, err
	}
	cfg := googleRecognitionConfig{
		Encoding:        "LINEAR16",
		SampleRateHertz: audio.SampleRate,
		LanguageCode:    bcp47(language, "en-US"),
	}
	return p.recognize(ctx, cfg, pcm)
}

func (p *googleProvider) TranscribeFile(ctx context.Context, data []byte, mimeType, language string) (*Result, error) {
	cfg := googleRecognitionConfig{
		// WAV and FLAC carry their own headers; the service reads rate and
		// encoding from them when the fields are omitted.
		Encoding:     googleEncoding(mimeType),
		LanguageCode: bcp47(language, "en-US"),
	}
	return p.recognize(ctx, cfg, data)
}

func (p *googleProvider) recognize(ctx context.Context, cfg googleRecognitionConfig, data []byte) (*Result, error) {
	req := googleRecognizeRequest{
		Config: cfg,
		Audio:  googleRecognitionAudio{Content: base64.StdEncoding.EncodeToString(data)},
	}
	var out googleRecognizeResponse
	if err := p.postJSON(ctx, p.baseURL+"/speech:recognize", req, apiKeySigner(p.key), &out); err != nil {
		return nil, err
	}

	var parts []string
	for _, r := range out.Results {
		if len(r.Alternatives) > 0 {
			if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
				parts = append(parts, t)
			}
		}
	}
	text := strings.Join(parts, " ")
	if text == "" {
		return nil, newError(ErrNoSpeechDetected, "no results returned")
	}
	return p.result(text, cfg.LanguageCode, ""), nil
}

func (p *googleProvider) ValidateCredentials(ctx context.Context) error {
	return p.validate(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/operations", nil)
		if err != nil {
			return nil, err
		}
		p.key.Apply(req)
		return req, nil
	})
}

// googleEncoding maps a MIME container onto the recognize encoding enum;
// self-describing containers return "" so the service sniffs them.
func googleEncoding(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "audio/ogg", "application/ogg", "audio/webm":
		return "OGG_OPUS"
	case "audio/mpeg", "audio/mp3":
		return "MP3"
	default:
		return ""
	}
}
