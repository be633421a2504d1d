package speech

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/snarg/stt-gateway/internal/audio"
	"github.com/snarg/stt-gateway/internal/sign"
)

// azureProvider posts WAV bodies to the region-scoped conversation
// endpoint. The subscription key rides in the Ocp-Apim-Subscription-Key
// header; the region picks both hosts.
type azureProvider struct {
	client
	sttURL   string
	tokenURL string
	key      sign.APIKey
}

func newAzure(desc Descriptor, creds Credentials, opts Options) *azureProvider {
	return &azureProvider{
		client:   newClient(desc, creds, opts),
		sttURL:   fmt.Sprintf("https://%s.stt.speech.microsoft.com", creds.Region),
		tokenURL: fmt.Sprintf("https://%s.api.cognitive.microsoft.com", creds.Region),
		key:      sign.APIKey{Key: creds.APIKey, Header: "Ocp-Apim-Subscription-Key"},
	}
}

type azureResponse struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
}

func (p *azureProvider) Transcribe(ctx context.Context, pcm []byte, language string) (*Result, error) {
	if err := p.checkAudio(pcm); err != nil {
		return nil, err
	}
	contentType := fmt.Sprintf("audio/wav; codecs=audio/pcm; samplerate=%d", audio.SampleRate)
	return p.recognize(ctx, audio.WAV(pcm), contentType, language)
}

func (p *azureProvider) TranscribeFile(ctx context.Context, data []byte, mimeType, language string) (*Result, error) {
	return p.recognize(ctx, data, mimeType, language)
}

func (p *azureProvider) recognize(ctx context.Context, body []byte, contentType, language string) (*Result, error) {
	lang := bcp47(language, "en-US")
	params := url.Values{}
	params.Set("language", lang)
	params.Set("format", "simple")

	endpoint := p.sttURL + "/speech/recognition/conversation/cognitiveservices/v1?" + params.Encode()
	resp, err := p.doBytes(ctx, http.MethodPost, endpoint, contentType, body, apiKeySigner(p.key))
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, p.statusError(resp)
	}
	var out azureResponse
	if err := decodeJSON(resp.body, &out); err != nil {
		return nil, err
	}

	switch out.RecognitionStatus {
	case "Success":
	case "NoMatch", "InitialSilenceTimeout":
		return nil, newError(ErrNoSpeechDetected, "recognition status %s", out.RecognitionStatus)
	default:
		return nil, newError(ErrRecognitionFailed, "recognition status %s", out.RecognitionStatus)
	}

	text := strings.TrimSpace(out.DisplayText)
	if text == "" {
		return nil, newError(ErrNoSpeechDetected, "empty transcript")
	}
	return p.result(text, lang, ""), nil
}

func (p *azureProvider) ValidateCredentials(ctx context.Context) error {
	// issueToken is the canonical key probe: free, fast, and
	// subscription-scoped.
	return p.validate(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL+"/sts/v1.0/issueToken", nil)
		if err != nil {
			return nil, err
		}
		p.key.Apply(req)
		return req, nil
	})
}
