package speech

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/snarg/stt-gateway/internal/audio"
	"github.com/snarg/stt-gateway/internal/sign"
)

const defaultAISpeechBase = "https://asr.dui.ai"

// aispeechProvider posts raw audio with freshly minted signed AK/SK query
// credentials (HMAC-SHA1, base64). The product id scopes the request to
// the caller's provisioned application.
type aispeechProvider struct {
	client
	baseURL string
}

func newAISpeech(desc Descriptor, creds Credentials, opts Options) *aispeechProvider {
	return &aispeechProvider{
		client:  newClient(desc, creds, opts),
		baseURL: defaultAISpeechBase,
	}
}

type aispeechResponse struct {
	Errno  int    `json:"errno"`
	Error  string `json:"error"`
	Result struct {
		Rec string `json:"rec"`
	} `json:"result"`
}

func (p *aispeechProvider) Transcribe(ctx context.Context, pcm []byte, language string) (*Result, error) {
	if err := p.checkAudio(pcm); err != nil {
		return nil, err
	}
	return p.recognize(ctx, pcm, "application/octet-stream", language)
}

func (p *aispeechProvider) TranscribeFile(ctx context.Context, data []byte, mimeType, language string) (*Result, error) {
	return p.recognize(ctx, data, mimeType, language)
}

func (p *aispeechProvider) endpoint(language string) string {
	cred := sign.NewSignedNonceCredential(p.creds.AccessKey, p.creds.SecretKey, time.Now())
	url := p.baseURL + "/asr/v1/short?" + cred.Query()
	url += "&productId=" + p.creds.AppID
	url += "&res=" + aispeechRes(language)
	return url
}

func (p *aispeechProvider) recognize(ctx context.Context, body []byte, contentType, language string) (*Result, error) {
	resp, err := p.doBytes(ctx, http.MethodPost, p.endpoint(language), contentType, body, nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, p.statusError(resp)
	}
	var out aispeechResponse
	if err := decodeJSON(resp.body, &out); err != nil {
		return nil, err
	}
	if out.Errno != 0 {
		return nil, newError(ErrRecognitionFailed, "errno %d: %s", out.Errno, out.Error)
	}

	text := strings.TrimSpace(out.Result.Rec)
	if text == "" {
		return nil, newError(ErrNoSpeechDetected, "empty transcript")
	}
	return p.result(text, language, ""), nil
}

func (p *aispeechProvider) ValidateCredentials(ctx context.Context) error {
	resp, err := p.doBytes(ctx, http.MethodPost, p.endpoint(""), "application/octet-stream", audio.Silence(200*time.Millisecond), nil)
	if err != nil {
		return p.validationFailure(err)
	}
	if !resp.ok() {
		return newValidationError(MapStatus(resp.status), "%s returned status %d", p.desc.ID, resp.status)
	}
	var out aispeechResponse
	if err := decodeJSON(resp.body, &out); err != nil {
		ve := newValidationError(ValidationUnknown, "unreadable validation response")
		ve.Err = err
		return ve
	}
	if out.Errno != 0 {
		return newValidationError(ValidationInvalidCredentials, "errno %d: %s", out.Errno, out.Error)
	}
	return nil
}

// aispeechRes maps a language hint onto the resource model selector.
func aispeechRes(language string) string {
	switch strings.ToLower(language) {
	case "en", "en-us":
		return "eng"
	default:
		return "comm"
	}
}
