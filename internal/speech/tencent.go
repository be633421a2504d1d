package speech

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/snarg/stt-gateway/internal/audio"
	"github.com/snarg/stt-gateway/internal/sign"
)

const defaultTencentBase = "https://asr.cloud.tencent.com"

// tencentProvider posts raw audio to the flash recognition endpoint. The
// sorted, unencoded query parameters are HMAC-SHA1 signed and the digest
// rides in the Authorization header; the server recomputes it from the
// same canonical string.
type tencentProvider struct {
	client
	baseURL string
}

func newTencent(desc Descriptor, creds Credentials, opts Options) *tencentProvider {
	return &tencentProvider{
		client:  newClient(desc, creds, opts),
		baseURL: defaultTencentBase,
	}
}

type tencentResponse struct {
	Code        int    `json:"code"`
	Message     string `json:"message"`
	RequestID   string `json:"request_id"`
	FlashResult []struct {
		Text string `json:"text"`
	} `json:"flash_result"`
}

func (p *tencentProvider) Transcribe(ctx context.Context, pcm []byte, language string) (*Result, error) {
	if err := p.checkAudio(pcm); err != nil {
		return nil, err
	}
	return p.recognize(ctx, pcm, "pcm", language)
}

func (p *tencentProvider) TranscribeFile(ctx context.Context, data []byte, mimeType, language string) (*Result, error) {
	return p.recognize(ctx, data, tencentFormat(mimeType), language)
}

func (p *tencentProvider) recognize(ctx context.Context, body []byte, format, language string) (*Result, error) {
	resp, err := p.flashRequest(ctx, body, format, language)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, p.statusError(resp)
	}
	var out tencentResponse
	if err := decodeJSON(resp.body, &out); err != nil {
		return nil, err
	}
	if out.Code != 0 {
		return nil, newError(ErrRecognitionFailed, "code %d: %s", out.Code, out.Message)
	}

	var parts []string
	for _, r := range out.FlashResult {
		if t := strings.TrimSpace(r.Text); t != "" {
			parts = append(parts, t)
		}
	}
	text := strings.Join(parts, " ")
	if text == "" {
		return nil, newError(ErrNoSpeechDetected, "empty transcript")
	}
	return p.result(text, language, ""), nil
}

// flashRequest signs and posts one recognition call. The signature covers
// host and path of the configured endpoint, so tests against local servers
// verify with the same canonical string.
func (p *tencentProvider) flashRequest(ctx context.Context, body []byte, format, language string) (*httpResponse, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, wrapError(ErrRecognitionFailed, err, "parse endpoint")
	}

	now := time.Now()
	params := url.Values{}
	params.Set("secretid", p.creds.APIKey)
	params.Set("timestamp", strconv.FormatInt(now.Unix(), 10))
	params.Set("expired", strconv.FormatInt(now.Add(time.Hour).Unix(), 10))
	params.Set("nonce", strconv.FormatInt(now.UnixNano()%1000000, 10))
	params.Set("engine_type", tencentEngine(language))
	params.Set("voice_format", format)

	path := "/asr/flash/v1/" + p.creds.AppID
	signature := sign.SortedQuerySignature(p.creds.APISecret, http.MethodPost, u.Host, path, params)

	endpoint := p.baseURL + path + "?" + params.Encode()
	return p.doBytes(ctx, http.MethodPost, endpoint, "application/octet-stream", body, func(req *http.Request) error {
		req.Header.Set("Authorization", signature)
		return nil
	})
}

func (p *tencentProvider) ValidateCredentials(ctx context.Context) error {
	// A silence probe exercises the whole signing path; the service
	// answers 200 with a nonzero code when the signature is wrong.
	resp, err := p.flashRequest(ctx, audio.Silence(200*time.Millisecond), "pcm", "")
	if err != nil {
		return p.validationFailure(err)
	}
	if !resp.ok() {
		return newValidationError(MapStatus(resp.status), "%s returned status %d", p.desc.ID, resp.status)
	}
	var out tencentResponse
	if err := decodeJSON(resp.body, &out); err != nil {
		ve := newValidationError(ValidationUnknown, "unreadable validation response")
		ve.Err = err
		return ve
	}
	if out.Code != 0 {
		return newValidationError(ValidationInvalidCredentials, "code %d: %s", out.Code, out.Message)
	}
	return nil
}

// tencentEngine maps a language hint onto the 16k engine models.
func tencentEngine(language string) string {
	switch strings.ToLower(language) {
	case "en", "en-us":
		return "16k_en"
	default:
		return "16k_zh"
	}
}

// tencentFormat maps a MIME container onto the voice_format field.
func tencentFormat(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/ogg", "application/ogg":
		return "ogg-opus"
	default:
		return "pcm"
	}
}
