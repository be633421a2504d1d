package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/snarg/stt-gateway/internal/audio"
	"github.com/snarg/stt-gateway/internal/retry"
	"github.com/snarg/stt-gateway/internal/sign"
)

const (
	defaultBaiduTokenURL = "https://aip.baidubce.com/oauth/2.0/token"
	defaultBaiduAPI      = "https://vop.baidu.com/server_api"

	// Baidu error codes that matter beyond pass/fail.
	baiduErrQuality   = 3301 // unclear audio, treated as silence
	baiduErrAuth      = 3302
	baiduErrNoSpeech  = 3304 // nothing detectable spoken
	baiduErrRateLimit = 3305
)

// baiduProvider exchanges its id/secret pair for a bearer token, then posts
// base64 PCM as JSON. Tokens are cached and refreshed ahead of expiry.
type baiduProvider struct {
	client
	tokenURL string
	apiURL   string
	tokens   *sign.TokenSource
}

func newBaidu(desc Descriptor, creds Credentials, opts Options) *baiduProvider {
	p := &baiduProvider{
		client:   newClient(desc, creds, opts),
		tokenURL: defaultBaiduTokenURL,
		apiURL:   defaultBaiduAPI,
	}
	p.tokens = sign.NewTokenSource(p.fetchToken, sign.DefaultRefreshMargin)
	return p
}

type baiduTokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type baiduResponse struct {
	ErrNo  int      `json:"err_no"`
	ErrMsg string   `json:"err_msg"`
	Result []string `json:"result"`
}

// fetchToken performs the client-credentials exchange. Baidu answers 200
// with an error field on bad credentials, so both paths are checked.
func (p *baiduProvider) fetchToken(ctx context.Context) (sign.Token, error) {
	params := url.Values{}
	params.Set("grant_type", "client_credentials")
	params.Set("client_id", p.creds.APIKey)
	params.Set("client_secret", p.creds.APISecret)

	resp, err := p.doBytes(ctx, http.MethodPost, p.tokenURL+"?"+params.Encode(), "application/x-www-form-urlencoded", nil, nil)
	if err != nil {
		return sign.Token{}, err
	}
	var tok baiduTokenResponse
	if err := decodeJSON(resp.body, &tok); err != nil {
		if !resp.ok() {
			return sign.Token{}, fmt.Errorf("token endpoint status %d", resp.status)
		}
		return sign.Token{}, err
	}
	if !resp.ok() || tok.Error != "" {
		return sign.Token{}, fmt.Errorf("token exchange rejected: %s %s", tok.Error, tok.ErrorDescription)
	}
	if tok.AccessToken == "" {
		return sign.Token{}, fmt.Errorf("token exchange returned no access_token")
	}
	return sign.Token{
		Value:  tok.AccessToken,
		Expiry: time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}, nil
}

func (p *baiduProvider) Transcribe(ctx context.Context, pcm []byte, language string) (*Result, error) {
	if err := p.checkAudio(pcm); err != nil {
		return nil, err
	}
	return p.recognize(ctx, pcm, "pcm", language)
}

func (p *baiduProvider) TranscribeFile(ctx context.Context, data []byte, mimeType, language string) (*Result, error) {
	return p.recognize(ctx, data, baiduFormat(mimeType), language)
}

func (p *baiduProvider) recognize(ctx context.Context, data []byte, format, language string) (*Result, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, wrapError(ErrRecognitionFailed, err, "obtain token")
	}

	cuid := p.creds.AppID
	if cuid == "" {
		cuid = "stt-gateway"
	}
	payload := map[string]any{
		"format":  format,
		"rate":    audio.SampleRate,
		"channel": audio.Channels,
		"cuid":    cuid,
		"token":   token,
		"dev_pid": baiduDevPID(language),
		"speech":  base64.StdEncoding.EncodeToString(data),
		"len":     len(data),
	}

	var out baiduResponse
	if err := p.postJSON(ctx, p.apiURL, payload, nil, &out); err != nil {
		return nil, err
	}
	switch out.ErrNo {
	case 0:
	case baiduErrQuality, baiduErrNoSpeech:
		return nil, newError(ErrNoSpeechDetected, "provider reported no usable speech (err_no %d)", out.ErrNo)
	case baiduErrAuth:
		p.tokens.Invalidate()
		return nil, newError(ErrRecognitionFailed, "authentication rejected: %s", out.ErrMsg)
	case baiduErrRateLimit:
		return nil, newError(ErrRecognitionFailed, "rate limited: %s", out.ErrMsg)
	default:
		return nil, newError(ErrRecognitionFailed, "err_no %d: %s", out.ErrNo, out.ErrMsg)
	}

	text := strings.TrimSpace(strings.Join(out.Result, ""))
	if text == "" {
		return nil, newError(ErrNoSpeechDetected, "empty transcript")
	}
	return p.result(text, language, ""), nil
}

func (p *baiduProvider) ValidateCredentials(ctx context.Context) error {
	p.tokens.Invalidate()
	if _, err := p.tokens.Token(ctx); err != nil {
		if retry.IsNetworkError(err) {
			return p.validationFailure(err)
		}
		ve := newValidationError(ValidationInvalidCredentials, "token exchange failed")
		ve.Err = err
		return ve
	}
	return nil
}

// baiduDevPID maps a language hint onto Baidu's model selector.
func baiduDevPID(language string) int {
	switch strings.ToLower(language) {
	case "en", "en-us":
		return 1737
	case "yue", "zh-hk":
		return 1637
	default:
		return 1537 // Mandarin with simple English
	}
}

// baiduFormat maps a MIME container onto the format field.
func baiduFormat(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/amr":
		return "amr"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "m4a"
	default:
		return "pcm"
	}
}
