package speech

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/snarg/stt-gateway/internal/audio"
	"github.com/snarg/stt-gateway/internal/retry"
	"github.com/snarg/stt-gateway/internal/sign"
)

const defaultIBMTokenURL = "https://iam.cloud.ibm.com/identity/token"

// ibmProvider exchanges its API key for an IAM bearer token and posts raw
// PCM to the instance-specific service URL from the credentials.
type ibmProvider struct {
	client
	tokenURL   string
	serviceURL string
	tokens     *sign.TokenSource
}

func newIBM(desc Descriptor, creds Credentials, opts Options) *ibmProvider {
	p := &ibmProvider{
		client:     newClient(desc, creds, opts),
		tokenURL:   defaultIBMTokenURL,
		serviceURL: strings.TrimSuffix(creds.ServiceURL, "/"),
	}
	p.tokens = sign.NewTokenSource(p.fetchToken, sign.DefaultRefreshMargin)
	return p
}

type ibmTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type ibmRecognizeResponse struct {
	Results []struct {
		Final        bool `json:"final"`
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"results"`
}

func (p *ibmProvider) fetchToken(ctx context.Context) (sign.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "urn:ibm:params:oauth:grant-type:apikey")
	form.Set("apikey", p.creds.APIKey)

	resp, err := p.doBytes(ctx, http.MethodPost, p.tokenURL, "application/x-www-form-urlencoded", []byte(form.Encode()), nil)
	if err != nil {
		return sign.Token{}, err
	}
	if !resp.ok() {
		return sign.Token{}, fmt.Errorf("IAM endpoint status %d: %s", resp.status, snippet(resp.body))
	}
	var tok ibmTokenResponse
	if err := decodeJSON(resp.body, &tok); err != nil {
		return sign.Token{}, err
	}
	if tok.AccessToken == "" {
		return sign.Token{}, fmt.Errorf("IAM response missing access_token")
	}
	return sign.Token{
		Value:  tok.AccessToken,
		Expiry: time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}, nil
}

func (p *ibmProvider) bearer(ctx context.Context) (signFunc, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, wrapError(ErrRecognitionFailed, err, "obtain token")
	}
	return apiKeySigner(sign.APIKey{Key: token, Prefix: "Bearer "}), nil
}

func (p *ibmProvider) Transcribe(ctx context.Context, pcm []byte, language string) (*Result, error) {
	if err := p.checkAudio(pcm); err != nil {
		return nil, err
	}
	contentType := fmt.Sprintf("audio/l16; rate=%d; channels=%d", audio.SampleRate, audio.Channels)
	return p.recognize(ctx, pcm, contentType, language)
}

func (p *ibmProvider) TranscribeFile(ctx context.Context, data []byte, mimeType, language string) (*Result, error) {
	return p.recognize(ctx, data, mimeType, language)
}

func (p *ibmProvider) recognize(ctx context.Context, body []byte, contentType, language string) (*Result, error) {
	signer, err := p.bearer(ctx)
	if err != nil {
		return nil, err
	}

	lang := bcp47(language, "en-US")
	params := url.Values{}
	params.Set("model", strings.Replace(lang, "-", "_", 1)+"_BroadbandModel")

	endpoint := p.serviceURL + "/v1/recognize?" + params.Encode()
	resp, err := p.doBytes(ctx, http.MethodPost, endpoint, contentType, body, signer)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		if resp.status == http.StatusUnauthorized {
			p.tokens.Invalidate()
		}
		return nil, p.statusError(resp)
	}
	var out ibmRecognizeResponse
	if err := decodeJSON(resp.body, &out); err != nil {
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
	return p.result(text, lang, ""), nil
}

func (p *ibmProvider) ValidateCredentials(ctx context.Context) error {
	p.tokens.Invalidate()
	signer, err := p.bearer(ctx)
	if err != nil {
		if retry.IsNetworkError(err) {
			return p.validationFailure(err)
		}
		ve := newValidationError(ValidationInvalidCredentials, "IAM token exchange failed")
		ve.Err = err
		return ve
	}
	return p.validate(ctx, func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, p.serviceURL+"/v1/models", nil)
		if reqErr != nil {
			return nil, reqErr
		}
		if err := signer(req); err != nil {
			return nil, err
		}
		return req, nil
	})
}
