package speech

import (
	"context"
	"encoding/base64"
	"net/url"
	"strings"
	"time"

	"github.com/snarg/stt-gateway/internal/sign"
)

const (
	defaultIFlytekWS = "wss://iat-api.xfyun.cn/v2/iat"

	// iflytekChunkBytes is 40ms of canonical PCM, the frame size the
	// service documents for live input.
	iflytekChunkBytes = 1280
	iflytekFrameGap   = 40 * time.Millisecond

	iflytekStatusFirst = 0
	iflytekStatusMid   = 1
	iflytekStatusLast  = 2
)

// iflytekProvider speaks the IAT WebSocket protocol: the dial URL carries a
// host/date HMAC signature, audio rides base64-encoded inside JSON frames
// with a status marker, and the final result frame echoes status 2 back.
type iflytekProvider struct {
	client
	wsURL    string
	frameGap time.Duration
}

func newIFlytek(desc Descriptor, creds Credentials, opts Options) *iflytekProvider {
	return &iflytekProvider{
		client:   newClient(desc, creds, opts),
		wsURL:    defaultIFlytekWS,
		frameGap: iflytekFrameGap,
	}
}

type iflytekFrame struct {
	Common   *iflytekCommon   `json:"common,omitempty"`
	Business *iflytekBusiness `json:"business,omitempty"`
	Data     iflytekData      `json:"data"`
}

type iflytekCommon struct {
	AppID string `json:"app_id"`
}

type iflytekBusiness struct {
	Language string `json:"language"`
	Domain   string `json:"domain"`
	Accent   string `json:"accent,omitempty"`
}

type iflytekData struct {
	Status   int    `json:"status"`
	Format   string `json:"format"`
	Encoding string `json:"encoding"`
	Audio    string `json:"audio"`
}

type iflytekResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
		Result struct {
			WS []struct {
				CW []struct {
					W string `json:"w"`
				} `json:"cw"`
			} `json:"ws"`
		} `json:"result"`
	} `json:"data"`
}

// signedURL builds the dial URL; the signature covers the host and path of
// the configured endpoint plus the current date.
func (p *iflytekProvider) signedURL(now time.Time) (string, error) {
	u, err := url.Parse(p.wsURL)
	if err != nil {
		return "", err
	}
	query := sign.HostDateQuery(p.creds.APIKey, p.creds.APISecret, u.Host, u.Path, now)
	return p.wsURL + "?" + query, nil
}

func (p *iflytekProvider) Transcribe(ctx context.Context, pcm []byte, language string) (*Result, error) {
	if err := p.checkAudio(pcm); err != nil {
		return nil, err
	}

	wsURL, err := p.signedURL(time.Now())
	if err != nil {
		return nil, wrapError(ErrRecognitionFailed, err, "sign url")
	}

	business := &iflytekBusiness{
		Language: iflytekLang(language),
		Domain:   "iat",
	}
	if business.Language == "zh_cn" {
		business.Accent = "mandarin"
	}

	var text strings.Builder
	send := func(ws *wsConn) error {
		err := pace(ctx, pcm, iflytekChunkBytes, p.frameGap, func(chunk []byte, first, last bool) error {
			frame := iflytekFrame{
				Data: iflytekData{
					Status:   iflytekStatusMid,
					Format:   "audio/L16;rate=16000",
					Encoding: "raw",
					Audio:    base64.StdEncoding.EncodeToString(chunk),
				},
			}
			if first {
				frame.Data.Status = iflytekStatusFirst
				frame.Common = &iflytekCommon{AppID: p.creds.AppID}
				frame.Business = business
			}
			return ws.writeJSON(frame)
		})
		if err != nil {
			return err
		}
		return ws.writeJSON(iflytekFrame{Data: iflytekData{
			Status:   iflytekStatusLast,
			Format:   "audio/L16;rate=16000",
			Encoding: "raw",
		}})
	}
	recv := func(msgType int, data []byte) (bool, error) {
		var resp iflytekResponse
		if err := decodeJSON(data, &resp); err != nil {
			return false, err
		}
		if resp.Code != 0 {
			return false, newError(ErrRecognitionFailed, "code %d: %s", resp.Code, resp.Message)
		}
		for _, w := range resp.Data.Result.WS {
			for _, c := range w.CW {
				text.WriteString(c.W)
			}
		}
		return resp.Data.Status == iflytekStatusLast, nil
	}

	if err := p.stream(ctx, wsURL, nil, send, recv); err != nil {
		return nil, err
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return nil, newError(ErrNoSpeechDetected, "empty transcript")
	}
	return p.result(out, language, "iat"), nil
}

func (p *iflytekProvider) TranscribeFile(ctx context.Context, data []byte, mimeType, language string) (*Result, error) {
	pcm, ok := trimToPCM(data, mimeType)
	if !ok {
		return nil, newError(ErrRecognitionFailed, "unsupported container %q for streaming input", mimeType)
	}
	return p.Transcribe(ctx, pcm, language)
}

func (p *iflytekProvider) ValidateCredentials(ctx context.Context) error {
	wsURL, err := p.signedURL(time.Now())
	if err != nil {
		ve := newValidationError(ValidationUnknown, "sign url failed")
		ve.Err = err
		return ve
	}
	return p.validateStream(ctx, wsURL, nil)
}

// iflytekLang maps a language hint onto the IAT language selector.
func iflytekLang(language string) string {
	switch strings.ToLower(language) {
	case "en", "en-us", "en_us":
		return "en_us"
	default:
		return "zh_cn"
	}
}
