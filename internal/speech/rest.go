package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/snarg/stt-gateway/internal/retry"
	"github.com/snarg/stt-gateway/internal/sign"
)

// signFunc mutates an outgoing request with provider authentication:
// headers, query parameters, or a full request signature.
type signFunc func(*http.Request) error

// httpResponse is a fully drained HTTP exchange result.
type httpResponse struct {
	status int
	body   []byte
}

func (r *httpResponse) ok() bool { return r.status >= 200 && r.status < 300 }

// do runs one HTTP exchange under the retry budget. build must return a
// fresh request per attempt since bodies are consumed on send. Only
// network-class failures are retried; any HTTP status is a final answer.
// An exhausted budget surfaces as a NETWORK-coded error.
func (c *client) do(ctx context.Context, build func() (*http.Request, error)) (*httpResponse, error) {
	cfg := c.opts.Retry
	notify := cfg.OnRetry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("retrying request")
		if notify != nil {
			notify(attempt, err, delay)
		}
	}
	resp, err := retry.Do(ctx, cfg, func() (*httpResponse, error) {
		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s request: %w", c.desc.ID, err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return &httpResponse{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		if retry.IsNetworkError(err) {
			return nil, wrapError(ErrNetwork, err, "%s exchange failed", c.desc.ID)
		}
		return nil, err
	}
	return resp, nil
}

// doBytes posts a raw body with the given content type and returns the
// drained response. sign may be nil for unauthenticated endpoints.
func (c *client) doBytes(ctx context.Context, method, url, contentType string, payload []byte, sign signFunc) (*httpResponse, error) {
	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if sign != nil {
			if err := sign(req); err != nil {
				return nil, fmt.Errorf("sign request: %w", err)
			}
		}
		return req, nil
	})
}

// postJSON marshals payload, posts it, and decodes a 2xx response into out.
// Non-2xx statuses come back as a coded recognition error.
func (c *client) postJSON(ctx context.Context, url string, payload any, sign signFunc, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.doBytes(ctx, http.MethodPost, url, "application/json", body, sign)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return c.statusError(resp)
	}
	if out != nil {
		return decodeJSON(resp.body, out)
	}
	return nil
}

// getJSON fetches url and decodes a 2xx response into out.
func (c *client) getJSON(ctx context.Context, url string, sign signFunc, out any) error {
	resp, err := c.doBytes(ctx, http.MethodGet, url, "", nil, sign)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return c.statusError(resp)
	}
	if out != nil {
		return decodeJSON(resp.body, out)
	}
	return nil
}

// decodeJSON parses a provider response body, folding parse failures into
// the recognition taxonomy.
func decodeJSON(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return wrapError(ErrRecognitionFailed, err, "decode response")
	}
	return nil
}

// statusError turns a non-2xx response into a recognition error carrying
// a bounded body snippet for diagnostics.
func (c *client) statusError(resp *httpResponse) *Error {
	e := newError(ErrRecognitionFailed, "%s returned status %d", c.desc.ID, resp.status)
	e.Detail = snippet(resp.body)
	return e
}

// validate runs a cheap authenticated exchange and classifies the outcome
// for ValidateCredentials: transport failures map to network/timeout codes,
// statuses map through MapStatus, 2xx means the credentials work.
func (c *client) validate(ctx context.Context, build func() (*http.Request, error)) error {
	resp, err := c.do(ctx, build)
	if err != nil {
		return c.validationFailure(err)
	}
	if resp.ok() {
		return nil
	}
	ve := newValidationError(MapStatus(resp.status), "%s returned status %d", c.desc.ID, resp.status)
	return ve
}

// validationFailure classifies a transport-level error for validation:
// deadline expiry is a timeout, everything network-shaped is NETWORK_ERROR.
func (c *client) validationFailure(err error) error {
	code := ValidationUnknown
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = ValidationTimeout
	case retry.IsNetworkError(err):
		code = ValidationNetworkError
	}
	ve := newValidationError(code, "%s validation failed", c.desc.ID)
	ve.Err = err
	return ve
}

// multipartBody renders a multipart/form-data body with one file part and
// ordered form fields, returning the boundary-bearing content type.
func multipartBody(fileField, fileName string, file []byte, fields [][2]string) (string, []byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(fileField, fileName)
	if err != nil {
		return "", nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(file); err != nil {
		return "", nil, fmt.Errorf("write form file: %w", err)
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return "", nil, fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return "", nil, fmt.Errorf("finish form: %w", err)
	}
	return w.FormDataContentType(), buf.Bytes(), nil
}

// apiKeySigner adapts a static key attachment to the request pipeline.
func apiKeySigner(k sign.APIKey) signFunc {
	return func(req *http.Request) error {
		k.Apply(req)
		return nil
	}
}

// uploadName picks a file name whose extension matches the container, for
// multipart endpoints that sniff the format from the name.
func uploadName(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "audio.wav"
	case "audio/mpeg", "audio/mp3":
		return "audio.mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "audio.m4a"
	case "audio/flac", "audio/x-flac":
		return "audio.flac"
	case "audio/ogg", "application/ogg":
		return "audio.ogg"
	case "audio/webm":
		return "audio.webm"
	default:
		return "audio.bin"
	}
}

// snippet bounds an error body for logs and error details.
func snippet(b []byte) string {
	const max = 200
	s := string(b)
	if len(s) > max {
		s = s[:max]
		for !utf8.ValidString(s) && len(s) > 0 {
			s = s[:len(s)-1]
		}
	}
	return s
}
