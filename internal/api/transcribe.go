package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/snarg/stt-gateway/internal/metrics"
	"github.com/snarg/stt-gateway/internal/speech"
)

// TranscribeResponse is the success body of POST /api/v1/transcribe.
type TranscribeResponse struct {
	Text       string `json:"text"`
	Language   string `json:"language,omitempty"`
	Provider   string `json:"provider"`
	Model      string `json:"model,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// TranscribeHandler serves synchronous one-shot transcriptions.
type TranscribeHandler struct {
	src *ProviderSource
}

func NewTranscribeHandler(src *ProviderSource) *TranscribeHandler {
	return &TranscribeHandler{src: src}
}

func (h *TranscribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := parseAudioRequest(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	res, err := Execute(r.Context(), h.src, req)
	if err != nil {
		if errors.Is(err, ErrUnknownProvider) || errors.Is(err, ErrNotConfigured) {
			WriteError(w, providerStatus(err), err.Error())
			return
		}
		writeSpeechError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, TranscribeResponse{
		Text:       res.Text,
		Language:   res.Language,
		Provider:   res.Provider,
		Model:      res.Model,
		DurationMs: time.Since(start).Milliseconds(),
	})
}

// Execute runs one transcription against a configured provider, recording
// provider metrics. The synchronous endpoint and the job workers both go
// through it.
func Execute(ctx context.Context, src *ProviderSource, req *AudioRequest) (*speech.Result, error) {
	p, err := src.Provider(req.Provider)
	if err != nil {
		return nil, err
	}
	defer p.Release()

	start := time.Now()
	var res *speech.Result
	if req.PCM() {
		res, err = p.Transcribe(ctx, req.Audio, req.Language)
	} else {
		res, err = p.TranscribeFile(ctx, req.Audio, req.MimeType, req.Language)
	}

	metrics.TranscribeDuration.WithLabelValues(req.Provider).Observe(time.Since(start).Seconds())
	metrics.TranscribeAudioBytes.Observe(float64(len(req.Audio)))
	outcome := "ok"
	if err != nil {
		outcome = outcomeLabel(err)
	}
	metrics.TranscribeRequestsTotal.WithLabelValues(req.Provider, outcome).Inc()
	return res, err
}

func outcomeLabel(err error) string {
	return strings.ToLower(speech.CodeOf(err).String())
}

// statusForCode maps the transcription taxonomy onto HTTP statuses: client
// audio problems are 422, provider-side failures 502, deadline expiry 504.
func statusForCode(code speech.ErrorCode) int {
	switch code {
	case speech.ErrAudioTooShort, speech.ErrNoSpeechDetected:
		return http.StatusUnprocessableEntity
	case speech.ErrTranscriptionTimeout:
		return http.StatusGatewayTimeout
	case speech.ErrUploadFailed, speech.ErrCreateTranscriptFailed,
		speech.ErrTranscriptionError, speech.ErrRecognitionFailed, speech.ErrNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeSpeechError renders a gateway transcription failure as a coded body.
func writeSpeechError(w http.ResponseWriter, err error) {
	var se *speech.Error
	if errors.As(err, &se) {
		WriteCodedError(w, statusForCode(se.Code), se.Code.String(), se.Message, se.Detail)
		return
	}
	WriteError(w, http.StatusInternalServerError, err.Error())
}
