package speech

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/snarg/stt-gateway/internal/audio"
	"github.com/snarg/stt-gateway/internal/sign"
)

const defaultAssemblyAIBase = "https://api.assemblyai.com/v2"

// assemblyAIProvider drives the async pipeline: upload the audio, create a
// transcript job, then poll until the job reaches a terminal status.
type assemblyAIProvider struct {
	client
	baseURL string
	key     sign.APIKey
}

func newAssemblyAI(desc Descriptor, creds Credentials, opts Options) *assemblyAIProvider {
	return &assemblyAIProvider{
		client:  newClient(desc, creds, opts),
		baseURL: defaultAssemblyAIBase,
		key:     sign.APIKey{Key: creds.APIKey, Header: "authorization"},
	}
}

type assemblyAIUpload struct {
	UploadURL string `json:"upload_url"`
}

type assemblyAIJob struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

func (p *assemblyAIProvider) Transcribe(ctx context.Context, pcm []byte, language string) (*Result, error) {
	if err := p.checkAudio(pcm); err != nil {
		return nil, err
	}
	return p.TranscribeFile(ctx, audio.WAV(pcm), "audio/wav", language)
}

func (p *assemblyAIProvider) TranscribeFile(ctx context.Context, data []byte, mimeType, language string) (*Result, error) {
	// Stage 1: upload the raw bytes.
	resp, err := p.doBytes(ctx, http.MethodPost, p.baseURL+"/upload", "application/octet-stream", data, apiKeySigner(p.key))
	if err != nil {
		return nil, wrapError(ErrUploadFailed, err, "upload audio")
	}
	if !resp.ok() {
		e := newError(ErrUploadFailed, "upload returned status %d", resp.status)
		e.Detail = snippet(resp.body)
		return nil, e
	}
	var up assemblyAIUpload
	if err := decodeJSON(resp.body, &up); err != nil {
		return nil, err
	}
	if up.UploadURL == "" {
		return nil, newError(ErrUploadFailed, "upload response missing upload_url")
	}

	// Stage 2: create the transcript job.
	payload := map[string]string{"audio_url": up.UploadURL}
	if language != "" {
		payload["language_code"] = language
	}
	var job assemblyAIJob
	if err := p.postJSON(ctx, p.baseURL+"/transcript", payload, apiKeySigner(p.key), &job); err != nil {
		var e *Error
		if errors.As(err, &e) && e.Code == ErrRecognitionFailed {
			e.Code = ErrCreateTranscriptFailed
		}
		return nil, err
	}
	if job.ID == "" {
		return nil, newError(ErrCreateTranscriptFailed, "transcript response missing id")
	}

	// Stage 3: poll to a terminal status.
	var final assemblyAIJob
	err = p.waitForJob(ctx, job.ID, func(ctx context.Context) (bool, error) {
		var st assemblyAIJob
		if err := p.getJSON(ctx, p.baseURL+"/transcript/"+job.ID, apiKeySigner(p.key), &st); err != nil {
			return false, err
		}
		done, failed := jobOutcome(st.Status)
		if failed {
			return false, newError(ErrTranscriptionError, "job %s failed: %s", job.ID, st.Error)
		}
		if done {
			final = st
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(final.Text)
	if text == "" {
		return nil, newError(ErrNoSpeechDetected, "empty transcript")
	}
	return p.result(text, language, ""), nil
}

func (p *assemblyAIProvider) ValidateCredentials(ctx context.Context) error {
	return p.validate(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/transcript?limit=1", nil)
		if err != nil {
			return nil, err
		}
		p.key.Apply(req)
		return req, nil
	})
}
