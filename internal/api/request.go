package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// maxAudioBytes caps uploads. 32 MiB is over 16 minutes of canonical PCM.
const maxAudioBytes = 32 << 20

// AudioRequest is one parsed transcription request: which backend, what
// audio, and how the audio is encoded. MimeType is empty for raw PCM.
type AudioRequest struct {
	Provider string
	Language string
	MimeType string
	Audio    []byte
}

// PCM reports whether the audio is raw linear16 rather than a container.
func (a *AudioRequest) PCM() bool {
	switch a.MimeType {
	case "", "audio/l16", "audio/x-l16", "application/octet-stream":
		return true
	}
	return false
}

// parseAudioRequest accepts either multipart/form-data (file, provider,
// language fields) or a raw audio body with provider and language supplied
// as query parameters.
func parseAudioRequest(r *http.Request) (*AudioRequest, error) {
	req := &AudioRequest{
		Provider: r.URL.Query().Get("provider"),
		Language: r.URL.Query().Get("language"),
	}

	ct := r.Header.Get("Content-Type")
	mediaType := ""
	if ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, fmt.Errorf("invalid content type %q", ct)
		}
		mediaType = mt
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		if v := r.FormValue("provider"); v != "" {
			req.Provider = v
		}
		if v := r.FormValue("language"); v != "" {
			req.Language = v
		}
		file, hdr, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("missing file part")
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("read file part: %w", err)
		}
		req.Audio = data
		req.MimeType = partMediaType(hdr)
	} else {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxAudioBytes+1))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if len(data) > maxAudioBytes {
			return nil, fmt.Errorf("audio exceeds %d bytes", maxAudioBytes)
		}
		req.Audio = data
		req.MimeType = mediaType
	}

	if req.Provider == "" {
		return nil, errors.New("missing provider")
	}
	if len(req.Audio) == 0 {
		return nil, errors.New("missing audio")
	}
	return req, nil
}

// partMediaType resolves the container type of an uploaded file part: the
// part's own Content-Type when it names one, otherwise the file extension.
func partMediaType(hdr *multipart.FileHeader) string {
	if ct := hdr.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			return mt
		}
	}
	switch strings.ToLower(filepath.Ext(hdr.Filename)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	case ".raw", ".pcm", ".l16":
		return "audio/l16"
	default:
		return "audio/wav"
	}
}
