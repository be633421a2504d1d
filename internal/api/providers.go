package api

import (
	"net/http"

	"github.com/snarg/stt-gateway/internal/speech"
)

// ProviderInfo is one row of GET /api/v1/providers.
type ProviderInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Auth       string `json:"auth"`
	Streaming  bool   `json:"streaming"`
	Realtime   bool   `json:"realtime"`
	Configured bool   `json:"configured"`
}

// ProvidersHandler lists the registered backends and whether each one has
// usable credentials.
type ProvidersHandler struct {
	src *ProviderSource
}

func NewProvidersHandler(src *ProviderSource) *ProvidersHandler {
	return &ProvidersHandler{src: src}
}

func (h *ProvidersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	descs := speech.Descriptors()
	infos := make([]ProviderInfo, 0, len(descs))
	for _, d := range descs {
		infos = append(infos, ProviderInfo{
			ID:         d.ID,
			Name:       d.Name,
			Auth:       string(d.Auth),
			Streaming:  d.Streaming,
			Realtime:   d.Realtime,
			Configured: h.src.Configured(d.ID),
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"providers": infos})
}
