package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/snarg/stt-gateway/internal/metrics"
	"github.com/snarg/stt-gateway/internal/speech"
)

// ValidateResponse is the body of POST /api/v1/providers/{id}/validate.
type ValidateResponse struct {
	Provider string `json:"provider"`
	Valid    bool   `json:"valid"`
	Code     string `json:"code,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ValidateHandler probes a provider with the stored credentials.
type ValidateHandler struct {
	src *ProviderSource
}

func NewValidateHandler(src *ProviderSource) *ValidateHandler {
	return &ValidateHandler{src: src}
}

func (h *ValidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.src.Provider(id)
	if err != nil {
		WriteError(w, providerStatus(err), err.Error())
		return
	}
	defer p.Release()

	err = p.ValidateCredentials(r.Context())

	outcome := "ok"
	if err != nil {
		outcome = validationLabel(err)
	}
	metrics.ValidateRequestsTotal.WithLabelValues(id, outcome).Inc()

	if err == nil {
		WriteJSON(w, http.StatusOK, ValidateResponse{Provider: id, Valid: true})
		return
	}

	resp := ValidateResponse{Provider: id, Valid: false}
	var ve *speech.ValidationError
	if errors.As(err, &ve) {
		resp.Code = ve.Code.String()
		resp.Error = ve.Message
		WriteJSON(w, statusForValidation(ve.Code), resp)
		return
	}
	resp.Code = speech.ValidationUnknown.String()
	resp.Error = err.Error()
	WriteJSON(w, http.StatusInternalServerError, resp)
}

func validationLabel(err error) string {
	return strings.ToLower(speech.ValidationCodeOf(err).String())
}

// statusForValidation maps validation outcomes onto HTTP statuses as seen
// from the facade: bad secrets read as 401, provider trouble as 5xx.
func statusForValidation(code speech.ValidationCode) int {
	switch code {
	case speech.ValidationInvalidCredentials:
		return http.StatusUnauthorized
	case speech.ValidationWrongEndpointOrRegion:
		return http.StatusUnprocessableEntity
	case speech.ValidationRateLimited:
		return http.StatusTooManyRequests
	case speech.ValidationProviderUnavailable:
		return http.StatusServiceUnavailable
	case speech.ValidationNetworkError:
		return http.StatusBadGateway
	case speech.ValidationTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
