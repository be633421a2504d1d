package api

import (
	"net/http"
	"time"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	Providers     int               `json:"providers_configured"`
	Jobs          *JobStatsData     `json:"jobs,omitempty"`
}

type JobStatsData struct {
	Pending   int   `json:"pending"`
	Running   int   `json:"running"`
	Tracked   int   `json:"tracked"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

type HealthHandler struct {
	src       *ProviderSource
	pool      *JobPool
	version   string
	startTime time.Time
}

func NewHealthHandler(src *ProviderSource, pool *JobPool, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		src:       src,
		pool:      pool,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"

	// A gateway with zero usable providers serves nothing but errors.
	configured := h.src.ConfiguredCount()
	if configured > 0 {
		checks["credentials"] = "ok"
	} else {
		checks["credentials"] = "empty"
		status = "degraded"
	}

	var jobs *JobStatsData
	if h.pool != nil {
		checks["jobs"] = "ok"
		jobs = &JobStatsData{
			Pending:   h.pool.Pending(),
			Running:   h.pool.Running(),
			Tracked:   h.pool.Tracked(),
			Completed: h.pool.Completed(),
			Failed:    h.pool.Failed(),
		}
	} else {
		checks["jobs"] = "not_configured"
	}

	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
		Providers:     configured,
		Jobs:          jobs,
	})
}
