package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"renda-edge/internal/common/httputil"
	"renda-edge/internal/common/logging"
)

type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// HealthCheck reports dependency health
// @Summary Health check
// @Description Storage health decides the status code; other components are informational
// @Tags ops
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Components: map[string]string{"storage": "healthy"},
	}
	status := http.StatusOK

	if err := h.storage.Health(ctx); err != nil {
		h.log(r).Error("Storage health check failed", err)
		resp.Components["storage"] = "unhealthy"
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.log(r).Warn("Component unhealthy", logging.String("component", name), logging.Err(err))
			resp.Components[name] = "unhealthy"
			if resp.Status == "healthy" {
				resp.Status = "degraded"
			}
			continue
		}
		resp.Components[name] = "healthy"
	}

	httputil.WriteJSON(w, status, resp)
}
