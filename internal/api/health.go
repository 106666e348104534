package api

import (
	"net/http"

	"github.com/Bapt252/Nextvision-sub001/pkg/health"
)

// HealthHandler reports the health registry.
type HealthHandler struct {
	registry *health.Registry
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(registry *health.Registry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

// HealthResponse is the GET /api/health payload.
type HealthResponse struct {
	Overall  health.State                    `json:"overall"`
	Services map[string]health.ServiceStatus `json:"services"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Overall:  h.registry.Overall(),
		Services: h.registry.Snapshot(),
	}

	status := http.StatusOK
	if resp.Overall == health.StateDown {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
