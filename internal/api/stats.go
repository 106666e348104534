package api

import (
	"net/http"
	"time"

	"github.com/Bapt252/Nextvision-sub001/pkg/cache"
	"github.com/Bapt252/Nextvision-sub001/pkg/health"
	"github.com/Bapt252/Nextvision-sub001/pkg/version"
)

// CacheStats exposes cache counters. *cache.MultiLevel satisfies it.
type CacheStats interface {
	Snapshot() cache.StatsSnapshot
}

// StatsHandler reports runtime counters: cache tiers, service health,
// uptime.
type StatsHandler struct {
	cache    CacheStats
	registry *health.Registry
	started  time.Time
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(c CacheStats, registry *health.Registry) *StatsHandler {
	return &StatsHandler{
		cache:    c,
		registry: registry,
		started:  time.Now(),
	}
}

// StatsResponse is the GET /api/stats payload.
type StatsResponse struct {
	Version  string                          `json:"version"`
	UptimeS  int64                           `json:"uptime_s"`
	Cache    cache.StatsSnapshot             `json:"cache"`
	Services map[string]health.ServiceStatus `json:"services"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Version:  version.Version,
		UptimeS:  int64(time.Since(h.started).Seconds()),
		Services: h.registry.Snapshot(),
	}
	if h.cache != nil {
		resp.Cache = h.cache.Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}
