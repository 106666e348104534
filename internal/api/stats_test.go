package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Bapt252/Nextvision-sub001/pkg/cache"
	"github.com/Bapt252/Nextvision-sub001/pkg/health"
)

type stubCacheStats struct {
	snap cache.StatsSnapshot
}

func (s stubCacheStats) Snapshot() cache.StatsSnapshot { return s.snap }

func TestStatsHandler(t *testing.T) {
	registry := health.NewRegistry()
	registry.Report(health.ServiceGeocoding, true)

	snap := cache.StatsSnapshot{
		Namespaces: map[string]cache.Stats{
			cache.NSMatchResult: {L1Hits: 7, Misses: 2, Writes: 2},
		},
		L1Entries: 2,
	}
	handler := NewStatsHandler(stubCacheStats{snap: snap}, registry)

	req := httptest.NewRequest("GET", "/api/stats", http.NoBody)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("StatusCode: got %v, want %v", w.Code, http.StatusOK)
	}

	var got StatsResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if got.Version == "" {
		t.Error("Version is empty")
	}
	if got.UptimeS < 0 {
		t.Errorf("UptimeS = %d, want >= 0", got.UptimeS)
	}
	if got.Cache.Namespaces[cache.NSMatchResult].L1Hits != 7 {
		t.Errorf("match_result L1Hits = %d, want 7", got.Cache.Namespaces[cache.NSMatchResult].L1Hits)
	}
	if got.Cache.L1Entries != 2 {
		t.Errorf("L1Entries = %d, want 2", got.Cache.L1Entries)
	}
	if _, ok := got.Services[health.ServiceGeocoding]; !ok {
		t.Error("services map is missing the geocoding entry")
	}
}

func TestStatsHandlerWithoutCache(t *testing.T) {
	handler := NewStatsHandler(nil, health.NewRegistry())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/stats", http.NoBody))

	if w.Code != http.StatusOK {
		t.Fatalf("StatusCode: got %v, want %v", w.Code, http.StatusOK)
	}
	var got StatsResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if len(got.Cache.Namespaces) != 0 {
		t.Errorf("Namespaces = %v, want empty without a cache", got.Cache.Namespaces)
	}
}
