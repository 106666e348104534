// Package api exposes the matching engine over a small JSON surface:
// scoring a single pair, running batches, and inspecting health and
// runtime stats.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Bapt252/Nextvision-sub001/pkg/version"
)

// NewServer creates and configures the HTTP server. It accepts handlers
// for all API endpoints and a shutdownFunc for graceful shutdown.
func NewServer(addr string, match *MatchHandler, batchH *BatchHandler, healthH *HealthHandler, stats *StatsHandler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// Liveness probe, plain text.
	mux.HandleFunc("GET /health", handleLiveness)

	mux.HandleFunc("GET /api/version", handleVersion)
	mux.Handle("GET /api/health", healthH)
	mux.Handle("GET /api/stats", stats)

	mux.HandleFunc("POST /api/match", match.HandleMatch)
	mux.HandleFunc("POST /api/batch", batchH.HandleBatch)

	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow the response to flush.
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// Batches legitimately run for minutes; the write timeout must
		// outlast the chunk deadlines, not police them.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

func handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
