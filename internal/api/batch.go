package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Bapt252/Nextvision-sub001/pkg/batch"
	"github.com/Bapt252/Nextvision-sub001/pkg/model"
	"github.com/Bapt252/Nextvision-sub001/pkg/resilience"
)

// BatchRunner runs ordered batches. *batch.Orchestrator satisfies it.
type BatchRunner interface {
	MatchJobs(ctx context.Context, c *model.CandidateProfile, jobs []*model.JobRequirement, opts batch.Options) (*batch.Result, error)
	MatchCandidates(ctx context.Context, j *model.JobRequirement, candidates []*model.CandidateProfile, opts batch.Options) (*batch.Result, error)
}

// BatchHandler serves batch scoring in both directions.
type BatchHandler struct {
	runner BatchRunner
}

// NewBatchHandler creates a BatchHandler.
func NewBatchHandler(runner BatchRunner) *BatchHandler {
	return &BatchHandler{runner: runner}
}

// BatchRequest is the POST /api/batch payload. Exactly one direction is
// allowed: candidate+jobs scores one candidate against many jobs,
// job+candidates the reverse.
type BatchRequest struct {
	Candidate  *model.CandidateProfile   `json:"candidate,omitempty"`
	Jobs       []*model.JobRequirement   `json:"jobs,omitempty"`
	Job        *model.JobRequirement     `json:"job,omitempty"`
	Candidates []*model.CandidateProfile `json:"candidates,omitempty"`
	Options    BatchOptions              `json:"options"`
}

// BatchOptions mirrors batch.Options with wire-friendly units.
type BatchOptions struct {
	MaxConcurrency int    `json:"max_concurrency,omitempty"`
	ChunkSize      int    `json:"chunk_size,omitempty"`
	ChunkTimeoutS  int    `json:"chunk_timeout_s,omitempty"`
	Priority       string `json:"priority,omitempty"`
}

func (o BatchOptions) toOptions() batch.Options {
	return batch.Options{
		MaxConcurrency: o.MaxConcurrency,
		ChunkSize:      o.ChunkSize,
		ChunkTimeout:   time.Duration(o.ChunkTimeoutS) * time.Second,
		Priority:       o.Priority,
	}
}

// HandleBatch handles POST /api/batch.
func (h *BatchHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("API: HandleBatch decode error", "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:      "invalid request body: " + err.Error(),
			Kind:       "validation",
			Suggestion: "fix the request payload",
		})
		return
	}

	var (
		result *batch.Result
		err    error
	)
	switch {
	case req.Candidate != nil && req.Job != nil:
		err = resilience.E(resilience.KindValidation, "api",
			errors.New("specify either candidate+jobs or job+candidates, not both"))
	case req.Candidate != nil:
		result, err = h.runner.MatchJobs(r.Context(), req.Candidate, req.Jobs, req.Options.toOptions())
	case req.Job != nil:
		result, err = h.runner.MatchCandidates(r.Context(), req.Job, req.Candidates, req.Options.toOptions())
	default:
		err = resilience.E(resilience.KindValidation, "api",
			errors.New("specify candidate+jobs or job+candidates"))
	}
	if err != nil {
		slog.Warn("API: batch rejected", "error", err)
		writeError(w, err)
		return
	}

	slog.Info("API: batch finished",
		"batch", result.Stats.BatchID,
		"total", result.Stats.Total,
		"succeeded", result.Stats.Succeeded,
		"failed", result.Stats.Failed,
		"cancelled", result.Stats.Cancelled,
		"mode", result.Stats.Mode)
	writeJSON(w, http.StatusOK, result)
}
