package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Bapt252/Nextvision-sub001/pkg/model"
)

// Matcher scores one candidate against one job. *engine.Engine
// satisfies it.
type Matcher interface {
	Match(ctx context.Context, c *model.CandidateProfile, j *model.JobRequirement) (model.MatchResult, error)
}

// MatchHandler serves single-pair scoring.
type MatchHandler struct {
	matcher Matcher
	timeout time.Duration
}

// NewMatchHandler creates a MatchHandler. The timeout bounds one match;
// zero disables the bound.
func NewMatchHandler(matcher Matcher, timeout time.Duration) *MatchHandler {
	return &MatchHandler{matcher: matcher, timeout: timeout}
}

// MatchRequest is the POST /api/match payload.
type MatchRequest struct {
	Candidate *model.CandidateProfile `json:"candidate"`
	Job       *model.JobRequirement   `json:"job"`
}

// HandleMatch handles POST /api/match.
func (h *MatchHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("API: HandleMatch decode error", "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:      "invalid request body: " + err.Error(),
			Kind:       "validation",
			Suggestion: "fix the request payload",
		})
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.matcher.Match(ctx, req.Candidate, req.Job)
	if err != nil {
		slog.Warn("API: match failed",
			"candidate", candidateID(req.Candidate), "job", jobID(req.Job), "error", err)
		writeError(w, err)
		return
	}

	slog.Info("API: match scored",
		"candidate", result.CandidateID,
		"job", result.JobID,
		"score", result.Score,
		"recommendation", result.Recommendation)
	writeJSON(w, http.StatusOK, result)
}

func candidateID(c *model.CandidateProfile) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func jobID(j *model.JobRequirement) string {
	if j == nil {
		return ""
	}
	return j.ID
}
