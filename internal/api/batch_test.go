package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Bapt252/Nextvision-sub001/pkg/batch"
	"github.com/Bapt252/Nextvision-sub001/pkg/model"
)

type stubRunner struct {
	jobCalls       int
	candidateCalls int
	gotJobs        int
	gotCandidates  int
	gotOpts        batch.Options
	result         *batch.Result
	err            error
}

func (s *stubRunner) MatchJobs(ctx context.Context, c *model.CandidateProfile, jobs []*model.JobRequirement, opts batch.Options) (*batch.Result, error) {
	s.jobCalls++
	s.gotJobs = len(jobs)
	s.gotOpts = opts
	return s.result, s.err
}

func (s *stubRunner) MatchCandidates(ctx context.Context, j *model.JobRequirement, candidates []*model.CandidateProfile, opts batch.Options) (*batch.Result, error) {
	s.candidateCalls++
	s.gotCandidates = len(candidates)
	s.gotOpts = opts
	return s.result, s.err
}

func cannedBatchResult(n int) *batch.Result {
	items := make([]batch.Item, n)
	for i := range items {
		items[i] = batch.Item{Result: &model.MatchResult{Score: 0.5}}
	}
	return &batch.Result{
		Stats: batch.Stats{BatchID: "b-1", Total: n, Succeeded: n, Mode: batch.ModeSequential},
		Items: items,
	}
}

func batchBody(t *testing.T, req BatchRequest) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return bytes.NewReader(data)
}

func TestBatchHandler_HandleBatch(t *testing.T) {
	candidate := &model.CandidateProfile{ID: "cand-1"}
	job := &model.JobRequirement{ID: "job-1"}
	jobs := []*model.JobRequirement{{ID: "job-1"}, {ID: "job-2"}, {ID: "job-3"}}
	candidates := []*model.CandidateProfile{{ID: "cand-1"}, {ID: "cand-2"}}

	tests := []struct {
		name           string
		request        BatchRequest
		expectedStatus int
		wantJobCalls   int
		wantCandCalls  int
	}{
		{
			name:           "CandidateAgainstJobs",
			request:        BatchRequest{Candidate: candidate, Jobs: jobs},
			expectedStatus: http.StatusOK,
			wantJobCalls:   1,
		},
		{
			name:           "JobAgainstCandidates",
			request:        BatchRequest{Job: job, Candidates: candidates},
			expectedStatus: http.StatusOK,
			wantCandCalls:  1,
		},
		{
			name:           "BothDirectionsRejected",
			request:        BatchRequest{Candidate: candidate, Jobs: jobs, Job: job, Candidates: candidates},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "NeitherDirectionRejected",
			request:        BatchRequest{},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &stubRunner{result: cannedBatchResult(3)}
			handler := NewBatchHandler(runner)

			req := httptest.NewRequest("POST", "/api/batch", batchBody(t, tt.request))
			w := httptest.NewRecorder()
			handler.HandleBatch(w, req)

			resp := w.Result()
			if resp.StatusCode != tt.expectedStatus {
				t.Fatalf("StatusCode: got %v, want %v (body %s)", resp.StatusCode, tt.expectedStatus, w.Body.String())
			}
			if runner.jobCalls != tt.wantJobCalls {
				t.Errorf("MatchJobs calls = %d, want %d", runner.jobCalls, tt.wantJobCalls)
			}
			if runner.candidateCalls != tt.wantCandCalls {
				t.Errorf("MatchCandidates calls = %d, want %d", runner.candidateCalls, tt.wantCandCalls)
			}

			if tt.expectedStatus != http.StatusOK {
				var got ErrorResponse
				if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
					t.Fatalf("failed to decode error JSON: %v", err)
				}
				if got.Kind != "validation" {
					t.Errorf("Kind = %q, want validation", got.Kind)
				}
				return
			}

			var got batch.Result
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				t.Fatalf("failed to decode JSON: %v", err)
			}
			if got.Stats.BatchID != "b-1" {
				t.Errorf("BatchID = %q, want b-1", got.Stats.BatchID)
			}
			if len(got.Items) != 3 {
				t.Errorf("len(Items) = %d, want 3", len(got.Items))
			}
		})
	}
}

func TestBatchHandlerPassesOptionsThrough(t *testing.T) {
	runner := &stubRunner{result: cannedBatchResult(1)}
	handler := NewBatchHandler(runner)

	request := BatchRequest{
		Candidate: &model.CandidateProfile{ID: "cand-1"},
		Jobs:      []*model.JobRequirement{{ID: "job-1"}},
		Options: BatchOptions{
			MaxConcurrency: 4,
			ChunkSize:      25,
			ChunkTimeoutS:  90,
			Priority:       "refresh",
		},
	}
	w := httptest.NewRecorder()
	handler.HandleBatch(w, httptest.NewRequest("POST", "/api/batch", batchBody(t, request)))

	if w.Code != http.StatusOK {
		t.Fatalf("StatusCode: got %v, want %v (body %s)", w.Code, http.StatusOK, w.Body.String())
	}
	opts := runner.gotOpts
	if opts.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", opts.MaxConcurrency)
	}
	if opts.ChunkSize != 25 {
		t.Errorf("ChunkSize = %d, want 25", opts.ChunkSize)
	}
	if opts.ChunkTimeout != 90*time.Second {
		t.Errorf("ChunkTimeout = %v, want 90s", opts.ChunkTimeout)
	}
	if opts.Priority != "refresh" {
		t.Errorf("Priority = %q, want refresh", opts.Priority)
	}
	if runner.gotJobs != 1 {
		t.Errorf("jobs forwarded = %d, want 1", runner.gotJobs)
	}
}

func TestBatchHandlerRejectsMalformedBody(t *testing.T) {
	runner := &stubRunner{result: cannedBatchResult(0)}
	handler := NewBatchHandler(runner)

	w := httptest.NewRecorder()
	handler.HandleBatch(w, httptest.NewRequest("POST", "/api/batch", bytes.NewReader([]byte("[broken"))))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("StatusCode: got %v, want %v", w.Code, http.StatusBadRequest)
	}
	if runner.jobCalls+runner.candidateCalls != 0 {
		t.Error("runner was invoked for a malformed body")
	}
}
