// Package batch runs one candidate against many jobs (or one job against
// many candidates) without losing positional order. Small batches run
// inline, larger ones fan out under a shared concurrency bound, and the
// largest are split into chunks so a stuck chunk cannot stall the rest.
//
// A batch never aborts on a per-item failure: errors and cancellations
// are recorded at their input positions and the remaining pairs keep
// going.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Bapt252/Nextvision-sub001/pkg/cache"
	"github.com/Bapt252/Nextvision-sub001/pkg/config"
	"github.com/Bapt252/Nextvision-sub001/pkg/model"
	"github.com/Bapt252/Nextvision-sub001/pkg/resilience"
)

// ServiceName tags orchestrator errors for classification.
const ServiceName = "batch"

// Execution modes, chosen by batch size.
const (
	ModeSequential = "sequential"
	ModePooled     = "pooled"
	ModeChunked    = "chunked"
	ModeFanOut     = "fan_out"
)

// Size thresholds between execution modes.
const (
	sequentialBelow = 10
	pooledBelow     = 50
	fanOutAbove     = 200
)

// Fallbacks when the orchestrator is built with a zero config.
const (
	defaultConcurrency = 10
	defaultChunkSize   = 50
)

// Matcher scores a single pair and exposes the result-cache key for it.
// *engine.Engine satisfies it.
type Matcher interface {
	Match(ctx context.Context, c *model.CandidateProfile, j *model.JobRequirement) (model.MatchResult, error)
	CacheKey(c *model.CandidateProfile, j *model.JobRequirement) (string, error)
}

// QuotaSource reports provider budget pressure. *maps.Geocoder satisfies
// it; a nil source means the batch never throttles.
type QuotaSource interface {
	QuotaNearLimit() bool
}

// Deps carries the orchestrator's collaborators. Cache may be nil, in
// which case the pre-scheduling probe is skipped and every pair reaches
// the matcher.
type Deps struct {
	Matcher Matcher
	Cache   cache.Cacher
	Quota   QuotaSource
	Batch   config.BatchConfig
}

// Options tunes a single run. Zero values fall back to the configured
// defaults. Priority is a caller-supplied label carried into logs and
// stats, it does not affect scheduling.
type Options struct {
	MaxConcurrency int
	ChunkSize      int
	ChunkTimeout   time.Duration
	Priority       string
}

// Item is the outcome at one input position. Exactly one of Result or
// Error is set for clean outcomes; an invariant violation sets both, the
// result carrying the alert that explains it.
type Item struct {
	Result    *model.MatchResult `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	ErrorKind string             `json:"error_kind,omitempty"`
	Cancelled bool               `json:"cancelled,omitempty"`
}

// Stats summarizes one run.
type Stats struct {
	BatchID       string        `json:"batch_id"`
	Priority      string        `json:"priority,omitempty"`
	Total         int           `json:"total"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	Cancelled     int           `json:"cancelled"`
	CacheHits     int           `json:"cache_hits"`
	Mode          string        `json:"mode"`
	Concurrency   int           `json:"concurrency"`
	QuotaDegraded bool          `json:"quota_degraded,omitempty"`
	Alerts        []model.Alert `json:"alerts,omitempty"`
	DurationMS    int64         `json:"duration_ms"`
}

// Result is a completed batch: one Item per input position plus the run
// stats.
type Result struct {
	Stats Stats  `json:"stats"`
	Items []Item `json:"items"`
}

// Orchestrator fans match work out over a bounded pool.
type Orchestrator struct {
	matcher Matcher
	cache   cache.Cacher
	quota   QuotaSource
	logger  *slog.Logger
	cfg     config.BatchConfig
}

// New builds an orchestrator from its dependencies.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		matcher: deps.Matcher,
		cache:   deps.Cache,
		quota:   deps.Quota,
		logger:  slog.With("component", "batch"),
		cfg:     deps.Batch,
	}
}

type pair struct {
	c *model.CandidateProfile
	j *model.JobRequirement
}

// MatchJobs scores one candidate against every job. Items[i] is the
// outcome for jobs[i].
func (o *Orchestrator) MatchJobs(ctx context.Context, c *model.CandidateProfile, jobs []*model.JobRequirement, opts Options) (*Result, error) {
	if c == nil {
		return nil, resilience.E(resilience.KindValidation, ServiceName, errors.New("candidate is required"))
	}
	pairs := make([]pair, len(jobs))
	for i, j := range jobs {
		pairs[i] = pair{c: c, j: j}
	}
	return o.run(ctx, pairs, opts)
}

// MatchCandidates scores every candidate against one job. Items[i] is
// the outcome for candidates[i].
func (o *Orchestrator) MatchCandidates(ctx context.Context, j *model.JobRequirement, candidates []*model.CandidateProfile, opts Options) (*Result, error) {
	if j == nil {
		return nil, resilience.E(resilience.KindValidation, ServiceName, errors.New("job is required"))
	}
	pairs := make([]pair, len(candidates))
	for i, c := range candidates {
		pairs[i] = pair{c: c, j: j}
	}
	return o.run(ctx, pairs, opts)
}

func (o *Orchestrator) run(ctx context.Context, pairs []pair, opts Options) (*Result, error) {
	started := time.Now()
	batchID := uuid.NewString()

	concurrency, chunkSize, chunkTimeout := o.effective(opts)
	quotaDegraded := o.quota != nil && o.quota.QuotaNearLimit()
	if quotaDegraded {
		concurrency = max(1, concurrency/2)
		o.logger.Warn("Provider quota near limit, batch throttled",
			"batch", batchID, "concurrency", concurrency)
	}

	mode := modeFor(len(pairs))
	o.logger.Info("Batch started",
		"batch", batchID,
		"pairs", len(pairs),
		"mode", mode,
		"concurrency", concurrency,
		"priority", opts.Priority)

	items := make([]Item, len(pairs))

	// Resolve what never needs scheduling: invalid pairs and result-cache
	// hits. Everything else lands in remaining, in input order.
	var remaining []int
	cacheHits := 0
	for i, p := range pairs {
		if p.c == nil || p.j == nil {
			mark(&items[i], resilience.E(resilience.KindValidation, ServiceName,
				errors.New("candidate and job are required")))
			continue
		}
		if o.probe(ctx, p, &items[i]) {
			cacheHits++
			continue
		}
		remaining = append(remaining, i)
	}

	switch {
	case len(remaining) == 0:
	case mode == ModeSequential:
		o.runSequential(ctx, pairs, remaining, items)
	case mode == ModePooled:
		o.runPooled(ctx, pairs, remaining, items, concurrency)
	default:
		o.runChunked(ctx, pairs, remaining, items, concurrency, chunkSize, chunkTimeout, mode == ModeFanOut)
	}

	stats := tally(items)
	stats.BatchID = batchID
	stats.Priority = opts.Priority
	stats.CacheHits = cacheHits
	stats.Mode = mode
	stats.Concurrency = concurrency
	stats.QuotaDegraded = quotaDegraded
	if quotaDegraded {
		stats.Alerts = append(stats.Alerts, model.AlertQuotaDegraded)
	}
	stats.DurationMS = time.Since(started).Milliseconds()

	o.logger.Info("Batch finished",
		"batch", batchID,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"cancelled", stats.Cancelled,
		"cache_hits", stats.CacheHits,
		"duration_ms", stats.DurationMS)

	return &Result{Stats: stats, Items: items}, nil
}

// effective merges per-run options over the configured defaults.
func (o *Orchestrator) effective(opts Options) (concurrency, chunkSize int, chunkTimeout time.Duration) {
	concurrency = opts.MaxConcurrency
	if concurrency <= 0 {
		concurrency = o.cfg.MaxConcurrency
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	chunkSize = opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = o.cfg.ChunkSize
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	chunkTimeout = opts.ChunkTimeout
	if chunkTimeout <= 0 {
		chunkTimeout = o.cfg.ChunkTimeout.Std()
	}
	return concurrency, chunkSize, chunkTimeout
}

func modeFor(n int) string {
	switch {
	case n < sequentialBelow:
		return ModeSequential
	case n < pooledBelow:
		return ModePooled
	case n <= fanOutAbove:
		return ModeChunked
	default:
		return ModeFanOut
	}
}

// probe checks the result cache so warm pairs never occupy a pool slot.
// The matcher would find the same entry, but only after being scheduled.
func (o *Orchestrator) probe(ctx context.Context, p pair, item *Item) bool {
	if o.cache == nil {
		return false
	}
	key, err := o.matcher.CacheKey(p.c, p.j)
	if err != nil {
		return false
	}
	var cached model.MatchResult
	if !cache.GetJSON(ctx, o.cache, cache.NSMatchResult, key, &cached) {
		return false
	}
	cached.Meta.FromCache = true
	item.Result = &cached
	return true
}

func (o *Orchestrator) runSequential(ctx context.Context, pairs []pair, remaining []int, items []Item) {
	for _, i := range remaining {
		o.scoreOne(ctx, pairs[i], &items[i])
	}
}

func (o *Orchestrator) runPooled(ctx context.Context, pairs []pair, remaining []int, items []Item, concurrency int) {
	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, i := range remaining {
		g.Go(func() error {
			o.scoreOne(ctx, pairs[i], &items[i])
			return nil
		})
	}
	g.Wait()
}

// runChunked groups the remaining positions into input-order chunks and
// bounds each chunk's wall time. The semaphore is shared across chunks
// so the batch-wide concurrency cap holds even when chunks overlap.
func (o *Orchestrator) runChunked(ctx context.Context, pairs []pair, remaining []int, items []Item, concurrency, chunkSize int, chunkTimeout time.Duration, parallel bool) {
	sem := semaphore.NewWeighted(int64(concurrency))
	chunks := chunkByPosition(remaining, chunkSize)

	runChunk := func(chunk []int) {
		cctx := ctx
		if chunkTimeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, chunkTimeout)
			defer cancel()
		}
		var wg sync.WaitGroup
		for _, i := range chunk {
			if err := sem.Acquire(cctx, 1); err != nil {
				// The chunk deadline passed (or the batch was cancelled)
				// while this position was still queued.
				mark(&items[i], fmt.Errorf("chunk aborted before match started: %w", err))
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				o.scoreOne(cctx, pairs[i], &items[i])
			}()
		}
		wg.Wait()
	}

	if parallel {
		var g errgroup.Group
		for _, chunk := range chunks {
			g.Go(func() error {
				runChunk(chunk)
				return nil
			})
		}
		g.Wait()
		return
	}
	for _, chunk := range chunks {
		runChunk(chunk)
	}
}

// scoreOne runs a single pair under the per-match timeout and records
// the outcome in place. It never returns an error: failures belong to
// their position, not to the batch.
func (o *Orchestrator) scoreOne(ctx context.Context, p pair, item *Item) {
	if err := ctx.Err(); err != nil {
		mark(item, fmt.Errorf("batch gave up before this match ran: %w", err))
		return
	}

	mctx := ctx
	if t := o.cfg.MatchTimeout.Std(); t > 0 {
		var cancel context.CancelFunc
		mctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	result, err := o.matcher.Match(mctx, p.c, p.j)
	if err != nil {
		// The matcher returns a partial result alongside invariant
		// errors; keep it for the alert it carries.
		if result.CandidateID != "" {
			item.Result = &result
		}
		mark(item, err)
		return
	}
	item.Result = &result
}

func mark(item *Item, err error) {
	kind := resilience.Classify(err)
	item.Error = err.Error()
	item.ErrorKind = kind.String()
	item.Cancelled = kind == resilience.KindCanceled
}

// chunkByPosition groups indexes by input position, so a chunk always
// maps to a contiguous slice of the original request even when cache
// hits punched holes in it.
func chunkByPosition(remaining []int, size int) [][]int {
	var chunks [][]int
	var current []int
	currentChunk := -1
	for _, i := range remaining {
		if c := i / size; c != currentChunk {
			if len(current) > 0 {
				chunks = append(chunks, current)
			}
			current = nil
			currentChunk = c
		}
		current = append(current, i)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

func tally(items []Item) Stats {
	stats := Stats{Total: len(items)}
	for _, item := range items {
		switch {
		case item.Cancelled:
			stats.Cancelled++
		case item.Error != "":
			stats.Failed++
		case item.Result != nil:
			stats.Succeeded++
		}
	}
	return stats
}
