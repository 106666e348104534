package maps

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Bapt252/Nextvision-sub001/pkg/health"
)

// QuotaTracker enforces the provider's daily request ceiling. The count
// rolls over at local midnight. Past the warn ratio callers should
// prefer cached answers; past the ceiling, or during a cooldown, live
// calls stop entirely.
type QuotaTracker struct {
	mu            sync.Mutex
	used          int
	limit         int
	warnRatio     float64
	day           int
	warned        bool
	cooldownUntil time.Time
	loc           *time.Location
	health        *health.Registry
	now           func() time.Time
}

func NewQuotaTracker(limit int, warnRatio float64, loc *time.Location, reg *health.Registry) *QuotaTracker {
	if loc == nil {
		loc = time.UTC
	}
	return &QuotaTracker{
		limit:     limit,
		warnRatio: warnRatio,
		loc:       loc,
		health:    reg,
		now:       time.Now,
	}
}

// Allow reports whether a live provider call may be issued.
func (q *QuotaTracker) Allow() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := q.now()
	q.rollover(t)
	if t.Before(q.cooldownUntil) {
		return false
	}
	return q.limit <= 0 || q.used < q.limit
}

// Consume records one billed call.
func (q *QuotaTracker) Consume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover(q.now())
	q.used++
	if q.health != nil {
		q.health.SetQuota(health.ServiceGeocoding, int64(q.used), int64(q.limit))
	}
	if !q.warned && q.limit > 0 && float64(q.used) >= q.warnRatio*float64(q.limit) {
		q.warned = true
		slog.Warn("Geocoding quota nearly exhausted, preferring cached answers",
			"used", q.used, "limit", q.limit)
	}
}

// NearLimit reports whether usage crossed the warn ratio. Batch planning
// throttles concurrency on it.
func (q *QuotaTracker) NearLimit() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover(q.now())
	return q.limit > 0 && float64(q.used) >= q.warnRatio*float64(q.limit)
}

// StartCooldown pauses live calls after the provider reports its ceiling
// reached. Retrying before the window ends would only burn attempts.
func (q *QuotaTracker) StartCooldown(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cooldownUntil = q.now().Add(d)
	slog.Warn("Geocoding provider calls paused", "until", q.cooldownUntil.In(q.loc))
}

// Used returns today's consumed count.
func (q *QuotaTracker) Used() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover(q.now())
	return q.used
}

// Limit returns the configured daily ceiling.
func (q *QuotaTracker) Limit() int {
	return q.limit
}

// rollover resets the counter when the local day changes. Callers hold mu.
func (q *QuotaTracker) rollover(t time.Time) {
	lt := t.In(q.loc)
	d := lt.Year()*1000 + lt.YearDay()
	if d != q.day {
		q.day = d
		q.used = 0
		q.warned = false
		if q.health != nil {
			q.health.SetQuota(health.ServiceGeocoding, 0, int64(q.limit))
		}
	}
}
