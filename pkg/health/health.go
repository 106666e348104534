// Package health tracks the operational state of the engine's external
// dependencies. Services report request outcomes into a sliding window;
// resilience components and degradation handlers set explicit states.
// Everything here is safe for concurrent use.
package health

import (
	"fmt"
	"sync"
	"time"
)

// Well-known service names.
const (
	ServiceGeocoding = "geocoding"
	ServiceRouting   = "routing"
	ServiceCacheL2   = "cache_l2"
)

// State describes how functional a service currently is.
type State int

// States, ordered from best to worst.
const (
	StateHealthy State = iota
	StateDegraded
	StateFailing
	StateCircuitOpen
	StateDown
)

var stateNames = map[State]string{
	StateHealthy:     "HEALTHY",
	StateDegraded:    "DEGRADED",
	StateFailing:     "FAILING",
	StateCircuitOpen: "CIRCUIT_OPEN",
	StateDown:        "DOWN",
}

// String returns a human-readable state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// MarshalText implements encoding.TextMarshaler so JSON output carries
// the state name rather than its rank.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	for st, name := range stateNames {
		if name == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown health state %q", string(b))
}

// windowSize is the number of recent outcomes kept per service.
const windowSize = 50

// serviceEntry holds the mutable health record of one service.
type serviceEntry struct {
	mu         sync.Mutex
	state      State
	reason     string
	successes  int64
	failures   int64
	window     [windowSize]bool
	windowLen  int
	windowIdx  int
	quotaUsed  int64
	quotaLimit int64
	lastChange time.Time
}

// ServiceStatus is a point-in-time view of one service.
type ServiceStatus struct {
	State       State     `json:"state"`
	Reason      string    `json:"reason,omitempty"`
	Successes   int64     `json:"successes"`
	Failures    int64     `json:"failures"`
	SuccessRate float64   `json:"success_rate"`
	QuotaUsed   int64     `json:"quota_used,omitempty"`
	QuotaLimit  int64     `json:"quota_limit,omitempty"`
	LastChange  time.Time `json:"last_change,omitempty"`
}

// Registry tracks health per service.
type Registry struct {
	mu       sync.RWMutex
	services map[string]*serviceEntry
	now      func() time.Time
}

// NewRegistry creates an empty health registry.
func NewRegistry() *Registry {
	return &Registry{
		services: make(map[string]*serviceEntry),
		now:      time.Now,
	}
}

// entry returns the record for a service, creating it if needed.
func (r *Registry) entry(service string) *serviceEntry {
	r.mu.RLock()
	e, ok := r.services[service]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double check
	if e, ok = r.services[service]; ok {
		return e
	}
	e = &serviceEntry{state: StateHealthy}
	r.services[service] = e
	return e
}

// Report records the outcome of one request against the service's
// sliding window and lifetime counters. It never changes the state;
// state transitions are decided by the callers that own the policy.
func (r *Registry) Report(service string, ok bool) {
	e := r.entry(service)
	e.mu.Lock()
	defer e.mu.Unlock()

	if ok {
		e.successes++
	} else {
		e.failures++
	}
	e.window[e.windowIdx] = ok
	e.windowIdx = (e.windowIdx + 1) % windowSize
	if e.windowLen < windowSize {
		e.windowLen++
	}
}

// SetState sets the service state with a reason. Setting the same state
// again only refreshes the reason, not the transition time.
func (r *Registry) SetState(service string, st State, reason string) {
	e := r.entry(service)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != st {
		e.lastChange = r.now()
	}
	e.state = st
	e.reason = reason
}

// StateOf returns the current state of a service. Unknown services are
// reported healthy.
func (r *Registry) StateOf(service string) State {
	r.mu.RLock()
	e, ok := r.services[service]
	r.mu.RUnlock()
	if !ok {
		return StateHealthy
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SuccessRate returns the fraction of successful outcomes over the
// sliding window. An empty window counts as fully healthy.
func (r *Registry) SuccessRate(service string) float64 {
	r.mu.RLock()
	e, ok := r.services[service]
	r.mu.RUnlock()
	if !ok {
		return 1.0
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.windowLen == 0 {
		return 1.0
	}
	hits := 0
	for i := 0; i < e.windowLen; i++ {
		if e.window[i] {
			hits++
		}
	}
	return float64(hits) / float64(e.windowLen)
}

// SetQuota records the daily quota gauge for a service.
func (r *Registry) SetQuota(service string, used, limit int64) {
	e := r.entry(service)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quotaUsed = used
	e.quotaLimit = limit
}

// Snapshot returns a copy of all service records.
func (r *Registry) Snapshot() map[string]ServiceStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]ServiceStatus, len(r.services))
	for name, e := range r.services {
		e.mu.Lock()
		rate := 1.0
		if e.windowLen > 0 {
			hits := 0
			for i := 0; i < e.windowLen; i++ {
				if e.window[i] {
					hits++
				}
			}
			rate = float64(hits) / float64(e.windowLen)
		}
		result[name] = ServiceStatus{
			State:       e.state,
			Reason:      e.reason,
			Successes:   e.successes,
			Failures:    e.failures,
			SuccessRate: rate,
			QuotaUsed:   e.quotaUsed,
			QuotaLimit:  e.quotaLimit,
			LastChange:  e.lastChange,
		}
		e.mu.Unlock()
	}
	return result
}

// Overall returns the worst state across all services. An empty
// registry is healthy.
func (r *Registry) Overall() State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	worst := StateHealthy
	for _, e := range r.services {
		e.mu.Lock()
		if e.state > worst {
			worst = e.state
		}
		e.mu.Unlock()
	}
	return worst
}
