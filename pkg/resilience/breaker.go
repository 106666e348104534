package resilience

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/sony/gobreaker"

	"github.com/Bapt252/Nextvision-sub001/pkg/config"
	"github.com/Bapt252/Nextvision-sub001/pkg/health"
)

// BreakerRegistry manages one circuit breaker per service. Breakers are
// created lazily and their state changes are mirrored into the health
// registry.
type BreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
	cfg      config.BreakerConfig
	health   *health.Registry
}

// NewBreakerRegistry creates a registry with the given thresholds.
func NewBreakerRegistry(cfg config.BreakerConfig, h *health.Registry) *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		cfg:      cfg,
		health:   h,
	}
}

// Get returns the breaker for a service, creating it if needed.
func (r *BreakerRegistry) Get(service string) *gobreaker.CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[service]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double check
	if cb, ok = r.breakers[service]; ok {
		return cb
	}

	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: uint32(r.cfg.HalfOpenSuccesses),
		Timeout:     r.cfg.RecoveryTimeout.Std(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= r.cfg.FailureThreshold
		},
		OnStateChange: r.onStateChange,
		// Client-side mistakes say nothing about the service; only
		// infrastructure failures count toward tripping.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			k := Classify(err)
			return k == KindClient || k == KindValidation || k == KindCanceled
		},
	})
	r.breakers[service] = cb
	return cb
}

// Execute runs fn through the service's breaker. A rejected call comes
// back classified as KindCircuitOpen.
func (r *BreakerRegistry) Execute(service string, fn func() error) error {
	_, err := r.Get(service).Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return E(KindCircuitOpen, service, err)
	}
	return err
}

// State returns the breaker state for a service. Services without a
// breaker yet report closed.
func (r *BreakerRegistry) State(service string) gobreaker.State {
	r.mu.RLock()
	cb, ok := r.breakers[service]
	r.mu.RUnlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

func (r *BreakerRegistry) onStateChange(name string, from, to gobreaker.State) {
	slog.Warn("Circuit breaker state change", "service", name, "from", from.String(), "to", to.String())
	if r.health == nil {
		return
	}
	switch to {
	case gobreaker.StateOpen:
		r.health.SetState(name, health.StateCircuitOpen, "circuit open after repeated failures")
	case gobreaker.StateHalfOpen:
		r.health.SetState(name, health.StateDegraded, "circuit half-open, probing recovery")
	case gobreaker.StateClosed:
		r.health.SetState(name, health.StateHealthy, "circuit closed")
	}
}
