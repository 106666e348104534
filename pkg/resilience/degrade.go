package resilience

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Bapt252/Nextvision-sub001/pkg/health"
)

// Strategy names what a caller should do instead of the failed call.
type Strategy string

// Degradation strategies.
const (
	StrategyCacheOnly          Strategy = "CACHE_ONLY"
	StrategyApproximate        Strategy = "APPROXIMATE"
	StrategyDisableFeature     Strategy = "DISABLE_FEATURE"
	StrategySimplifiedResponse Strategy = "SIMPLIFIED_RESPONSE"
	StrategyManualIntervention Strategy = "MANUAL_INTERVENTION"
)

// Handler runs a best-effort compensation action when a rule fires,
// such as pre-warming a cache or flagging an operator alert.
type Handler func(ctx context.Context, cause error)

// Rule maps a failure to a degradation strategy. Empty Service matches
// any service; KindNone matches any error kind.
type Rule struct {
	Service  string
	Kind     Kind
	Strategy Strategy
	Handler  Handler
}

// placeholderRule applies when nothing matches. Unmapped failures need
// a human decision, not silent improvisation.
var placeholderRule = Rule{Strategy: StrategyManualIntervention}

// DegradationManager resolves failures to degradation strategies and
// keeps the health registry in sync with what degraded.
type DegradationManager struct {
	mu     sync.RWMutex
	rules  []Rule
	health *health.Registry
}

// NewDegradationManager creates an empty manager.
func NewDegradationManager(h *health.Registry) *DegradationManager {
	return &DegradationManager{health: h}
}

// Register adds a rule. Later registrations win among rules of equal
// specificity.
func (m *DegradationManager) Register(service string, kind Kind, strategy Strategy, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, Rule{Service: service, Kind: kind, Strategy: strategy, Handler: handler})
}

// Lookup returns the most specific rule for a (service, kind) pair:
// exact match, then service-wide, then kind-wide, then catch-all. When
// no rule matches, the placeholder asks for manual intervention.
func (m *DegradationManager) Lookup(service string, kind Kind) Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	best := placeholderRule
	bestRank := 0
	for _, r := range m.rules {
		if r.Service != "" && r.Service != service {
			continue
		}
		if r.Kind != KindNone && r.Kind != kind {
			continue
		}
		rank := 1
		if r.Service != "" {
			rank += 2
		}
		if r.Kind != KindNone {
			rank++
		}
		if rank >= bestRank {
			best = r
			bestRank = rank
		}
	}
	return best
}

// Apply classifies the cause, resolves the rule, updates health and
// runs the rule's handler. The returned rule tells the caller which
// fallback path to take.
func (m *DegradationManager) Apply(ctx context.Context, service string, cause error) Rule {
	kind := Classify(cause)
	rule := m.Lookup(service, kind)

	slog.Warn("Service degraded", "service", service, "kind", kind.String(), "strategy", string(rule.Strategy), "error", cause)
	m.updateHealth(service, kind, rule.Strategy)

	if rule.Handler != nil {
		rule.Handler(ctx, cause)
	}
	return rule
}

func (m *DegradationManager) updateHealth(service string, kind Kind, strategy Strategy) {
	if m.health == nil {
		return
	}
	// The breaker owns the CIRCUIT_OPEN state; don't overwrite it.
	if kind == KindCircuitOpen {
		return
	}
	reason := "degraded to " + string(strategy) + " on " + kind.String()
	switch strategy {
	case StrategyCacheOnly, StrategyApproximate, StrategySimplifiedResponse:
		m.health.SetState(service, health.StateDegraded, reason)
	case StrategyDisableFeature:
		m.health.SetState(service, health.StateFailing, reason)
	case StrategyManualIntervention:
		m.health.SetState(service, health.StateFailing, reason)
	}
}
