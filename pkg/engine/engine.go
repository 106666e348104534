// Package engine composes the component subscores, the adaptive weight
// vector and the multiplicative penalties into a MatchResult.
//
// The engine never propagates a raw provider error: the transport side
// already degrades to neutral or estimated data, so an error from Match
// means bad input, cancellation or a broken invariant. Results are
// cached under (candidate, job, weights fingerprint) and replay
// byte-identical.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Bapt252/Nextvision-sub001/pkg/cache"
	"github.com/Bapt252/Nextvision-sub001/pkg/model"
	"github.com/Bapt252/Nextvision-sub001/pkg/resilience"
	"github.com/Bapt252/Nextvision-sub001/pkg/scoring"
	"github.com/Bapt252/Nextvision-sub001/pkg/version"
	"github.com/Bapt252/Nextvision-sub001/pkg/weights"
)

// ServiceName tags engine errors for classification and degradation rules.
const ServiceName = "engine"

const (
	baseConfidence     = 0.85
	liveRoutingBonus   = 0.05
	motivationsBonus   = 0.05
	maxConfidence      = 0.98
	weightSumTolerance = 1e-6
)

// TransportScorer is the commute side of a match. *transport.Scorer
// satisfies it.
type TransportScorer interface {
	Score(ctx context.Context, c *model.CandidateProfile, j *model.JobRequirement) (model.TransportAnalysis, error)
}

// Deps carries the engine's collaborators. Cache may be nil, in which
// case every match is computed from scratch.
type Deps struct {
	Scoring   *scoring.Scorer
	Transport TransportScorer
	Weighter  *weights.Weighter
	Cache     cache.Cacher
	Version   string
}

// Engine scores one candidate against one job.
type Engine struct {
	scoring   *scoring.Scorer
	transport TransportScorer
	weighter  *weights.Weighter
	cache     cache.Cacher
	version   string
	now       func() time.Time
}

// New builds an engine from its dependencies.
func New(deps Deps) *Engine {
	v := deps.Version
	if v == "" {
		v = version.Version
	}
	return &Engine{
		scoring:   deps.Scoring,
		transport: deps.Transport,
		weighter:  deps.Weighter,
		cache:     deps.Cache,
		version:   v,
		now:       time.Now,
	}
}

// Match scores the pair. The result cache is probed before the transport
// stack is touched; pure subscores are cheap enough to recompute for the
// fingerprint. On an invariant violation the returned result carries the
// alert and the error explains which invariant broke.
func (e *Engine) Match(ctx context.Context, c *model.CandidateProfile, j *model.JobRequirement) (model.MatchResult, error) {
	if err := validatePair(c, j); err != nil {
		return model.MatchResult{}, err
	}

	motScore, motReason, motAvailable := e.scoring.Motivations(c, j)

	vector, err := e.weighter.For(c, motAvailable)
	if err != nil {
		return model.MatchResult{}, resilience.E(resilience.KindInternal, ServiceName, err)
	}

	key := cache.Key(cache.NSMatchResult, c.ID, j.ID, vector.Fingerprint())
	if e.cache != nil {
		var cached model.MatchResult
		if cache.GetJSON(ctx, e.cache, cache.NSMatchResult, key, &cached) {
			cached.Meta.FromCache = true
			slog.Debug("Match replayed from cache", "candidate", c.ID, "job", j.ID)
			return cached, nil
		}
	}

	analysis, err := e.transport.Score(ctx, c, j)
	if err != nil {
		return model.MatchResult{}, resilience.E(resilience.Classify(err), ServiceName, err)
	}

	subscores := make(map[string]float64, 7)
	reasons := make(map[string]string, 7)
	subscores[model.ComponentSemantic], reasons[model.ComponentSemantic] = e.scoring.Semantic(c, j)
	subscores[model.ComponentHierarchical], reasons[model.ComponentHierarchical] = e.scoring.Hierarchical(c, j)
	subscores[model.ComponentCompensation], reasons[model.ComponentCompensation] = e.scoring.Compensation(c, j)
	subscores[model.ComponentExperience], reasons[model.ComponentExperience] = e.scoring.Experience(c, j)
	subscores[model.ComponentLocation] = analysis.Score
	reasons[model.ComponentLocation] = transportSummary(analysis, j)
	subscores[model.ComponentSector], reasons[model.ComponentSector] = e.scoring.Sectoral(c, j)
	subscores[model.ComponentMotivations] = motScore
	reasons[model.ComponentMotivations] = motReason

	result := model.MatchResult{
		CandidateID: c.ID,
		JobID:       j.ID,
		Subscores:   subscores,
		Weights:     vector,
		Transport:   &analysis,
	}

	if err := checkInvariants(subscores, vector); err != nil {
		result.Alerts = append(result.Alerts, model.AlertInvariantViolation)
		return result, resilience.E(resilience.KindInternal, ServiceName, err)
	}

	// Summed in canonical component order so equal inputs always produce
	// bit-equal floats.
	var weighted float64
	for _, name := range model.Components() {
		weighted += subscores[name] * vector[name]
	}

	overq, overqAlert := e.scoring.Overqualification(c, j)
	sect, sectApplied := e.scoring.SectoralPenalty(c, j)

	final := weighted
	var penalties []model.Penalty
	if overq.Factor < 1 {
		penalties = append(penalties, overq)
		final *= overq.Factor
	}
	if sectApplied {
		penalties = append(penalties, sect)
		final *= sect.Factor
	}
	final = model.Clamp01(final)

	var alerts []model.Alert
	if overqAlert {
		alerts = append(alerts, model.AlertOverqualification)
	}
	if sectApplied {
		alerts = append(alerts, model.AlertSectoralPenalty)
	}
	if analysis.Unreliable {
		alerts = append(alerts, model.AlertTransportUnreliable)
	}

	recommendation := model.RecommendationFor(final, sectApplied)
	if noCommutePossible(c, j) {
		alerts = append(alerts, model.AlertNoTransport)
		recommendation = model.NoMatch
	}

	confidence := baseConfidence
	if analysis.Source == model.SourceLive && !analysis.Unreliable {
		confidence += liveRoutingBonus
	}
	if motAvailable {
		confidence += motivationsBonus
	}
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	explanations := make([]string, 0, 7+len(penalties)+len(analysis.Explanations))
	for _, name := range model.Components() {
		weight, used := vector[name]
		if !used {
			explanations = append(explanations,
				fmt.Sprintf("%s: unavailable, weight redistributed (%s)", name, reasons[name]))
			continue
		}
		explanations = append(explanations,
			fmt.Sprintf("%s: %.2f at weight %.2f (%s)", name, subscores[name], weight, reasons[name]))
	}
	for _, p := range penalties {
		explanations = append(explanations, fmt.Sprintf("%s penalty x%.2f (%s)", p.Code, p.Factor, p.Reason))
	}
	for _, r := range analysis.Recommendations {
		explanations = append(explanations, "recommendation: "+r)
	}
	for _, line := range analysis.Explanations {
		explanations = append(explanations, "transport: "+line)
	}

	result.Score = final
	result.Recommendation = recommendation
	result.Penalties = penalties
	result.Alerts = alerts
	result.Confidence = confidence
	result.Explanations = explanations
	result.Meta = model.EngineMeta{
		Version:         e.version,
		ComputedAt:      e.now().UTC(),
		TransportSource: analysis.Source,
	}

	if e.cache != nil {
		cache.SetJSON(ctx, e.cache, cache.NSMatchResult, key, result)
	}
	slog.Debug("Match scored",
		"candidate", c.ID, "job", j.ID,
		"score", fmt.Sprintf("%.3f", final),
		"recommendation", recommendation)
	return result, nil
}

// CacheKey is the result-cache key the engine would use for the pair.
// The batch orchestrator probes with it before scheduling work.
func (e *Engine) CacheKey(c *model.CandidateProfile, j *model.JobRequirement) (string, error) {
	_, _, motAvailable := e.scoring.Motivations(c, j)
	vector, err := e.weighter.For(c, motAvailable)
	if err != nil {
		return "", resilience.E(resilience.KindInternal, ServiceName, err)
	}
	return cache.Key(cache.NSMatchResult, c.ID, j.ID, vector.Fingerprint()), nil
}

func validatePair(c *model.CandidateProfile, j *model.JobRequirement) error {
	switch {
	case c == nil || j == nil:
		return resilience.E(resilience.KindValidation, ServiceName, errors.New("candidate and job are required"))
	case c.ID == "":
		return resilience.E(resilience.KindValidation, ServiceName, errors.New("candidate id is required"))
	case j.ID == "":
		return resilience.E(resilience.KindValidation, ServiceName, errors.New("job id is required"))
	}
	return nil
}

// checkInvariants guards the composition contract: every subscore in
// [0, 1] and the weight vector summing to one.
func checkInvariants(subscores map[string]float64, vector weights.Vector) error {
	for _, name := range model.Components() {
		if s := subscores[name]; s < 0 || s > 1 || math.IsNaN(s) {
			return fmt.Errorf("subscore %s = %g outside [0, 1]", name, s)
		}
	}
	if sum := vector.Sum(); math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("weights sum to %g, want 1", sum)
	}
	return nil
}

// noCommutePossible reports that the candidate stated no usable transport
// mode and remote work cannot bridge the gap either.
func noCommutePossible(c *model.CandidateProfile, j *model.JobRequirement) bool {
	for _, mode := range c.Mobility.AcceptedModes() {
		if c.Mobility.AllowedMinutes(mode) > 0 {
			return false
		}
	}
	if j.RemotePolicy == model.RemoteFull {
		return false
	}
	return !(c.Mobility.RemoteDays > 0 && j.RemoteAllowed())
}

// transportSummary condenses the analysis into the location explanation.
func transportSummary(a model.TransportAnalysis, j *model.JobRequirement) string {
	if j.RemotePolicy == model.RemoteFull {
		return "full-remote role, commute not a factor"
	}
	if a.Unreliable {
		return "addresses did not resolve, neutral score"
	}
	if a.BestMode != "" {
		for _, m := range a.Assessments {
			if m.Mode == a.BestMode {
				return fmt.Sprintf("best option %s at %.0f min, %d/%d modes compatible",
					a.BestMode, m.Route.EffectiveMinutes(), len(a.CompatibleModes), len(a.Assessments))
			}
		}
	}
	if len(a.Assessments) > 0 {
		return fmt.Sprintf("0/%d modes compatible", len(a.Assessments))
	}
	return "no usable transport mode"
}
