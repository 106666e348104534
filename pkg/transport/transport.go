// Package transport scores the commute side of a match. It resolves the
// candidate's home and the job's office through the geocoder, routes every
// accepted mode at the next plausible commute departure, and folds the
// per-mode assessments into a single transport subscore.
//
// The scorer degrades instead of failing: when either address cannot be
// resolved reliably it returns a neutral score flagged Unreliable, and a
// full-remote role short-circuits without touching the routing stack.
package transport

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Bapt252/Nextvision-sub001/pkg/config"
	"github.com/Bapt252/Nextvision-sub001/pkg/geo"
	"github.com/Bapt252/Nextvision-sub001/pkg/model"
)

const (
	fullRemoteScore        = 0.95
	neutralScore           = 0.5
	zeroCompatibleBaseline = 0.3
	maxRemoteBoost         = 0.2

	timeCompatWeight  = 0.5
	efficiencyWeight  = 0.25
	reliabilityWeight = 0.25
)

// Geocoder resolves a free-text address to coordinates. *maps.Geocoder
// satisfies it.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (model.GeocodeResult, error)
}

// Router computes routes and knows the commuting calendar of its region.
// *maps.Router satisfies it.
type Router interface {
	Route(ctx context.Context, origin, dest geo.Point, mode model.TransportMode, departure time.Time) (model.Route, error)
	NextCommuteDeparture(from time.Time) time.Time
	InRushHour(t time.Time) bool
}

// Deps carries the collaborators of a Scorer.
type Deps struct {
	Geocoder  Geocoder
	Router    Router
	Transport config.TransportConfig
}

// Scorer turns a candidate/job pair into a TransportAnalysis.
type Scorer struct {
	geocoder Geocoder
	router   Router
	cfg      config.TransportConfig
	now      func() time.Time
}

// NewScorer builds a transport scorer from its dependencies.
func NewScorer(deps Deps) *Scorer {
	return &Scorer{
		geocoder: deps.Geocoder,
		router:   deps.Router,
		cfg:      deps.Transport,
		now:      time.Now,
	}
}

// Score evaluates the commute between the candidate's home and the job's
// office across every accepted mode. It returns an error only on
// cancellation; provider trouble is absorbed into a degraded analysis.
func (s *Scorer) Score(ctx context.Context, c *model.CandidateProfile, j *model.JobRequirement) (model.TransportAnalysis, error) {
	analysis := model.TransportAnalysis{
		CandidateID: c.ID,
		JobID:       j.ID,
		Source:      model.SourceNone,
	}

	if j.RemotePolicy == model.RemoteFull {
		analysis.Score = fullRemoteScore
		analysis.Explanations = append(analysis.Explanations, "full-remote role, commute not a factor")
		return analysis, nil
	}

	budgets, skipped := acceptedBudgets(c.Mobility)
	for _, mode := range skipped {
		analysis.Explanations = append(analysis.Explanations,
			fmt.Sprintf("%s skipped, no commute budget stated", mode))
	}
	if len(budgets) == 0 {
		s.scoreWithoutCommute(&analysis, c, j, "candidate lists no usable transport mode")
		return analysis, nil
	}

	home, err := s.geocoder.Geocode(ctx, c.HomeAddress)
	if err != nil {
		return analysis, err
	}
	office, err := s.geocoder.Geocode(ctx, j.OfficeAddress)
	if err != nil {
		return analysis, err
	}
	if !home.Reliable() || !office.Reliable() {
		analysis.Score = neutralScore
		analysis.Unreliable = true
		analysis.Explanations = append(analysis.Explanations, unresolvedExplanation(home, office))
		analysis.Recommendations = append(analysis.Recommendations, "provide a more specific address")
		return analysis, nil
	}

	departure := s.router.NextCommuteDeparture(s.now())

	assessments := make([]model.ModeAssessment, len(budgets))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range budgets {
		g.Go(func() error {
			route, err := s.router.Route(gctx, home.Point, office.Point, b.mode, departure)
			if err != nil {
				return err
			}
			assessments[i] = s.assess(b, route, c, j, departure)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return analysis, err
	}

	s.aggregate(&analysis, c, j, assessments)
	return analysis, nil
}

// aggregate folds per-mode assessments into the analysis score.
func (s *Scorer) aggregate(analysis *model.TransportAnalysis, c *model.CandidateProfile, j *model.JobRequirement, assessments []model.ModeAssessment) {
	analysis.Assessments = assessments

	allLive := true
	var compatible []model.ModeAssessment
	for _, a := range assessments {
		analysis.Explanations = append(analysis.Explanations, a.Explanation)
		if a.Route.Source != model.SourceLive {
			allLive = false
		}
		if a.Feasible {
			compatible = append(compatible, a)
			analysis.CompatibleModes = append(analysis.CompatibleModes, a.Mode)
		}
	}
	if allLive {
		analysis.Source = model.SourceLive
	} else {
		analysis.Source = model.SourceFallback
	}

	if len(compatible) == 0 {
		s.scoreWithoutCommute(analysis, c, j, "no transport mode fits the commute budget")
		return
	}

	var effSum, relSum float64
	for _, a := range compatible {
		effSum += a.Efficiency()
		relSum += a.Reliability
	}
	n := float64(len(compatible))
	analysis.TimeCompat = n / float64(len(assessments))
	analysis.Efficiency = effSum / n
	analysis.Reliability = relSum / n
	analysis.Flexibility = s.flexibilityBonus(len(compatible), c, j)
	analysis.Score = model.Clamp01(
		timeCompatWeight*analysis.TimeCompat*analysis.Flexibility +
			efficiencyWeight*analysis.Efficiency +
			reliabilityWeight*analysis.Reliability)

	best := bestOf(compatible)
	analysis.BestMode = best.Mode
	analysis.Explanations = append(analysis.Explanations,
		fmt.Sprintf("best option %s at %.0f min", best.Mode, best.Route.EffectiveMinutes()))
}

// scoreWithoutCommute applies the conservative baseline used when no mode
// works, lifted by the job's remote allowance when the candidate would
// take it.
func (s *Scorer) scoreWithoutCommute(analysis *model.TransportAnalysis, c *model.CandidateProfile, j *model.JobRequirement, cause string) {
	analysis.Score = zeroCompatibleBaseline
	analysis.Explanations = append(analysis.Explanations, cause)
	if c.Mobility.RemoteDays > 0 && j.RemoteAllowed() {
		boost := float64(j.RemoteDays) / 5
		if boost > maxRemoteBoost {
			boost = maxRemoteBoost
		}
		analysis.Score += boost
		analysis.Recommendations = append(analysis.Recommendations, "consider remote")
		analysis.Explanations = append(analysis.Explanations,
			fmt.Sprintf("%d remote days per week offset the commute", j.RemoteDays))
	}
}

func unresolvedExplanation(home, office model.GeocodeResult) string {
	switch {
	case !home.Reliable() && !office.Reliable():
		return "neither address resolved reliably, neutral transport score"
	case !home.Reliable():
		return "home address did not resolve reliably, neutral transport score"
	default:
		return "office address did not resolve reliably, neutral transport score"
	}
}
