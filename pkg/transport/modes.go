package transport

import (
	"fmt"
	"time"

	"github.com/Bapt252/Nextvision-sub001/pkg/model"
)

const (
	flexPerExtraMode    = 0.05
	flexHoursBonus      = 0.03
	remoteDaysFlexBonus = 0.02
	maxFlexBonus        = 1.15

	transferComfortCost     = 0.05
	rushComfortCost         = 0.10
	parkingComfortCost      = 0.05
	longDistanceComfortCost = 0.10
	flexHoursComfortBonus   = 0.05

	rushReliabilityCost     = 0.10
	transferReliabilityCost = 0.05
	estimateReliabilityCost = 0.05

	// Beyond these distances a walk or ride stops being a pleasant commute.
	longWalkMeters = 2500.0
	longRideMeters = 10000.0

	minModeScore = 0.1
)

type modeBudget struct {
	mode    model.TransportMode
	allowed int
}

// acceptedBudgets pairs the candidate's accepted modes with their commute
// budgets. Modes without a stated budget cannot be judged and are skipped.
func acceptedBudgets(m model.MobilityConstraints) ([]modeBudget, []model.TransportMode) {
	var budgets []modeBudget
	var skipped []model.TransportMode
	for _, mode := range m.AcceptedModes() {
		allowed := m.AllowedMinutes(mode)
		if allowed <= 0 {
			skipped = append(skipped, mode)
			continue
		}
		budgets = append(budgets, modeBudget{mode: mode, allowed: allowed})
	}
	return budgets, skipped
}

// assess judges one routed mode against the candidate's budget. A mode is
// feasible when the door-to-door time stays within the budget plus
// tolerance and, for transit, the transfer count stays under the cap.
func (s *Scorer) assess(b modeBudget, route model.Route, c *model.CandidateProfile, j *model.JobRequirement, departure time.Time) model.ModeAssessment {
	actual := route.EffectiveMinutes()
	budget := float64(b.allowed) * (1 + s.cfg.Tolerance)

	feasible := actual <= budget
	verdict := "feasible"
	if !feasible {
		verdict = "over budget"
	}
	if feasible && b.mode == model.ModePublicTransit {
		maxTransfers := s.cfg.DefaultMaxTransfers
		if c.Mobility.MaxTransfers != nil {
			maxTransfers = *c.Mobility.MaxTransfers
		}
		if route.Transfers > maxTransfers {
			feasible = false
			verdict = fmt.Sprintf("%d transfers exceed the cap of %d", route.Transfers, maxTransfers)
		}
	}

	return model.ModeAssessment{
		Mode:           b.mode,
		Route:          route,
		AllowedMinutes: b.allowed,
		Feasible:       feasible,
		Comfort:        s.comfort(b.mode, route, c, j, departure),
		Reliability:    s.reliability(b.mode, route, departure),
		Explanation:    fmt.Sprintf("%s: %.0f min against a %d min budget (%s)", b.mode, actual, b.allowed, verdict),
	}
}

// comfort starts from the configured base for the mode and adjusts for what
// the route and the job tell us about the ride.
func (s *Scorer) comfort(mode model.TransportMode, route model.Route, c *model.CandidateProfile, j *model.JobRequirement, departure time.Time) float64 {
	score := s.cfg.Comfort[string(mode)]
	switch mode {
	case model.ModePublicTransit:
		score -= transferComfortCost * float64(route.Transfers)
	case model.ModeDriving:
		if s.router.InRushHour(departure) {
			score -= rushComfortCost
		}
		if !j.ParkingProvided {
			score -= parkingComfortCost
		}
	case model.ModeWalking:
		if route.DistanceMeters > longWalkMeters {
			score -= longDistanceComfortCost
		}
	case model.ModeCycling:
		if route.DistanceMeters > longRideMeters {
			score -= longDistanceComfortCost
		}
	}
	// Matching flexible hours let the commuter dodge the worst of the peak.
	if (mode == model.ModeDriving || mode == model.ModePublicTransit) &&
		c.Mobility.FlexibleHours && j.FlexibleHours {
		score += flexHoursComfortBonus
	}
	return clampModeScore(score)
}

// reliability starts from the configured base for the mode and discounts
// rush-hour driving, transfer-heavy transit and estimated routes.
func (s *Scorer) reliability(mode model.TransportMode, route model.Route, departure time.Time) float64 {
	score := s.cfg.Reliability[string(mode)]
	if mode == model.ModeDriving && s.router.InRushHour(departure) {
		score -= rushReliabilityCost
	}
	if mode == model.ModePublicTransit && route.Transfers > 1 {
		score -= transferReliabilityCost
	}
	if route.Source == model.SourceFallback {
		score -= estimateReliabilityCost
	}
	return clampModeScore(score)
}

// flexibilityBonus rewards candidates with options: every compatible mode
// beyond the first widens the feasible window, as do matching flexible
// hours and a hybrid remote allowance.
func (s *Scorer) flexibilityBonus(compatible int, c *model.CandidateProfile, j *model.JobRequirement) float64 {
	bonus := 1.0 + flexPerExtraMode*float64(compatible-1)
	if c.Mobility.FlexibleHours && j.FlexibleHours {
		bonus += flexHoursBonus
	}
	if j.RemotePolicy == model.RemoteHybrid && j.RemoteDays > 0 {
		bonus += remoteDaysFlexBonus
	}
	if bonus > maxFlexBonus {
		bonus = maxFlexBonus
	}
	return bonus
}

// bestOf picks the most efficient compatible assessment. Ties fall to
// reliability, then to the canonical mode order.
func bestOf(compatible []model.ModeAssessment) model.ModeAssessment {
	best := compatible[0]
	for _, a := range compatible[1:] {
		switch {
		case a.Efficiency() > best.Efficiency():
			best = a
		case a.Efficiency() == best.Efficiency():
			if a.Reliability > best.Reliability {
				best = a
			} else if a.Reliability == best.Reliability && modeRank(a.Mode) < modeRank(best.Mode) {
				best = a
			}
		}
	}
	return best
}

func modeRank(m model.TransportMode) int {
	for i, mode := range model.AllModes() {
		if mode == m {
			return i
		}
	}
	return len(model.AllModes())
}

func clampModeScore(v float64) float64 {
	if v < minModeScore {
		return minModeScore
	}
	if v > 1 {
		return 1
	}
	return v
}
