package model

import (
	"time"

	"github.com/Bapt252/Nextvision-sub001/pkg/geo"
)

// GeocodeResult is a resolved address. A FAILED result still carries a
// usable point: the centroid of the best-guess region, flagged so that
// downstream scoring treats it as unreliable.
type GeocodeResult struct {
	Address    string         `json:"address"`
	Normalized string         `json:"normalized"`
	Point      geo.Point      `json:"point"`
	Quality    GeocodeQuality `json:"quality"`
	Provider   string         `json:"provider"`
	Region     string         `json:"region,omitempty"`
	ResolvedAt time.Time      `json:"resolved_at"`
}

// Reliable reports whether the coordinates can be trusted for routing.
func (g GeocodeResult) Reliable() bool {
	return g.Quality != QualityFailed && g.Point.Valid()
}

// Route is a single origin to destination journey for one mode.
// TrafficFactor is in-traffic duration over free-flow duration, floored
// at 1.0. Transfers is meaningful for public transit only.
type Route struct {
	Origin          geo.Point     `json:"origin"`
	Destination     geo.Point     `json:"destination"`
	Mode            TransportMode `json:"mode"`
	DistanceMeters  float64       `json:"distance_meters"`
	DurationMinutes float64       `json:"duration_minutes"`
	TrafficMinutes  float64       `json:"traffic_minutes"`
	TrafficFactor   float64       `json:"traffic_factor"`
	Transfers       int           `json:"transfers"`
	Source          RouteSource   `json:"source"`
	ComputedAt      time.Time     `json:"computed_at"`
}

// EffectiveMinutes is the commute duration to judge feasibility with:
// the in-traffic figure when present, else the free-flow one.
func (r Route) EffectiveMinutes() float64 {
	if r.TrafficMinutes > 0 {
		return r.TrafficMinutes
	}
	return r.DurationMinutes
}

// ModeAssessment is the evaluation of one accepted transport mode.
type ModeAssessment struct {
	Mode           TransportMode `json:"mode"`
	Route          Route         `json:"route"`
	AllowedMinutes int           `json:"allowed_minutes"`
	Feasible       bool          `json:"feasible"`
	Comfort        float64       `json:"comfort"`
	Reliability    float64       `json:"reliability"`
	Explanation    string        `json:"explanation"`
}

// Efficiency is min(1, allowed/actual); 0 when the route is unusable.
func (a ModeAssessment) Efficiency() float64 {
	actual := a.Route.EffectiveMinutes()
	if actual <= 0 || a.AllowedMinutes <= 0 {
		return 0
	}
	eff := float64(a.AllowedMinutes) / actual
	if eff > 1 {
		return 1
	}
	return eff
}

// TransportAnalysis aggregates per-mode assessments into the location
// subscore. Unreliable marks analyses built on failed geocoding; their
// score is a neutral baseline and must not boost confidence.
type TransportAnalysis struct {
	CandidateID     string           `json:"candidate_id"`
	JobID           string           `json:"job_id"`
	Assessments     []ModeAssessment `json:"assessments"`
	CompatibleModes []TransportMode  `json:"compatible_modes"`
	BestMode        TransportMode    `json:"best_mode,omitempty"`
	Score           float64          `json:"score"`
	TimeCompat      float64          `json:"time_compatibility"`
	Flexibility     float64          `json:"flexibility_bonus"`
	Efficiency      float64          `json:"efficiency"`
	Reliability     float64          `json:"reliability"`
	Source          RouteSource      `json:"source"`
	Unreliable      bool             `json:"unreliable,omitempty"`
	Recommendations []string         `json:"recommendations,omitempty"`
	Explanations    []string         `json:"explanations,omitempty"`
}
