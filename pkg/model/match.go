package model

import "time"

// Penalty is a multiplicative reduction applied to the final score.
type Penalty struct {
	Code   string  `json:"code"`
	Factor float64 `json:"factor"`
	Reason string  `json:"reason"`
}

// Penalty codes.
const (
	PenaltyOverqualification = "overqualification"
	PenaltySectoral          = "sectoral"
)

// EngineMeta records how a match result was produced. FromCache is set on
// replayed results and intentionally excluded from the serialized form so
// cached payloads replay byte-identical.
type EngineMeta struct {
	Version         string      `json:"version"`
	ComputedAt      time.Time   `json:"computed_at"`
	TransportSource RouteSource `json:"transport_source"`
	FromCache       bool        `json:"-"`
}

// MatchResult is the outcome of scoring one candidate against one job.
// Score is clamp01(sum(subscore*weight) * product(penalty factors)).
// Subscores and Weights are keyed by the Component* names.
type MatchResult struct {
	CandidateID    string             `json:"candidate_id"`
	JobID          string             `json:"job_id"`
	Score          float64            `json:"score"`
	Recommendation Recommendation     `json:"recommendation"`
	Subscores      map[string]float64 `json:"subscores"`
	Weights        map[string]float64 `json:"weights"`
	Penalties      []Penalty          `json:"penalties,omitempty"`
	Alerts         []Alert            `json:"alerts,omitempty"`
	Confidence     float64            `json:"confidence"`
	Explanations   []string           `json:"explanations"`
	Transport      *TransportAnalysis `json:"transport_analysis,omitempty"`
	Meta           EngineMeta         `json:"meta"`
}

// HasAlert reports whether the result carries the given alert.
func (m *MatchResult) HasAlert(a Alert) bool {
	for _, got := range m.Alerts {
		if got == a {
			return true
		}
	}
	return false
}

// HasPenalty reports whether a penalty with the given code was applied.
func (m *MatchResult) HasPenalty(code string) bool {
	for _, p := range m.Penalties {
		if p.Code == code {
			return true
		}
	}
	return false
}

// Recommendation thresholds on the final score.
const (
	StrongMatchThreshold = 0.80
	MatchThreshold       = 0.65
	WeakMatchThreshold   = 0.45
	SectoralNoMatchCeil  = 0.30
)

// RecommendationFor buckets a final score. A sectoral penalty pushes low
// scores into the dedicated NO_MATCH_SECTORAL class so callers can tell
// sector mismatches apart from generally weak matches.
func RecommendationFor(score float64, sectoralPenalized bool) Recommendation {
	switch {
	case score >= StrongMatchThreshold:
		return StrongMatch
	case score >= MatchThreshold:
		return Match
	case score >= WeakMatchThreshold:
		return WeakMatch
	case sectoralPenalized && score < SectoralNoMatchCeil:
		return NoMatchSectoral
	default:
		return NoMatch
	}
}

// Clamp01 bounds v into [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
