package model

import (
	"fmt"
	"strings"
)

// Level is the seniority ladder shared by candidates and jobs.
// The ordering matters: hierarchical scoring uses step distance.
type Level int

const (
	LevelEntry Level = iota
	LevelJunior
	LevelSenior
	LevelManager
	LevelDirector
	LevelExecutive
)

var levelNames = map[Level]string{
	LevelEntry:     "ENTRY",
	LevelJunior:    "JUNIOR",
	LevelSenior:    "SENIOR",
	LevelManager:   "MANAGER",
	LevelDirector:  "DIRECTOR",
	LevelExecutive: "EXECUTIVE",
}

// String returns the canonical uppercase name of the level.
func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// Gap returns the signed number of steps from other to l. Positive means
// l sits above other on the ladder.
func (l Level) Gap(other Level) int {
	return int(l) - int(other)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for l, name := range levelNames {
		if name == upper {
			return l, nil
		}
	}
	return LevelEntry, fmt.Errorf("unknown level %q", s)
}

// TransportMode identifies a commute mode.
type TransportMode string

const (
	ModePublicTransit TransportMode = "public_transit"
	ModeDriving       TransportMode = "driving"
	ModeCycling       TransportMode = "cycling"
	ModeWalking       TransportMode = "walking"
)

// AllModes lists the supported modes in preference order. The order is
// also the tie-break order when assessments score equal.
func AllModes() []TransportMode {
	return []TransportMode{ModePublicTransit, ModeDriving, ModeCycling, ModeWalking}
}

// KnownMode reports whether the mode is one of the supported four.
func KnownMode(m TransportMode) bool {
	switch m {
	case ModePublicTransit, ModeDriving, ModeCycling, ModeWalking:
		return true
	}
	return false
}

// RemotePolicy is the job's remote-work arrangement.
type RemotePolicy string

const (
	RemoteOnsite RemotePolicy = "onsite"
	RemoteHybrid RemotePolicy = "hybrid"
	RemoteFull   RemotePolicy = "full_remote"
)

// ListeningReason captures why a candidate is open to offers. It drives
// the adaptive weighting of match components.
type ListeningReason string

const (
	ReasonTooFar       ListeningReason = "too_far"
	ReasonUnderpaid    ListeningReason = "underpaid"
	ReasonCareerGrowth ListeningReason = "career_growth"
	ReasonFlexibility  ListeningReason = "flexibility"
	ReasonOther        ListeningReason = "other"
)

// GeocodeQuality grades how precisely an address resolved.
type GeocodeQuality string

const (
	QualityExact       GeocodeQuality = "EXACT"
	QualityApproximate GeocodeQuality = "APPROXIMATE"
	QualityPartial     GeocodeQuality = "PARTIAL"
	QualityFailed      GeocodeQuality = "FAILED"
)

// RouteSource tells where a route or transport figure came from.
// SourceNone marks analyses that never routed at all (full-remote roles,
// unresolved addresses).
type RouteSource string

const (
	SourceLive     RouteSource = "live"
	SourceFallback RouteSource = "fallback"
	SourceCache    RouteSource = "cache"
	SourceNone     RouteSource = "none"
)

// Recommendation buckets a final match score.
type Recommendation string

const (
	StrongMatch     Recommendation = "STRONG_MATCH"
	Match           Recommendation = "MATCH"
	WeakMatch       Recommendation = "WEAK_MATCH"
	NoMatch         Recommendation = "NO_MATCH"
	NoMatchSectoral Recommendation = "NO_MATCH_SECTORAL"
)

// Alert flags a notable condition on a match result.
type Alert string

const (
	AlertOverqualification   Alert = "OVERQUALIFICATION"
	AlertSectoralPenalty     Alert = "SECTORAL_PENALTY"
	AlertInvariantViolation  Alert = "INVARIANT_VIOLATION"
	AlertTransportUnreliable Alert = "TRANSPORT_UNRELIABLE"
	AlertNoTransport         Alert = "NO_TRANSPORT"
	AlertQuotaDegraded       Alert = "QUOTA_DEGRADED"
)

// Component names used for subscores and weights.
const (
	ComponentSemantic     = "semantic"
	ComponentHierarchical = "hierarchical"
	ComponentCompensation = "compensation"
	ComponentExperience   = "experience"
	ComponentLocation     = "location"
	ComponentSector       = "sector"
	ComponentMotivations  = "motivations"
)

// Components lists the component names in their canonical order.
func Components() []string {
	return []string{
		ComponentSemantic,
		ComponentHierarchical,
		ComponentCompensation,
		ComponentExperience,
		ComponentLocation,
		ComponentSector,
		ComponentMotivations,
	}
}
