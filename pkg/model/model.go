// Package model holds the domain types exchanged between the matching
// components: candidate profiles, job requirements, geocoding and routing
// results, transport analyses and match results.
package model

// SalaryRange is an annual gross salary band in euros.
type SalaryRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Mid returns the middle of the band.
func (s SalaryRange) Mid() float64 {
	return (s.Min + s.Max) / 2
}

// Overlaps reports whether two bands share any value.
func (s SalaryRange) Overlaps(o SalaryRange) bool {
	return s.Min <= o.Max && o.Min <= s.Max
}

// MobilityConstraints captures how a candidate is willing to commute.
// MaxMinutes is the acceptable one-way commute per mode. RemoteDays is the
// desired remote days per week (0 to 5). MaxTransfers caps transit
// transfers; nil means the engine default applies.
type MobilityConstraints struct {
	Modes         []TransportMode       `json:"modes"`
	MaxMinutes    map[TransportMode]int `json:"max_minutes"`
	RemoteDays    int                   `json:"remote_days"`
	FlexibleHours bool                  `json:"flexible_hours"`
	MaxTransfers  *int                  `json:"max_transfers,omitempty"`
}

// AcceptedModes returns the known modes of the constraint, in canonical
// order, deduplicated.
func (m MobilityConstraints) AcceptedModes() []TransportMode {
	seen := make(map[TransportMode]bool, len(m.Modes))
	for _, mode := range m.Modes {
		if KnownMode(mode) {
			seen[mode] = true
		}
	}
	var out []TransportMode
	for _, mode := range AllModes() {
		if seen[mode] {
			out = append(out, mode)
		}
	}
	return out
}

// AllowedMinutes returns the per-mode commute cap, or 0 when none is set.
func (m MobilityConstraints) AllowedMinutes(mode TransportMode) int {
	if m.MaxMinutes == nil {
		return 0
	}
	return m.MaxMinutes[mode]
}

// CandidateProfile is the candidate side of a match. Treated as immutable
// once a batch starts. ExperienceCount is the number of distinct positions
// held (a high count shifts weight toward the experience component).
// SalaryExpectation is nil when the candidate did not state one.
// Motivations holds free-text evidence of what the candidate wants; empty
// means none was collected upstream.
type CandidateProfile struct {
	ID                string              `json:"id"`
	Skills            []string            `json:"skills"`
	ExperienceYears   float64             `json:"experience_years"`
	ExperienceCount   int                 `json:"experience_count"`
	Level             Level               `json:"level"`
	SalaryExpectation *SalaryRange        `json:"salary_expectation,omitempty"`
	Sector            string              `json:"sector"`
	HomeAddress       string              `json:"home_address"`
	ListeningReason   ListeningReason     `json:"listening_reason"`
	Mobility          MobilityConstraints `json:"mobility"`
	Motivations       []string            `json:"motivations,omitempty"`
}

// HasMotivations reports whether motivation evidence is available.
func (c *CandidateProfile) HasMotivations() bool {
	return len(c.Motivations) > 0
}

// JobRequirement is the job side of a match. Salary is nil when the
// posting does not publish a band. RemoteDays is the offered remote days
// per week for hybrid roles.
type JobRequirement struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	RequiredSkills  []string     `json:"required_skills"`
	PreferredSkills []string     `json:"preferred_skills,omitempty"`
	MinYears        float64      `json:"min_years"`
	MaxYears        float64      `json:"max_years"`
	Level           Level        `json:"level"`
	Salary          *SalaryRange `json:"salary,omitempty"`
	Sector          string       `json:"sector"`
	OfficeAddress   string       `json:"office_address"`
	RemotePolicy    RemotePolicy `json:"remote_policy"`
	RemoteDays      int          `json:"remote_days,omitempty"`
	ParkingProvided bool         `json:"parking_provided,omitempty"`
	FlexibleHours   bool         `json:"flexible_hours,omitempty"`
}

// RemoteAllowed reports whether the job permits any remote work.
func (j *JobRequirement) RemoteAllowed() bool {
	return j.RemotePolicy == RemoteFull || (j.RemotePolicy == RemoteHybrid && j.RemoteDays > 0)
}
