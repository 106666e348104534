// Package scoring implements the pure match subscores: skills, level,
// sector, compensation, experience and motivations. Scorers are
// synchronous, do no I/O and return a score in [0, 1] together with a
// short reason for the explanation line. Penalties are computed here
// but multiplied into the final score by the engine.
package scoring

import (
	"fmt"
	"strings"

	"github.com/Bapt252/Nextvision-sub001/pkg/config"
	"github.com/Bapt252/Nextvision-sub001/pkg/model"
)

// Scale constants for the level, experience and compensation scorers.
const (
	levelStepCost = 0.15
	levelFloor    = 0.1

	experienceDecayPerYear = 0.1
	experienceFloor        = 0.3

	neutralCompensation = 0.7
	// maxSalaryGap is the relative gap at which the compensation score
	// reaches zero.
	maxSalaryGap = 0.5
)

type sectorFamily struct {
	name  string
	score float64
}

// Scorer computes the pure subscores of a match from the configured
// synonym, sector family and incompatibility tables.
type Scorer struct {
	cfg      config.ScoringConfig
	synonyms map[string]map[string]float64
	families map[string]sectorFamily
	incompat map[string]float64
	themes   []theme
}

// NewScorer builds the lookup tables once so per-match scoring stays
// allocation-light.
func NewScorer(cfg config.ScoringConfig) *Scorer {
	s := &Scorer{
		cfg:      cfg,
		synonyms: make(map[string]map[string]float64),
		families: make(map[string]sectorFamily),
		incompat: make(map[string]float64),
	}
	for canonical, aliases := range cfg.Synonyms {
		c := normalizeTerm(canonical)
		for alias, conf := range aliases {
			a := normalizeTerm(alias)
			s.addSynonym(c, a, conf)
			s.addSynonym(a, c, conf)
		}
	}
	for _, fam := range cfg.SectorFamilies {
		for _, member := range fam.Members {
			s.families[normalizeTerm(member)] = sectorFamily{name: fam.Name, score: fam.Score}
		}
	}
	for _, pair := range cfg.SectorIncompatibilities {
		s.incompat[pairKey(normalizeTerm(pair.A), normalizeTerm(pair.B))] = pair.Score
	}
	s.themes = buildThemes(cfg.MotivationThemes)
	return s
}

func (s *Scorer) addSynonym(from, to string, conf float64) {
	m, ok := s.synonyms[from]
	if !ok {
		m = make(map[string]float64)
		s.synonyms[from] = m
	}
	if conf > m[to] {
		m[to] = conf
	}
}

// Hierarchical grades level proximity. Each step between the candidate
// and the job level costs the same, floored so a wide gap still counts
// a little.
func (s *Scorer) Hierarchical(c *model.CandidateProfile, j *model.JobRequirement) (float64, string) {
	steps := c.Level.Gap(j.Level)
	if steps < 0 {
		steps = -steps
	}
	if steps == 0 {
		return 1.0, fmt.Sprintf("same level (%s)", j.Level)
	}
	score := 1.0 - float64(steps)*levelStepCost
	if score < levelFloor {
		score = levelFloor
	}
	return score, fmt.Sprintf("level gap %d (candidate %s, job %s)", steps, c.Level, j.Level)
}

// Sectoral grades sector proximity: same sector, then the explicit
// incompatibility table, then shared families, then the default for
// unrelated or unknown pairs.
func (s *Scorer) Sectoral(c *model.CandidateProfile, j *model.JobRequirement) (float64, string) {
	from, to := normalizeTerm(c.Sector), normalizeTerm(j.Sector)
	if from == "" || to == "" {
		return s.cfg.DefaultSectorScore, "sector unknown"
	}
	if from == to {
		return 1.0, fmt.Sprintf("same sector (%s)", to)
	}
	if score, ok := s.incompat[pairKey(from, to)]; ok {
		return score, fmt.Sprintf("sectors %s and %s are incompatible", from, to)
	}
	if fam, ok := s.families[from]; ok {
		if other, ok := s.families[to]; ok && other.name == fam.name {
			return fam.score, fmt.Sprintf("related sectors (%s family)", fam.name)
		}
	}
	return s.cfg.DefaultSectorScore, fmt.Sprintf("unrelated sectors (%s vs %s)", from, to)
}

// Compensation grades the job's salary band against the candidate's
// expectation. Overlapping bands score full; disjoint bands decay
// linearly with the relative gap. A missing band on either side scores
// neutral rather than zero.
func (s *Scorer) Compensation(c *model.CandidateProfile, j *model.JobRequirement) (float64, string) {
	if c.SalaryExpectation == nil {
		return neutralCompensation, "no stated salary expectation"
	}
	if j.Salary == nil {
		return neutralCompensation, "job does not publish a salary band"
	}
	expect, offer := *c.SalaryExpectation, *j.Salary
	if expect.Overlaps(offer) {
		return 1.0, "salary bands overlap"
	}
	mid := expect.Mid()
	if mid <= 0 {
		return neutralCompensation, "expectation band is empty"
	}
	var gap float64
	var direction string
	if offer.Max < expect.Min {
		gap = (expect.Min - offer.Max) / mid
		direction = "below"
	} else {
		gap = (offer.Min - expect.Max) / mid
		direction = "above"
	}
	score := 1.0 - gap/maxSalaryGap
	if score < 0 {
		score = 0
	}
	return score, fmt.Sprintf("job pays %.0f%% %s expectation", gap*100, direction)
}

// Experience grades the candidate's years against the job's range.
// A shortfall decays proportionally; a surplus decays slowly and is
// floored, mirroring the overqualification penalty without doubling it.
func (s *Scorer) Experience(c *model.CandidateProfile, j *model.JobRequirement) (float64, string) {
	years := c.ExperienceYears
	minYears, maxYears := j.MinYears, j.MaxYears
	if minYears <= 0 && maxYears <= 0 {
		return 1.0, "no experience requirement"
	}
	if maxYears > 0 && maxYears < minYears {
		// An inverted band means the posting only states a minimum.
		maxYears = 0
	}
	switch {
	case years < minYears:
		score := 0.0
		if minYears > 0 {
			score = years / minYears
		}
		return score, fmt.Sprintf("%.1f years against a %.1f minimum", years, minYears)
	case maxYears > 0 && years > maxYears:
		over := years - maxYears
		score := 1.0 - over*experienceDecayPerYear
		if score < experienceFloor {
			score = experienceFloor
		}
		return score, fmt.Sprintf("%.1f years over the %.1f maximum", over, maxYears)
	default:
		return 1.0, "experience within the required range"
	}
}

// normalizeTerm lowercases and trims a skill or sector name.
func normalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// pairKey builds an order-independent lookup key for a sector pair.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
