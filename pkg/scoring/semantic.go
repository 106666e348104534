package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/Bapt252/Nextvision-sub001/pkg/model"
)

// Skill match confidences and blend weights.
const (
	substringConfidence = 0.8
	// matchThreshold is the confidence a skill pair must clear to count
	// as matched.
	matchThreshold = 0.5

	ratioWeight = 0.6
	confWeight  = 0.4

	requiredBlend  = 0.75
	preferredBlend = 0.25

	perfectBonus   = 1.10
	perfectMinConf = 0.9
)

// Semantic grades the candidate's skills against the job's required and
// preferred lists. Required skills dominate the blend; a clean sweep of
// required skills at high confidence earns a bonus, capped at 1.0.
func (s *Scorer) Semantic(c *model.CandidateProfile, j *model.JobRequirement) (float64, string) {
	if len(j.RequiredSkills) == 0 {
		return 1.0, "no skills required"
	}
	required, matched, meanConf := s.skillSet(c.Skills, j.RequiredSkills)
	score := required
	if len(j.PreferredSkills) > 0 {
		preferred, _, _ := s.skillSet(c.Skills, j.PreferredSkills)
		score = requiredBlend*required + preferredBlend*preferred
	}
	if matched == len(j.RequiredSkills) && meanConf > perfectMinConf {
		score = math.Min(1.0, score*perfectBonus)
		return score, fmt.Sprintf("all %d required skills matched, bonus x%.2f", matched, perfectBonus)
	}
	return score, fmt.Sprintf("%d/%d required skills matched, mean confidence %.2f", matched, len(j.RequiredSkills), meanConf)
}

// skillSet grades one wanted list: ratioWeight on the matched share and
// confWeight on the mean confidence of the matches.
func (s *Scorer) skillSet(have, wanted []string) (score float64, matched int, meanConf float64) {
	var sum float64
	for _, w := range wanted {
		conf := s.bestConfidence(normalizeTerm(w), have)
		if conf > matchThreshold {
			matched++
			sum += conf
		}
	}
	if matched > 0 {
		meanConf = sum / float64(matched)
	}
	ratio := float64(matched) / float64(len(wanted))
	return ratioWeight*ratio + confWeight*meanConf, matched, meanConf
}

// bestConfidence returns the strongest match between one wanted skill
// and any of the candidate's skills.
func (s *Scorer) bestConfidence(wanted string, have []string) float64 {
	best := 0.0
	for _, h := range have {
		conf := s.confidence(normalizeTerm(h), wanted)
		if conf > best {
			best = conf
		}
		if best >= 1.0 {
			break
		}
	}
	return best
}

// confidence grades a single skill pair: exact match, synonym table
// value or substring containment, whichever is strongest.
func (s *Scorer) confidence(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}
	conf := s.synonyms[a][b]
	if substringConfidence > conf && substringMatch(a, b) {
		conf = substringConfidence
	}
	return conf
}

// substringMatch reports whether one term contains the other. Terms
// shorter than three bytes never match this way; "go" is not "django".
func substringMatch(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	return len(a) >= 3 && strings.Contains(b, a)
}
