package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Bapt252/Nextvision-sub001/pkg/model"
)

// Motivation themes with a fulfilment rule. Evidence mapping to any
// other theme name is treated as unrecognized.
const (
	themeFlexibility  = "flexibility"
	themeGrowth       = "growth"
	themeCompensation = "compensation"
)

type theme struct {
	name     string
	keywords []string
}

// buildThemes keeps the configured themes the scorer knows how to
// check, in stable order, with lowercased keywords.
func buildThemes(cfg map[string][]string) []theme {
	var out []theme
	for name, keywords := range cfg {
		if !knownTheme(name) {
			continue
		}
		t := theme{name: name}
		for _, kw := range keywords {
			t.keywords = append(t.keywords, strings.ToLower(kw))
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func knownTheme(name string) bool {
	switch name {
	case themeFlexibility, themeGrowth, themeCompensation:
		return true
	}
	return false
}

// Motivations grades how well the job serves the candidate's stated
// motivations. The bool reports whether enough of the evidence was
// recognized for the component to count; when false the weighter
// redistributes its weight over the other components.
func (s *Scorer) Motivations(c *model.CandidateProfile, j *model.JobRequirement) (float64, string, bool) {
	if !c.HasMotivations() {
		return 0, "no motivation evidence", false
	}
	seen := make(map[string]bool)
	recognized := 0
	for _, evidence := range c.Motivations {
		if name, ok := s.matchTheme(evidence); ok {
			recognized++
			seen[name] = true
		}
	}
	confidence := float64(recognized) / float64(len(c.Motivations))
	if len(seen) == 0 || confidence < s.cfg.MotivationConfidence {
		return 0, "motivation evidence not recognized", false
	}

	satisfied := 0
	var unmet []string
	for name := range seen {
		if motivationServed(name, c, j) {
			satisfied++
		} else {
			unmet = append(unmet, name)
		}
	}
	score := float64(satisfied) / float64(len(seen))
	if len(unmet) == 0 {
		return score, fmt.Sprintf("job serves all %d recognized motivations", len(seen)), true
	}
	sort.Strings(unmet)
	return score, fmt.Sprintf("job serves %d/%d motivations (unmet: %s)", satisfied, len(seen), strings.Join(unmet, ", ")), true
}

// matchTheme maps one piece of evidence to the first theme whose
// keywords appear in it.
func (s *Scorer) matchTheme(evidence string) (string, bool) {
	ev := strings.ToLower(evidence)
	for _, t := range s.themes {
		for _, kw := range t.keywords {
			if strings.Contains(ev, kw) {
				return t.name, true
			}
		}
	}
	return "", false
}

// motivationServed checks the job against one recognized theme.
func motivationServed(name string, c *model.CandidateProfile, j *model.JobRequirement) bool {
	switch name {
	case themeFlexibility:
		return j.RemoteAllowed() || j.FlexibleHours
	case themeGrowth:
		return j.Level.Gap(c.Level) >= 1
	case themeCompensation:
		if j.Salary == nil {
			return false
		}
		return c.SalaryExpectation == nil || j.Salary.Max >= c.SalaryExpectation.Min
	}
	return false
}
