package scoring

import (
	"math"
	"strings"
	"testing"

	"github.com/Bapt252/Nextvision-sub001/pkg/config"
	"github.com/Bapt252/Nextvision-sub001/pkg/model"
)

func TestMotivations(t *testing.T) {
	s := newTestScorer()

	tests := []struct {
		name          string
		candidate     *model.CandidateProfile
		job           *model.JobRequirement
		wantScore     float64
		wantAvailable bool
		reason        string
	}{
		{
			name:      "no evidence",
			candidate: &model.CandidateProfile{},
			job:       &model.JobRequirement{},
			reason:    "no motivation evidence",
		},
		{
			name:      "unrecognized evidence",
			candidate: &model.CandidateProfile{Motivations: []string{"j'aime le fromage"}},
			job:       &model.JobRequirement{},
			reason:    "not recognized",
		},
		{
			name: "flexibility and growth both served",
			candidate: &model.CandidateProfile{
				Level:       model.LevelSenior,
				Motivations: []string{"télétravail partiel", "évolution vers un poste de lead"},
			},
			job: &model.JobRequirement{
				Level:        model.LevelManager,
				RemotePolicy: model.RemoteHybrid,
				RemoteDays:   2,
			},
			wantScore:     1.0,
			wantAvailable: true,
			reason:        "all 2 recognized",
		},
		{
			name: "compensation unmet without a published band",
			candidate: &model.CandidateProfile{
				Motivations: []string{"meilleur salaire"},
			},
			job:           &model.JobRequirement{},
			wantScore:     0.0,
			wantAvailable: true,
			reason:        "unmet: compensation",
		},
		{
			name: "mixed outcome",
			candidate: &model.CandidateProfile{
				Level:             model.LevelSenior,
				SalaryExpectation: &model.SalaryRange{Min: 50000, Max: 60000},
				Motivations:       []string{"augmenter ma rémunération", "plus de flexibilité"},
			},
			job: &model.JobRequirement{
				Level:        model.LevelSenior,
				Salary:       &model.SalaryRange{Min: 55000, Max: 65000},
				RemotePolicy: model.RemoteOnsite,
			},
			wantScore:     0.5,
			wantAvailable: true,
			reason:        "1/2 motivations",
		},
		{
			name: "thin recognition stays unavailable",
			candidate: &model.CandidateProfile{
				Motivations: []string{"remote", "aaa", "bbb", "ccc"},
			},
			job:    &model.JobRequirement{RemotePolicy: model.RemoteFull},
			reason: "not recognized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason, available := s.Motivations(tt.candidate, tt.job)
			if available != tt.wantAvailable {
				t.Errorf("got available %v, want %v", available, tt.wantAvailable)
			}
			if math.Abs(got-tt.wantScore) > 1e-9 {
				t.Errorf("got score %.3f, want %.3f", got, tt.wantScore)
			}
			if tt.reason != "" && !strings.Contains(reason, tt.reason) {
				t.Errorf("reason %q missing %q", reason, tt.reason)
			}
		})
	}
}

func TestMotivationsFlexibleHoursServeFlexibility(t *testing.T) {
	s := newTestScorer()

	c := &model.CandidateProfile{Motivations: []string{"work-life balance"}}
	j := &model.JobRequirement{RemotePolicy: model.RemoteOnsite, FlexibleHours: true}
	got, _, available := s.Motivations(c, j)
	if !available || got != 1.0 {
		t.Errorf("got score %.3f available %v, want 1.0 true", got, available)
	}
}

func TestMotivationsUnknownThemeIsIgnored(t *testing.T) {
	cfg := config.DefaultConfig().Scoring
	cfg.MotivationThemes = map[string][]string{
		"adventure": {"voyage"},
		"growth":    {"évolution"},
	}
	s := NewScorer(cfg)

	c := &model.CandidateProfile{
		Level:       model.LevelJunior,
		Motivations: []string{"voyage", "évolution"},
	}
	j := &model.JobRequirement{Level: model.LevelSenior}

	// "voyage" maps to a theme without a fulfilment rule, so only half
	// the evidence is recognized; that still clears the confidence bar.
	got, _, available := s.Motivations(c, j)
	if !available {
		t.Fatal("expected the component to stay available")
	}
	if got != 1.0 {
		t.Errorf("got score %.3f, want 1.0", got)
	}
}
