package engine

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Bapt252/Nextvision-sub001/pkg/config"
	"github.com/Bapt252/Nextvision-sub001/pkg/model"
	"github.com/Bapt252/Nextvision-sub001/pkg/resilience"
	"github.com/Bapt252/Nextvision-sub001/pkg/scoring"
	"github.com/Bapt252/Nextvision-sub001/pkg/weights"
)

type fakeTransport struct {
	mu       sync.Mutex
	analysis model.TransportAnalysis
	err      error
	calls    int
}

func (f *fakeTransport) Score(_ context.Context, c *model.CandidateProfile, j *model.JobRequirement) (model.TransportAnalysis, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return model.TransportAnalysis{}, f.err
	}
	a := f.analysis
	a.CandidateID = c.ID
	a.JobID = j.ID
	return a, nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type mapCacher struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCacher() *mapCacher { return &mapCacher{data: make(map[string][]byte)} }

func (m *mapCacher) Get(_ context.Context, _ string, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *mapCacher) Set(_ context.Context, _ string, key string, val []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = val
}

func (m *mapCacher) SetTTL(ctx context.Context, ns, key string, val []byte, _ time.Duration) {
	m.Set(ctx, ns, key, val)
}

func (m *mapCacher) Delete(_ context.Context, _ string, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

func newTestEngine(transport TransportScorer, c *mapCacher) *Engine {
	cfg := config.DefaultConfig()
	deps := Deps{
		Scoring:   scoring.NewScorer(cfg.Scoring),
		Transport: transport,
		Weighter:  weights.NewWeighter(cfg.Weights),
		Version:   "v-test",
	}
	// A nil *mapCacher must not end up as a non-nil Cacher interface.
	if c != nil {
		deps.Cache = c
	}
	e := New(deps)
	e.now = func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) }
	return e
}

// liveTransitAnalysis is the shape the transport scorer produces for a
// feasible single-mode commute.
func liveTransitAnalysis(score float64) model.TransportAnalysis {
	return model.TransportAnalysis{
		Assessments: []model.ModeAssessment{{
			Mode:           model.ModePublicTransit,
			Route:          model.Route{DurationMinutes: 25, DistanceMeters: 9000, Source: model.SourceLive},
			AllowedMinutes: 30,
			Feasible:       true,
			Comfort:        0.60,
			Reliability:    0.75,
			Explanation:    "public_transit: 25 min against a 30 min budget (feasible)",
		}},
		CompatibleModes: []model.TransportMode{model.ModePublicTransit},
		BestMode:        model.ModePublicTransit,
		Score:           score,
		TimeCompat:      1,
		Flexibility:     1,
		Efficiency:      1,
		Reliability:     0.75,
		Source:          model.SourceLive,
		Explanations: []string{
			"public_transit: 25 min against a 30 min budget (feasible)",
			"best option public_transit at 25 min",
		},
	}
}

func transitMobility(budget int) model.MobilityConstraints {
	return model.MobilityConstraints{
		Modes:      []model.TransportMode{model.ModePublicTransit},
		MaxMinutes: map[model.TransportMode]int{model.ModePublicTransit: budget},
	}
}

func hasLine(result model.MatchResult, substr string) bool {
	for _, e := range result.Explanations {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func TestMatchOverqualifiedExecutive(t *testing.T) {
	e := newTestEngine(&fakeTransport{analysis: liveTransitAnalysis(0.90)}, nil)

	c := &model.CandidateProfile{
		ID:              "cand-exec",
		Skills:          []string{"management", "leadership", "strategy"},
		ExperienceYears: 15,
		Level:           model.LevelExecutive,
		Sector:          "finance",
		HomeAddress:     "Paris",
		Mobility:        transitMobility(30),
	}
	j := &model.JobRequirement{
		ID:             "job-entry",
		Title:          "Junior accountant",
		RequiredSkills: []string{"management", "bookkeeping"},
		MinYears:       2,
		MaxYears:       5,
		Level:          model.LevelEntry,
		Sector:         "accounting",
		OfficeAddress:  "Paris",
		RemotePolicy:   model.RemoteOnsite,
	}

	result, err := e.Match(context.Background(), c, j)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if h := result.Subscores[model.ComponentHierarchical]; h > 0.3 {
		t.Errorf("hierarchical subscore %.2f, want <= 0.3", h)
	}
	if !result.HasAlert(model.AlertOverqualification) {
		t.Errorf("missing OVERQUALIFICATION alert, got %v", result.Alerts)
	}
	if result.Score < 0.28 || result.Score > 0.33 {
		t.Errorf("got final %.4f, want [0.28, 0.33]", result.Score)
	}
	if result.Recommendation != model.NoMatch {
		t.Errorf("got %s, want NO_MATCH", result.Recommendation)
	}
	if !result.HasPenalty(model.PenaltyOverqualification) {
		t.Errorf("missing overqualification penalty, got %v", result.Penalties)
	}
	if result.HasPenalty(model.PenaltySectoral) {
		t.Errorf("finance and accounting are family sectors, got %v", result.Penalties)
	}
	if result.HasAlert(model.AlertNoTransport) {
		t.Errorf("commute was feasible, alerts %v", result.Alerts)
	}
	if !hasLine(result, "overqualification penalty x0.50") {
		t.Errorf("missing penalty explanation in %v", result.Explanations)
	}
	// Live routing but no motivation evidence.
	if math.Abs(result.Confidence-0.90) > 1e-9 {
		t.Errorf("got confidence %.4f, want 0.90", result.Confidence)
	}
}

func TestMatchCrossSectorSenior(t *testing.T) {
	e := newTestEngine(&fakeTransport{analysis: liveTransitAnalysis(0.90)}, nil)

	c := &model.CandidateProfile{
		ID:              "cand-dev",
		Skills:          []string{"python", "react"},
		ExperienceYears: 7,
		Level:           model.LevelSenior,
		Sector:          "tech",
		HomeAddress:     "Paris",
		Mobility:        transitMobility(30),
	}
	j := &model.JobRequirement{
		ID:             "job-acct",
		Title:          "Accounting assistant",
		RequiredSkills: []string{"accounting", "bookkeeping"},
		MaxYears:       2,
		Level:          model.LevelEntry,
		Sector:         "accounting",
		OfficeAddress:  "Paris",
		RemotePolicy:   model.RemoteOnsite,
	}

	result, err := e.Match(context.Background(), c, j)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !result.HasAlert(model.AlertSectoralPenalty) {
		t.Errorf("missing SECTORAL_PENALTY alert, got %v", result.Alerts)
	}
	if !result.HasPenalty(model.PenaltySectoral) {
		t.Fatalf("missing sectoral penalty, got %v", result.Penalties)
	}
	for _, p := range result.Penalties {
		if p.Code == model.PenaltySectoral && math.Abs(p.Factor-0.5) > 1e-9 {
			t.Errorf("got sectoral factor %.2f, want 0.5", p.Factor)
		}
	}
	if result.Score < 0.14 || result.Score > 0.20 {
		t.Errorf("got final %.4f, want [0.14, 0.20]", result.Score)
	}
	if result.Recommendation != model.NoMatchSectoral {
		t.Errorf("got %s, want NO_MATCH_SECTORAL", result.Recommendation)
	}
}

func TestMatchPerfectSeniorDev(t *testing.T) {
	e := newTestEngine(&fakeTransport{analysis: liveTransitAnalysis(0.94)}, nil)

	c := &model.CandidateProfile{
		ID:                "cand-perfect",
		Skills:            []string{"react", "typescript", "redux", "rest"},
		ExperienceYears:   6,
		Level:             model.LevelSenior,
		Sector:            "tech",
		SalaryExpectation: &model.SalaryRange{Min: 55000, Max: 65000},
		HomeAddress:       "Paris",
		Mobility:          transitMobility(30),
		Motivations:       []string{"salaire attractif"},
	}
	j := &model.JobRequirement{
		ID:             "job-senior-dev",
		Title:          "Senior frontend developer",
		RequiredSkills: []string{"react", "typescript", "redux", "rest"},
		MinYears:       5,
		MaxYears:       8,
		Level:          model.LevelSenior,
		Salary:         &model.SalaryRange{Min: 60000, Max: 75000},
		Sector:         "tech",
		OfficeAddress:  "Paris",
		RemotePolicy:   model.RemoteOnsite,
	}

	result, err := e.Match(context.Background(), c, j)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if s := result.Subscores[model.ComponentSemantic]; s < 0.9 {
		t.Errorf("semantic subscore %.2f, want >= 0.9", s)
	}
	if h := result.Subscores[model.ComponentHierarchical]; math.Abs(h-1.0) > 1e-9 {
		t.Errorf("hierarchical subscore %.2f, want 1.0", h)
	}
	if result.Score < 0.97 || result.Score > 1.0 {
		t.Errorf("got final %.4f, want [0.97, 1.00]", result.Score)
	}
	if result.Recommendation != model.StrongMatch {
		t.Errorf("got %s, want STRONG_MATCH", result.Recommendation)
	}
	if len(result.Alerts) != 0 {
		t.Errorf("unexpected alerts %v", result.Alerts)
	}
	if len(result.Penalties) != 0 {
		t.Errorf("unexpected penalties %v", result.Penalties)
	}
	// Live routing and recognized motivation evidence.
	if math.Abs(result.Confidence-0.95) > 1e-9 {
		t.Errorf("got confidence %.4f, want 0.95", result.Confidence)
	}
	sum := 0.0
	for _, w := range result.Weights {
		sum += w
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("weights sum to %.8f", sum)
	}
	if !hasLine(result, "semantic: 1.00 at weight 0.27") {
		t.Errorf("missing semantic explanation in %v", result.Explanations)
	}
	if !hasLine(result, "transport: best option public_transit at 25 min") {
		t.Errorf("missing transport explanation in %v", result.Explanations)
	}
}

func TestMatchNoTransportForcesNoMatch(t *testing.T) {
	// The transport side degrades to its baseline; every other component
	// is excellent. The commute being impossible still rules the job out.
	analysis := model.TransportAnalysis{
		Score:        0.3,
		Source:       model.SourceNone,
		Explanations: []string{"candidate lists no usable transport mode"},
	}
	e := newTestEngine(&fakeTransport{analysis: analysis}, nil)

	c := &model.CandidateProfile{
		ID:              "cand-stuck",
		Skills:          []string{"react", "typescript", "redux", "rest"},
		ExperienceYears: 6,
		Level:           model.LevelSenior,
		Sector:          "tech",
		HomeAddress:     "Paris",
	}
	j := &model.JobRequirement{
		ID:             "job-onsite",
		RequiredSkills: []string{"react", "typescript", "redux", "rest"},
		MinYears:       5,
		MaxYears:       8,
		Level:          model.LevelSenior,
		Sector:         "tech",
		OfficeAddress:  "Paris",
		RemotePolicy:   model.RemoteOnsite,
	}

	result, err := e.Match(context.Background(), c, j)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if result.Recommendation != model.NoMatch {
		t.Errorf("got %s, want forced NO_MATCH", result.Recommendation)
	}
	if !result.HasAlert(model.AlertNoTransport) {
		t.Errorf("missing NO_TRANSPORT alert, got %v", result.Alerts)
	}
}

func TestMatchRemoteDaysLiftNoTransport(t *testing.T) {
	// Same stuck candidate, but they accept remote and the job offers it:
	// no forced NO_MATCH.
	analysis := model.TransportAnalysis{
		Score:           0.5,
		Source:          model.SourceNone,
		Recommendations: []string{"consider remote"},
		Explanations:    []string{"candidate lists no usable transport mode"},
	}
	e := newTestEngine(&fakeTransport{analysis: analysis}, nil)

	c := &model.CandidateProfile{
		ID:              "cand-remote",
		Skills:          []string{"react", "typescript", "redux", "rest"},
		ExperienceYears: 6,
		Level:           model.LevelSenior,
		Sector:          "tech",
		HomeAddress:     "Paris",
		Mobility:        model.MobilityConstraints{RemoteDays: 3},
	}
	j := &model.JobRequirement{
		ID:             "job-hybrid",
		RequiredSkills: []string{"react", "typescript", "redux", "rest"},
		MinYears:       5,
		MaxYears:       8,
		Level:          model.LevelSenior,
		Sector:         "tech",
		OfficeAddress:  "Paris",
		RemotePolicy:   model.RemoteHybrid,
		RemoteDays:     3,
	}

	result, err := e.Match(context.Background(), c, j)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if result.HasAlert(model.AlertNoTransport) {
		t.Errorf("remote days should lift the no-transport rule, alerts %v", result.Alerts)
	}
	if result.Recommendation == model.NoMatch {
		t.Errorf("got NO_MATCH despite a viable remote arrangement (score %.3f)", result.Score)
	}
	if !hasLine(result, "recommendation: consider remote") {
		t.Errorf("missing consider-remote line in %v", result.Explanations)
	}
}

func TestMatchCachedReplayIsByteIdentical(t *testing.T) {
	transport := &fakeTransport{analysis: liveTransitAnalysis(0.94)}
	cacher := newMapCacher()
	e := newTestEngine(transport, cacher)

	c := &model.CandidateProfile{
		ID:              "cand-replay",
		Skills:          []string{"go", "postgresql"},
		ExperienceYears: 5,
		Level:           model.LevelSenior,
		Sector:          "tech",
		HomeAddress:     "Paris",
		Mobility:        transitMobility(30),
	}
	j := &model.JobRequirement{
		ID:             "job-replay",
		RequiredSkills: []string{"go", "postgresql"},
		MinYears:       3,
		MaxYears:       8,
		Level:          model.LevelSenior,
		Sector:         "tech",
		OfficeAddress:  "Paris",
		RemotePolicy:   model.RemoteOnsite,
	}

	first, err := e.Match(context.Background(), c, j)
	if err != nil {
		t.Fatalf("first Match: %v", err)
	}
	if first.Meta.FromCache {
		t.Fatal("first result claims to come from cache")
	}

	// A later clock must not leak into the replay.
	e.now = func() time.Time { return time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC) }

	second, err := e.Match(context.Background(), c, j)
	if err != nil {
		t.Fatalf("second Match: %v", err)
	}
	if !second.Meta.FromCache {
		t.Fatal("second result not marked as cache replay")
	}
	if transport.callCount() != 1 {
		t.Errorf("transport scored %d times, want 1", transport.callCount())
	}

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal first: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal second: %v", err)
	}
	if string(a) != string(b) {
		t.Errorf("replay differs:\n%s\n%s", a, b)
	}
}

func TestMatchValidation(t *testing.T) {
	e := newTestEngine(&fakeTransport{analysis: liveTransitAnalysis(0.9)}, nil)

	cases := []struct {
		name string
		c    *model.CandidateProfile
		j    *model.JobRequirement
	}{
		{name: "nil job", c: &model.CandidateProfile{ID: "c"}, j: nil},
		{name: "nil candidate", c: nil, j: &model.JobRequirement{ID: "j"}},
		{name: "empty candidate id", c: &model.CandidateProfile{}, j: &model.JobRequirement{ID: "j"}},
		{name: "empty job id", c: &model.CandidateProfile{ID: "c"}, j: &model.JobRequirement{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Match(context.Background(), tc.c, tc.j)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if kind := resilience.Classify(err); kind != resilience.KindValidation {
				t.Errorf("got kind %s, want validation", kind)
			}
		})
	}
}

func TestMatchInvariantViolation(t *testing.T) {
	// A transport score outside [0, 1] must fail the match, not leak into
	// a bogus final score.
	e := newTestEngine(&fakeTransport{analysis: model.TransportAnalysis{Score: 1.3, Source: model.SourceLive}}, nil)

	c := &model.CandidateProfile{
		ID:       "cand-x",
		Level:    model.LevelSenior,
		Sector:   "tech",
		Mobility: transitMobility(30),
	}
	j := &model.JobRequirement{ID: "job-x", Level: model.LevelSenior, Sector: "tech", RemotePolicy: model.RemoteOnsite}

	result, err := e.Match(context.Background(), c, j)
	if err == nil {
		t.Fatal("expected an invariant error")
	}
	if kind := resilience.Classify(err); kind != resilience.KindInternal {
		t.Errorf("got kind %s, want internal", kind)
	}
	if !result.HasAlert(model.AlertInvariantViolation) {
		t.Errorf("missing INVARIANT_VIOLATION alert, got %v", result.Alerts)
	}
}

func TestMatchTransportErrorPropagates(t *testing.T) {
	e := newTestEngine(&fakeTransport{err: context.Canceled}, nil)

	c := &model.CandidateProfile{ID: "c", Mobility: transitMobility(30)}
	j := &model.JobRequirement{ID: "j", RemotePolicy: model.RemoteOnsite}

	_, err := e.Match(context.Background(), c, j)
	if err == nil {
		t.Fatal("expected an error")
	}
	if kind := resilience.Classify(err); kind != resilience.KindCanceled {
		t.Errorf("got kind %s, want canceled", kind)
	}
}

func TestMatchMotivationsRedistributed(t *testing.T) {
	e := newTestEngine(&fakeTransport{analysis: liveTransitAnalysis(0.9)}, nil)

	c := &model.CandidateProfile{
		ID:       "cand-quiet",
		Skills:   []string{"go"},
		Level:    model.LevelSenior,
		Sector:   "tech",
		Mobility: transitMobility(30),
	}
	j := &model.JobRequirement{
		ID:             "job-go",
		RequiredSkills: []string{"go"},
		Level:          model.LevelSenior,
		Sector:         "tech",
		RemotePolicy:   model.RemoteOnsite,
	}

	result, err := e.Match(context.Background(), c, j)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if _, ok := result.Weights[model.ComponentMotivations]; ok {
		t.Errorf("motivations weight should be redistributed, got %v", result.Weights)
	}
	if !hasLine(result, "motivations: unavailable, weight redistributed") {
		t.Errorf("missing redistribution explanation in %v", result.Explanations)
	}
	sum := 0.0
	for _, w := range result.Weights {
		sum += w
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("redistributed weights sum to %.8f", sum)
	}
}

func TestCacheKeyTracksWeights(t *testing.T) {
	e := newTestEngine(&fakeTransport{analysis: liveTransitAnalysis(0.9)}, nil)

	c := &model.CandidateProfile{ID: "c1", Level: model.LevelSenior, Sector: "tech"}
	j := &model.JobRequirement{ID: "j1", Level: model.LevelSenior, Sector: "tech"}

	base, err := e.CacheKey(c, j)
	if err != nil {
		t.Fatalf("CacheKey: %v", err)
	}

	// A different listening reason shifts the weights and must change
	// the key.
	c.ListeningReason = model.ReasonTooFar
	adjusted, err := e.CacheKey(c, j)
	if err != nil {
		t.Fatalf("CacheKey adjusted: %v", err)
	}
	if base == adjusted {
		t.Error("cache key ignores the weight vector")
	}

	// A different job id changes the key too.
	j2 := &model.JobRequirement{ID: "j2", Level: model.LevelSenior, Sector: "tech"}
	c.ListeningReason = ""
	other, err := e.CacheKey(c, j2)
	if err != nil {
		t.Fatalf("CacheKey other job: %v", err)
	}
	if base == other {
		t.Error("cache key ignores the job id")
	}
}
