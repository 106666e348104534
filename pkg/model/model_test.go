package model

import (
	"encoding/json"
	"testing"
)

func TestLevelParseAndGap(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Level
		wantErr bool
	}{
		{name: "Entry", input: "ENTRY", want: LevelEntry},
		{name: "LowercaseSenior", input: "senior", want: LevelSenior},
		{name: "PaddedExecutive", input: " executive ", want: LevelExecutive},
		{name: "Unknown", input: "intern", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v", tt.input, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	if gap := LevelExecutive.Gap(LevelEntry); gap != 5 {
		t.Errorf("EXECUTIVE.Gap(ENTRY) = %d, want 5", gap)
	}
	if gap := LevelJunior.Gap(LevelManager); gap != -2 {
		t.Errorf("JUNIOR.Gap(MANAGER) = %d, want -2", gap)
	}
}

func TestLevelJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		Level Level `json:"level"`
	}
	data, err := json.Marshal(wrapper{Level: LevelDirector})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"level":"DIRECTOR"}` {
		t.Errorf("marshal = %s", data)
	}
	var back wrapper
	if err := json.Unmarshal([]byte(`{"level":"junior"}`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Level != LevelJunior {
		t.Errorf("unmarshal = %v, want JUNIOR", back.Level)
	}
}

func TestRecommendationFor(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		sectoral bool
		want     Recommendation
	}{
		{name: "Strong", score: 0.85, want: StrongMatch},
		{name: "StrongBoundary", score: 0.80, want: StrongMatch},
		{name: "Match", score: 0.70, want: Match},
		{name: "Weak", score: 0.50, want: WeakMatch},
		{name: "No", score: 0.40, want: NoMatch},
		{name: "SectoralLow", score: 0.20, sectoral: true, want: NoMatchSectoral},
		{name: "SectoralAboveCeil", score: 0.35, sectoral: true, want: NoMatch},
		{name: "SectoralButStrong", score: 0.90, sectoral: true, want: StrongMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RecommendationFor(tt.score, tt.sectoral); got != tt.want {
				t.Errorf("RecommendationFor(%.2f, %v) = %v, want %v", tt.score, tt.sectoral, got, tt.want)
			}
		})
	}
}

func TestSalaryRange(t *testing.T) {
	a := SalaryRange{Min: 40000, Max: 50000}
	b := SalaryRange{Min: 48000, Max: 60000}
	c := SalaryRange{Min: 55000, Max: 70000}

	if !a.Overlaps(b) || !b.Overlaps(a) {
		t.Error("overlapping ranges should overlap both ways")
	}
	if a.Overlaps(c) {
		t.Error("disjoint ranges should not overlap")
	}
	if mid := a.Mid(); mid != 45000 {
		t.Errorf("Mid() = %.0f, want 45000", mid)
	}
}

func TestAcceptedModes(t *testing.T) {
	m := MobilityConstraints{
		Modes: []TransportMode{ModeWalking, "hoverboard", ModePublicTransit, ModeWalking},
	}
	got := m.AcceptedModes()
	if len(got) != 2 || got[0] != ModePublicTransit || got[1] != ModeWalking {
		t.Errorf("AcceptedModes() = %v", got)
	}
}

func TestRemoteAllowed(t *testing.T) {
	onsite := JobRequirement{RemotePolicy: RemoteOnsite}
	hybridZero := JobRequirement{RemotePolicy: RemoteHybrid}
	hybrid := JobRequirement{RemotePolicy: RemoteHybrid, RemoteDays: 2}
	full := JobRequirement{RemotePolicy: RemoteFull}

	if onsite.RemoteAllowed() || hybridZero.RemoteAllowed() {
		t.Error("onsite and zero-day hybrid should not allow remote")
	}
	if !hybrid.RemoteAllowed() || !full.RemoteAllowed() {
		t.Error("hybrid with days and full remote should allow remote")
	}
}

func TestRouteEffectiveMinutes(t *testing.T) {
	withTraffic := Route{DurationMinutes: 30, TrafficMinutes: 42}
	if withTraffic.EffectiveMinutes() != 42 {
		t.Errorf("EffectiveMinutes() = %.1f, want 42", withTraffic.EffectiveMinutes())
	}
	freeFlow := Route{DurationMinutes: 30}
	if freeFlow.EffectiveMinutes() != 30 {
		t.Errorf("EffectiveMinutes() = %.1f, want 30", freeFlow.EffectiveMinutes())
	}
}

func TestModeAssessmentEfficiency(t *testing.T) {
	a := ModeAssessment{
		AllowedMinutes: 30,
		Route:          Route{DurationMinutes: 60},
	}
	if eff := a.Efficiency(); eff != 0.5 {
		t.Errorf("Efficiency() = %.2f, want 0.5", eff)
	}
	generous := ModeAssessment{AllowedMinutes: 60, Route: Route{DurationMinutes: 30}}
	if eff := generous.Efficiency(); eff != 1 {
		t.Errorf("Efficiency() = %.2f, want capped 1", eff)
	}
}
