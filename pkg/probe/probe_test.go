package probe

import (
	"context"
	"errors"
	"testing"
)

func TestRunExecutesEveryProbe(t *testing.T) {
	var order []string
	probes := []Probe{
		{
			Name: "cache backend",
			Check: func(ctx context.Context) error {
				order = append(order, "cache")
				return nil
			},
		},
		{
			Name: "maps provider",
			Check: func(ctx context.Context) error {
				order = append(order, "maps")
				return errors.New("no api key configured")
			},
		},
	}

	results := Run(context.Background(), probes)

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("first probe failed: %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Error("second probe reported no error, want one")
	}
	if len(order) != 2 || order[0] != "cache" || order[1] != "maps" {
		t.Errorf("probes ran as %v, want [cache maps]", order)
	}
}

func TestRunBoundsEachCheck(t *testing.T) {
	probes := []Probe{
		{
			Name: "deadline",
			Check: func(ctx context.Context) error {
				if _, ok := ctx.Deadline(); !ok {
					return errors.New("check context has no deadline")
				}
				return nil
			},
		},
	}
	if results := Run(context.Background(), probes); results[0].Err != nil {
		t.Error(results[0].Err)
	}
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		wantErr bool
	}{
		{
			name: "AllPass",
			results: []Result{
				{Probe: Probe{Name: "weights", Critical: true}},
			},
			wantErr: false,
		},
		{
			name: "CriticalFailureAborts",
			results: []Result{
				{Probe: Probe{Name: "weights", Critical: true}, Err: errors.New("does not sum to 1")},
			},
			wantErr: true,
		},
		{
			name: "NonCriticalFailureOnlyLogs",
			results: []Result{
				{Probe: Probe{Name: "cache backend", Critical: false}, Err: errors.New("unreachable")},
			},
			wantErr: false,
		},
		{
			name: "MixedFailuresSurfaceTheCriticalOne",
			results: []Result{
				{Probe: Probe{Name: "cache backend", Critical: false}, Err: errors.New("unreachable")},
				{Probe: Probe{Name: "weights", Critical: true}, Err: errors.New("does not sum to 1")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Analyze(tt.results)
			if (err != nil) != tt.wantErr {
				t.Errorf("Analyze() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
