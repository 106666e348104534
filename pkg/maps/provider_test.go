package maps

import (
	"errors"
	"strings"
	"testing"

	"github.com/Bapt252/Nextvision-sub001/pkg/model"
	"github.com/Bapt252/Nextvision-sub001/pkg/resilience"
)

func TestQualityFor(t *testing.T) {
	tests := []struct {
		locationType string
		partial      bool
		want         model.GeocodeQuality
	}{
		{"ROOFTOP", false, model.QualityExact},
		{"RANGE_INTERPOLATED", false, model.QualityApproximate},
		{"GEOMETRIC_CENTER", false, model.QualityApproximate},
		{"APPROXIMATE", false, model.QualityPartial},
		{"ROOFTOP", true, model.QualityPartial},
	}
	for _, tt := range tests {
		if got := qualityFor(tt.locationType, tt.partial); got != tt.want {
			t.Errorf("qualityFor(%q, %v) = %s, want %s", tt.locationType, tt.partial, got, tt.want)
		}
	}
}

func TestProviderMode(t *testing.T) {
	tests := []struct {
		mode model.TransportMode
		want string
	}{
		{model.ModePublicTransit, "transit"},
		{model.ModeDriving, "driving"},
		{model.ModeCycling, "bicycling"},
		{model.ModeWalking, "walking"},
	}
	for _, tt := range tests {
		if got := providerMode(tt.mode); got != tt.want {
			t.Errorf("providerMode(%s) = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestStatusError(t *testing.T) {
	if err := statusError("OK", "", "geocoding"); err != nil {
		t.Errorf("OK must not error, got %v", err)
	}
	if err := statusError("ZERO_RESULTS", "", "geocoding"); err != nil {
		t.Errorf("ZERO_RESULTS must not error, got %v", err)
	}

	tests := []struct {
		status string
		want   resilience.Kind
	}{
		{"OVER_QUERY_LIMIT", resilience.KindQuotaExhausted},
		{"REQUEST_DENIED", resilience.KindClient},
		{"INVALID_REQUEST", resilience.KindClient},
		{"UNKNOWN_ERROR", resilience.KindServer},
	}
	for _, tt := range tests {
		err := statusError(tt.status, "boom", "geocoding")
		if err == nil {
			t.Errorf("%s must error", tt.status)
			continue
		}
		if got := resilience.Classify(err); got != tt.want {
			t.Errorf("Classify(%s) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestRedactKey(t *testing.T) {
	redacted := redactKey("https://example.test/geocode/json?address=paris&key=sekret")
	if strings.Contains(redacted, "sekret") {
		t.Errorf("Key leaked: %s", redacted)
	}
	if !strings.Contains(redacted, "address=paris") {
		t.Errorf("Other params must survive: %s", redacted)
	}
}

func TestErrNoRouteIsTerminal(t *testing.T) {
	err := resilience.E(resilience.KindClient, "routing", ErrNoRoute)
	if !errors.Is(err, ErrNoRoute) {
		t.Error("ErrNoRoute must survive wrapping")
	}
	if resilience.Classify(err).Retryable() {
		t.Error("No-route answers must not be retried")
	}
}
