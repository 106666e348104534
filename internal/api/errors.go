package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Bapt252/Nextvision-sub001/pkg/resilience"
)

// ErrorResponse is the error payload: the classified kind, a short
// explanation and, where one exists, a recovery suggestion.
type ErrorResponse struct {
	Error      string `json:"error"`
	Kind       string `json:"kind"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := resilience.Classify(err)
	writeJSON(w, statusFor(kind), ErrorResponse{
		Error:      err.Error(),
		Kind:       kind.String(),
		Suggestion: suggestionFor(kind),
	})
}

func statusFor(kind resilience.Kind) int {
	switch kind {
	case resilience.KindValidation:
		return http.StatusBadRequest
	case resilience.KindRateLimit, resilience.KindQuotaExhausted:
		return http.StatusTooManyRequests
	case resilience.KindTimeout:
		return http.StatusGatewayTimeout
	case resilience.KindCircuitOpen:
		return http.StatusServiceUnavailable
	case resilience.KindNetwork, resilience.KindServer:
		return http.StatusBadGateway
	case resilience.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func suggestionFor(kind resilience.Kind) string {
	switch kind {
	case resilience.KindNetwork, resilience.KindTimeout, resilience.KindServer,
		resilience.KindRateLimit, resilience.KindCircuitOpen:
		return "retry later"
	case resilience.KindQuotaExhausted:
		return "retry after the daily provider quota resets"
	case resilience.KindValidation:
		return "fix the request payload"
	default:
		return ""
	}
}
