// Package resilience wraps outbound calls with error classification,
// retries, circuit breakers and degradation rules. The rest of the
// engine never retries on its own; it hands the call to an Executor
// and reacts to the classified error that comes back.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sony/gobreaker"
)

// Kind classifies an error for retry and degradation decisions.
type Kind int

const (
	KindNone           Kind = iota // no error, or unclassified success path
	KindNetwork                    // connection-level failure
	KindTimeout                    // deadline exceeded
	KindRateLimit                  // HTTP 429
	KindServer                     // HTTP 5xx
	KindClient                     // other HTTP 4xx, terminal
	KindQuotaExhausted             // daily API budget spent
	KindCircuitOpen                // breaker rejected the call
	KindCanceled                   // caller gave up
	KindValidation                 // bad input
	KindInternal                   // invariant violations and bugs
)

var kindNames = map[Kind]string{
	KindNone:           "none",
	KindNetwork:        "network",
	KindTimeout:        "timeout",
	KindRateLimit:      "rate_limit",
	KindServer:         "server",
	KindClient:         "client",
	KindQuotaExhausted: "quota_exhausted",
	KindCircuitOpen:    "circuit_open",
	KindCanceled:       "canceled",
	KindValidation:     "validation",
	KindInternal:       "internal",
}

// String returns the kind name used in logs and degradation rules.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Retryable reports whether a fresh attempt can plausibly succeed.
// Rate limits are retryable: the provider asks for a pause, not a stop.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindTimeout, KindRateLimit, KindServer:
		return true
	default:
		return false
	}
}

// Error carries a classified error for a named service.
type Error struct {
	Kind    Kind
	Service string
	Err     error
}

// E wraps err with a kind and service name.
func E(kind Kind, service string, err error) *Error {
	return &Error{Kind: kind, Service: service, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Service, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Service, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusError is an HTTP response with a non-success status code.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: status %d (%s)", e.Code, e.URL)
}

// Classify maps an error to its kind. Unrecognized errors are treated
// as network failures, which keeps unknown transport hiccups retryable.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == 429:
			return KindRateLimit
		case se.Code >= 500:
			return KindServer
		case se.Code >= 400:
			return KindClient
		}
		return KindNone
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return KindCircuitOpen
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	return KindNetwork
}
