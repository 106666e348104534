// Package probe runs startup checks before the server accepts traffic.
// Critical failures abort startup; everything else only logs, because
// the engine degrades rather than dies when a provider is unreachable.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Each check gets its own deadline so one slow backend cannot stall the
// whole startup sequence.
const checkTimeout = 5 * time.Second

// Probe is one startup check. Critical marks checks the service cannot
// run without.
type Probe struct {
	Name     string
	Check    func(ctx context.Context) error
	Critical bool
}

// Result pairs a probe with its outcome.
type Result struct {
	Probe    Probe
	Err      error
	Duration time.Duration
}

// Run executes the probes in order, each under its own timeout.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))
	for i, p := range probes {
		start := time.Now()
		pctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := p.Check(pctx)
		cancel()

		results[i] = Result{Probe: p, Err: err, Duration: time.Since(start)}
	}
	return results
}

// Analyze logs every result and returns the critical failures joined,
// nil when the service is clear to start.
func Analyze(results []Result) error {
	var critical []error

	slog.Info("Startup checks")
	for _, r := range results {
		status := "PASS"
		if r.Err != nil {
			status = "FAIL"
		}
		msg := fmt.Sprintf("[%s] %-20s (%v)", status, r.Probe.Name, r.Duration.Round(time.Millisecond))

		if r.Err != nil {
			slog.Error(msg, "error", r.Err)
			if r.Probe.Critical {
				critical = append(critical, fmt.Errorf("%s: %w", r.Probe.Name, r.Err))
			}
		} else {
			slog.Info(msg)
		}
	}

	return errors.Join(critical...)
}
