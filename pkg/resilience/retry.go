package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Bapt252/Nextvision-sub001/pkg/config"
	"github.com/Bapt252/Nextvision-sub001/pkg/health"
)

// Executor retries operations against a service with a configurable
// delay strategy. Every attempt runs through the service's circuit
// breaker and its outcome feeds the health window; an open circuit
// stops the retry loop immediately.
type Executor struct {
	cfg      config.RetryConfig
	breakers *BreakerRegistry
	health   *health.Registry
}

// NewExecutor creates an executor. Both breakers and health may be nil,
// which disables the corresponding integration.
func NewExecutor(cfg config.RetryConfig, breakers *BreakerRegistry, h *health.Registry) *Executor {
	return &Executor{cfg: cfg, breakers: breakers, health: h}
}

// Do runs op until it succeeds, a terminal error occurs, the circuit
// opens, or the attempt/delay budget is spent.
func (e *Executor) Do(ctx context.Context, service string, op func(context.Context) error) error {
	maxAttempts := e.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	b := e.backOffFor(service)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		if e.breakers != nil {
			err = e.breakers.Execute(service, func() error { return op(ctx) })
		} else {
			err = op(ctx)
		}

		kind := Classify(err)
		if e.health != nil && kind != KindCircuitOpen {
			// Rejected calls never reached the service, so they carry
			// no signal about it.
			e.health.Report(service, err == nil)
		}
		if err == nil {
			return nil
		}
		lastErr = err

		if kind == KindCircuitOpen {
			return err
		}
		if !kind.Retryable() {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			slog.Warn("Retry delay budget exhausted", "service", service, "attempt", attempt)
			break
		}
		slog.Warn("Request failed, retrying", "service", service, "attempt", attempt, "next_delay", delay, "kind", kind.String(), "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s: %d attempts exhausted: %w", service, maxAttempts, lastErr)
}

// DoValue runs op through the executor and returns its value.
func DoValue[T any](ctx context.Context, e *Executor, service string, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, service, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// backOffFor builds a fresh delay sequence for one Do call.
func (e *Executor) backOffFor(service string) backoff.BackOff {
	base := e.cfg.BaseDelay.Std()
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	maxDelay := e.cfg.MaxDelay.Std()
	maxElapsed := e.cfg.MaxElapsed.Std()

	switch e.cfg.Strategy {
	case "fixed":
		return backoff.NewConstantBackOff(base)
	case "linear":
		return &linearBackOff{base: base, max: maxDelay, maxElapsed: maxElapsed, start: time.Now()}
	case "exponential":
		return newExponential(base, maxDelay, maxElapsed, 0)
	case "fibonacci":
		return &fibonacciBackOff{base: base, max: maxDelay, maxElapsed: maxElapsed, prev: 0, curr: 1, start: time.Now()}
	case "adaptive":
		return &adaptiveBackOff{
			base: base, max: maxDelay, maxElapsed: maxElapsed, start: time.Now(),
			rate: func() float64 {
				if e.health == nil {
					return 1.0
				}
				return e.health.SuccessRate(service)
			},
		}
	default: // jittered exponential
		return newExponential(base, maxDelay, maxElapsed, 0.5)
	}
}

func newExponential(base, maxDelay, maxElapsed time.Duration, randomization float64) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.RandomizationFactor = randomization
	b.Multiplier = 2
	if maxDelay > 0 {
		b.MaxInterval = maxDelay
	}
	b.MaxElapsedTime = maxElapsed
	b.Reset()
	return b
}

// linearBackOff grows the delay by one base step per attempt.
type linearBackOff struct {
	base       time.Duration
	max        time.Duration
	maxElapsed time.Duration
	attempt    int
	start      time.Time
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
	b.start = time.Now()
}

func (b *linearBackOff) NextBackOff() time.Duration {
	if b.maxElapsed > 0 && time.Since(b.start) >= b.maxElapsed {
		return backoff.Stop
	}
	b.attempt++
	d := time.Duration(b.attempt) * b.base
	if b.max > 0 && d > b.max {
		d = b.max
	}
	return d
}

// fibonacciBackOff walks the Fibonacci sequence in base-delay steps.
type fibonacciBackOff struct {
	base       time.Duration
	max        time.Duration
	maxElapsed time.Duration
	prev, curr int64
	start      time.Time
}

func (b *fibonacciBackOff) Reset() {
	b.prev, b.curr = 0, 1
	b.start = time.Now()
}

func (b *fibonacciBackOff) NextBackOff() time.Duration {
	if b.maxElapsed > 0 && time.Since(b.start) >= b.maxElapsed {
		return backoff.Stop
	}
	d := time.Duration(b.curr) * b.base
	b.prev, b.curr = b.curr, b.prev+b.curr
	if b.max > 0 && d > b.max {
		d = b.max
	}
	return d
}

// adaptiveBackOff doubles per attempt like the exponential strategy,
// then stretches the delay when the service's recent success rate is
// poor: x1.5 below 80%, x2 below 50%. Jitter is proportional to the
// computed delay so short delays stay short.
type adaptiveBackOff struct {
	base       time.Duration
	max        time.Duration
	maxElapsed time.Duration
	rate       func() float64
	attempt    int
	start      time.Time
}

func (b *adaptiveBackOff) Reset() {
	b.attempt = 0
	b.start = time.Now()
}

func (b *adaptiveBackOff) NextBackOff() time.Duration {
	if b.maxElapsed > 0 && time.Since(b.start) >= b.maxElapsed {
		return backoff.Stop
	}
	b.attempt++
	d := float64(b.base) * math.Pow(2, float64(b.attempt-1))

	switch r := b.rate(); {
	case r < 0.5:
		d *= 2.0
	case r < 0.8:
		d *= 1.5
	}

	d *= 0.75 + rand.Float64()*0.5

	out := time.Duration(d)
	if b.max > 0 && out > b.max {
		out = b.max
	}
	return out
}
