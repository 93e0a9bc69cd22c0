// Package resilience wraps calls to external upstreams (graph store, vector
// store, metrics backend, model endpoint) with retries, per-call timeouts,
// and a circuit breaker. Every adapter in the platform goes through an
// Executor so that a misbehaving upstream degrades investigations instead
// of failing them.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/codeready-toolchain/strands/pkg/faults"
)

// Config contains the retry and circuit breaker policy for one upstream.
type Config struct {
	// MaxAttempts is the total number of attempts per call (first try included).
	MaxAttempts int `yaml:"max_attempts"`

	// CallTimeout bounds each individual attempt.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// BackoffMultiplier is the exponential growth factor between retries.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`

	// RandomizationFactor is the jitter applied to each delay.
	// Actual delay: interval ± interval*RandomizationFactor.
	RandomizationFactor float64 `yaml:"randomization_factor"`

	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold uint32 `yaml:"failure_threshold"`

	// RecoveryTimeout is how long the breaker stays open before allowing
	// a single half-open probe.
	RecoveryTimeout time.Duration `yaml:"recovery_timeout"`
}

// DefaultConfig returns the built-in resilience defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:         3,
		CallTimeout:         30 * time.Second,
		InitialBackoff:      1 * time.Second,
		MaxBackoff:          60 * time.Second,
		BackoffMultiplier:   2.0,
		RandomizationFactor: 0.2,
		FailureThreshold:    5,
		RecoveryTimeout:     60 * time.Second,
	}
}

// Snapshot is a point-in-time view of one executor, exposed via health
// endpoints so operators can see which upstreams are tripping.
type Snapshot struct {
	Upstream      string `json:"upstream"`
	State         string `json:"state"`
	Calls         uint64 `json:"calls"`
	Successes     uint64 `json:"successes"`
	Failures      uint64 `json:"failures"`
	Retries       uint64 `json:"retries"`
	ShortCircuits uint64 `json:"short_circuits"`
}

// Executor runs upstream calls under a shared retry and breaker policy.
// One Executor is created per upstream and shared by all callers; it is
// safe for concurrent use.
type Executor struct {
	upstream string
	cfg      Config
	breaker  *gobreaker.CircuitBreaker
	logger   *slog.Logger

	calls         atomic.Uint64
	successes     atomic.Uint64
	failures      atomic.Uint64
	retries       atomic.Uint64
	shortCircuits atomic.Uint64
}

// NewExecutor creates an executor for the named upstream.
// Panics if logger is nil (programming error in the wiring).
func NewExecutor(upstream string, cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		panic("NewExecutor: logger must not be nil")
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	e := &Executor{
		upstream: upstream,
		cfg:      cfg,
		logger:   logger,
	}
	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        upstream,
		MaxRequests: 1,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// Caller mistakes must not poison the breaker: only errors
			// that indicate upstream trouble count as failures.
			return err == nil || faults.IsKind(err, faults.KindValidationFailed)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				"upstream", name, "from", stateName(from), "to", stateName(to))
		},
	})
	return e
}

// Do invokes fn under the executor's policy. Each attempt runs with its own
// timeout derived from ctx; transient failures are retried with exponential
// backoff until the attempt budget is exhausted.
//
// Error mapping:
//   - breaker open            -> CIRCUIT_OPEN, returned immediately
//   - non-transient fault     -> returned as-is, no retries
//   - parent ctx cancellation -> returned as-is
//   - budget exhausted        -> UPSTREAM_UNAVAILABLE wrapping the last error
func (e *Executor) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	e.calls.Add(1)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.InitialBackoff
	bo.MaxInterval = e.cfg.MaxBackoff
	bo.Multiplier = e.cfg.BackoffMultiplier
	bo.RandomizationFactor = e.cfg.RandomizationFactor
	bo.MaxElapsedTime = 0 // attempts are bounded by MaxAttempts, not wall clock
	bo.Reset()

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		_, err := e.breaker.Execute(func() (any, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
			defer cancel()
			return nil, fn(attemptCtx)
		})
		if err == nil {
			e.successes.Add(1)
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			e.shortCircuits.Add(1)
			return faults.Newf(faults.KindCircuitOpen, op,
				"upstream %s short-circuited", e.upstream)
		}
		if ctx.Err() != nil {
			// The caller gave up; do not burn retries against a dead context.
			e.failures.Add(1)
			return ctx.Err()
		}
		if !retryable(err) {
			e.failures.Add(1)
			return err
		}

		lastErr = err
		if attempt == e.cfg.MaxAttempts {
			break
		}
		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			break
		}
		e.retries.Add(1)
		e.logger.Warn("Retrying upstream call",
			"upstream", e.upstream, "op", op,
			"attempt", attempt, "backoff", delay, "error", err)
		if err := sleep(ctx, delay); err != nil {
			e.failures.Add(1)
			return err
		}
	}

	e.failures.Add(1)
	return faults.Wrap(faults.KindUpstreamUnavailable, op,
		"upstream "+e.upstream+" unavailable after retries", lastErr)
}

// State reports the breaker state as CLOSED, OPEN, or HALF_OPEN.
func (e *Executor) State() string {
	return stateName(e.breaker.State())
}

// Snapshot returns the current counters and breaker state.
func (e *Executor) Snapshot() Snapshot {
	return Snapshot{
		Upstream:      e.upstream,
		State:         e.State(),
		Calls:         e.calls.Load(),
		Successes:     e.successes.Load(),
		Failures:      e.failures.Load(),
		Retries:       e.retries.Load(),
		ShortCircuits: e.shortCircuits.Load(),
	}
}

// retryable reports whether an attempt error is worth retrying.
// Unknown error types are assumed to be transport hiccups.
func retryable(err error) bool {
	var fe *faults.Error
	if errors.As(err, &fe) {
		return faults.IsTransient(err)
	}
	return !errors.Is(err, context.Canceled)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func stateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateOpen:
		return "OPEN"
	case gobreaker.StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}
