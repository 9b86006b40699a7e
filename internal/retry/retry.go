// Package retry provides the explicit retry policy consumed by call sites
// wrapping flaky collaborator calls. Retry behavior lives in the call's type
// signature, not in a decorator.
package retry

import (
	"context"
	"errors"
	"time"

	"shortline/internal/config"
	"shortline/internal/services"
)

// Policy holds the retry parameters shared across the orchestrator and
// collaborators.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64

	// sleep is replaceable in tests.
	sleep func(context.Context, time.Duration) error
}

// FromConfig builds a Policy from the configured retry section.
func FromConfig(cfg *config.Config) Policy {
	if cfg == nil {
		return DefaultPolicy()
	}
	return Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelaySeconds) * time.Second,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelaySeconds) * time.Second,
		Multiplier:  cfg.Retry.Multiplier,
	}
}

// DefaultPolicy returns the repository default retry parameters.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2,
	}
}

// WithSleeper returns a copy of the policy using a custom sleep function.
// Tests use this to observe delays without waiting.
func (p Policy) WithSleeper(sleep func(context.Context, time.Duration) error) Policy {
	p.sleep = sleep
	return p
}

// Delay computes the backoff before the given attempt (1-based). The first
// retry waits BaseDelay, each subsequent retry multiplies, capped at
// MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Retryable reports whether an error is worth another local attempt.
// Auth, quota, and dependency failures short-circuit: no amount of retrying
// fixes a revoked token, an exhausted budget, or a missing binary.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, services.ErrAuth),
		errors.Is(err, services.ErrQuota),
		errors.Is(err, services.ErrDependency):
		return false
	default:
		return true
	}
}

// Do executes fn under the policy. Non-retryable errors return immediately;
// retryable errors are re-attempted up to MaxAttempts with exponential
// backoff between attempts. Errors carrying no classification marker get a
// single retry regardless of the budget. The last error is returned when the
// budget is exhausted.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
		budget := attempts
		if !classified(lastErr) && budget > 2 {
			budget = 2
		}
		if attempt >= budget {
			break
		}
		if err := sleep(ctx, p.Delay(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

// classified reports whether err carries one of the retryable markers. An
// unmarked error says nothing about whether retrying helps, so it only gets
// one more attempt.
func classified(err error) bool {
	return errors.Is(err, services.ErrTransient) || errors.Is(err, services.ErrDuplicate)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
