// Package retry runs an operation under a bounded exponential-backoff policy.
//
// The policy surfaces the last failure unchanged once attempts are exhausted,
// so callers can still match sentinel errors with errors.Is.
package retry

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// Default policy values.
const (
	DefaultAttempts     = 3
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultMultiplier   = 2.0
)

// jitterPrecision is the granularity for crypto/rand jitter generation.
const jitterPrecision = 1000

// jitterHalfPrecision normalizes jitter output to the range [-1, 1].
const jitterHalfPrecision = jitterPrecision / 2

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy configures bounded exponential backoff.
type Policy struct {
	// Attempts is the total number of tries, including the first. Defaults to DefaultAttempts.
	Attempts int

	// InitialDelay is the wait after the first failure. Defaults to DefaultInitialDelay.
	InitialDelay time.Duration

	// MaxDelay caps every wait. Defaults to DefaultMaxDelay.
	MaxDelay time.Duration

	// Multiplier grows the delay after each wait. Defaults to DefaultMultiplier.
	Multiplier float64

	// Jitter spreads each wait by +-Jitter (a fraction, e.g. 0.25). Zero disables it.
	Jitter float64

	// Retryable decides whether a failure deserves another attempt. Nil retries everything.
	Retryable func(error) bool

	// Sleep replaces the real timer. Tests inject a recorder here.
	Sleep SleepFunc

	// OnRetry is called before each wait with the attempt that just failed.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns 3 attempts starting at 1s, doubling up to 30s.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:     DefaultAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
	}
}

func (p *Policy) defaults() {
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
}

// Do invokes op until it succeeds, the policy gives up, or ctx is canceled.
// A first-attempt success returns without any wait. After the final attempt the
// last error from op is returned as-is.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	p.defaults()

	var zero T
	delay := p.InitialDelay

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if attempt >= p.Attempts || (p.Retryable != nil && !p.Retryable(err)) {
			return zero, err
		}

		wait := p.withJitter(delay)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		if sleepErr := p.Sleep(ctx, wait); sleepErr != nil {
			return zero, sleepErr
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// withJitter applies +-Jitter using crypto/rand, capped at MaxDelay.
func (p *Policy) withJitter(delay time.Duration) time.Duration {
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter <= 0 {
		return delay
	}
	n, err := rand.Int(rand.Reader, big.NewInt(jitterPrecision))
	if err != nil {
		return delay
	}
	base := float64(delay)
	result := base + base*p.Jitter*(float64(n.Int64())/jitterHalfPrecision-1)
	if result > float64(p.MaxDelay) {
		result = float64(p.MaxDelay)
	}
	return time.Duration(math.Max(result, 0))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
