package securenotify

import (
	"context"
	"time"

	internalbackoff "github.com/Kirky-X/securenotify-go/internal/backoff"
)

// jitterFraction is the ± perturbation applied to retry delays when jitter
// is enabled.
const jitterFraction = 0.25

// RetryConfig controls the retry engine. Construct once and share freely;
// it is never mutated after creation.
type RetryConfig struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool

	calculator *internalbackoff.Calculator
}

// NewRetryConfig returns a RetryConfig with the service defaults:
// 3 retries, 1s initial delay, 30s cap, 2x multiplier, jitter on.
func NewRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		calculator:        internalbackoff.GetExponentialJitterCalculator(),
	}
}

// WithStrategy returns a copy of the config using the given backoff strategy.
func (c *RetryConfig) WithStrategy(strategy internalbackoff.Strategy) *RetryConfig {
	out := *c
	out.calculator = internalbackoff.NewCalculator(strategy)
	return &out
}

// ShouldRetry reports whether err on the given 0-indexed attempt warrants
// another try. Non-retryable kinds (authentication, validation, not-found,
// conflict) and unclassified errors fail closed; a retryable subtype of an
// otherwise terminal API error is honored via the per-error predicate.
func (c *RetryConfig) ShouldRetry(err error, attempt int) bool {
	if attempt >= c.MaxRetries {
		return false
	}
	// Classified errors carry their own retryability; bare context errors
	// (cancellation from the caller, never wrapped by the transport) are
	// terminal. A cancelled context also aborts the backoff sleep, so a
	// retryable wrap around context.Canceled cannot loop.
	return IsRetryable(err)
}

// Delay computes the backoff before the attempt+1 try:
// min(initial * multiplier^attempt, max), ±25% jitter when enabled.
func (c *RetryConfig) Delay(attempt int) time.Duration {
	jitter := 0.0
	if c.Jitter {
		jitter = jitterFraction
	}
	calc := c.calculator
	if calc == nil {
		calc = internalbackoff.GetExponentialJitterCalculator()
	}
	return calc.Calculate(attempt, c.InitialDelay, c.MaxDelay, c.BackoffMultiplier, jitter)
}

// DoWithRetry executes op under the retry policy. The operation runs once
// per attempt; on exhaustion the last observed error is returned unchanged.
// Each call is independent; no state is shared between concurrent calls.
func DoWithRetry(ctx context.Context, cfg *RetryConfig, op Operation) (interface{}, error) {
	if cfg == nil {
		cfg = NewRetryConfig()
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.ShouldRetry(err, attempt) {
			return nil, err
		}

		if err := sleepContext(ctx, cfg.Delay(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// sleepContext suspends for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
