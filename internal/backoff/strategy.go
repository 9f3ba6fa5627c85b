package backoff

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// Strategy defines the interface for backoff calculation algorithms.
type Strategy interface {
	// Calculate returns the backoff duration for the given attempt number and parameters.
	Calculate(attempt int, initialDelay, maxDelay time.Duration, multiplier, jitter float64) time.Duration
}

// ExponentialJitterStrategy implements exponential backoff with symmetric
// uniform jitter: delay = min(initial * multiplier^attempt, max) ± jitter
// fraction of the delay. Jitter is drawn from crypto/rand so retry storms
// across many clients desynchronize unpredictably.
type ExponentialJitterStrategy struct{}

// Calculate implements the Strategy interface.
func (s ExponentialJitterStrategy) Calculate(attempt int, initialDelay, maxDelay time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// Prevent overflow by limiting attempt
	if attempt > 30 {
		attempt = 30
	}

	delay := time.Duration(float64(initialDelay) * pow(multiplier, attempt))
	if delay < 0 || delay > maxDelay {
		delay = maxDelay
	}

	jitter = clampJitter(jitter)
	if jitter > 0 {
		// Perturbation uniform in [-jitter, +jitter] of the delay.
		frac := (secureFloat64()*2 - 1) * jitter
		delay += time.Duration(float64(delay) * frac)
	}
	if delay < 0 {
		delay = 0
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// DecorrelatedJitterStrategy implements decorrelated jitter per the AWS
// architecture blog: random_between(base, min(cap, base * 3^attempt)).
// It spreads tail latencies more smoothly than exponential jitter.
type DecorrelatedJitterStrategy struct{}

// Calculate implements the Strategy interface for decorrelated jitter.
func (s DecorrelatedJitterStrategy) Calculate(attempt int, initialDelay, maxDelay time.Duration, multiplier, jitter float64) time.Duration {
	if attempt <= 0 {
		return initialDelay
	}

	// Prevent overflow by limiting attempt
	if attempt > 10 {
		attempt = 10
	}

	base := float64(initialDelay)
	upper := base * pow(3.0, attempt)

	maxDelayFloat := float64(maxDelay)
	if upper > maxDelayFloat || upper < 0 {
		upper = maxDelayFloat
	}
	if upper < base {
		upper = base
	}

	delay := base + secureFloat64()*(upper-base)

	result := time.Duration(delay)
	if result < 0 || result > maxDelay {
		result = maxDelay
	}
	return result
}

// secureFloat64 returns a uniform float64 in [0, 1) from crypto/rand.
func secureFloat64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing means the platform entropy source is broken;
		// a zero perturbation keeps backoff deterministic rather than wrong.
		return 0
	}
	// 53 bits of mantissa, same construction as math/rand Float64.
	return float64(binary.BigEndian.Uint64(buf[:])>>11) / (1 << 53)
}

// clampJitter ensures jitter is within valid bounds [0, 1].
func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

// pow calculates base^exponent using integer exponentiation.
func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}

// Pow is exported for callers that need the same exponentiation behavior.
func Pow(base float64, exponent int) float64 {
	return pow(base, exponent)
}
