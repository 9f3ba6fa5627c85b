package securenotify

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket that bounds the rate of outgoing operations.
// Tokens are fractional and refill lazily on each acquire from elapsed
// wall-clock time; there is no background timer. A single mutex guards all
// bucket state and is deliberately held across the wait, serializing
// concurrent acquirers exactly like the bucket it models.
type RateLimiter struct {
	mu             sync.Mutex
	tokens         float64
	maxTokens      float64
	refillRate     float64 // tokens added per interval
	refillInterval time.Duration
	lastRefill     time.Time
}

// NewRateLimiter creates a bucket holding up to maxTokens, refilling
// refillRate tokens every refillInterval. The bucket starts full.
func NewRateLimiter(maxTokens int, refillRate float64, refillInterval time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:         float64(maxTokens),
		maxTokens:      float64(maxTokens),
		refillRate:     refillRate,
		refillInterval: refillInterval,
		lastRefill:     time.Now(),
	}
}

// Acquire takes one token, waiting as long as necessary. Returns false only
// when ctx is cancelled while waiting.
func (rl *RateLimiter) Acquire(ctx context.Context) bool {
	return rl.acquire(ctx, -1)
}

// AcquireTimeout takes one token if it can be had within timeout. When the
// computed wait exceeds the timeout it returns false immediately without
// waiting at all.
func (rl *RateLimiter) AcquireTimeout(ctx context.Context, timeout time.Duration) bool {
	return rl.acquire(ctx, timeout)
}

func (rl *RateLimiter) acquire(ctx context.Context, timeout time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		rl.refill()

		if rl.tokens >= 1 {
			rl.tokens--
			return true
		}

		// Wait for the deficit to refill. Whole-interval refill accounting
		// means the credit may land one cycle after the fractional estimate,
		// so re-check after every wait instead of decrementing blindly.
		cycles := (1 - rl.tokens) / rl.refillRate
		wait := time.Duration(cycles * float64(rl.refillInterval))
		if wait < rl.refillInterval {
			wait = rl.refillInterval
		}

		if timeout >= 0 {
			remaining := time.Until(deadline)
			if wait > remaining {
				return false
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return false
		}
	}
}

// refill adds whole-interval credit since lastRefill. lastRefill advances by
// whole intervals rather than to now, so fractional progress toward the next
// token is never discarded across bursty call patterns. Caller holds mu.
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	if elapsed < rl.refillInterval {
		return
	}

	cycles := int64(elapsed / rl.refillInterval)
	rl.tokens += float64(cycles) * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = rl.lastRefill.Add(time.Duration(cycles) * rl.refillInterval)
}

// AvailableTokens returns the current token count after a lazy refill.
func (rl *RateLimiter) AvailableTokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}
