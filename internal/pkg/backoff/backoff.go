// Package backoff computes retry delays using exponential backoff with full
// jitter, and sleeps for them honouring context cancellation.
package backoff

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// MinDelay is the floor applied to every jittered delay to avoid busy-looping.
const MinDelay = 100 * time.Millisecond

// Policy describes a bounded retry budget.
type Policy struct {
	// Attempts is the total number of calls, including the first one.
	Attempts int
	// Base is the delay cap before the second attempt.
	Base time.Duration
	// Max caps any single delay.
	Max time.Duration
	// Rand returns a float in [0,1). Nil means math/rand.
	Rand func() float64
}

// Default returns the policy used when nothing is configured: 3 attempts,
// 1s base, 30s max.
func Default() Policy {
	return Policy{Attempts: 3, Base: time.Second, Max: 30 * time.Second}
}

// Delay returns the wait before retry number attempt (1-based: the wait
// before the second call is Delay(1)).
// Full jitter: random(0, min(Max, Base * 2^(attempt-1))), floored at MinDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	expDelay := float64(p.Base) * math.Pow(2, float64(attempt-1))
	if p.Max > 0 && expDelay > float64(p.Max) {
		expDelay = float64(p.Max)
	}

	r := rand.Float64
	if p.Rand != nil {
		r = p.Rand
	}
	jittered := time.Duration(r() * expDelay)

	if jittered < MinDelay {
		jittered = MinDelay
	}
	return jittered
}

// Sleep waits Delay(attempt) or until ctx is done, whichever comes first.
func (p Policy) Sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
