package gatekeeper

import (
	"math"
	"sync"
	"time"
)

// bucket is the mutable token-bucket state for one (client, policy) pair.
// Tokens accrue continuously at policy.RatePerMinute, capped at the burst
// capacity, and are consumed one per admitted request. The mutex makes
// check-then-decrement a single atomic step so that two concurrent requests
// can never both consume the same last token.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	policy     Policy
}

func newBucket(policy Policy, now time.Time) *bucket {
	return &bucket{
		tokens:     float64(policy.Burst),
		lastRefill: now,
		policy:     policy,
	}
}

// take refills the bucket and consumes one token if at least one is
// available. A denied call does not mutate the token count beyond the
// refill bookkeeping.
func (b *bucket) take(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(now)
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// available reports the whole tokens that would be available at now. It is
// read-only: repeated calls with a frozen clock return the same value.
func (b *bucket) available(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	tokens := b.tokens
	if elapsed := now.Sub(b.lastRefill).Seconds(); elapsed > 0 {
		tokens = math.Min(float64(b.policy.Burst), tokens+elapsed*b.policy.RatePerMinute/60)
	}
	return int(tokens)
}

func (b *bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(float64(b.policy.Burst), b.tokens+elapsed*b.policy.RatePerMinute/60)
	b.lastRefill = now
}
