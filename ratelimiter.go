package qcomposer

import (
	"sync"
	"time"
)

/*
Regulator decides whether an action may proceed right now.

Limit returns true when the action should be refused. Renormalize lets the
regulator catch up on whatever it tracks over time.
*/
type Regulator interface {
	Limit() bool
	Renormalize()
}

/*
RateLimiter is a token bucket Regulator guarding the command surface.

Each command consumes one token. Tokens come back one per refill period, up
to the bucket size, so short bursts are allowed while a sustained flood of
commands against the shared session is refused.
*/
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
	metrics    *Metrics
}

/*
NewRateLimiter creates a full bucket.

Parameters:
  - maxTokens: Burst capacity
  - refillRate: Time it takes to earn back one token
  - metrics: Where refusals are counted, may be nil

Returns:
  - *RateLimiter: A new limiter
*/
func NewRateLimiter(maxTokens int, refillRate time.Duration, metrics *Metrics) *RateLimiter {
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
		metrics:    metrics,
	}
}

// Limit consumes a token if one is available.
func (rl *RateLimiter) Limit() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens > 0 {
		rl.tokens--
		return false
	}

	rl.metrics.limited()
	return true
}

func (rl *RateLimiter) Renormalize() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
}

// refill assumes rl.mu is held.
func (rl *RateLimiter) refill() {
	if rl.refillRate <= 0 {
		rl.tokens = rl.maxTokens
		return
	}

	earned := int(time.Since(rl.lastRefill) / rl.refillRate)
	if earned <= 0 {
		return
	}

	rl.tokens = min(rl.maxTokens, rl.tokens+earned)
	rl.lastRefill = rl.lastRefill.Add(time.Duration(earned) * rl.refillRate)
}
