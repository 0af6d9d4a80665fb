package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket allows short bursts while holding the long-run rate.
type TokenBucket struct {
	mu         sync.Mutex
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	now        func() time.Time
	config     Config
}

func NewTokenBucket(cfg Config) *TokenBucket {
	cfg = cfg.withDefaults()
	tb := &TokenBucket{
		rate:   cfg.RequestsPerSec,
		burst:  cfg.Burst,
		tokens: float64(cfg.Burst),
		now:    time.Now,
		config: cfg,
	}
	tb.lastUpdate = tb.now()
	return tb
}

// Wait blocks until a token is taken or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		wait := tb.take()
		if wait == 0 {
			return nil
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

func (tb *TokenBucket) Allow() bool {
	return tb.take() == 0
}

// Reserve reports how long until a token is available without taking it.
func (tb *TokenBucket) Reserve() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.deficit()
}

func (tb *TokenBucket) RetryAfter(attempt int) time.Duration {
	return CalculateBackoff(attempt, tb.config)
}

// take consumes a token when one is available and otherwise returns the
// time until one will be.
func (tb *TokenBucket) take() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	if d := tb.deficit(); d > 0 {
		return d
	}
	tb.tokens--
	return 0
}

func (tb *TokenBucket) deficit() time.Duration {
	if tb.tokens >= 1.0 {
		return 0
	}
	return time.Duration((1.0-tb.tokens)/tb.rate*float64(time.Second)) + time.Nanosecond
}

// refill must be called with mu held.
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastUpdate)
	if elapsed <= 0 {
		return
	}
	tb.tokens = min(tb.tokens+elapsed.Seconds()*tb.rate, float64(tb.burst))
	tb.lastUpdate = now
}
