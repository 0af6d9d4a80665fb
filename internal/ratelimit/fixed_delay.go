package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedDelayLimiter spaces consecutive requests at least delay apart.
// Some OAI-PMH providers ask for this instead of a rate.
type FixedDelayLimiter struct {
	mu     sync.Mutex
	delay  time.Duration
	next   time.Time // earliest start of the next request
	now    func() time.Time
	config Config
}

func NewFixedDelayLimiter(cfg Config) *FixedDelayLimiter {
	cfg = cfg.withDefaults()
	return &FixedDelayLimiter{
		delay:  cfg.FixedDelay,
		now:    time.Now,
		config: cfg,
	}
}

// Wait claims the next slot and sleeps until it starts.
func (l *FixedDelayLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	start := now
	if l.next.After(now) {
		start = l.next
	}
	l.next = start.Add(l.delay)
	l.mu.Unlock()

	return sleepCtx(ctx, start.Sub(now))
}

func (l *FixedDelayLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if l.next.After(now) {
		return false
	}
	l.next = now.Add(l.delay)
	return true
}

func (l *FixedDelayLimiter) Reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if wait := l.next.Sub(l.now()); wait > 0 {
		return wait
	}
	return 0
}

func (l *FixedDelayLimiter) RetryAfter(attempt int) time.Duration {
	return CalculateBackoff(attempt, l.config)
}
