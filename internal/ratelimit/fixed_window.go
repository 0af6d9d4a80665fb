package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// FixedWindow admits a fixed number of requests per window.
type FixedWindow struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	now         func() time.Time
	config      Config
}

// NewFixedWindow admits RequestsPerSec scaled to Window, at least one.
func NewFixedWindow(cfg Config) *FixedWindow {
	cfg = cfg.withDefaults()
	limit := max(int(cfg.RequestsPerSec*cfg.Window.Seconds()), 1)
	fw := &FixedWindow{
		limit:  limit,
		window: cfg.Window,
		now:    time.Now,
		config: cfg,
	}
	fw.windowStart = fw.now()
	return fw
}

// Wait blocks until the request fits in a window or ctx is done.
func (fw *FixedWindow) Wait(ctx context.Context) error {
	for {
		if fw.Allow() {
			return nil
		}
		wait := fw.Reserve()
		// spread callers released by the same window boundary
		if j := int64(wait) / 4; j > 0 {
			wait += time.Duration(rand.Int64N(j))
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

func (fw *FixedWindow) Allow() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.roll()
	if fw.count < fw.limit {
		fw.count++
		return true
	}
	return false
}

func (fw *FixedWindow) Reserve() time.Duration {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.roll()
	if fw.count < fw.limit {
		return 0
	}
	return fw.window - fw.now().Sub(fw.windowStart)
}

func (fw *FixedWindow) RetryAfter(attempt int) time.Duration {
	return CalculateBackoff(attempt, fw.config)
}

func (fw *FixedWindow) roll() {
	now := fw.now()
	if now.Sub(fw.windowStart) >= fw.window {
		fw.count = 0
		fw.windowStart = now
	}
}
