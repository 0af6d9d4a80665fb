package ratelimit

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// CalculateBackoff computes exponential backoff with +/-25% jitter,
// capped at cfg.MaxBackoff.
func CalculateBackoff(attempt int, cfg Config) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > cfg.MaxRetries {
		return cfg.MaxBackoff
	}

	base := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	base = math.Min(base, float64(cfg.MaxBackoff))

	d := base + base*0.25*(2*rand.Float64()-1)
	d = math.Max(0, math.Min(d, float64(cfg.MaxBackoff)))
	return time.Duration(d)
}

// Backoff adapts a Limiter to backoff.BackOff so retry loops share the
// limiter's delay schedule. It stops after maxRetries delays.
type Backoff struct {
	limiter    Limiter
	maxRetries int
	attempt    int
}

var _ backoff.BackOff = (*Backoff)(nil)

func NewBackoff(l Limiter, maxRetries int) *Backoff {
	return &Backoff{limiter: l, maxRetries: maxRetries}
}

func (b *Backoff) NextBackOff() time.Duration {
	b.attempt++
	if b.attempt > b.maxRetries {
		return backoff.Stop
	}
	return b.limiter.RetryAfter(b.attempt)
}

func (b *Backoff) Reset() {
	b.attempt = 0
}
