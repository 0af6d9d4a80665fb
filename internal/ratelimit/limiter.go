// Package ratelimit paces outbound requests to harvested repositories and
// computes retry delays after transient failures.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Limiter paces requests to a single endpoint.
type Limiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	Reserve() time.Duration
	RetryAfter(attempt int) time.Duration
}

// Strategy selects a Limiter implementation.
type Strategy string

const (
	StrategyTokenBucket Strategy = "token_bucket"
	StrategyFixedWindow Strategy = "fixed_window"
	StrategyFixedDelay  Strategy = "fixed_delay"
)

// ParseStrategy accepts the empty string as the default strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyTokenBucket, nil
	case StrategyTokenBucket, StrategyFixedWindow, StrategyFixedDelay:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown rate limit strategy %q", s)
}

// NewLimiter builds the limiter named by cfg.Strategy.
func NewLimiter(cfg Config) (Limiter, error) {
	cfg = cfg.withDefaults()
	strategy, err := ParseStrategy(string(cfg.Strategy))
	if err != nil {
		return nil, err
	}
	switch strategy {
	case StrategyFixedWindow:
		return NewFixedWindow(cfg), nil
	case StrategyFixedDelay:
		return NewFixedDelayLimiter(cfg), nil
	default:
		return NewTokenBucket(cfg), nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
