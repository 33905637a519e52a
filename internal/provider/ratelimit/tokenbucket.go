package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket refills rate tokens per second up to its burst size and hands
// out one token per Wait. It starts full.
type TokenBucket struct {
	rate  float64
	burst float64
	now   func() time.Time

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewTokenBucket returns a bucket refilling perSecond tokens. A burst below
// one is raised to one; a non-positive rate never refills.
func NewTokenBucket(perSecond float64, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	tb := &TokenBucket{rate: perSecond, burst: float64(burst), now: time.Now}
	tb.tokens = tb.burst
	tb.last = tb.now()
	return tb
}

// PerMinute returns a bucket refilling limit tokens per minute.
func PerMinute(limit, burst int) *TokenBucket {
	return NewTokenBucket(float64(limit)/60, burst)
}

// Wait takes one token, sleeping until one is due or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		d := tb.reserve()
		if d == 0 {
			return nil
		}
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}
}

// reserve takes a token and returns zero, or returns the time until the
// next token is due.
func (tb *TokenBucket) reserve() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	if elapsed := now.Sub(tb.last).Seconds(); elapsed > 0 && tb.rate > 0 {
		tb.tokens = min(tb.burst, tb.tokens+elapsed*tb.rate)
	}
	tb.last = now
	if tb.tokens >= 1 {
		tb.tokens--
		return 0
	}
	if tb.rate <= 0 {
		return time.Minute
	}
	return max(time.Millisecond, time.Duration((1-tb.tokens)/tb.rate*float64(time.Second)))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
