// Package throttle limits request rates toward the source host.
package throttle

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"mdmigrate/internal/config"
)

// Limiter enforces a requests-per-minute ceiling with randomized jitter
// between calls. One instance is shared by every component talking to the
// remote host; rate.Limiter serializes access to its own clock state.
type Limiter struct {
	limiter   *rate.Limiter
	minJitter time.Duration
	maxJitter time.Duration
}

// New creates a limiter from the rate limit configuration.
func New(cfg config.RateLimitConfig) *Limiter {
	perSecond := rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)

	return &Limiter{
		limiter:   rate.NewLimiter(perSecond, 1),
		minJitter: time.Duration(cfg.MinJitterMs) * time.Millisecond,
		maxJitter: time.Duration(cfg.MaxJitterMs) * time.Millisecond,
	}
}

// Wait blocks until the next request is allowed, then sleeps a random
// jitter interval so request timing does not look mechanical.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	jitter := l.minJitter
	if l.maxJitter > l.minJitter {
		jitter += rand.N(l.maxJitter - l.minJitter)
	}

	if jitter <= 0 {
		return nil
	}

	timer := time.NewTimer(jitter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
