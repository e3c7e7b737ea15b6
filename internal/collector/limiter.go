package collector

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const maxBackoff = 300 * time.Second

// Limiter paces outbound API calls at a fixed rate and adds an
// exponential penalty after consecutive rate-limit responses.
type Limiter struct {
	limiter *rate.Limiter

	mu      sync.Mutex
	strikes int
}

// NewLimiter allows callsPerMinute sustained calls with a burst of one.
func NewLimiter(callsPerMinute float64) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(callsPerMinute/60.0), 1),
	}
}

// Wait blocks until the next call is allowed, honoring any active
// rate-limit penalty first.
func (l *Limiter) Wait(ctx context.Context) error {
	if penalty := l.penalty(); penalty > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(penalty):
		}
	}
	return l.limiter.Wait(ctx)
}

// Record429 notes a rate-limit response. Each consecutive one doubles
// the penalty applied before the next call, capped at maxBackoff.
func (l *Limiter) Record429() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.strikes++
}

// RecordSuccess clears the penalty.
func (l *Limiter) RecordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.strikes = 0
}

func (l *Limiter) penalty() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.strikes == 0 {
		return 0
	}
	shift := l.strikes
	if shift > 9 {
		shift = 9
	}
	d := time.Duration(1<<uint(shift)) * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}
