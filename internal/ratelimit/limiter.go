// Package ratelimit paces calls to the storage backend with a token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/vaultfm/vaultfm/internal/constants"
	"github.com/vaultfm/vaultfm/internal/logging"
)

const (
	// waits longer than this are logged, at most once per warnEvery
	warnAfter = 2 * time.Second
	warnEvery = 10 * time.Second
)

// Limiter is a token bucket. Up to burst calls go through at once, then
// calls are paced at rate per second. A cooldown, set when the backend
// answers 429, holds every caller regardless of the tokens left.
type Limiter struct {
	mu sync.Mutex

	rate   float64
	burst  float64
	tokens float64
	last   time.Time

	cooldownUntil time.Time
	lastWarn      time.Time

	now    func() time.Time
	logger *logging.Logger
}

// New creates a full bucket.
func New(rate, burst float64) *Limiter {
	return &Limiter{
		rate:   rate,
		burst:  burst,
		tokens: burst,
		last:   time.Now(),
		now:    time.Now,
		logger: logging.NewNopLogger(),
	}
}

// NewSession creates the limiter shared by all requests of one signed-in
// session. The backend publishes no throttle scopes, so the pace only keeps a
// session below what a user can trigger by hand while letting a paginated
// folder refresh burst through.
func NewSession() *Limiter {
	return New(constants.APIRatePerSec, constants.APIBurstCapacity)
}

// SetLogger routes long-wait warnings to l.
func (l *Limiter) SetLogger(lg *logging.Logger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = logging.OrNop(lg).Component("ratelimit")
}

// Wait blocks until a call may proceed or ctx ends.
func (l *Limiter) Wait(ctx context.Context) error {
	start := l.now()
	warned := false
	for {
		d := l.reserve()
		if d == 0 {
			if waited := l.now().Sub(start); warned {
				l.logger.Info().Dur("waited", waited).Msg("Rate limit wait completed")
			}
			return nil
		}
		if !warned && d > warnAfter {
			warned = l.warn(d)
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Allow takes a token if one is available right now.
func (l *Limiter) Allow() bool {
	return l.reserve() == 0
}

// reserve takes a token and returns 0, or returns how long until one may be
// taken.
func (l *Limiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.refill(now)
	if d := l.cooldownUntil.Sub(now); d > 0 {
		return d
	}
	if l.tokens >= 1 {
		l.tokens--
		return 0
	}
	return time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
}

func (l *Limiter) refill(now time.Time) {
	if elapsed := now.Sub(l.last).Seconds(); elapsed > 0 {
		l.tokens += elapsed * l.rate
		if l.tokens > l.burst {
			l.tokens = l.burst
		}
	}
	l.last = now
}

func (l *Limiter) warn(d time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastWarn) < warnEvery {
		return false
	}
	l.lastWarn = now
	l.logger.Warn().Dur("wait", d).Msg("Rate limited: waiting for API capacity")
	return true
}

// Drain empties the bucket. Used when the backend reports throttling without
// a Retry-After hint.
func (l *Limiter) Drain() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill(l.now())
	l.tokens = 0
}

// SetCooldown holds callers for d. An active longer cooldown is kept.
func (l *Limiter) SetCooldown(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if until := l.now().Add(d); until.After(l.cooldownUntil) {
		l.cooldownUntil = until
	}
}

// CooldownRemaining returns how long the current cooldown still lasts.
func (l *Limiter) CooldownRemaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d := l.cooldownUntil.Sub(l.now()); d > 0 {
		return d
	}
	return 0
}

// Tokens returns the tokens available now.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill(l.now())
	return l.tokens
}
