// Package ratelimit provides the client-side admission limiter shared by all
// proxied requests: a sliding window over recent admissions plus a reactive
// cooldown that grows while the backend keeps refusing.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Config tunes the limiter. Requests <= 0 disables the sliding window;
// cooldown handling stays active either way.
type Config struct {
	// Requests is the number of admissions allowed per trailing Window.
	Requests int
	// Window is the trailing interval the admission count applies to.
	Window time.Duration
	// MaxAttempts bounds how often Acquire re-checks an active cooldown
	// before giving up.
	MaxAttempts int
	// InitialCooldown and MaxCooldown bound the reactive cooldown step.
	InitialCooldown time.Duration
	MaxCooldown     time.Duration
}

// Error reports that admission attempts were exhausted while a cooldown was
// active. RetryAfter is the cooldown remaining at the last attempt.
type Error struct {
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter.Round(time.Millisecond))
}

// Limiter admits requests at a bounded rate. All waiting happens outside the
// lock and is cancellable through the caller's context.
type Limiter struct {
	cfg Config

	mu            sync.Mutex
	admitted      []time.Time
	cooldownUntil time.Time
	cooldown      *backoff.ExponentialBackOff

	now func() time.Time
}

// New builds a Limiter. Zero-valued attempt and cooldown settings fall back
// to one attempt and 1s/60s bounds.
func New(cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialCooldown <= 0 {
		cfg.InitialCooldown = time.Second
	}
	if cfg.MaxCooldown <= 0 {
		cfg.MaxCooldown = time.Minute
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialCooldown
	b.MaxInterval = cfg.MaxCooldown
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.Reset()
	return &Limiter{cfg: cfg, cooldown: b, now: time.Now}
}

// Acquire blocks until the request may proceed. Window waits are unbounded,
// they end as soon as an admission ages out of the window; encountering an
// active cooldown consumes one attempt, and exhausting MaxAttempts returns
// *Error with the remaining cooldown as the retry hint.
func (l *Limiter) Acquire(ctx context.Context) error {
	attempts := 0
	for {
		l.mu.Lock()
		now := l.now()

		if wait := l.cooldownUntil.Sub(now); wait > 0 {
			l.mu.Unlock()
			attempts++
			if attempts >= l.cfg.MaxAttempts {
				return &Error{RetryAfter: wait}
			}
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		if wait := l.windowWait(now); wait > 0 {
			l.mu.Unlock()
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		l.admitted = append(l.admitted, now)
		l.mu.Unlock()
		return nil
	}
}

// windowWait prunes aged-out admissions and reports how long until a slot
// frees up. Caller holds the lock.
func (l *Limiter) windowWait(now time.Time) time.Duration {
	if l.cfg.Requests <= 0 || l.cfg.Window <= 0 {
		return 0
	}
	cutoff := now.Add(-l.cfg.Window)
	keep := l.admitted[:0]
	for _, t := range l.admitted {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	l.admitted = keep
	if len(l.admitted) < l.cfg.Requests {
		return 0
	}
	return l.admitted[0].Add(l.cfg.Window).Sub(now)
}

// ReportRateLimit records a backend refusal. The cooldown deadline extends
// to max(current, now+step) where the step doubles per refusal up to
// MaxCooldown; retryAfter overrides the step when the backend asked for a
// longer pause.
func (l *Limiter) ReportRateLimit(retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	step := l.cooldown.NextBackOff()
	if retryAfter > step {
		step = retryAfter
	}
	if until := l.now().Add(step); until.After(l.cooldownUntil) {
		l.cooldownUntil = until
	}
}

// ReportSuccess resets the cooldown growth after a request got through.
func (l *Limiter) ReportSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cooldown.Reset()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
