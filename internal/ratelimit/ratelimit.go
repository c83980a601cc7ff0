// Package ratelimit implements the per-connector request governor. A single
// Limiter type covers both governance modes: reactive, where the server's
// rate-limit headers are authoritative and overwrite local state, and
// proactive, where one or more counted windows predict exhaustion locally.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/social-ingest/internal/models"
)

// Window is one counted quota window for a proactive limiter.
type Window struct {
	Length time.Duration
	Cap    int
}

type windowState struct {
	Window
	count int
	start time.Time
}

// Limiter governs request pacing for one connector. All state lives behind a
// single mutex that is never held across a sleep, so status queries are not
// blocked by a caller waiting out a window.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastRequest time.Time

	reactive  bool
	remaining int
	limit     int
	resetTime time.Time
	windowLen time.Duration

	windows []windowState
}

// NewReactive builds a limiter whose quota state is overwritten from server
// response headers via UpdateFromResponse. Until the first response arrives
// it assumes the full quota.
func NewReactive(limit int, windowLen, minInterval time.Duration) *Limiter {
	return &Limiter{
		reactive:    true,
		remaining:   limit,
		limit:       limit,
		resetTime:   time.Now().Add(windowLen),
		windowLen:   windowLen,
		minInterval: minInterval,
	}
}

// NewProactive builds a limiter that tracks its own counted windows. The
// caller is limited by whichever window would be exceeded first.
func NewProactive(minInterval time.Duration, windows ...Window) *Limiter {
	now := time.Now()
	states := make([]windowState, len(windows))
	for i, w := range windows {
		states[i] = windowState{Window: w, start: now}
	}
	return &Limiter{minInterval: minInterval, windows: states}
}

// Acquire blocks until a request may be sent, then records it. The mutex is
// released before every sleep and the wait is abandoned cleanly when ctx is
// canceled: counters are only incremented on the lock pass that returns nil.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		wait := l.nextWaitLocked(now)
		if wait <= 0 {
			l.recordLocked(now)
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		logrus.Debugf("rate limiter waiting %v", wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// nextWaitLocked returns how long the caller must wait before sending, or
// zero if a slot is available now.
func (l *Limiter) nextWaitLocked(now time.Time) time.Duration {
	if l.reactive {
		if !now.Before(l.resetTime) {
			l.remaining = l.limit
			l.resetTime = now.Add(l.windowLen)
		}
		if l.remaining == 0 {
			logrus.Warnf("rate limit exhausted, waiting until %s", l.resetTime.Format(time.RFC3339))
			return l.resetTime.Sub(now)
		}
		return l.spacingWaitLocked(now)
	}

	// Roll over any expired window before checking caps.
	for i := range l.windows {
		if now.Sub(l.windows[i].start) >= l.windows[i].Length {
			l.windows[i].count = 0
			l.windows[i].start = now
		}
	}

	// When several windows are exhausted at once, wait for the soonest
	// rollover; the loop re-checks the rest afterwards.
	var wait time.Duration
	for i := range l.windows {
		w := &l.windows[i]
		if w.count >= w.Cap {
			until := w.start.Add(w.Length).Sub(now)
			if wait == 0 || until < wait {
				wait = until
			}
		}
	}
	if wait > 0 {
		logrus.Warnf("rate limit window exhausted, waiting %v", wait)
		return wait
	}

	return l.spacingWaitLocked(now)
}

func (l *Limiter) spacingWaitLocked(now time.Time) time.Duration {
	if l.minInterval <= 0 || l.lastRequest.IsZero() {
		return 0
	}
	if elapsed := now.Sub(l.lastRequest); elapsed < l.minInterval {
		return l.minInterval - elapsed
	}
	return 0
}

func (l *Limiter) recordLocked(now time.Time) {
	if l.reactive && l.remaining > 0 {
		l.remaining--
	}
	for i := range l.windows {
		l.windows[i].count++
	}
	l.lastRequest = now
}

// UpdateFromResponse overwrites reactive state from server headers. It is a
// no-op on proactive limiters. Negative values leave the corresponding field
// untouched, so callers can pass through only the headers that parsed.
func (l *Limiter) UpdateFromResponse(remaining, limit int, reset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.reactive {
		return
	}
	if remaining >= 0 {
		l.remaining = remaining
	}
	if limit >= 0 {
		l.limit = limit
	}
	if !reset.IsZero() {
		l.resetTime = reset
	}
}

// Status reports the current snapshot without blocking. For proactive
// limiters it reports the most binding window: the one with the fewest
// remaining slots.
func (l *Limiter) Status() models.RateLimitInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()

	if l.reactive {
		return models.RateLimitInfo{
			Remaining:      l.remaining,
			Limit:          l.limit,
			ResetTime:      l.resetTime,
			WindowDuration: l.windowLen,
		}
	}

	var binding *windowState
	bindingLeft := 0
	for i := range l.windows {
		w := &l.windows[i]
		count := w.count
		if now.Sub(w.start) >= w.Length {
			count = 0
		}
		left := w.Cap - count
		if left < 0 {
			left = 0
		}
		if binding == nil || left < bindingLeft {
			binding = w
			bindingLeft = left
		}
	}
	if binding == nil {
		return models.RateLimitInfo{}
	}
	reset := binding.start.Add(binding.Length)
	if now.Sub(binding.start) >= binding.Length {
		reset = now.Add(binding.Length)
	}
	return models.RateLimitInfo{
		Remaining:      bindingLeft,
		Limit:          binding.Cap,
		ResetTime:      reset,
		WindowDuration: binding.Length,
	}
}
