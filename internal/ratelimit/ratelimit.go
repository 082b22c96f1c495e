package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type Limiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// JitterLimiter spaces requests by a random delay drawn from
// [minDelay, maxDelay). The lock is held only while the next wait is
// computed, never across the sleep itself.
type JitterLimiter struct {
	mu         sync.Mutex
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
}

func NewJitterLimiter(min, max time.Duration) *JitterLimiter {
	return &JitterLimiter{minDelay: min, maxDelay: max}
}

func (l *JitterLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()
	var wait time.Duration
	// The first call goes through immediately; afterwards each caller
	// reserves the slot one delay after the previous one.
	if !l.lastAction.IsZero() {
		wait = l.nextDelay() - now.Sub(l.lastAction)
	}
	if wait <= 0 {
		l.lastAction = now
	} else {
		l.lastAction = now.Add(wait)
	}
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func (l *JitterLimiter) SetDelay(min, max time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minDelay = min
	l.maxDelay = max
}

func (l *JitterLimiter) nextDelay() time.Duration {
	if l.maxDelay <= l.minDelay {
		return l.minDelay
	}
	return l.minDelay + time.Duration(rand.Int63n(int64(l.maxDelay-l.minDelay)))
}

// BackoffLimiter widens the delay window after consecutive errors and
// gradually narrows it again once requests succeed.
type BackoffLimiter struct {
	*JitterLimiter
	baseMin   time.Duration
	baseMax   time.Duration
	errStreak int
	factor    float64
	capDelay  time.Duration
}

func NewBackoffLimiter(min, max time.Duration) *BackoffLimiter {
	return &BackoffLimiter{
		JitterLimiter: NewJitterLimiter(min, max),
		baseMin:       min,
		baseMax:       max,
		factor:        1.5,
		capDelay:      2 * time.Minute,
	}
}

func (l *BackoffLimiter) RecordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.errStreak = 0
	l.minDelay = l.baseMin
	l.maxDelay = l.baseMax
}

func (l *BackoffLimiter) RecordError() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.errStreak++
	if l.errStreak < 3 {
		return
	}

	l.minDelay = scale(l.minDelay, l.factor, l.capDelay)
	l.maxDelay = scale(l.maxDelay, l.factor, l.capDelay)
}

func scale(d time.Duration, factor float64, cap time.Duration) time.Duration {
	scaled := time.Duration(float64(d) * factor)
	if scaled > cap {
		return cap
	}
	return scaled
}
