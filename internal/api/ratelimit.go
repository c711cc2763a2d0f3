// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdleAge is how long an identity's bucket survives without traffic
// before the pruner drops it.
const limiterIdleAge = 10 * time.Minute

// viewLimiter applies the per-viewer token bucket on view ingress. Buckets
// are keyed by viewer identity (user id or anonymous fingerprint), created
// on first sight, and pruned once idle.
type viewLimiter struct {
	mu      sync.Mutex
	buckets map[string]*limiterEntry

	limit     rate.Limit
	burst     int
	lastPrune time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newViewLimiter creates the limiter. ratePerMin <= 0 disables limiting.
func newViewLimiter(ratePerMin, burst int) *viewLimiter {
	if burst < 1 {
		burst = 1
	}
	return &viewLimiter{
		buckets:   make(map[string]*limiterEntry),
		limit:     rate.Limit(float64(ratePerMin) / 60.0),
		burst:     burst,
		lastPrune: time.Now(),
	}
}

// Allow reports whether the identity may record another view now.
func (l *viewLimiter) Allow(identity string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastPrune) > limiterIdleAge {
		l.pruneLocked(now)
	}

	e, ok := l.buckets[identity]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[identity] = e
	}
	e.lastSeen = now
	return e.limiter.Allow()
}

func (l *viewLimiter) pruneLocked(now time.Time) {
	for id, e := range l.buckets {
		if now.Sub(e.lastSeen) > limiterIdleAge {
			delete(l.buckets, id)
		}
	}
	l.lastPrune = now
}
