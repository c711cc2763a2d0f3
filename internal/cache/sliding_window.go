// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package cache

import (
	"sync"
	"time"
)

// SlidingWindowCounter is a memory-efficient sliding window counter: time is
// divided into buckets and the window count is the bucket sum. Used as the
// ingest queue-depth gauge that drives backpressure shedding.
//
// Increment is O(1); Count is O(number of buckets).
type SlidingWindowCounter struct {
	mu         sync.Mutex
	buckets    []int64
	bucketSize time.Duration
	windowSize time.Duration
	current    int
	lastUpdate time.Time
}

// NewSlidingWindowCounter creates a counter over windowSize divided into
// numBuckets buckets.
func NewSlidingWindowCounter(windowSize time.Duration, numBuckets int) *SlidingWindowCounter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	if windowSize <= 0 {
		windowSize = time.Minute
	}
	return &SlidingWindowCounter{
		buckets:    make([]int64, numBuckets),
		bucketSize: windowSize / time.Duration(numBuckets),
		windowSize: windowSize,
		lastUpdate: time.Now(),
	}
}

// Increment adds delta to the current bucket.
func (sw *SlidingWindowCounter) Increment(delta int64) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.advance()
	sw.buckets[sw.current] += delta
}

// Count returns the sum over the window.
func (sw *SlidingWindowCounter) Count() int64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.advance()

	var total int64
	for _, c := range sw.buckets {
		total += c
	}
	return total
}

// advance rotates the circular buffer forward, zeroing buckets that fell out
// of the window. Callers must hold mu.
func (sw *SlidingWindowCounter) advance() {
	now := time.Now()
	elapsed := now.Sub(sw.lastUpdate)
	if elapsed < sw.bucketSize {
		return
	}

	steps := int(elapsed / sw.bucketSize)
	if steps >= len(sw.buckets) {
		for i := range sw.buckets {
			sw.buckets[i] = 0
		}
		sw.current = 0
	} else {
		for i := 0; i < steps; i++ {
			sw.current = (sw.current + 1) % len(sw.buckets)
			sw.buckets[sw.current] = 0
		}
	}
	sw.lastUpdate = now
}
