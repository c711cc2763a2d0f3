// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package services

import (
	"context"
	"time"
)

// DefaultGCInterval follows badger's recommendation for periodic value-log GC.
const DefaultGCInterval = 5 * time.Minute

// GCRunner matches *dedup.Store's garbage collection entry point.
type GCRunner interface {
	RunGC()
}

// DedupGCService runs badger value-log GC for the dedup store on a ticker.
// Expired 24h window entries only free disk once GC rewrites the value log.
type DedupGCService struct {
	store    GCRunner
	interval time.Duration
}

// NewDedupGCService wraps the dedup store.
func NewDedupGCService(store GCRunner, interval time.Duration) *DedupGCService {
	if interval <= 0 {
		interval = DefaultGCInterval
	}
	return &DedupGCService{store: store, interval: interval}
}

// Serve implements suture.Service.
func (s *DedupGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.store.RunGC()
		}
	}
}

// String identifies the service in supervisor logs.
func (s *DedupGCService) String() string {
	return "dedup-gc"
}
