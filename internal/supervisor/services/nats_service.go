// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package services

import (
	"context"
	"fmt"
	"time"
)

// healthCheckInterval is how often the broker's liveness is probed.
const healthCheckInterval = 30 * time.Second

// EmbeddedBroker matches *pipeline.EmbeddedServer. The broker is started by
// its constructor; the service owns its shutdown and watches its health.
type EmbeddedBroker interface {
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// BrokerService supervises an already-running embedded NATS server. If the
// broker stops on its own the service returns an error so suture logs the
// failure; on context cancellation it shuts the broker down gracefully.
type BrokerService struct {
	broker          EmbeddedBroker
	shutdownTimeout time.Duration
}

// NewBrokerService wraps the broker.
func NewBrokerService(broker EmbeddedBroker, shutdownTimeout time.Duration) *BrokerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &BrokerService{broker: broker, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (s *BrokerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()

			if err := s.broker.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("broker shutdown failed: %w", err)
			}
			return ctx.Err()

		case <-ticker.C:
			if !s.broker.IsRunning() {
				return fmt.Errorf("embedded broker stopped unexpectedly")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (s *BrokerService) String() string {
	return "embedded-nats"
}
