// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package services

import (
	"context"
	"fmt"
)

// MessageRouter matches *pipeline.Router's run loop.
type MessageRouter interface {
	Run(ctx context.Context) error
}

// RouterService runs the Watermill router under supervision. Run blocks
// until the context is canceled and tears its handlers down itself, so the
// wrapper only translates the return value: a clean stop becomes ctx.Err()
// so suture treats it as a normal shutdown, anything else restarts it.
type RouterService struct {
	router MessageRouter
}

// NewRouterService wraps the router.
func NewRouterService(router MessageRouter) *RouterService {
	return &RouterService{router: router}
}

// Serve implements suture.Service.
func (s *RouterService) Serve(ctx context.Context) error {
	if err := s.router.Run(ctx); err != nil {
		return fmt.Errorf("message router failed: %w", err)
	}
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *RouterService) String() string {
	return "event-router"
}
