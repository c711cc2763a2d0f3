// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package services

import (
	"context"
)

// ContextHub matches *notify.Hub's RunWithContext, keeping this package free
// of a notify import.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// HubService runs the websocket notification hub under supervision. The
// hub's run loop already follows the suture pattern, so this only delegates
// and names the service.
type HubService struct {
	hub ContextHub
}

// NewHubService wraps the hub.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String identifies the service in supervisor logs.
func (s *HubService) String() string {
	return "notify-hub"
}
