// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package api

import (
	"net/http"
	"time"

	"github.com/launchdeck/viewtrack/internal/models"
)

// healthLive reports process liveness.
func (s *Server) healthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// healthReady reports readiness: the store must answer a ping and the
// embedded broker, when present, must be running.
func (s *Server) healthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := s.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, models.CodeUnavailable, "store not ready")
		return
	}
	if s.broker != nil && !s.broker.IsRunning() {
		respondError(w, http.StatusServiceUnavailable, models.CodeUnavailable, "event broker not ready")
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ready"}, start)
}
