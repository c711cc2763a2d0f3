// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/launchdeck/viewtrack/internal/auth"
	"github.com/launchdeck/viewtrack/internal/history"
	"github.com/launchdeck/viewtrack/internal/models"
)

// viewHistory lists the authenticated user's view history, newest first,
// with optional product and device filters and snapshot-pinned pagination.
func (s *Server) viewHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	userID := auth.UserIDFromContext(ctx)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, models.CodeUnauthorized, "authentication required")
		return
	}

	q := r.URL.Query()
	page, err := parseIntParam(q.Get("page"))
	if err != nil {
		respondError(w, http.StatusBadRequest, models.CodeValidation, "page must be an integer")
		return
	}
	limit, err := parseIntParam(q.Get("limit"))
	if err != nil {
		respondError(w, http.StatusBadRequest, models.CodeValidation, "limit must be an integer")
		return
	}

	device := q.Get("device")
	if device != "" && !models.ValidDevice(device) {
		respondError(w, http.StatusBadRequest, models.CodeValidation, "unknown device filter")
		return
	}

	req := history.Request{
		Page:   page,
		Limit:  limit,
		Cursor: q.Get("cursor"),
		Filter: models.HistoryFilter{
			ProductID: q.Get("productId"),
			Device:    models.Device(device),
		},
	}

	result, err := s.historySvc.List(ctx, userID, req)
	if err != nil {
		if errors.Is(err, history.ErrBadCursor) {
			respondError(w, http.StatusBadRequest, models.CodeValidation, "malformed cursor")
			return
		}
		s.respondStoreError(w, err)
		return
	}

	respondJSON(w, r, http.StatusOK, result, start)
}

// parseIntParam parses an optional integer query parameter; "" is zero.
func parseIntParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
