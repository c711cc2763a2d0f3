// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/launchdeck/viewtrack/internal/auth"
	"github.com/launchdeck/viewtrack/internal/logging"
	"github.com/launchdeck/viewtrack/internal/models"
	"github.com/launchdeck/viewtrack/internal/notify"
	"github.com/launchdeck/viewtrack/internal/validation"
)

// viewStats serves the per-product analytics bundle.
func (s *Server) viewStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, models.CodeValidation, "days must be an integer")
			return
		}
		days = parsed
	}

	stats, err := s.statsSvc.ProductStats(r.Context(), chi.URLParam(r, "id"), days)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondJSON(w, r, http.StatusOK, stats, start)
}

// summaryActionRequest is the POST /products/{id}/actions body, sent by the
// trusted product service when a user upvotes, bookmarks, or comments.
type summaryActionRequest struct {
	Action string `json:"action" validate:"required,oneof=upvote bookmark comment"`
	Delta  int64  `json:"delta" validate:"required,oneof=-1 1"`
}

// summaryAction applies a summary-counter change and rebroadcasts the new
// count to the product topic.
func (s *Server) summaryAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if auth.UserIDFromContext(ctx) == "" {
		respondError(w, http.StatusUnauthorized, models.CodeUnauthorized, "authentication required")
		return
	}

	var req summaryActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, models.CodeValidation, "malformed JSON body")
		return
	}
	if ve := validation.ValidateStruct(req); ve != nil {
		respondAPIError(w, http.StatusBadRequest, ve.ToAPIError())
		return
	}

	productID := chi.URLParam(r, "id")
	exists, err := s.db.ProductExists(ctx, productID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if !exists {
		respondError(w, http.StatusNotFound, models.CodeNotFound, "unknown product")
		return
	}

	action := models.SummaryAction(req.Action)
	count, err := s.db.ApplySummaryAction(ctx, productID, action, req.Delta)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	if s.hub != nil {
		s.hub.Publish(notify.ProductTopic(productID), countEvent(action), notify.CountPayload{
			ProductID: productID,
			Count:     count,
		})
	}

	w.WriteHeader(http.StatusNoContent)
}

// countEvent maps a summary action to its notification event name.
func countEvent(action models.SummaryAction) string {
	switch action {
	case models.ActionUpvote:
		return notify.EventUpvoteCount
	case models.ActionBookmark:
		return notify.EventBookmarkCount
	default:
		return notify.EventCommentCount
	}
}

// notifyUpdateRequest carries the coarse field changes rebroadcast as a
// productUpdate notification.
type notifyUpdateRequest struct {
	Fields map[string]any `json:"fields" validate:"required,min=1"`
}

// notifyUpdate broadcasts a productUpdate frame to the product topic.
func (s *Server) notifyUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if auth.UserIDFromContext(ctx) == "" {
		respondError(w, http.StatusUnauthorized, models.CodeUnauthorized, "authentication required")
		return
	}

	var req notifyUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, models.CodeValidation, "malformed JSON body")
		return
	}
	if ve := validation.ValidateStruct(req); ve != nil {
		respondAPIError(w, http.StatusBadRequest, ve.ToAPIError())
		return
	}

	productID := chi.URLParam(r, "id")
	exists, err := s.db.ProductExists(ctx, productID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if !exists {
		respondError(w, http.StatusNotFound, models.CodeNotFound, "unknown product")
		return
	}

	if s.hub != nil {
		s.hub.Publish(notify.ProductTopic(productID), notify.EventProductUpdate, map[string]any{
			"productId": productID,
			"fields":    req.Fields,
		})
	}

	w.WriteHeader(http.StatusNoContent)
}

// reseal recomputes one sealed day's rollups from the raw log.
func (s *Server) reseal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if auth.UserIDFromContext(ctx) == "" {
		respondError(w, http.StatusUnauthorized, models.CodeUnauthorized, "authentication required")
		return
	}

	day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, models.CodeValidation, "date must be YYYY-MM-DD")
		return
	}

	productID := chi.URLParam(r, "id")
	exists, err := s.db.ProductExists(ctx, productID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if !exists {
		respondError(w, http.StatusNotFound, models.CodeNotFound, "unknown product")
		return
	}

	if err := s.resealer.Reseal(ctx, productID, day); err != nil {
		logging.Warn().Err(err).Str("product_id", productID).Msg("reseal rejected")
		respondError(w, http.StatusConflict, models.CodeConflict, err.Error())
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
