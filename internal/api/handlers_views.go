// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package api

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/launchdeck/viewtrack/internal/auth"
	"github.com/launchdeck/viewtrack/internal/identity"
	"github.com/launchdeck/viewtrack/internal/logging"
	"github.com/launchdeck/viewtrack/internal/metrics"
	"github.com/launchdeck/viewtrack/internal/models"
	"github.com/launchdeck/viewtrack/internal/pipeline"
	"github.com/launchdeck/viewtrack/internal/store"
	"github.com/launchdeck/viewtrack/internal/validation"
)

// recordViewStartRequest is the POST /views body.
type recordViewStartRequest struct {
	ProductID string     `json:"productId" validate:"required,max=64"`
	Source    string     `json:"source" validate:"omitempty,max=40"`
	Referrer  string     `json:"referrer" validate:"omitempty,max=2048"`
	ClientTs  *time.Time `json:"clientTs"`
}

// recordViewEndRequest is the PATCH /views/{handle} body.
type recordViewEndRequest struct {
	DurationSeconds int `json:"durationSeconds" validate:"gte=0"`
}

// recordViewStart accepts a view-start event, resolves viewer identity, and
// queues it for the ingestor. The raw event is server-timestamped; the
// client timestamp is advisory only.
func (s *Server) recordViewStart(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req recordViewStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, models.CodeValidation, "malformed JSON body")
		return
	}
	if ve := validation.ValidateStruct(req); ve != nil {
		respondAPIError(w, http.StatusBadRequest, ve.ToAPIError())
		return
	}

	exists, err := s.db.ProductExists(ctx, req.ProductID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if !exists {
		respondError(w, http.StatusNotFound, models.CodeNotFound, "unknown product")
		return
	}

	ip := clientIP(r)
	userAgent := r.Header.Get("User-Agent")

	userID := auth.UserIDFromContext(ctx)
	fingerprint := ""
	viewerIdentity := userID
	if userID == "" {
		fingerprint = s.fingerprints.Fingerprint(ip, userAgent)
		viewerIdentity = fingerprint
	}

	if !s.limiter.Allow(viewerIdentity) {
		metrics.ViewsRejected.WithLabelValues("rate_limited").Inc()
		respondError(w, http.StatusTooManyRequests, models.CodeRateLimited, "view rate exceeded")
		return
	}

	event := &models.ViewEvent{
		ID:           uuid.NewString(),
		ProductID:    req.ProductID,
		UserID:       userID,
		Fingerprint:  fingerprint,
		CreatedAt:    s.now().UTC(),
		Device:       identity.ClassifyDevice(userAgent),
		ReferrerHost: referrerHost(req.Referrer),
		Source:       models.ParseSource(req.Source),
		CountryCode:  s.geo.Country(net.ParseIP(ip)),
	}

	msg, err := pipeline.EncodeEvent(event)
	if err != nil {
		logging.Error().Err(err).Msg("encoding view event")
		respondError(w, http.StatusInternalServerError, models.CodeInternal, "internal error")
		return
	}
	msg.SetContext(ctx)

	if err := s.publisher.Publish(ctx, pipeline.TopicViewIngest, msg); err != nil {
		logging.Error().Err(err).Str("product_id", req.ProductID).Msg("queueing view event")
		respondError(w, http.StatusServiceUnavailable, models.CodeUnavailable, "ingest queue unavailable")
		return
	}

	handle := s.handles.Create(event.ID)
	respondJSON(w, r, http.StatusCreated, map[string]string{"handle": handle}, start)
}

// recordViewEnd records the end-of-view duration through an opaque handle.
// The first call applies and returns 204; repeats are no-ops returning 200.
func (s *Server) recordViewEnd(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req recordViewEndRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, models.CodeValidation, "malformed JSON body")
		return
	}
	if ve := validation.ValidateStruct(req); ve != nil {
		respondAPIError(w, http.StatusBadRequest, ve.ToAPIError())
		return
	}

	handle := chi.URLParam(r, "handle")
	eventID, ok := s.handles.Resolve(handle)
	if !ok {
		respondError(w, http.StatusNotFound, models.CodeNotFound, "unknown or expired view handle")
		return
	}

	applied, err := s.ingestor.EndView(ctx, eventID, req.DurationSeconds)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Handle resolved but the raw write has not landed yet; the
			// client can retry until the ingestor catches up.
			respondError(w, http.StatusNotFound, models.CodeNotFound, "view event not recorded yet")
			return
		}
		s.respondStoreError(w, err)
		return
	}

	if !applied {
		respondJSON(w, r, http.StatusOK, map[string]bool{"applied": false}, start)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondStoreError maps store sentinel errors to boundary codes.
func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, models.CodeNotFound, "not found")
	case errors.Is(err, store.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, models.CodeUnavailable, "store unavailable")
	default:
		logging.Error().Err(err).Msg("store error")
		respondError(w, http.StatusInternalServerError, models.CodeInternal, "internal error")
	}
}

// clientIP returns the request's client address without the port. RealIP
// middleware has already resolved forwarding headers into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// referrerHost extracts the host from a referrer URL, dropping everything
// else. Unparseable referrers yield "".
func referrerHost(referrer string) string {
	if referrer == "" {
		return ""
	}
	u, err := url.Parse(referrer)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
