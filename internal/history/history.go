// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

// Package history serves paginated per-user view history. Listings are
// pinned to a server-time snapshot carried in an opaque cursor, so walking
// the pages of one listing yields every event exactly once even while new
// views keep arriving.
package history

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/launchdeck/viewtrack/internal/models"
	"github.com/launchdeck/viewtrack/internal/store"
)

// ErrBadCursor reports an unparseable snapshot cursor.
var ErrBadCursor = errors.New("malformed history cursor")

// Service answers history listings from the user view index.
type Service struct {
	db  *store.DB
	now func() time.Time
}

// NewService wires the history service.
func NewService(db *store.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Request is a parsed history listing request. Zero values fall back to
// page 1, the default limit, and a fresh snapshot.
type Request struct {
	Page   int
	Limit  int
	Cursor string
	Filter models.HistoryFilter
}

// ClampLimit normalizes a requested page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return models.HistoryDefaultLimit
	}
	if limit > models.HistoryMaxLimit {
		return models.HistoryMaxLimit
	}
	return limit
}

// List returns one page of the user's view history, newest first. The
// returned pagination carries the snapshot cursor; clients pass it back to
// keep later pages consistent with the first.
func (s *Service) List(ctx context.Context, userID string, req Request) (*models.HistoryPage, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := ClampLimit(req.Limit)

	filter := req.Filter
	snapshot, err := decodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}
	if snapshot.IsZero() {
		snapshot = s.now().UTC()
	}
	filter.Snapshot = snapshot

	total, err := s.db.CountUserHistory(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	pages := int((total + int64(limit) - 1) / int64(limit))
	if pages < 1 {
		pages = 1
	}
	if page > pages {
		page = pages
	}

	items, err := s.db.UserHistoryPage(ctx, userID, filter, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	return &models.HistoryPage{
		Data: items,
		Pagination: models.Pagination{
			Page:   page,
			Pages:  pages,
			Total:  total,
			Limit:  limit,
			Cursor: encodeCursor(snapshot),
		},
	}, nil
}

// cursorPayload is the decoded snapshot token.
type cursorPayload struct {
	Snapshot time.Time `json:"s"`
}

func encodeCursor(snapshot time.Time) string {
	raw, _ := json.Marshal(cursorPayload{Snapshot: snapshot.UTC()})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// decodeCursor returns the zero time for an empty cursor and an error for a
// malformed one.
func decodeCursor(cursor string) (time.Time, error) {
	if cursor == "" {
		return time.Time{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	if p.Snapshot.IsZero() {
		return time.Time{}, fmt.Errorf("%w: missing snapshot", ErrBadCursor)
	}
	return p.Snapshot, nil
}
