// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package models

import "time"

// History pagination bounds.
const (
	HistoryDefaultLimit = 12
	HistoryMaxLimit     = 50
)

// HistoryItem is one entry in a user's view history. Product is nil when the
// product has since been deleted; the item is still returned.
type HistoryItem struct {
	ID              string          `json:"id"`
	CreatedAt       time.Time       `json:"createdAt"`
	DurationSeconds *int            `json:"durationSeconds,omitempty"`
	Device          Device          `json:"device"`
	ReferrerHost    string          `json:"referrerHost,omitempty"`
	Product         *ProductSummary `json:"product"`
}

// Pagination describes the page window of a history response. Cursor is an
// opaque snapshot token: passing it back pins subsequent pages to the same
// server-time snapshot so new events only ever surface on page 1 of a fresh
// listing.
type Pagination struct {
	Page   int    `json:"page"`
	Pages  int    `json:"pages"`
	Total  int64  `json:"total"`
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor,omitempty"`
}

// HistoryPage is the response payload for a history listing.
type HistoryPage struct {
	Data       []HistoryItem `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

// HistoryFilter narrows a history listing.
type HistoryFilter struct {
	ProductID string
	Device    Device

	// Snapshot pins the listing: only events created at or before this
	// instant are visible. Zero means "now" (set by the history service).
	Snapshot time.Time
}
