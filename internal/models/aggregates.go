// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package models

import "time"

// ProductCounters holds lifetime per-product counters. The Ingestor
// increments them; the Aggregator may reconcile them against rollups.
type ProductCounters struct {
	ProductID   string `json:"productId"`
	TotalViews  int64  `json:"totalViews"`
	UniqueViews int64  `json:"uniqueViews"`

	// AvgDurationSeconds is an online mean over events with a known duration.
	AvgDurationSeconds float64 `json:"avgDurationSeconds"`

	// Summary-action counters rebroadcast through the Notifier.
	UpvoteCount   int64 `json:"upvoteCount"`
	BookmarkCount int64 `json:"bookmarkCount"`
	CommentCount  int64 `json:"commentCount"`
}

// DailyRollup is the per-(product, UTC day) aggregate. The current day's row
// is live; days older than SealAge are sealed and never rewritten except by a
// manual reseal.
type DailyRollup struct {
	ProductID   string    `json:"productId"`
	Date        time.Time `json:"date"`
	Count       int64     `json:"count"`
	UniqueCount int64     `json:"uniqueCount"`
}

// SealAge is how old a UTC day must be before its rollup is immutable.
const SealAge = 48 * time.Hour

// Sealed reports whether the UTC day starting at date is sealed relative to
// now. The current day and the previous day are always live.
func Sealed(date, now time.Time) bool {
	dayStart := date.UTC().Truncate(24 * time.Hour)
	return now.UTC().Sub(dayStart) >= SealAge
}

// BreakdownDimension names a breakdown table.
type BreakdownDimension string

const (
	BreakdownDevice  BreakdownDimension = "device"
	BreakdownSource  BreakdownDimension = "source"
	BreakdownCountry BreakdownDimension = "country"
)

// BreakdownRow is one (product, dimension key) aggregate row.
type BreakdownRow struct {
	ProductID   string `json:"productId"`
	Key         string `json:"key"`
	Count       int64  `json:"count"`
	UniqueCount int64  `json:"uniqueCount"`
}

// UserViewIndexEntry is the append-only per-user history index row, written
// only for authenticated viewers.
type UserViewIndexEntry struct {
	UserID    string    `json:"userId"`
	EventID   string    `json:"eventId"`
	ProductID string    `json:"productId"`
	CreatedAt time.Time `json:"createdAt"`
}
