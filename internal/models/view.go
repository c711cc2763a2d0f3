// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package models

import (
	"strings"
	"time"
)

// Device classifies the viewing device, derived server-side from the
// User-Agent header. The set is closed; anything unrecognized is DeviceOther.
type Device string

const (
	DeviceMobile  Device = "mobile"
	DeviceTablet  Device = "tablet"
	DeviceDesktop Device = "desktop"
	DeviceOther   Device = "other"
)

// ParseDevice normalizes a device string to the closed set.
func ParseDevice(s string) Device {
	switch Device(strings.ToLower(strings.TrimSpace(s))) {
	case DeviceMobile:
		return DeviceMobile
	case DeviceTablet:
		return DeviceTablet
	case DeviceDesktop:
		return DeviceDesktop
	default:
		return DeviceOther
	}
}

// ValidDevice reports whether s names a member of the closed device set.
func ValidDevice(s string) bool {
	switch Device(s) {
	case DeviceMobile, DeviceTablet, DeviceDesktop, DeviceOther:
		return true
	default:
		return false
	}
}

// Source classifies how the viewer arrived at the product. Sources form a
// closed tagged set; unrecognized hints collapse to SourceOther.
type Source string

const (
	SourceDirect                Source = "direct"
	SourceSearch                Source = "search"
	SourceSocial                Source = "social"
	SourceRecommendationFeed    Source = "recommendation_feed"
	SourceRecommendationSimilar Source = "recommendation_similar"
	SourceOther                 Source = "other"
)

// ParseSource normalizes a source hint to the closed set.
func ParseSource(s string) Source {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceDirect:
		return SourceDirect
	case SourceSearch:
		return SourceSearch
	case SourceSocial:
		return SourceSocial
	case SourceRecommendationFeed:
		return SourceRecommendationFeed
	case SourceRecommendationSimilar:
		return SourceRecommendationSimilar
	default:
		return SourceOther
	}
}

// ViewEvent is a raw observation that a client began (and possibly ended)
// viewing a product. Events are created on ingest, receive a duration once on
// end-of-view, and are never mutated afterwards.
//
// Viewer identity is UserID when the viewer was authenticated, otherwise
// Fingerprint (an opaque anonymous hash). Exactly one of the two is set.
type ViewEvent struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"productId"`
	UserID      string    `json:"userId,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`

	// DurationSeconds is nil until the end-of-view update arrives.
	DurationSeconds *int `json:"durationSeconds,omitempty"`

	Device       Device `json:"device"`
	ReferrerHost string `json:"referrerHost,omitempty"`
	Source       Source `json:"source"`
	CountryCode  string `json:"countryCode,omitempty"`

	// IsUnique is derived at ingest: true iff no other event exists for the
	// same (product, viewer identity) in the preceding 24 hours.
	IsUnique bool `json:"isUnique"`
}

// ViewerIdentity returns the dedup identity: the authenticated user id when
// present, else the anonymous fingerprint.
func (e *ViewEvent) ViewerIdentity() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.Fingerprint
}

// Day returns the UTC day bucket the event falls into.
func (e *ViewEvent) Day() time.Time {
	return e.CreatedAt.UTC().Truncate(24 * time.Hour)
}

// MaxDurationSeconds is the clamp ceiling for reported view durations.
const MaxDurationSeconds = 3600

// ClampDuration clamps a reported duration to [0, MaxDurationSeconds].
func ClampDuration(seconds int) int {
	if seconds < 0 {
		return 0
	}
	if seconds > MaxDurationSeconds {
		return MaxDurationSeconds
	}
	return seconds
}
