// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package models

// ProductSummary is the denormalized product card embedded in history items.
// The catalog itself is owned by the product service; Viewtrack keeps a
// read-only projection for existence checks and history denormalization.
type ProductSummary struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Tagline           string   `json:"tagline,omitempty"`
	Slug              string   `json:"slug"`
	Thumbnail         string   `json:"thumbnail,omitempty"`
	GalleryThumbnails []string `json:"galleryThumbnails,omitempty"`
	Pricing           string   `json:"pricing,omitempty"`
	Status            string   `json:"status,omitempty"`
	MakerName         string   `json:"makerName,omitempty"`
	CategoryName      string   `json:"categoryName,omitempty"`
	Tags              []string `json:"tags,omitempty"`
}

// SummaryAction names a product summary counter that the Notifier
// rebroadcasts when the product service reports a change.
type SummaryAction string

const (
	ActionUpvote   SummaryAction = "upvote"
	ActionBookmark SummaryAction = "bookmark"
	ActionComment  SummaryAction = "comment"
)

// ValidSummaryAction reports whether s names a known summary action.
func ValidSummaryAction(s string) bool {
	switch SummaryAction(s) {
	case ActionUpvote, ActionBookmark, ActionComment:
		return true
	default:
		return false
	}
}
