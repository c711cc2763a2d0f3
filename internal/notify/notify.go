// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

// Package notify fans out realtime product notifications to websocket
// subscribers. Clients subscribe to per-product topics; every frame on a
// topic carries a sequence number that starts at 1 and increases strictly,
// so clients can detect gaps after drops or reconnects.
package notify

// Event names carried in notification frames.
const (
	EventView          = "view"
	EventViewCount     = "viewCount"
	EventUpvoteCount   = "upvoteCount"
	EventBookmarkCount = "bookmarkCount"
	EventCommentCount  = "commentCount"
	EventProductUpdate = "productUpdate"
)

// Frame is one notification delivered to a subscriber.
type Frame struct {
	Topic string `json:"topic"`
	Seq   uint64 `json:"seq"`
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Command is an inbound client message.
type Command struct {
	Op        string `json:"op"` // subscribe, unsubscribe, ping
	ProductID string `json:"productId,omitempty"`
}

// ProductTopic returns the topic name for a product.
func ProductTopic(productID string) string {
	return "product:" + productID
}

// CountPayload is the data of a counter notification.
type CountPayload struct {
	ProductID string `json:"productId"`
	Count     int64  `json:"count"`
}

// ViewPayload is the data of a view notification, emitted after the view
// has been counted.
type ViewPayload struct {
	ProductID  string `json:"productId"`
	Device     string `json:"device"`
	Source     string `json:"source"`
	Country    string `json:"country,omitempty"`
	TotalViews int64  `json:"totalViews"`
}
