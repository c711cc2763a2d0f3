// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

// Package pipeline carries view events from the ingress API to the ingestor
// and onward to the aggregator over NATS JetStream, using Watermill for
// routing, retries, and poison queue handling.
package pipeline

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"

	"github.com/launchdeck/viewtrack/internal/models"
)

// Topics.
const (
	// TopicViewIngest carries raw view events from the API to the ingestor.
	TopicViewIngest = "views.ingest"

	// TopicViewApplied carries persisted events from the ingestor to the
	// aggregator. The event on this topic already has IsUnique resolved.
	TopicViewApplied = "views.applied"

	// TopicPoison receives messages that failed all retries.
	TopicPoison = "views.poison"

	// StreamName is the JetStream stream holding the views subjects.
	StreamName = "VIEWS"
)

// EncodeEvent wraps a view event in a Watermill message. The message UUID
// is the event id, which doubles as the JetStream dedup id.
func EncodeEvent(e *models.ViewEvent) (*message.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding view event %s: %w", e.ID, err)
	}
	msg := message.NewMessage(e.ID, payload)
	msg.Metadata.Set("product_id", e.ProductID)
	return msg, nil
}

// DecodeEvent unwraps a view event from a Watermill message.
func DecodeEvent(msg *message.Message) (*models.ViewEvent, error) {
	var e models.ViewEvent
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return nil, fmt.Errorf("decoding view event %s: %w", msg.UUID, err)
	}
	if e.ID == "" || e.ProductID == "" {
		return nil, fmt.Errorf("view event %s missing id or product", msg.UUID)
	}
	return &e, nil
}
