// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

// Package ingest consumes raw view events off the pipeline, resolves
// uniqueness against the dedup window, persists them, and feeds the
// aggregator and the notification hub.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/launchdeck/viewtrack/internal/dedup"
	"github.com/launchdeck/viewtrack/internal/logging"
	"github.com/launchdeck/viewtrack/internal/metrics"
	"github.com/launchdeck/viewtrack/internal/models"
	"github.com/launchdeck/viewtrack/internal/notify"
	"github.com/launchdeck/viewtrack/internal/pipeline"
	"github.com/launchdeck/viewtrack/internal/store"
)

// Notifier is the slice of the notification hub the ingestor needs.
type Notifier interface {
	Publish(topic, event string, data any)
}

// Ingestor processes messages from the views.ingest topic.
type Ingestor struct {
	db      *store.DB
	window  *dedup.Store
	hub     Notifier
	backlog *pipeline.Backlog
}

// NewIngestor wires the ingestor. hub and backlog may be nil in tests.
func NewIngestor(db *store.DB, window *dedup.Store, hub Notifier, backlog *pipeline.Backlog) *Ingestor {
	return &Ingestor{db: db, window: window, hub: hub, backlog: backlog}
}

// Handle is the router handler for views.ingest. It resolves uniqueness,
// persists the event together with its counter and history side effects in
// one idempotent application keyed by the event id, and emits the event on
// views.applied for the aggregator.
//
// A redelivery whose side effects already landed acks without output. A
// redelivery after a partial failure resumes the remaining side effects,
// reusing the uniqueness the first delivery resolved.
func (in *Ingestor) Handle(msg *message.Message) ([]*message.Message, error) {
	ctx := msg.Context()

	if in.backlog != nil {
		defer in.backlog.Processed()
	}

	e, err := pipeline.DecodeEvent(msg)
	if err != nil {
		// Malformed payloads never become processable; drop to poison.
		metrics.ViewsRejected.WithLabelValues("validation").Inc()
		return nil, err
	}

	existing, err := in.db.GetViewEvent(ctx, e.ID)
	switch {
	case err == nil:
		// Redelivery. The dedup window was already marked by the first
		// delivery; reuse the uniqueness it resolved.
		e.IsUnique = existing.IsUnique
	case errors.Is(err, store.ErrNotFound):
		unique, err := in.window.CheckAndMark(e.ProductID, e.ViewerIdentity(), e.UserID != "")
		if err != nil {
			return nil, fmt.Errorf("dedup check: %w", err)
		}
		e.IsUnique = unique
	default:
		return nil, err
	}

	appliedNow, err := in.db.ApplyViewEvent(ctx, e)
	if err != nil {
		return nil, err
	}
	if !appliedNow {
		logging.Debug().Str("event_id", e.ID).Msg("duplicate delivery, already applied")
		return nil, nil
	}

	metrics.ViewsIngested.WithLabelValues(strconv.FormatBool(e.IsUnique)).Inc()

	// Under backpressure the raw write above still happened; only the
	// aggregate signal and the notifier broadcast are shed. The hourly
	// reconciliation sweep heals the rollups from the raw log.
	if in.backlog != nil && in.backlog.Full() {
		metrics.IngestShedTotal.Inc()
		logging.Warn().
			Str("event_id", e.ID).
			Int64("depth", in.backlog.Depth()).
			Msg("backlog over ceiling, shedding downstream publishes")
		return nil, nil
	}

	in.broadcast(ctx, e)

	applied, err := pipeline.EncodeEvent(e)
	if err != nil {
		return nil, err
	}
	applied.SetContext(ctx)
	return []*message.Message{applied}, nil
}

// broadcast emits the view notification with the post-increment total.
func (in *Ingestor) broadcast(ctx context.Context, e *models.ViewEvent) {
	if in.hub == nil {
		return
	}

	counters, err := in.db.GetCounters(ctx, e.ProductID)
	if err != nil {
		logging.Warn().Err(err).Str("product_id", e.ProductID).Msg("loading counters for broadcast")
		return
	}

	topic := notify.ProductTopic(e.ProductID)
	in.hub.Publish(topic, notify.EventView, notify.ViewPayload{
		ProductID:  e.ProductID,
		Device:     string(e.Device),
		Source:     string(e.Source),
		Country:    e.CountryCode,
		TotalViews: counters.TotalViews,
	})
	in.hub.Publish(topic, notify.EventViewCount, notify.CountPayload{
		ProductID: e.ProductID,
		Count:     counters.TotalViews,
	})
}

// EndView records the end-of-view duration for an event. The duration is
// clamped to [0, MaxDurationSeconds] and written at most once, together with
// its counter fold; repeats report applied=false and change nothing.
func (in *Ingestor) EndView(ctx context.Context, eventID string, seconds int) (bool, error) {
	return in.db.RecordViewDuration(ctx, eventID, models.ClampDuration(seconds))
}
