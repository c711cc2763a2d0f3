// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

// Package aggregate maintains the daily and breakdown rollups: incremental
// application of applied view events, an hourly reconciliation sweep that
// recomputes live days from the raw log, and manual reseal of sealed days.
package aggregate

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/launchdeck/viewtrack/internal/logging"
	"github.com/launchdeck/viewtrack/internal/metrics"
	"github.com/launchdeck/viewtrack/internal/models"
	"github.com/launchdeck/viewtrack/internal/pipeline"
	"github.com/launchdeck/viewtrack/internal/store"
)

// Aggregator applies views.applied events to the rollup tables.
type Aggregator struct {
	db  *store.DB
	now func() time.Time
}

// NewAggregator wires the aggregator.
func NewAggregator(db *store.DB) *Aggregator {
	return &Aggregator{db: db, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Handle is the router handler for views.applied. It increments the daily
// rollup and the device, source, and country breakdowns for the event's UTC
// day. Writes land only on live days; an event old enough to target a
// sealed day is dropped rather than rewriting immutable history.
func (a *Aggregator) Handle(msg *message.Message) error {
	ctx := msg.Context()

	e, err := pipeline.DecodeEvent(msg)
	if err != nil {
		return err
	}

	day := e.Day()
	if models.Sealed(day, a.now()) {
		logging.Warn().
			Str("event_id", e.ID).
			Time("day", day).
			Msg("dropping event targeting a sealed day")
		return nil
	}

	if err := a.db.IncrementDaily(ctx, e.ProductID, day, e.IsUnique); err != nil {
		return err
	}

	increments := []struct {
		dim    models.BreakdownDimension
		bucket string
	}{
		{models.BreakdownDevice, string(e.Device)},
		{models.BreakdownSource, string(e.Source)},
		{models.BreakdownCountry, e.CountryCode},
	}
	for _, inc := range increments {
		if err := a.db.IncrementBreakdown(ctx, e.ProductID, day, inc.dim, inc.bucket, e.IsUnique); err != nil {
			return err
		}
	}

	metrics.RollupApplies.Inc()
	return nil
}
