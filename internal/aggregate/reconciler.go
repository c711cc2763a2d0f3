// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/launchdeck/viewtrack/internal/logging"
	"github.com/launchdeck/viewtrack/internal/metrics"
	"github.com/launchdeck/viewtrack/internal/models"
	"github.com/launchdeck/viewtrack/internal/store"
)

// Reconciler periodically recomputes the live days' rollups from the raw
// event log, healing any drift the incremental path accumulated (crashes
// between event persist and rollup apply, poison-queued messages). Sealed
// days are never touched.
type Reconciler struct {
	db       *store.DB
	interval time.Duration
	now      func() time.Time
}

// NewReconciler creates the sweep service.
func NewReconciler(db *store.DB, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Reconciler{db: db, interval: interval, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Serve runs the sweep loop under suture supervision.
func (r *Reconciler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", r.interval).Msg("reconciliation sweep started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logging.Error().Err(err).Msg("reconciliation sweep failed")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (r *Reconciler) String() string {
	return "rollup-reconciler"
}

// Sweep recomputes the current and previous UTC days for every product that
// received events in that window. Older days are sealed and skipped by
// construction.
func (r *Reconciler) Sweep(ctx context.Context) error {
	now := r.now().UTC()
	today := now.Truncate(24 * time.Hour)
	yesterday := today.AddDate(0, 0, -1)

	products, err := r.db.ActiveProducts(ctx, yesterday, today.AddDate(0, 0, 1))
	if err != nil {
		metrics.ReconcileSweeps.WithLabelValues("error").Inc()
		return fmt.Errorf("listing active products: %w", err)
	}

	var swept int
	for _, productID := range products {
		for _, day := range []time.Time{yesterday, today} {
			if err := r.db.RecomputeDay(ctx, productID, day); err != nil {
				metrics.ReconcileSweeps.WithLabelValues("error").Inc()
				return fmt.Errorf("recomputing product %s day %s: %w",
					productID, day.Format("2006-01-02"), err)
			}
			swept++
		}
	}

	metrics.ReconcileSweeps.WithLabelValues("ok").Inc()
	logging.Debug().
		Int("products", len(products)).
		Int("days_recomputed", swept).
		Msg("reconciliation sweep complete")
	return nil
}

// Reseal recomputes one sealed (product, day) from the raw log. This is the
// manual escape hatch for operators after a backfill or data correction;
// live days are rejected because the hourly sweep already covers them.
func (r *Reconciler) Reseal(ctx context.Context, productID string, day time.Time) error {
	if !models.Sealed(day, r.now()) {
		return fmt.Errorf("day %s is still live; the sweep reconciles it automatically",
			day.UTC().Format("2006-01-02"))
	}

	if err := r.db.RecomputeDay(ctx, productID, day); err != nil {
		return fmt.Errorf("resealing product %s day %s: %w",
			productID, day.UTC().Format("2006-01-02"), err)
	}

	logging.Info().
		Str("product_id", productID).
		Str("day", day.UTC().Format("2006-01-02")).
		Msg("sealed day recomputed by operator request")
	return nil
}
