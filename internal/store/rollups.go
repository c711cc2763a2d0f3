// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/launchdeck/viewtrack/internal/models"
)

// IncrementDaily adds one view to the (product, day) rollup.
func (db *DB) IncrementDaily(ctx context.Context, productID string, day time.Time, unique bool) error {
	ctx, cancel := db.writeCtx(ctx)
	defer cancel()

	uniqueDelta := 0
	if unique {
		uniqueDelta = 1
	}

	_, err := db.exec(ctx, "upsert", "daily_rollups",
		`INSERT INTO daily_rollups (product_id, day, view_count, unique_count)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT (product_id, day) DO UPDATE SET
			view_count = daily_rollups.view_count + 1,
			unique_count = daily_rollups.unique_count + EXCLUDED.unique_count`,
		productID, day.UTC().Format("2006-01-02"), uniqueDelta)
	if err != nil {
		return fmt.Errorf("incrementing daily rollup for product %s: %w", productID, err)
	}
	return nil
}

// IncrementBreakdown adds one view to a (product, day, dimension, bucket)
// rollup row.
func (db *DB) IncrementBreakdown(ctx context.Context, productID string, day time.Time, dim models.BreakdownDimension, bucket string, unique bool) error {
	if bucket == "" {
		return nil
	}

	ctx, cancel := db.writeCtx(ctx)
	defer cancel()

	uniqueDelta := 0
	if unique {
		uniqueDelta = 1
	}

	_, err := db.exec(ctx, "upsert", "breakdown_rollups",
		`INSERT INTO breakdown_rollups
			(product_id, day, dimension, bucket, view_count, unique_count)
		 VALUES (?, ?, ?, ?, 1, ?)
		 ON CONFLICT (product_id, day, dimension, bucket) DO UPDATE SET
			view_count = breakdown_rollups.view_count + 1,
			unique_count = breakdown_rollups.unique_count + EXCLUDED.unique_count`,
		productID, day.UTC().Format("2006-01-02"), string(dim), bucket, uniqueDelta)
	if err != nil {
		return fmt.Errorf("incrementing %s breakdown for product %s: %w", dim, productID, err)
	}
	return nil
}

// DailyRange returns the daily rollups for a product over [from, to], both
// UTC days inclusive, ordered by day ascending. Days with no views are
// absent; the query layer zero-fills.
func (db *DB) DailyRange(ctx context.Context, productID string, from, to time.Time) ([]models.DailyRollup, error) {
	ctx, cancel := db.readCtx(ctx)
	defer cancel()

	rows, err := db.query(ctx, "select", "daily_rollups",
		`SELECT product_id, day, view_count, unique_count
		 FROM daily_rollups
		 WHERE product_id = ? AND day BETWEEN ? AND ?
		 ORDER BY day ASC`,
		productID, from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DailyRollup
	for rows.Next() {
		var r models.DailyRollup
		if err := rows.Scan(&r.ProductID, &r.Date, &r.Count, &r.UniqueCount); err != nil {
			return nil, fmt.Errorf("scanning daily rollup: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// BreakdownRange sums a breakdown dimension over [from, to], ordered by
// count descending then bucket ascending.
func (db *DB) BreakdownRange(ctx context.Context, productID string, dim models.BreakdownDimension, from, to time.Time) ([]models.BreakdownRow, error) {
	ctx, cancel := db.readCtx(ctx)
	defer cancel()

	rows, err := db.query(ctx, "select", "breakdown_rollups",
		`SELECT product_id, bucket, SUM(view_count), SUM(unique_count)
		 FROM breakdown_rollups
		 WHERE product_id = ? AND dimension = ? AND day BETWEEN ? AND ?
		 GROUP BY product_id, bucket
		 ORDER BY SUM(view_count) DESC, bucket ASC`,
		productID, string(dim),
		from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BreakdownRow
	for rows.Next() {
		var r models.BreakdownRow
		if err := rows.Scan(&r.ProductID, &r.Key, &r.Count, &r.UniqueCount); err != nil {
			return nil, fmt.Errorf("scanning breakdown row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecomputeDay rebuilds the daily and breakdown rollups for one (product,
// UTC day) from the raw event log, replacing whatever incremental state was
// there. Used by the reconciliation sweep and by manual reseal.
func (db *DB) RecomputeDay(ctx context.Context, productID string, day time.Time) error {
	ctx, cancel := db.writeCtx(ctx)
	defer cancel()

	dayStr := day.UTC().Format("2006-01-02")

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning recompute for product %s day %s: %w", productID, dayStr, err)
	}
	defer func() { _ = tx.Rollback() }()

	dayFilter := `product_id = ? AND created_at >= CAST(? AS TIMESTAMP)
		AND created_at < CAST(? AS TIMESTAMP) + INTERVAL 1 DAY`

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM daily_rollups WHERE product_id = ? AND day = ?`,
		productID, dayStr); err != nil {
		return fmt.Errorf("clearing daily rollup: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM breakdown_rollups WHERE product_id = ? AND day = ?`,
		productID, dayStr); err != nil {
		return fmt.Errorf("clearing breakdown rollups: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO daily_rollups (product_id, day, view_count, unique_count)
		 SELECT product_id, CAST(? AS DATE), COUNT(*),
			SUM(CASE WHEN is_unique THEN 1 ELSE 0 END)
		 FROM raw_events WHERE `+dayFilter+`
		 GROUP BY product_id`,
		dayStr, productID, dayStr, dayStr); err != nil {
		return fmt.Errorf("rebuilding daily rollup: %w", err)
	}

	breakdowns := map[models.BreakdownDimension]string{
		models.BreakdownDevice:  "device",
		models.BreakdownSource:  "source",
		models.BreakdownCountry: "country_code",
	}
	for dim, col := range breakdowns {
		query := fmt.Sprintf(
			`INSERT INTO breakdown_rollups
				(product_id, day, dimension, bucket, view_count, unique_count)
			 SELECT product_id, CAST(? AS DATE), ?, %[1]s, COUNT(*),
				SUM(CASE WHEN is_unique THEN 1 ELSE 0 END)
			 FROM raw_events
			 WHERE %[2]s AND %[1]s IS NOT NULL AND %[1]s != ''
			 GROUP BY product_id, %[1]s`, col, dayFilter)
		if _, err := tx.ExecContext(ctx, query,
			dayStr, string(dim), productID, dayStr, dayStr); err != nil {
			return fmt.Errorf("rebuilding %s breakdown: %w", dim, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing recompute: %w", err)
	}
	return nil
}

// ActiveProducts lists products that received at least one raw event within
// [from, to]. The reconciliation sweep uses it to bound its work.
func (db *DB) ActiveProducts(ctx context.Context, from, to time.Time) ([]string, error) {
	ctx, cancel := db.readCtx(ctx)
	defer cancel()

	rows, err := db.query(ctx, "select", "raw_events",
		`SELECT DISTINCT product_id FROM raw_events
		 WHERE created_at >= ? AND created_at < ?`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning product id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
