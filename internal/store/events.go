// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/launchdeck/viewtrack/internal/models"
)

// InsertViewEvent appends one raw view event.
func (db *DB) InsertViewEvent(ctx context.Context, e *models.ViewEvent) error {
	ctx, cancel := db.writeCtx(ctx)
	defer cancel()

	_, err := db.exec(ctx, "insert", "raw_events",
		`INSERT INTO raw_events
			(id, product_id, user_id, fingerprint, created_at, duration_seconds,
			 device, referrer_host, source, country_code, is_unique)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProductID, nullable(e.UserID), nullable(e.Fingerprint),
		e.CreatedAt.UTC(), nullableInt(e.DurationSeconds),
		string(e.Device), nullable(e.ReferrerHost), string(e.Source),
		nullable(e.CountryCode), e.IsUnique)
	if err != nil {
		return fmt.Errorf("inserting view event %s: %w", e.ID, err)
	}
	return nil
}

// GetViewEvent loads one raw event by id.
func (db *DB) GetViewEvent(ctx context.Context, id string) (*models.ViewEvent, error) {
	ctx, cancel := db.readCtx(ctx)
	defer cancel()

	var (
		e        models.ViewEvent
		userID   sql.NullString
		fp       sql.NullString
		duration sql.NullInt64
		referrer sql.NullString
		country  sql.NullString
		device   string
		source   string
	)
	err := db.queryRow(ctx, "select", "raw_events",
		`SELECT id, product_id, user_id, fingerprint, created_at,
			duration_seconds, device, referrer_host, source, country_code,
			is_unique
		 FROM raw_events WHERE id = ?`,
		[]any{id},
		&e.ID, &e.ProductID, &userID, &fp, &e.CreatedAt,
		&duration, &device, &referrer, &source, &country, &e.IsUnique)
	if err != nil {
		return nil, err
	}

	e.UserID = userID.String
	e.Fingerprint = fp.String
	e.ReferrerHost = referrer.String
	e.CountryCode = country.String
	e.Device = models.Device(device)
	e.Source = models.Source(source)
	if duration.Valid {
		d := int(duration.Int64)
		e.DurationSeconds = &d
	}
	return &e, nil
}

// ApplyViewEvent persists one view event together with its side effects in a
// single transaction: the raw log row, the lifetime counter bump, and, for
// authenticated viewers, the history index row. The applied flag on the raw
// row keys the whole application to the event id, so the call is idempotent
// under redelivery. It returns true when the side effects landed in this
// call and false when an earlier delivery already applied them.
//
// When the raw row exists but is not yet marked applied, the call resumes
// the remaining side effects using the uniqueness stored with the row, not
// the flag on e.
func (db *DB) ApplyViewEvent(ctx context.Context, e *models.ViewEvent) (bool, error) {
	ctx, cancel := db.writeCtx(ctx)
	defer cancel()

	appliedNow := false
	err := db.withTx(ctx, "ingest", "raw_events", func(tx *sql.Tx) error {
		var storedUnique, alreadyApplied bool
		err := tx.QueryRowContext(ctx,
			`SELECT is_unique, applied FROM raw_events WHERE id = ?`, e.ID).
			Scan(&storedUnique, &alreadyApplied)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO raw_events
					(id, product_id, user_id, fingerprint, created_at, duration_seconds,
					 device, referrer_host, source, country_code, is_unique)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, e.ProductID, nullable(e.UserID), nullable(e.Fingerprint),
				e.CreatedAt.UTC(), nullableInt(e.DurationSeconds),
				string(e.Device), nullable(e.ReferrerHost), string(e.Source),
				nullable(e.CountryCode), e.IsUnique); err != nil {
				return err
			}
		case err != nil:
			return err
		case alreadyApplied:
			return nil
		default:
			// Resume a half-finished application with the uniqueness the
			// first delivery resolved.
			e.IsUnique = storedUnique
		}

		uniqueDelta := 0
		if e.IsUnique {
			uniqueDelta = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO product_counters (product_id, total_views, unique_views)
			 VALUES (?, 1, ?)
			 ON CONFLICT (product_id) DO UPDATE SET
				total_views = product_counters.total_views + 1,
				unique_views = product_counters.unique_views + EXCLUDED.unique_views`,
			e.ProductID, uniqueDelta); err != nil {
			return err
		}

		if e.UserID != "" {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO user_view_index (user_id, event_id, product_id, created_at)
				 VALUES (?, ?, ?, ?)
				 ON CONFLICT (user_id, event_id) DO NOTHING`,
				e.UserID, e.ID, e.ProductID, e.CreatedAt.UTC()); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE raw_events SET applied = TRUE WHERE id = ?`, e.ID); err != nil {
			return err
		}
		appliedNow = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("applying view event %s: %w", e.ID, err)
	}
	return appliedNow, nil
}

// RecordViewDuration writes the end-of-view duration for an event and folds
// it into the product's duration mean, both in one transaction. The duration
// is written at most once; a repeat returns false and changes nothing. A
// missing event returns ErrNotFound.
func (db *DB) RecordViewDuration(ctx context.Context, id string, seconds int) (bool, error) {
	ctx, cancel := db.writeCtx(ctx)
	defer cancel()

	applied := false
	err := db.withTx(ctx, "duration", "raw_events", func(tx *sql.Tx) error {
		var productID string
		err := tx.QueryRowContext(ctx,
			`UPDATE raw_events SET duration_seconds = ?
			 WHERE id = ? AND duration_seconds IS NULL
			 RETURNING product_id`, seconds, id).Scan(&productID)
		if errors.Is(err, sql.ErrNoRows) {
			// Either the event does not exist or it already has a duration.
			var exists bool
			return tx.QueryRowContext(ctx,
				`SELECT true FROM raw_events WHERE id = ?`, id).Scan(&exists)
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO product_counters (product_id, duration_sum, duration_count)
			 VALUES (?, ?, 1)
			 ON CONFLICT (product_id) DO UPDATE SET
				duration_sum = product_counters.duration_sum + EXCLUDED.duration_sum,
				duration_count = product_counters.duration_count + 1`,
			productID, seconds); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("recording duration for event %s: %w", id, err)
	}
	return applied, nil
}

// InsertUserViewIndex appends one per-user history index row.
func (db *DB) InsertUserViewIndex(ctx context.Context, entry models.UserViewIndexEntry) error {
	ctx, cancel := db.writeCtx(ctx)
	defer cancel()

	_, err := db.exec(ctx, "insert", "user_view_index",
		`INSERT INTO user_view_index (user_id, event_id, product_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		entry.UserID, entry.EventID, entry.ProductID, entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting history index for user %s: %w", entry.UserID, err)
	}
	return nil
}

// nullable maps "" to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableInt maps a nil pointer to SQL NULL.
func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
