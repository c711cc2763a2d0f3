// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package store

import (
	"context"
	"fmt"
	"time"
)

// schemaContext bounds schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createSchema creates the tables and indexes. All columns are defined in
// the initial CREATE TABLE statements; there are no migrations yet.
func (db *DB) createSchema() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		// Read-only projection of the product catalog. Used for existence
		// checks at ingress and denormalization in history responses.
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			tagline TEXT,
			slug TEXT NOT NULL,
			thumbnail TEXT,
			gallery_thumbnails TEXT,
			pricing TEXT,
			status TEXT,
			maker_name TEXT,
			category_name TEXT,
			tags TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Append-only raw view event log. duration_seconds stays NULL until
		// the end-of-view update arrives, and is written at most once.
		// applied flips to TRUE once the counters and history index for the
		// event have landed, so a redelivery can resume a half-finished
		// application instead of double counting or dropping it.
		`CREATE TABLE IF NOT EXISTS raw_events (
			id UUID PRIMARY KEY,
			product_id TEXT NOT NULL,
			user_id TEXT,
			fingerprint TEXT,
			created_at TIMESTAMP NOT NULL,
			duration_seconds INTEGER,
			device TEXT NOT NULL,
			referrer_host TEXT,
			source TEXT NOT NULL,
			country_code TEXT,
			is_unique BOOLEAN NOT NULL DEFAULT FALSE,
			applied BOOLEAN NOT NULL DEFAULT FALSE
		)`,

		// Per-user history index, written only for authenticated viewers.
		// The key makes the insert idempotent per event.
		`CREATE TABLE IF NOT EXISTS user_view_index (
			user_id TEXT NOT NULL,
			event_id UUID NOT NULL,
			product_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, event_id)
		)`,

		// Lifetime per-product counters. duration_sum/duration_count carry
		// the online mean for average view duration.
		`CREATE TABLE IF NOT EXISTS product_counters (
			product_id TEXT PRIMARY KEY,
			total_views BIGINT NOT NULL DEFAULT 0,
			unique_views BIGINT NOT NULL DEFAULT 0,
			duration_sum BIGINT NOT NULL DEFAULT 0,
			duration_count BIGINT NOT NULL DEFAULT 0,
			upvote_count BIGINT NOT NULL DEFAULT 0,
			bookmark_count BIGINT NOT NULL DEFAULT 0,
			comment_count BIGINT NOT NULL DEFAULT 0
		)`,

		// Per-(product, UTC day) rollup maintained by the aggregator.
		`CREATE TABLE IF NOT EXISTS daily_rollups (
			product_id TEXT NOT NULL,
			day DATE NOT NULL,
			view_count BIGINT NOT NULL DEFAULT 0,
			unique_count BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (product_id, day)
		)`,

		// Per-(product, UTC day, dimension, bucket) rollup. dimension is one
		// of device, source, country; bucket is the dimension value.
		`CREATE TABLE IF NOT EXISTS breakdown_rollups (
			product_id TEXT NOT NULL,
			day DATE NOT NULL,
			dimension TEXT NOT NULL,
			bucket TEXT NOT NULL,
			view_count BIGINT NOT NULL DEFAULT 0,
			unique_count BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (product_id, day, dimension, bucket)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_raw_events_product_day
			ON raw_events (product_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_user_view_index_user
			ON user_view_index (user_id, created_at)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	return nil
}
