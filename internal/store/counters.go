// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/launchdeck/viewtrack/internal/models"
)

// summaryColumns maps a summary action to its counter column. Column names
// are never taken from request input.
var summaryColumns = map[models.SummaryAction]string{
	models.ActionUpvote:   "upvote_count",
	models.ActionBookmark: "bookmark_count",
	models.ActionComment:  "comment_count",
}

// ApplySummaryAction adjusts one summary counter and returns its new value.
// Negative deltas clamp at zero.
func (db *DB) ApplySummaryAction(ctx context.Context, productID string, action models.SummaryAction, delta int64) (int64, error) {
	col, ok := summaryColumns[action]
	if !ok {
		return 0, fmt.Errorf("unknown summary action %q", action)
	}

	ctx, cancel := db.writeCtx(ctx)
	defer cancel()

	insertValue := delta
	if insertValue < 0 {
		insertValue = 0
	}

	query := fmt.Sprintf(
		`INSERT INTO product_counters (product_id, %[1]s)
		 VALUES (?, ?)
		 ON CONFLICT (product_id) DO UPDATE SET
			%[1]s = GREATEST(product_counters.%[1]s + ?, 0)
		 RETURNING %[1]s`, col)

	var value int64
	err := db.queryRow(ctx, "upsert", "product_counters", query,
		[]any{productID, insertValue, delta}, &value)
	if err != nil {
		return 0, fmt.Errorf("applying %s for product %s: %w", action, productID, err)
	}
	return value, nil
}

// GetCounters loads the lifetime counters for a product. A product with no
// recorded views returns zero counters, not ErrNotFound.
func (db *DB) GetCounters(ctx context.Context, productID string) (*models.ProductCounters, error) {
	ctx, cancel := db.readCtx(ctx)
	defer cancel()

	var (
		c             models.ProductCounters
		durationSum   int64
		durationCount int64
	)
	err := db.queryRow(ctx, "select", "product_counters",
		`SELECT product_id, total_views, unique_views, duration_sum,
			duration_count, upvote_count, bookmark_count, comment_count
		 FROM product_counters WHERE product_id = ?`,
		[]any{productID},
		&c.ProductID, &c.TotalViews, &c.UniqueViews, &durationSum,
		&durationCount, &c.UpvoteCount, &c.BookmarkCount, &c.CommentCount)
	if errors.Is(err, ErrNotFound) {
		return &models.ProductCounters{ProductID: productID}, nil
	}
	if err != nil {
		return nil, err
	}

	if durationCount > 0 {
		c.AvgDurationSeconds = float64(durationSum) / float64(durationCount)
	}
	return &c, nil
}
