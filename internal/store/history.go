// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/launchdeck/viewtrack/internal/models"
)

// historyFilterClause builds the shared WHERE clause for history queries.
// The snapshot bound pins pagination to a fixed instant.
func historyFilterClause(userID string, filter models.HistoryFilter) (string, []any) {
	clauses := []string{"i.user_id = ?", "i.created_at <= ?"}
	args := []any{userID, filter.Snapshot.UTC()}

	if filter.ProductID != "" {
		clauses = append(clauses, "i.product_id = ?")
		args = append(args, filter.ProductID)
	}
	if filter.Device != "" {
		clauses = append(clauses, "e.device = ?")
		args = append(args, string(filter.Device))
	}
	return strings.Join(clauses, " AND "), args
}

// CountUserHistory returns the number of history entries visible under the
// filter's snapshot.
func (db *DB) CountUserHistory(ctx context.Context, userID string, filter models.HistoryFilter) (int64, error) {
	ctx, cancel := db.readCtx(ctx)
	defer cancel()

	where, args := historyFilterClause(userID, filter)
	var total int64
	err := db.queryRow(ctx, "select", "user_view_index",
		`SELECT COUNT(*)
		 FROM user_view_index i
		 JOIN raw_events e ON e.id = i.event_id
		 WHERE `+where, args, &total)
	if err != nil {
		return 0, fmt.Errorf("counting history for user %s: %w", userID, err)
	}
	return total, nil
}

// UserHistoryPage returns one page of a user's view history, newest first.
// Deleted products yield items with a nil Product.
func (db *DB) UserHistoryPage(ctx context.Context, userID string, filter models.HistoryFilter, limit, offset int) ([]models.HistoryItem, error) {
	ctx, cancel := db.readCtx(ctx)
	defer cancel()

	where, args := historyFilterClause(userID, filter)
	args = append(args, limit, offset)

	rows, err := db.query(ctx, "select", "user_view_index",
		`SELECT e.id, e.created_at, e.duration_seconds, e.device,
			e.referrer_host,
			p.id, p.name, p.tagline, p.slug, p.thumbnail,
			p.gallery_thumbnails, p.pricing, p.status, p.maker_name,
			p.category_name, p.tags
		 FROM user_view_index i
		 JOIN raw_events e ON e.id = i.event_id
		 LEFT JOIN products p ON p.id = i.product_id
		 WHERE `+where+`
		 ORDER BY i.created_at DESC, i.event_id DESC
		 LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.HistoryItem, 0, limit)
	for rows.Next() {
		var (
			item      models.HistoryItem
			duration  sql.NullInt64
			device    string
			referrer  sql.NullString
			productID sql.NullString
			name      sql.NullString
			tagline   sql.NullString
			slug      sql.NullString
			thumbnail sql.NullString
			gallery   sql.NullString
			pricing   sql.NullString
			status    sql.NullString
			maker     sql.NullString
			category  sql.NullString
			tags      sql.NullString
		)
		err := rows.Scan(&item.ID, &item.CreatedAt, &duration, &device,
			&referrer, &productID, &name, &tagline, &slug, &thumbnail,
			&gallery, &pricing, &status, &maker, &category, &tags)
		if err != nil {
			return nil, fmt.Errorf("scanning history item: %w", err)
		}

		item.Device = models.Device(device)
		item.ReferrerHost = referrer.String
		if duration.Valid {
			d := int(duration.Int64)
			item.DurationSeconds = &d
		}
		if productID.Valid {
			item.Product = &models.ProductSummary{
				ID:                productID.String,
				Name:              name.String,
				Tagline:           tagline.String,
				Slug:              slug.String,
				Thumbnail:         thumbnail.String,
				GalleryThumbnails: decodeStringList(gallery.String),
				Pricing:           pricing.String,
				Status:            status.String,
				MakerName:         maker.String,
				CategoryName:      category.String,
				Tags:              decodeStringList(tags.String),
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
