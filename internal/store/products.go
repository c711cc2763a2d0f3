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
	"time"

	json "github.com/goccy/go-json"

	"github.com/launchdeck/viewtrack/internal/logging"
	"github.com/launchdeck/viewtrack/internal/models"
)

// UpsertProduct writes or refreshes one row of the catalog projection.
func (db *DB) UpsertProduct(ctx context.Context, p *models.ProductSummary) error {
	ctx, cancel := db.writeCtx(ctx)
	defer cancel()

	_, err := db.exec(ctx, "upsert", "products",
		`INSERT INTO products
			(id, name, tagline, slug, thumbnail, gallery_thumbnails,
			 pricing, status, maker_name, category_name, tags, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			tagline = EXCLUDED.tagline,
			slug = EXCLUDED.slug,
			thumbnail = EXCLUDED.thumbnail,
			gallery_thumbnails = EXCLUDED.gallery_thumbnails,
			pricing = EXCLUDED.pricing,
			status = EXCLUDED.status,
			maker_name = EXCLUDED.maker_name,
			category_name = EXCLUDED.category_name,
			tags = EXCLUDED.tags,
			updated_at = CURRENT_TIMESTAMP`,
		p.ID, p.Name, nullable(p.Tagline), p.Slug, nullable(p.Thumbnail),
		encodeStringList(p.GalleryThumbnails), nullable(p.Pricing),
		nullable(p.Status), nullable(p.MakerName), nullable(p.CategoryName),
		encodeStringList(p.Tags))
	if err != nil {
		return fmt.Errorf("upserting product %s: %w", p.ID, err)
	}
	return nil
}

// DeleteProduct removes a product from the catalog projection. History
// items referencing it keep working with a nil product.
func (db *DB) DeleteProduct(ctx context.Context, id string) error {
	ctx, cancel := db.writeCtx(ctx)
	defer cancel()

	_, err := db.exec(ctx, "delete", "products",
		`DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting product %s: %w", id, err)
	}
	return nil
}

// ProductExists reports whether the catalog projection knows the product.
func (db *DB) ProductExists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := db.readCtx(ctx)
	defer cancel()

	var exists bool
	err := db.queryRow(ctx, "select", "products",
		`SELECT true FROM products WHERE id = ?`, []any{id}, &exists)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetProductSummary loads one product card.
func (db *DB) GetProductSummary(ctx context.Context, id string) (*models.ProductSummary, error) {
	ctx, cancel := db.readCtx(ctx)
	defer cancel()

	var (
		p         models.ProductSummary
		tagline   sql.NullString
		thumbnail sql.NullString
		gallery   sql.NullString
		pricing   sql.NullString
		status    sql.NullString
		maker     sql.NullString
		category  sql.NullString
		tags      sql.NullString
	)
	err := db.queryRow(ctx, "select", "products",
		`SELECT id, name, tagline, slug, thumbnail, gallery_thumbnails,
			pricing, status, maker_name, category_name, tags
		 FROM products WHERE id = ?`,
		[]any{id},
		&p.ID, &p.Name, &tagline, &p.Slug, &thumbnail, &gallery,
		&pricing, &status, &maker, &category, &tags)
	if err != nil {
		return nil, err
	}

	p.Tagline = tagline.String
	p.Thumbnail = thumbnail.String
	p.GalleryThumbnails = decodeStringList(gallery.String)
	p.Pricing = pricing.String
	p.Status = status.String
	p.MakerName = maker.String
	p.CategoryName = category.String
	p.Tags = decodeStringList(tags.String)
	return &p, nil
}

// encodeStringList serializes a string slice as JSON for TEXT storage.
// Empty slices store as NULL.
func encodeStringList(list []string) any {
	if len(list) == 0 {
		return nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		logging.Warn().Err(err).Msg("encoding string list")
		return nil
	}
	return string(data)
}

// decodeStringList parses a JSON-encoded string slice; "" yields nil.
func decodeStringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		logging.Warn().Err(err).Msg("decoding string list")
		return nil
	}
	return out
}

// seedMockData inserts a small demo catalog for local development.
func (db *DB) seedMockData() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	products := []*models.ProductSummary{
		{
			ID: "demo-aurora", Name: "Aurora Notes", Slug: "aurora-notes",
			Tagline: "Markdown notes that sync themselves",
			Pricing: "freemium", Status: "launched",
			MakerName: "Demo Maker", CategoryName: "Productivity",
			Tags: []string{"notes", "markdown"},
		},
		{
			ID: "demo-beacon", Name: "Beacon Uptime", Slug: "beacon-uptime",
			Tagline: "Single-binary uptime monitoring",
			Pricing: "paid", Status: "launched",
			MakerName: "Demo Maker", CategoryName: "Developer Tools",
			Tags: []string{"monitoring"},
		},
	}
	for _, p := range products {
		if err := db.UpsertProduct(ctx, p); err != nil {
			return err
		}
	}
	logging.Info().Int("products", len(products)).Msg("seeded mock catalog")
	return nil
}
