// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/launchdeck/viewtrack/internal/config"
	"github.com/launchdeck/viewtrack/internal/models"
	"github.com/launchdeck/viewtrack/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.DB) {
	t.Helper()

	db, err := store.New(config.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "test.duckdb"),
		MaxMemory:    "512MB",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewService(db), db
}

// seedViews inserts n indexed views for the user, one minute apart, oldest
// first, all on the given product and device.
func seedViews(t *testing.T, db *store.DB, userID, productID string, device models.Device, n int, start time.Time) []string {
	t.Helper()
	ctx := context.Background()

	ids := make([]string, n)
	for i := 0; i < n; i++ {
		e := &models.ViewEvent{
			ID:        uuid.NewString(),
			ProductID: productID,
			UserID:    userID,
			CreatedAt: start.Add(time.Duration(i) * time.Minute),
			Device:    device,
			Source:    models.SourceDirect,
		}
		if err := db.InsertViewEvent(ctx, e); err != nil {
			t.Fatalf("InsertViewEvent: %v", err)
		}
		err := db.InsertUserViewIndex(ctx, models.UserViewIndexEntry{
			UserID:    userID,
			EventID:   e.ID,
			ProductID: productID,
			CreatedAt: e.CreatedAt,
		})
		if err != nil {
			t.Fatalf("InsertUserViewIndex: %v", err)
		}
		ids[i] = e.ID
	}
	return ids
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, models.HistoryDefaultLimit},
		{-1, models.HistoryDefaultLimit},
		{25, 25},
		{200, models.HistoryMaxLimit},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestListNewestFirst(t *testing.T) {
	svc, db := newTestService(t)
	start := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	ids := seedViews(t, db, "user-1", "prod-1", models.DeviceDesktop, 3, start)

	page, err := svc.List(context.Background(), "user-1", Request{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Data) != 3 {
		t.Fatalf("got %d items, want 3", len(page.Data))
	}
	// newest seeded view comes first
	if page.Data[0].ID != ids[2] || page.Data[2].ID != ids[0] {
		t.Errorf("ordering: got %s..%s, want %s..%s",
			page.Data[0].ID, page.Data[2].ID, ids[2], ids[0])
	}
	if page.Pagination.Total != 3 || page.Pagination.Pages != 1 {
		t.Errorf("pagination = %+v", page.Pagination)
	}
}

func TestListPaginationMath(t *testing.T) {
	svc, db := newTestService(t)
	start := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	seedViews(t, db, "user-1", "prod-1", models.DeviceDesktop, 25, start)

	page, err := svc.List(context.Background(), "user-1", Request{Page: 3, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Pagination.Pages != 3 || page.Pagination.Total != 25 {
		t.Errorf("pagination = %+v", page.Pagination)
	}
	if len(page.Data) != 5 {
		t.Errorf("last page has %d items, want 5", len(page.Data))
	}
}

func TestListPageBeyondEndClamps(t *testing.T) {
	svc, db := newTestService(t)
	start := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	seedViews(t, db, "user-1", "prod-1", models.DeviceDesktop, 5, start)

	page, err := svc.List(context.Background(), "user-1", Request{Page: 99, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Pagination.Page != 1 || len(page.Data) != 5 {
		t.Errorf("page = %d with %d items", page.Pagination.Page, len(page.Data))
	}
}

func TestSnapshotExhaustiveAndNonDuplicating(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	start := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	seedViews(t, db, "user-1", "prod-1", models.DeviceDesktop, 25, start)

	first, err := svc.List(ctx, "user-1", Request{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	cursor := first.Pagination.Cursor
	if cursor == "" {
		t.Fatal("first page must return a snapshot cursor")
	}

	// New views after the snapshot must stay invisible to this listing.
	seedViews(t, db, "user-1", "prod-2", models.DeviceMobile, 5, time.Now().UTC())

	seen := make(map[string]bool)
	for _, item := range first.Data {
		seen[item.ID] = true
	}
	for p := 2; p <= first.Pagination.Pages; p++ {
		page, err := svc.List(ctx, "user-1", Request{Page: p, Limit: 10, Cursor: cursor})
		if err != nil {
			t.Fatalf("List page %d: %v", p, err)
		}
		if page.Pagination.Total != 25 {
			t.Errorf("page %d total = %d, want snapshot-pinned 25", p, page.Pagination.Total)
		}
		for _, item := range page.Data {
			if seen[item.ID] {
				t.Errorf("item %s appeared twice", item.ID)
			}
			seen[item.ID] = true
		}
	}
	if len(seen) != 25 {
		t.Errorf("iterated %d distinct items, want 25", len(seen))
	}
}

func TestFilters(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	start := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	seedViews(t, db, "user-1", "prod-1", models.DeviceDesktop, 3, start)
	seedViews(t, db, "user-1", "prod-2", models.DeviceMobile, 2, start.Add(time.Hour))

	byProduct, err := svc.List(ctx, "user-1", Request{
		Filter: models.HistoryFilter{ProductID: "prod-2"},
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if byProduct.Pagination.Total != 2 {
		t.Errorf("product filter total = %d, want 2", byProduct.Pagination.Total)
	}

	byDevice, err := svc.List(ctx, "user-1", Request{
		Filter: models.HistoryFilter{Device: models.DeviceDesktop},
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if byDevice.Pagination.Total != 3 {
		t.Errorf("device filter total = %d, want 3", byDevice.Pagination.Total)
	}
}

func TestDeletedProductYieldsNilCard(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	start := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	seedViews(t, db, "user-1", "prod-gone", models.DeviceDesktop, 1, start)

	page, err := svc.List(ctx, "user-1", Request{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Data) != 1 {
		t.Fatalf("got %d items, want 1", len(page.Data))
	}
	if page.Data[0].Product != nil {
		t.Errorf("product card = %+v, want nil for missing product", page.Data[0].Product)
	}
}

func TestMalformedCursorRejected(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.List(context.Background(), "user-1", Request{Cursor: "!!not-base64!!"}); err == nil {
		t.Error("malformed cursor should error")
	}
	if _, err := svc.List(context.Background(), "user-1", Request{Cursor: "bm90LWpzb24"}); err == nil {
		t.Error("non-JSON cursor should error")
	}
}
