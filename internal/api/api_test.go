// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/launchdeck/viewtrack/internal/auth"
	"github.com/launchdeck/viewtrack/internal/config"
	"github.com/launchdeck/viewtrack/internal/dedup"
	"github.com/launchdeck/viewtrack/internal/history"
	"github.com/launchdeck/viewtrack/internal/identity"
	"github.com/launchdeck/viewtrack/internal/ingest"
	"github.com/launchdeck/viewtrack/internal/models"
	"github.com/launchdeck/viewtrack/internal/notify"
	"github.com/launchdeck/viewtrack/internal/query"
	"github.com/launchdeck/viewtrack/internal/store"
)

// syncPublisher delivers published messages straight to the ingestor, so
// handler tests observe ingest side effects synchronously.
type syncPublisher struct {
	ingestor *ingest.Ingestor
	failWith error
}

func (p *syncPublisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	if p.failWith != nil {
		return p.failWith
	}
	_, err := p.ingestor.Handle(msg)
	return err
}

type fakeResealer struct {
	err    error
	calls  int
	lastID string
}

func (f *fakeResealer) Reseal(ctx context.Context, productID string, day time.Time) error {
	f.calls++
	f.lastID = productID
	return f.err
}

type testEnv struct {
	server   *Server
	handler  http.Handler
	db       *store.DB
	verifier *auth.Verifier
	pub      *syncPublisher
	resealer *fakeResealer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Config{
		Security: config.SecurityConfig{
			JWTSecret:      "test-secret",
			ViewRatePerMin: 600,
			ViewRateBurst:  100,
			CORSOrigins:    []string{"*"},
		},
		Identity: config.IdentityConfig{
			FingerprintSecret: "fp-secret",
		},
	}

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

	window, err := dedup.Open(dedup.Config{})
	if err != nil {
		t.Fatalf("dedup.Open: %v", err)
	}
	t.Cleanup(func() { window.Close() })

	hub := notify.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.RunWithContext(ctx) }()
	t.Cleanup(cancel)

	ingestor := ingest.NewIngestor(db, window, hub, nil)
	handles := ingest.NewHandles()
	t.Cleanup(handles.Close)

	statsSvc := query.NewService(db, 0)
	t.Cleanup(statsSvc.Close)

	pub := &syncPublisher{ingestor: ingestor}
	resealer := &fakeResealer{}
	verifier := auth.NewVerifier(cfg.Security.JWTSecret)

	srv := NewServer(cfg, Deps{
		DB:           db,
		Publisher:    pub,
		Ingestor:     ingestor,
		Handles:      handles,
		Hub:          hub,
		History:      history.NewService(db),
		Stats:        statsSvc,
		Resealer:     resealer,
		Verifier:     verifier,
		Fingerprints: identity.NewFingerprinter(cfg.Identity.FingerprintSecret, 0),
	})

	return &testEnv{
		server:   srv,
		handler:  srv.Routes(),
		db:       db,
		verifier: verifier,
		pub:      pub,
		resealer: resealer,
	}
}

func (env *testEnv) seedProduct(t *testing.T, id string) {
	t.Helper()
	err := env.db.UpsertProduct(context.Background(), &models.ProductSummary{
		ID:   id,
		Name: "Test Product",
		Slug: "test-product",
	})
	if err != nil {
		t.Fatalf("UpsertProduct: %v", err)
	}
}

func (env *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := env.verifier.Sign(userID, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return token
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "203.0.113.9:51234"
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 14)")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

// envelope decodes the standard response wrapper with Data left raw.
type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding envelope: %v (body %s)", err, rec.Body.String())
	}
	return env
}

func TestRecordViewStart(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "prod-1")

	rec := env.do(t, http.MethodPost, "/api/v1/views", "",
		map[string]string{"productId": "prod-1", "source": "search"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeEnvelope(t, rec)
	var data struct {
		Handle string `json:"handle"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.Handle == "" {
		t.Fatalf("handle missing: %s", rec.Body.String())
	}

	// The synchronous publisher means the event is already counted.
	counters, err := env.db.GetCounters(context.Background(), "prod-1")
	if err != nil {
		t.Fatalf("GetCounters: %v", err)
	}
	if counters.TotalViews != 1 {
		t.Errorf("TotalViews = %d, want 1", counters.TotalViews)
	}
}

func TestRecordViewStartUnknownProduct(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/views", "",
		map[string]string{"productId": "ghost"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp := decodeEnvelope(t, rec); resp.Error == nil || resp.Error.Code != models.CodeNotFound {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestRecordViewStartValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/views", "", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeEnvelope(t, rec); resp.Error == nil || resp.Error.Code != models.CodeValidation {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestRecordViewStartRateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "prod-1")
	env.server.limiter = newViewLimiter(60, 2)

	statuses := make([]int, 3)
	for i := range statuses {
		rec := env.do(t, http.MethodPost, "/api/v1/views", "",
			map[string]string{"productId": "prod-1"})
		statuses[i] = rec.Code
	}
	if statuses[0] != http.StatusCreated || statuses[1] != http.StatusCreated {
		t.Errorf("first two requests = %v, want 201s inside the burst", statuses[:2])
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", statuses[2])
	}
}

func TestRecordViewStartQueueUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "prod-1")
	env.pub.failWith = fmt.Errorf("broker down")

	rec := env.do(t, http.MethodPost, "/api/v1/views", "",
		map[string]string{"productId": "prod-1"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestRecordViewEnd(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "prod-1")

	rec := env.do(t, http.MethodPost, "/api/v1/views", "",
		map[string]string{"productId": "prod-1"})
	resp := decodeEnvelope(t, rec)
	var data struct {
		Handle string `json:"handle"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decoding handle: %v", err)
	}

	first := env.do(t, http.MethodPatch, "/api/v1/views/"+data.Handle, "",
		map[string]int{"durationSeconds": 90})
	if first.Code != http.StatusNoContent {
		t.Fatalf("first end = %d, want 204 (body %s)", first.Code, first.Body.String())
	}

	second := env.do(t, http.MethodPatch, "/api/v1/views/"+data.Handle, "",
		map[string]int{"durationSeconds": 300})
	if second.Code != http.StatusOK {
		t.Fatalf("second end = %d, want 200 no-op", second.Code)
	}

	counters, err := env.db.GetCounters(context.Background(), "prod-1")
	if err != nil {
		t.Fatalf("GetCounters: %v", err)
	}
	if counters.AvgDurationSeconds != 90 {
		t.Errorf("AvgDurationSeconds = %v, want first duration only", counters.AvgDurationSeconds)
	}
}

func TestRecordViewEndUnknownHandle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPatch, "/api/v1/views/not-a-handle", "",
		map[string]int{"durationSeconds": 10})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestViewHistoryRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/views/history", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestViewHistory(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "prod-1")
	token := env.token(t, "user-1")

	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/views", token,
			map[string]string{"productId": "prod-1"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("seeding view %d: %d", i, rec.Code)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/v1/views/history?limit=2", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeEnvelope(t, rec)
	var page models.HistoryPage
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		t.Fatalf("decoding page: %v", err)
	}
	if page.Pagination.Total != 3 || page.Pagination.Pages != 2 || len(page.Data) != 2 {
		t.Errorf("pagination = %+v with %d items", page.Pagination, len(page.Data))
	}
	if page.Pagination.Cursor == "" {
		t.Error("cursor missing")
	}
}

func TestViewStats(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "prod-1")

	rec := env.do(t, http.MethodPost, "/api/v1/views", "",
		map[string]string{"productId": "prod-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("seeding view: %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/products/prod-1/view-stats?days=7", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeEnvelope(t, rec)
	var stats models.ViewStats
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if stats.Totals.TotalViews != 1 {
		t.Errorf("TotalViews = %d, want 1", stats.Totals.TotalViews)
	}
	if len(stats.DailyViews) != 7 {
		t.Errorf("daily series length = %d, want 7", len(stats.DailyViews))
	}
}

func TestViewStatsUnknownProduct(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/products/ghost/view-stats", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestViewStatsETagRevalidation(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "prod-1")

	first := env.do(t, http.MethodGet, "/api/v1/products/prod-1/view-stats", "", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d", first.Code)
	}
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("ETag header missing")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/prod-1/view-stats", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotModified {
		t.Errorf("status = %d, want 304", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("304 must have no body, got %s", rec.Body.String())
	}
}

func TestSummaryAction(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "prod-1")
	token := env.token(t, "user-1")

	rec := env.do(t, http.MethodPost, "/api/v1/products/prod-1/actions", "",
		map[string]any{"action": "upvote", "delta": 1})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous action = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/products/prod-1/actions", token,
		map[string]any{"action": "upvote", "delta": 1})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	counters, err := env.db.GetCounters(context.Background(), "prod-1")
	if err != nil {
		t.Fatalf("GetCounters: %v", err)
	}
	if counters.UpvoteCount != 1 {
		t.Errorf("UpvoteCount = %d, want 1", counters.UpvoteCount)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/products/prod-1/actions", token,
		map[string]any{"action": "smash", "delta": 1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown action = %d, want 400", rec.Code)
	}
}

func TestReseal(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "prod-1")
	token := env.token(t, "user-1")

	rec := env.do(t, http.MethodPost, "/api/v1/products/prod-1/reseal?date=2026-01-05", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous reseal = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/products/prod-1/reseal?date=bad-date", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/products/prod-1/reseal?date=2026-01-05", token, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if env.resealer.calls != 1 || env.resealer.lastID != "prod-1" {
		t.Errorf("resealer calls = %d id = %q", env.resealer.calls, env.resealer.lastID)
	}

	env.resealer.err = fmt.Errorf("day 2026-01-05 is still live")
	rec = env.do(t, http.MethodPost, "/api/v1/products/prod-1/reseal?date=2026-01-05", token, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("rejected reseal = %d, want 409", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/api/v1/health/live", "", nil); rec.Code != http.StatusOK {
		t.Errorf("live = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/health/ready", "", nil); rec.Code != http.StatusOK {
		t.Errorf("ready = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/views/history", "garbage-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
