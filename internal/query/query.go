// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

// Package query serves the per-product analytics bundle: totals, the
// zero-filled daily series, device/source/geography breakdowns with exact
// percentages, and the generated insights. Responses are cached briefly so
// dashboard polling does not hammer the rollup tables.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/launchdeck/viewtrack/internal/cache"
	"github.com/launchdeck/viewtrack/internal/insights"
	"github.com/launchdeck/viewtrack/internal/metrics"
	"github.com/launchdeck/viewtrack/internal/models"
	"github.com/launchdeck/viewtrack/internal/store"
)

// Service answers view-stats queries from the rollup tables and counters.
type Service struct {
	db    *store.DB
	cache *cache.TTL[*models.ViewStats]
	now   func() time.Time
}

// NewService wires the query service. cacheTTL <= 0 disables caching.
func NewService(db *store.DB, cacheTTL time.Duration) *Service {
	s := &Service{db: db, now: time.Now}
	if cacheTTL > 0 {
		s.cache = cache.NewTTL[*models.ViewStats](cacheTTL)
	}
	return s
}

// WithClock overrides the clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Close stops the cache's cleanup goroutine.
func (s *Service) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

// ClampDays normalizes the requested window length. Zero or negative falls
// back to the default; oversized requests are capped.
func ClampDays(days int) int {
	if days <= 0 {
		return models.StatsDefaultDays
	}
	if days > models.StatsMaxDays {
		return models.StatsMaxDays
	}
	return days
}

// ProductStats builds the analytics bundle for a product over the last days
// UTC days ending today. Missing aggregates come back as zeros; the only
// error kinds are store.ErrNotFound for an unknown product and
// store.ErrUnavailable for a tripped store.
func (s *Service) ProductStats(ctx context.Context, productID string, days int) (*models.ViewStats, error) {
	days = ClampDays(days)

	key := fmt.Sprintf("%s:%d", productID, days)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			metrics.StatsCacheLookups.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.StatsCacheLookups.WithLabelValues("miss").Inc()
	}

	exists, err := s.db.ProductExists(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -(days - 1))
	prevTo := from.AddDate(0, 0, -1)
	prevFrom := prevTo.AddDate(0, 0, -(days - 1))

	daily, err := s.dailySeries(ctx, productID, from, days)
	if err != nil {
		return nil, err
	}
	previous, err := s.dailySeries(ctx, productID, prevFrom, days)
	if err != nil {
		return nil, err
	}

	counters, err := s.db.GetCounters(ctx, productID)
	if err != nil {
		return nil, err
	}

	devices, err := s.db.BreakdownRange(ctx, productID, models.BreakdownDevice, from, today)
	if err != nil {
		return nil, err
	}
	sources, err := s.db.BreakdownRange(ctx, productID, models.BreakdownSource, from, today)
	if err != nil {
		return nil, err
	}
	geography, err := s.db.BreakdownRange(ctx, productID, models.BreakdownCountry, from, today)
	if err != nil {
		return nil, err
	}

	stats := &models.ViewStats{
		Totals: models.StatsTotals{
			TotalViews:    counters.TotalViews,
			UniqueViewers: counters.UniqueViews,
			AvgDuration:   counters.AvgDurationSeconds,
		},
		DailyViews: daily,
		Devices:    deviceStats(devices),
		Sources:    sourceStats(sources),
		Geography:  geoStats(geography),
	}
	stats.Insights = insights.Generate(insights.Window{
		Days:        days,
		Daily:       daily,
		Previous:    previous,
		AvgDuration: counters.AvgDurationSeconds,
		Sources:     stats.Sources,
	})

	if s.cache != nil {
		s.cache.Set(key, stats)
	}
	return stats, nil
}

// dailySeries returns a zero-filled, date-ascending series of length days
// starting at from.
func (s *Service) dailySeries(ctx context.Context, productID string, from time.Time, days int) ([]models.DailyCount, error) {
	to := from.AddDate(0, 0, days-1)
	rollups, err := s.db.DailyRange(ctx, productID, from, to)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]models.DailyRollup, len(rollups))
	for _, r := range rollups {
		byDate[r.Date.UTC().Format("2006-01-02")] = r
	}

	out := make([]models.DailyCount, days)
	for i := 0; i < days; i++ {
		date := from.AddDate(0, 0, i).Format("2006-01-02")
		out[i] = models.DailyCount{Date: date}
		if r, ok := byDate[date]; ok {
			out[i].Count = r.Count
			out[i].UniqueCount = r.UniqueCount
		}
	}
	return out, nil
}

// percentages converts bucket counts to percentages rounded to one decimal.
// The rounding residual lands on the largest bucket so the result sums to
// exactly 100.0 whenever the total is positive. The math runs in integer
// tenths to dodge float drift.
func percentages(counts []int64) []float64 {
	out := make([]float64, len(counts))
	var total int64
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return out
	}

	tenths := make([]int64, len(counts))
	var sum int64
	largest := 0
	for i, c := range counts {
		tenths[i] = (c*1000 + total/2) / total
		sum += tenths[i]
		if c > counts[largest] {
			largest = i
		}
	}
	tenths[largest] += 1000 - sum

	for i, t := range tenths {
		out[i] = float64(t) / 10
	}
	return out
}

func deviceStats(rows []models.BreakdownRow) []models.DeviceStat {
	counts := make([]int64, len(rows))
	for i, r := range rows {
		counts[i] = r.Count
	}
	pct := percentages(counts)

	out := make([]models.DeviceStat, len(rows))
	for i, r := range rows {
		out[i] = models.DeviceStat{
			Device:      models.Device(r.Key),
			Count:       r.Count,
			UniqueCount: r.UniqueCount,
			Percentage:  pct[i],
		}
	}
	return out
}

func sourceStats(rows []models.BreakdownRow) []models.SourceStat {
	counts := make([]int64, len(rows))
	for i, r := range rows {
		counts[i] = r.Count
	}
	pct := percentages(counts)

	out := make([]models.SourceStat, len(rows))
	for i, r := range rows {
		out[i] = models.SourceStat{
			Source:     models.Source(r.Key),
			Count:      r.Count,
			Percentage: pct[i],
		}
	}
	return out
}

func geoStats(rows []models.BreakdownRow) []models.GeoStat {
	counts := make([]int64, len(rows))
	for i, r := range rows {
		counts[i] = r.Count
	}
	pct := percentages(counts)

	out := make([]models.GeoStat, len(rows))
	for i, r := range rows {
		out[i] = models.GeoStat{
			Country:    r.Key,
			Count:      r.Count,
			Percentage: pct[i],
		}
	}
	return out
}
