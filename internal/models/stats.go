// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package models

// Analytics window bounds for the view-stats endpoint.
const (
	StatsDefaultDays = 30
	StatsMaxDays     = 365
)

// ViewStats is the per-product analytics bundle served by
// GET /products/{id}/view-stats.
type ViewStats struct {
	Totals     StatsTotals  `json:"totals"`
	DailyViews []DailyCount `json:"dailyViews"`
	Devices    []DeviceStat `json:"devices"`
	Sources    []SourceStat `json:"sources"`
	Geography  []GeoStat    `json:"geography"`
	Insights   Insights     `json:"insights"`
}

// StatsTotals mirrors ProductCounters for the response payload.
type StatsTotals struct {
	TotalViews    int64   `json:"totalViews"`
	UniqueViewers int64   `json:"uniqueViewers"`
	AvgDuration   float64 `json:"avgDuration"`
}

// DailyCount is one day in the zero-filled, date-ascending daily series.
// Date is the UTC day formatted as 2006-01-02.
type DailyCount struct {
	Date        string `json:"date"`
	Count       int64  `json:"count"`
	UniqueCount int64  `json:"uniqueCount"`
}

// DeviceStat is one device bucket over the window. Percentages across a
// breakdown sum to exactly 100.0 when the window total is positive.
type DeviceStat struct {
	Device      Device  `json:"device"`
	Count       int64   `json:"count"`
	UniqueCount int64   `json:"uniqueCount"`
	Percentage  float64 `json:"percentage"`
}

// SourceStat is one traffic-source bucket over the window.
type SourceStat struct {
	Source     Source  `json:"source"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// GeoStat is one country bucket over the window.
type GeoStat struct {
	Country    string  `json:"country"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Reliability flags the confidence of the insight set.
type Reliability string

const (
	ReliabilityNormal Reliability = "normal"
	ReliabilityLow    Reliability = "low"
)

// Insights is the short list of human-readable findings for a product.
type Insights struct {
	Summary     []string    `json:"summary"`
	Reliability Reliability `json:"reliability"`
}
