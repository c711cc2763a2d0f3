// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

// Package insights derives a short list of human-readable findings from a
// product's analytics window. The rules are deterministic: the same
// aggregates always produce the same sentences, so responses stay cacheable.
package insights

import (
	"fmt"

	"github.com/launchdeck/viewtrack/internal/models"
)

// MaxInsights caps the summary list length.
const MaxInsights = 4

// Change percentages are clamped to this range before formatting.
const (
	minChangePct = -100.0
	maxChangePct = 1000.0
)

// steadyBandPct is the absolute change below which the trend reads as steady.
const steadyBandPct = 10.0

// Window carries everything the generator needs about one analytics window:
// the zero-filled current and previous daily series, the lifetime average
// view duration, and the source breakdown over the current window.
type Window struct {
	Days        int
	Daily       []models.DailyCount
	Previous    []models.DailyCount
	AvgDuration float64
	Sources     []models.SourceStat
}

// Generate runs the rule set against a window and returns at most
// MaxInsights findings. It never fails; sparse data degrades the output
// rather than erroring.
func Generate(w Window) models.Insights {
	out := models.Insights{Reliability: models.ReliabilityNormal}

	curTotal, curDataDays := seriesTotals(w.Daily)
	prevTotal, prevDataDays := seriesTotals(w.Previous)

	out.Summary = append(out.Summary, trendInsight(w, curTotal, curDataDays, prevTotal, prevDataDays))

	if s := engagementInsight(w.AvgDuration); s != "" {
		out.Summary = append(out.Summary, s)
	}
	if s := sourceInsight(w.Sources); s != "" {
		out.Summary = append(out.Summary, s)
	}
	if s := peakDayInsight(w.Daily, curTotal); s != "" {
		out.Summary = append(out.Summary, s)
	}

	if sparse(curDataDays, w.Days) || sparse(prevDataDays, w.Days) {
		out.Summary = append(out.Summary, "Limited historical data")
		out.Reliability = models.ReliabilityLow
	}

	if len(out.Summary) > MaxInsights {
		out.Summary = out.Summary[:MaxInsights]
	}
	return out
}

// ChangePercent computes the period-over-period change. A previous total of
// zero with current activity reports the +100% cap; two empty windows report
// zero. When either window has data on fewer than half its days, daily
// averages over the days with data stand in for the totals.
func ChangePercent(curTotal, prevTotal int64, curDataDays, prevDataDays, windowDays int) float64 {
	cur := float64(curTotal)
	prev := float64(prevTotal)

	half := windowDays / 2
	if curDataDays < half || prevDataDays < half {
		if curDataDays > 0 {
			cur = float64(curTotal) / float64(curDataDays)
		}
		if prevDataDays > 0 {
			prev = float64(prevTotal) / float64(prevDataDays)
		}
	}

	var change float64
	switch {
	case prev > 0:
		change = (cur - prev) / prev * 100
	case cur > 0:
		change = 100
	default:
		return 0
	}

	if change < minChangePct {
		return minChangePct
	}
	if change > maxChangePct {
		return maxChangePct
	}
	return change
}

func trendInsight(w Window, curTotal int64, curDataDays int, prevTotal int64, prevDataDays int) string {
	if prevTotal == 0 {
		if nonZeroDays(w.Daily) >= 3 {
			return "Views are trending upward (+100.0%)"
		}
		return "New product with limited history"
	}

	change := ChangePercent(curTotal, prevTotal, curDataDays, prevDataDays, w.Days)
	switch {
	case change >= steadyBandPct:
		return fmt.Sprintf("Views are trending upward (+%.1f%%)", change)
	case change <= -steadyBandPct:
		// U+2212 minus, matching the published insight wording.
		return fmt.Sprintf("Views are trending downward (−%.1f%%)", -change)
	default:
		return "Views are steady"
	}
}

func engagementInsight(avgDuration float64) string {
	switch {
	case avgDuration <= 0:
		return ""
	case avgDuration >= 180:
		return "Viewers spend significant time on this product"
	case avgDuration >= 60:
		return "Viewers show good engagement"
	default:
		return "Most visits are brief"
	}
}

func sourceInsight(sources []models.SourceStat) string {
	if len(sources) == 0 {
		return ""
	}
	// breakdowns arrive sorted by count descending
	top := sources[0]
	if top.Percentage >= 50 {
		return fmt.Sprintf("Most traffic comes from %s (%.1f%%)", sourceLabel(top.Source), top.Percentage)
	}
	return "Traffic is well distributed across sources"
}

func peakDayInsight(daily []models.DailyCount, total int64) string {
	if len(daily) == 0 || total == 0 {
		return ""
	}

	peak := daily[0]
	for _, d := range daily[1:] {
		if d.Count > peak.Count {
			peak = d
		}
	}

	avg := float64(total) / float64(len(daily))
	if float64(peak.Count) < 2*avg {
		return ""
	}
	return fmt.Sprintf("Peak day: %s with %d views", peak.Date, peak.Count)
}

// sourceLabel maps the closed source set to display labels.
func sourceLabel(s models.Source) string {
	switch s {
	case models.SourceDirect:
		return "direct visits"
	case models.SourceSearch:
		return "search"
	case models.SourceSocial:
		return "social media"
	case models.SourceRecommendationFeed:
		return "the recommendation feed"
	case models.SourceRecommendationSimilar:
		return "similar-product recommendations"
	default:
		return "other sources"
	}
}

func seriesTotals(daily []models.DailyCount) (total int64, dataDays int) {
	for _, d := range daily {
		total += d.Count
		if d.Count > 0 {
			dataDays++
		}
	}
	return total, dataDays
}

func nonZeroDays(daily []models.DailyCount) int {
	_, n := seriesTotals(daily)
	return n
}

// sparse reports whether fewer than 30% of a window's days carry data.
func sparse(dataDays, windowDays int) bool {
	if windowDays <= 0 {
		return false
	}
	return float64(dataDays) < 0.3*float64(windowDays)
}
