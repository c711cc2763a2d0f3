// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package models

import (
	"testing"
	"time"
)

func TestParseDevice(t *testing.T) {
	tests := []struct {
		input string
		want  Device
	}{
		{"mobile", DeviceMobile},
		{"Tablet", DeviceTablet},
		{" desktop ", DeviceDesktop},
		{"other", DeviceOther},
		{"smartwatch", DeviceOther},
		{"", DeviceOther},
	}

	for _, tt := range tests {
		if got := ParseDevice(tt.input); got != tt.want {
			t.Errorf("ParseDevice(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseSourceClosedSet(t *testing.T) {
	tests := []struct {
		input string
		want  Source
	}{
		{"direct", SourceDirect},
		{"search", SourceSearch},
		{"social", SourceSocial},
		{"recommendation_feed", SourceRecommendationFeed},
		{"recommendation_similar", SourceRecommendationSimilar},
		{"newsletter", SourceOther},
		{"", SourceOther},
		{"DIRECT", SourceDirect},
	}

	for _, tt := range tests {
		if got := ParseSource(tt.input); got != tt.want {
			t.Errorf("ParseSource(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestClampDuration(t *testing.T) {
	tests := []struct {
		input, want int
	}{
		{-5, 0},
		{0, 0},
		{120, 120},
		{3600, 3600},
		{3601, 3600},
		{999999, 3600},
	}

	for _, tt := range tests {
		if got := ClampDuration(tt.input); got != tt.want {
			t.Errorf("ClampDuration(%d) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestViewerIdentityPrefersUserID(t *testing.T) {
	e := &ViewEvent{UserID: "user-1", Fingerprint: "fp-1"}
	if got := e.ViewerIdentity(); got != "user-1" {
		t.Errorf("ViewerIdentity() = %q, want user-1", got)
	}

	e = &ViewEvent{Fingerprint: "fp-1"}
	if got := e.ViewerIdentity(); got != "fp-1" {
		t.Errorf("ViewerIdentity() = %q, want fp-1", got)
	}
}

func TestSealed(t *testing.T) {
	now := time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		day  time.Time
		want bool
	}{
		{"current day is live", time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC), false},
		{"previous day is live", time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), false},
		{"two days back is sealed", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"old day is sealed", time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sealed(tt.day, now); got != tt.want {
				t.Errorf("Sealed(%v, %v) = %v, want %v", tt.day, now, got, tt.want)
			}
		})
	}
}

func TestViewEventDay(t *testing.T) {
	e := &ViewEvent{CreatedAt: time.Date(2024, 1, 15, 23, 59, 59, 0, time.UTC)}
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if got := e.Day(); !got.Equal(want) {
		t.Errorf("Day() = %v, want %v", got, want)
	}
}
