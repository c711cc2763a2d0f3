// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)

	logger := slog.New(NewSlogHandlerWithLogger(zl))
	logger.Info("service started", "service", "http", "attempt", int64(2))

	out := buf.String()
	for _, want := range []string{`"level":"info"`, `"service":"http"`, `"attempt":2`, "service started"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestSlogHandlerLevels(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelDebug, `"level":"debug"`},
		{slog.LevelInfo, `"level":"info"`},
		{slog.LevelWarn, `"level":"warn"`},
		{slog.LevelError, `"level":"error"`},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		zl := zerolog.New(&buf).Level(zerolog.TraceLevel)

		logger := slog.New(NewSlogHandlerWithLogger(zl))
		logger.Log(t.Context(), tt.level, "msg")

		if !strings.Contains(buf.String(), tt.want) {
			t.Errorf("level %v: output missing %s: %s", tt.level, tt.want, buf.String())
		}
	}
}

func TestSlogHandlerEnabledRespectsZerologLevel(t *testing.T) {
	zl := zerolog.New(nil).Level(zerolog.WarnLevel)
	h := NewSlogHandlerWithLogger(zl)

	if h.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
	if !h.Enabled(t.Context(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestSlogHandlerWithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)

	logger := slog.New(NewSlogHandlerWithLogger(zl)).
		With("component", "supervisor").
		WithGroup("restart")
	logger.Warn("service restarting", "backoff", 15*time.Second)

	out := buf.String()
	if !strings.Contains(out, `"restart.component":"supervisor"`) && !strings.Contains(out, `"component":"supervisor"`) {
		t.Errorf("output missing component attr: %s", out)
	}
	if !strings.Contains(out, `"restart.backoff"`) {
		t.Errorf("output missing grouped backoff attr: %s", out)
	}
}
