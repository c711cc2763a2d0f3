// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

// blockingService runs until its context is canceled and signals start.
type blockingService struct {
	started chan struct{}
}

func newBlockingService() *blockingService {
	return &blockingService{started: make(chan struct{})}
}

func (s *blockingService) Serve(ctx context.Context) error {
	select {
	case <-s.started:
	default:
		close(s.started)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *blockingService) String() string { return "blocking-service" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTreeDefaults(t *testing.T) {
	tree := NewTree(testLogger(), TreeConfig{})

	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %v, want 5.0", tree.config.FailureThreshold)
	}
	if tree.config.FailureDecay != 30.0 {
		t.Errorf("FailureDecay = %v, want 30.0", tree.config.FailureDecay)
	}
	if tree.config.FailureBackoff != 15*time.Second {
		t.Errorf("FailureBackoff = %v, want 15s", tree.config.FailureBackoff)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", tree.config.ShutdownTimeout)
	}
}

func TestTreeRunsServicesInAllLayers(t *testing.T) {
	tree := NewTree(testLogger(), DefaultTreeConfig())

	data := newBlockingService()
	messaging := newBlockingService()
	api := newBlockingService()

	tree.AddDataService(data)
	tree.AddMessagingService(messaging)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	for _, svc := range []*blockingService{data, messaging, api} {
		select {
		case <-svc.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("%s never started", svc)
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("tree returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
}

func TestTreeRestartsCrashedService(t *testing.T) {
	cfg := DefaultTreeConfig()
	cfg.FailureBackoff = 10 * time.Millisecond
	tree := NewTree(testLogger(), cfg)

	serves := make(chan struct{}, 8)
	crashes := 0
	tree.AddDataService(&crashingService{serves: serves, crashes: &crashes})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	// The service crashes twice before settling; it must be served at
	// least three times.
	for i := 0; i < 3; i++ {
		select {
		case <-serves:
		case <-time.After(2 * time.Second):
			t.Fatalf("service served %d times, want at least 3", i)
		}
	}

	cancel()
	<-errCh
}

type crashingService struct {
	serves  chan struct{}
	crashes *int
}

func (s *crashingService) Serve(ctx context.Context) error {
	s.serves <- struct{}{}
	if *s.crashes < 2 {
		*s.crashes++
		return errors.New("transient failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *crashingService) String() string { return "crashing-service" }
