// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

// Package main is the entry point for the Viewtrack server.
//
// Viewtrack records product page views, deduplicates them into unique-view
// counts over a 24h window, rolls them up into daily per-product aggregates,
// and serves analytics, per-user view history, and real-time count updates
// over websockets.
//
// The server initializes components in this order:
//
//  1. Configuration: layered defaults, YAML file, environment (Koanf v2)
//  2. DuckDB store: raw event log, rollups, history index
//  3. Badger dedup store: the 24h unique-view window
//  4. NATS JetStream: embedded by default, external via NATS_URL
//  5. Watermill pipeline: ingress topic -> ingestor -> applied topic -> aggregator
//  6. Notification hub, query and history services, HTTP API
//  7. Supervisor tree: everything above runs under suture supervision
//
// Shutdown is graceful on SIGINT and SIGTERM: the HTTP server drains
// connections, the router closes its subscriptions, and the embedded broker
// flushes JetStream state, each bounded by the supervisor's 10s timeout.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/launchdeck/viewtrack/internal/aggregate"
	"github.com/launchdeck/viewtrack/internal/api"
	"github.com/launchdeck/viewtrack/internal/auth"
	"github.com/launchdeck/viewtrack/internal/config"
	"github.com/launchdeck/viewtrack/internal/dedup"
	"github.com/launchdeck/viewtrack/internal/history"
	"github.com/launchdeck/viewtrack/internal/identity"
	"github.com/launchdeck/viewtrack/internal/ingest"
	"github.com/launchdeck/viewtrack/internal/logging"
	"github.com/launchdeck/viewtrack/internal/notify"
	"github.com/launchdeck/viewtrack/internal/pipeline"
	"github.com/launchdeck/viewtrack/internal/query"
	"github.com/launchdeck/viewtrack/internal/store"
	"github.com/launchdeck/viewtrack/internal/supervisor"
	"github.com/launchdeck/viewtrack/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Bool("embedded_nats", cfg.NATS.EmbeddedServer).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Viewtrack")

	db, err := store.New(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open analytics store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing analytics store")
		}
	}()

	dedupStore, err := dedup.Open(dedup.Config{
		Path:              cfg.Dedup.Path,
		Window:            cfg.Dedup.Window,
		AuthenticatedOnly: cfg.Dedup.AuthenticatedOnly,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open dedup store")
	}
	defer func() {
		if err := dedupStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing dedup store")
		}
	}()

	// The embedded broker starts before the publisher so the client URL is
	// known; an external NATS deployment just sets NATS_URL instead.
	var broker *pipeline.EmbeddedServer
	if cfg.NATS.EmbeddedServer {
		broker, err = pipeline.NewEmbeddedServer(cfg.NATS)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
		}
		cfg.NATS.URL = broker.ClientURL()
		logging.Info().Str("url", cfg.NATS.URL).Msg("Embedded NATS server ready")
	}

	backlog := pipeline.NewBacklog(cfg.NATS.MaxQueueDepth)

	publisher, err := pipeline.NewPublisher(cfg.NATS, backlog, nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event publisher")
		}
	}()

	subscriber, err := pipeline.NewSubscriber(cfg.NATS, nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event subscriber")
	}
	defer func() {
		if err := subscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event subscriber")
		}
	}()

	hub := notify.NewHub()
	ingestor := ingest.NewIngestor(db, dedupStore, hub, backlog)
	aggregator := aggregate.NewAggregator(db)

	router, err := pipeline.NewRouter(cfg.NATS, publisher.WatermillPublisher(), nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event router")
	}
	router.AddHandler(
		"view-ingestor",
		pipeline.TopicViewIngest, subscriber.WatermillSubscriber(),
		pipeline.TopicViewApplied, publisher.WatermillPublisher(),
		ingestor.Handle,
	)
	router.AddConsumerHandler(
		"rollup-aggregator",
		pipeline.TopicViewApplied, subscriber.WatermillSubscriber(),
		aggregator.Handle,
	)

	handles := ingest.NewHandles()
	defer handles.Close()

	var geo identity.GeoResolver
	if cfg.Identity.GeoTablePath != "" {
		geo, err = identity.LoadGeoTable(cfg.Identity.GeoTablePath)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Identity.GeoTablePath).
				Msg("Failed to load geography table")
		}
		logging.Info().Str("path", cfg.Identity.GeoTablePath).Msg("Geography table loaded")
	} else {
		logging.Info().Msg("No geography table configured, countries will be unattributed")
	}

	fingerprints := identity.NewFingerprinter(
		cfg.Identity.FingerprintSecret, cfg.Identity.FingerprintRotation)

	statsSvc := query.NewService(db, cfg.Stats.CacheTTL)
	defer statsSvc.Close()

	historySvc := history.NewService(db)
	reconciler := aggregate.NewReconciler(db, cfg.Aggregate.ReconcileInterval)

	apiServer := api.NewServer(*cfg, api.Deps{
		DB:           db,
		Publisher:    publisher,
		Ingestor:     ingestor,
		Handles:      handles,
		Hub:          hub,
		History:      historySvc,
		Stats:        statsSvc,
		Resealer:     reconciler,
		Verifier:     auth.NewVerifier(cfg.Security.JWTSecret),
		Fingerprints: fingerprints,
		Geo:          geo,
		Broker:       brokerHealth(broker),
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      apiServer.Routes(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddDataService(services.NewDedupGCService(dedupStore, 0))
	tree.AddDataService(reconciler)

	if broker != nil {
		tree.AddMessagingService(services.NewBrokerService(broker, 10*time.Second))
	}
	tree.AddMessagingService(services.NewRouterService(router))
	tree.AddMessagingService(services.NewHubService(hub))

	tree.AddAPIService(services.NewHTTPServerService(httpServer, 10*time.Second))
	logging.Info().Str("addr", httpServer.Addr).Msg("HTTP server added to supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Viewtrack stopped")
}

// brokerHealth avoids handing the API a typed nil when NATS is external.
func brokerHealth(broker *pipeline.EmbeddedServer) api.BrokerHealth {
	if broker == nil {
		return nil
	}
	return broker
}
