// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

// Package api is the HTTP boundary: view ingress, history and analytics
// reads, summary-action rebroadcast, the websocket subscribe channel, and
// health. Routing is chi; every response uses the standard JSON envelope.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/launchdeck/viewtrack/internal/auth"
	"github.com/launchdeck/viewtrack/internal/config"
	"github.com/launchdeck/viewtrack/internal/history"
	"github.com/launchdeck/viewtrack/internal/identity"
	"github.com/launchdeck/viewtrack/internal/ingest"
	"github.com/launchdeck/viewtrack/internal/middleware"
	"github.com/launchdeck/viewtrack/internal/notify"
	"github.com/launchdeck/viewtrack/internal/query"
	"github.com/launchdeck/viewtrack/internal/store"
)

// EventPublisher is the slice of the pipeline publisher the ingress needs.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
}

// Resealer recomputes a sealed day on operator request.
type Resealer interface {
	Reseal(ctx context.Context, productID string, day time.Time) error
}

// BrokerHealth reports whether the event broker is up. Nil means the broker
// is external and not health-checked here.
type BrokerHealth interface {
	IsRunning() bool
}

// Server holds the handler dependencies.
type Server struct {
	cfg          config.Config
	db           *store.DB
	publisher    EventPublisher
	ingestor     *ingest.Ingestor
	handles      *ingest.Handles
	hub          *notify.Hub
	historySvc   *history.Service
	statsSvc     *query.Service
	resealer     Resealer
	verifier     *auth.Verifier
	fingerprints *identity.Fingerprinter
	geo          identity.GeoResolver
	broker       BrokerHealth
	limiter      *viewLimiter
	now          func() time.Time
}

// Deps bundles the collaborators the server routes to.
type Deps struct {
	DB           *store.DB
	Publisher    EventPublisher
	Ingestor     *ingest.Ingestor
	Handles      *ingest.Handles
	Hub          *notify.Hub
	History      *history.Service
	Stats        *query.Service
	Resealer     Resealer
	Verifier     *auth.Verifier
	Fingerprints *identity.Fingerprinter
	Geo          identity.GeoResolver
	Broker       BrokerHealth
}

// NewServer wires the HTTP server.
func NewServer(cfg config.Config, deps Deps) *Server {
	geo := deps.Geo
	if geo == nil {
		geo = identity.NoopGeoResolver{}
	}
	return &Server{
		cfg:          cfg,
		db:           deps.DB,
		publisher:    deps.Publisher,
		ingestor:     deps.Ingestor,
		handles:      deps.Handles,
		hub:          deps.Hub,
		historySvc:   deps.History,
		statsSvc:     deps.Stats,
		resealer:     deps.Resealer,
		verifier:     deps.Verifier,
		fingerprints: deps.Fingerprints,
		geo:          geo,
		broker:       deps.Broker,
		limiter: newViewLimiter(
			cfg.Security.ViewRatePerMin,
			cfg.Security.ViewRateBurst,
		),
		now: time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// Routes builds the full route tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-None-Match", "X-Request-ID"},
		ExposedHeaders:   []string{"ETag", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.PrometheusMetrics)
	r.Use(s.verifier.Middleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/health", func(r chi.Router) {
			r.Get("/live", s.healthLive)
			r.Get("/ready", s.healthReady)
		})

		r.Group(func(r chi.Router) {
			if s.cfg.Security.RateLimitReqs > 0 {
				r.Use(httprate.LimitByIP(
					s.cfg.Security.RateLimitReqs,
					s.cfg.Security.RateLimitWindow,
				))
			}

			r.Post("/views", s.recordViewStart)
			r.Patch("/views/{handle}", s.recordViewEnd)
			r.Get("/views/history", s.viewHistory)

			r.Route("/products/{id}", func(r chi.Router) {
				r.Get("/view-stats", s.viewStats)
				r.Post("/actions", s.summaryAction)
				r.Post("/notify-update", s.notifyUpdate)
				r.Post("/reseal", s.reseal)
			})

			r.Get("/ws", s.websocket)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
