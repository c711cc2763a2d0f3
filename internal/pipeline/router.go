// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/launchdeck/viewtrack/internal/config"
)

// Router wraps the Watermill router with the middleware stack every
// consumer shares: panic recovery, exponential backoff retry, and poison
// queue routing after retries are exhausted.
type Router struct {
	router *message.Router
}

// NewRouter builds the router. Failed messages are retried RetryCount times
// with exponential backoff starting at RetryInterval (1s, 2s, 4s with the
// defaults), then routed to the poison topic.
func NewRouter(cfg config.NATSConfig, poisonPublisher message.Publisher, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = NewLoggerAdapter()
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating watermill router: %w", err)
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryCount,
		InitialInterval: cfg.RetryInterval,
		MaxInterval:     time.Minute,
		Multiplier:      2.0,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	if poisonPublisher != nil {
		poison, err := middleware.PoisonQueue(poisonPublisher, TopicPoison)
		if err != nil {
			return nil, fmt.Errorf("creating poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poison)
	}

	return &Router{router: wmRouter}, nil
}

// AddHandler registers a handler that consumes one topic and publishes to
// another.
func (r *Router) AddHandler(name, subscribeTopic string, subscriber message.Subscriber, publishTopic string, publisher message.Publisher, handler message.HandlerFunc) {
	r.router.AddHandler(name, subscribeTopic, subscriber, publishTopic, publisher, handler)
}

// AddConsumerHandler registers a handler with no output topic.
func (r *Router) AddConsumerHandler(name, subscribeTopic string, subscriber message.Subscriber, handler message.NoPublishHandlerFunc) {
	r.router.AddConsumerHandler(name, subscribeTopic, subscriber, handler)
}

// Run starts the router and blocks until the context is canceled.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel that closes once the router is running.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close gracefully stops the router.
func (r *Router) Close() error {
	return r.router.Close()
}
