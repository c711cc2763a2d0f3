// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/launchdeck/viewtrack/internal/cache"
	"github.com/launchdeck/viewtrack/internal/config"
	"github.com/launchdeck/viewtrack/internal/metrics"
)

// Backlog approximates the number of in-flight ingest messages. The
// publisher increments it, the ingestor decrements it as messages are
// processed, and the sliding window forgets stalls older than a minute.
//
// Raw event publishes are never shed; when the backlog is over its ceiling
// the ingestor skips its downstream publishes instead.
type Backlog struct {
	counter *cache.SlidingWindowCounter
	max     int64
}

// NewBacklog creates a backlog gauge with the given shed ceiling. A ceiling
// of zero disables shedding.
func NewBacklog(max int64) *Backlog {
	return &Backlog{
		counter: cache.NewSlidingWindowCounter(time.Minute, 12),
		max:     max,
	}
}

// Published records one queued message.
func (b *Backlog) Published() {
	b.counter.Increment(1)
	metrics.IngestQueueDepth.Set(float64(b.Depth()))
}

// Processed records one consumed message.
func (b *Backlog) Processed() {
	b.counter.Increment(-1)
	metrics.IngestQueueDepth.Set(float64(b.Depth()))
}

// Depth returns the current backlog estimate, clamped at zero.
func (b *Backlog) Depth() int64 {
	if d := b.counter.Count(); d > 0 {
		return d
	}
	return 0
}

// Full reports whether downstream publishes should be shed.
func (b *Backlog) Full() bool {
	return b.max > 0 && b.Depth() >= b.max
}

// Publisher is the JetStream publisher for view events, with circuit
// breaker protection and backpressure shedding.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[any]
	backlog   *Backlog

	mu     sync.RWMutex
	closed bool
}

// NewPublisher creates the resilient Watermill NATS publisher.
func NewPublisher(cfg config.NATSConfig, backlog *Backlog, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = NewLoggerAdapter()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true, // event id doubles as the dedup id
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("creating watermill publisher: %w", err)
	}

	return &Publisher{
		publisher: pub,
		backlog:   backlog,
		breaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:    "nats-publisher",
			Timeout: 15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}, nil
}

// Publish sends a message. The message UUID is set as Nats-Msg-Id so
// JetStream deduplicates redelivered publishes.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("publisher is closed")
	}
	p.mu.RUnlock()

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}

	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(topic, msg)
	})
	if err != nil {
		return err
	}

	if topic == TopicViewIngest && p.backlog != nil {
		p.backlog.Published()
	}
	return nil
}

// WatermillPublisher exposes the native publisher for router middleware
// such as the poison queue.
func (p *Publisher) WatermillPublisher() message.Publisher {
	return p.publisher
}

// Close gracefully shuts down the publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
