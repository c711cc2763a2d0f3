// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/launchdeck/viewtrack/internal/logging"
	"github.com/launchdeck/viewtrack/internal/metrics"
)

// topicGCAge is how long a topic with no subscribers survives before its
// state (including the sequence counter) is collected.
const topicGCAge = 60 * time.Second

// topic holds the per-topic fanout state. seq is protected by the hub lock;
// a topic that is garbage collected restarts at 1 when recreated.
type topic struct {
	seq         uint64
	subscribers map[*Client]bool
	emptySince  time.Time
}

// Hub maintains connected clients and per-topic subscriptions.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	topics  map[string]*topic

	Register   chan *Client
	Unregister chan *Client

	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		topics:     make(map[string]*topic),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Done is closed when the hub's lifecycle loop has exited. Client pumps
// select on it so they never block on Register or Unregister after shutdown.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// RunWithContext runs the hub's client lifecycle and topic GC loops until
// the context is canceled. Designed for suture supervision.
func (h *Hub) RunWithContext(ctx context.Context) error {
	gc := time.NewTicker(10 * time.Second)
	defer gc.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			h.stopOnce.Do(func() { close(h.done) })
			logging.Info().
				Str("component", "notify-hub").
				Msg("notification hub stopped")
			return ctx.Err()

		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))
			logging.Info().Int("total_clients", total).Msg("websocket client connected")

		case client := <-h.Unregister:
			h.removeClient(client)

		case <-gc.C:
			h.collectIdleTopics(time.Now())
		}
	}
}

// Subscribe adds the client to a topic, creating the topic if needed.
func (h *Hub) Subscribe(c *Client, name string) {
	if name == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[name]
	if !ok {
		t = &topic{subscribers: make(map[*Client]bool)}
		h.topics[name] = t
	}
	t.subscribers[c] = true
	t.emptySince = time.Time{}
	c.topics[name] = true
	metrics.TopicSubscriptions.Inc()
}

// Unsubscribe removes the client from a topic. The topic sticks around for
// topicGCAge in case subscribers come back, keeping its sequence intact.
func (h *Hub) Unsubscribe(c *Client, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(c, name)
}

func (h *Hub) unsubscribeLocked(c *Client, name string) {
	t, ok := h.topics[name]
	if !ok {
		return
	}
	if t.subscribers[c] {
		delete(t.subscribers, c)
		delete(c.topics, name)
		metrics.TopicSubscriptions.Dec()
	}
	if len(t.subscribers) == 0 {
		t.emptySince = time.Now()
	}
}

// Publish assigns the next sequence number on the topic and fans the frame
// out to its subscribers. Publishing to a topic nobody has subscribed to is
// a no-op. Slow clients are skipped, never waited on.
func (h *Hub) Publish(topicName, event string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[topicName]
	if !ok {
		return
	}

	t.seq++
	frame := Frame{Topic: topicName, Seq: t.seq, Event: event, Data: data}
	metrics.NotificationsSent.WithLabelValues(event).Inc()

	// Deterministic delivery order: fan out by client id.
	subs := make([]*Client, 0, len(t.subscribers))
	for c := range t.subscribers {
		subs = append(subs, c)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })

	for _, c := range subs {
		select {
		case c.send <- frame:
		default:
			metrics.NotificationsDropped.Inc()
		}
	}
}

// removeClient drops a client from every topic it was subscribed to.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		for name := range c.topics {
			h.unsubscribeLocked(c, name)
		}
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

// collectIdleTopics drops topics that have had no subscribers for
// topicGCAge. Their sequence counters reset with them.
func (h *Hub) collectIdleTopics(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for name, t := range h.topics {
		if len(t.subscribers) == 0 && !t.emptySince.IsZero() && now.Sub(t.emptySince) >= topicGCAge {
			delete(h.topics, name)
			logging.Debug().Str("topic", name).Msg("collected idle topic")
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, c := range clients {
		close(c.send)
		delete(h.clients, c)
	}
	metrics.WebSocketClients.Set(0)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TopicCount returns the number of live topics, subscribed or idle.
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}
