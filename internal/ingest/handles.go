// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package ingest

import (
	"time"

	"github.com/google/uuid"

	"github.com/launchdeck/viewtrack/internal/cache"
)

// HandleTTL is how long a view handle stays resolvable. A view session
// longer than this simply loses its end-of-view update.
const HandleTTL = time.Hour

// Handles maps opaque view handles to event ids. The handle is returned to
// the client on ingress so the end-of-view update cannot address arbitrary
// events.
type Handles struct {
	cache *cache.TTL[string]
}

// NewHandles creates the handle registry.
func NewHandles() *Handles {
	return &Handles{cache: cache.NewTTL[string](HandleTTL)}
}

// Create mints a handle for an event id.
func (h *Handles) Create(eventID string) string {
	handle := uuid.NewString()
	h.cache.Set(handle, eventID)
	return handle
}

// Resolve returns the event id for a handle, if it is still live.
func (h *Handles) Resolve(handle string) (string, bool) {
	return h.cache.Get(handle)
}

// Close stops the registry's cleanup goroutine.
func (h *Handles) Close() {
	h.cache.Close()
}
