// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/launchdeck/viewtrack/internal/logging"
	"github.com/launchdeck/viewtrack/internal/notify"
)

// websocket upgrades the connection and hands it to the notification hub.
// Subscriptions arrive as {op, productId} commands on the socket itself.
func (s *Server) websocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkWSOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := notify.NewClient(s.hub, conn)
	select {
	case s.hub.Register <- client:
		client.Start()
	case <-s.hub.Done():
		_ = conn.Close()
	}
}

// checkWSOrigin applies the CORS origin list to websocket upgrades. Requests
// without an Origin header (non-browser clients) are allowed.
func (s *Server) checkWSOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
