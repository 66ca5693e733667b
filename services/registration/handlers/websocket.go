// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/foundersday/platform/services/registration/datatypes"
	"github.com/foundersday/platform/services/registration/observability"
)

const (
	// feedBuffer is the per-client send buffer. A client that falls this
	// far behind is dropped rather than allowed to stall the hub.
	feedBuffer = 32

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// FeedHub fans registration and webhook events out to connected
// dashboard websockets. Publish never blocks: slow clients are
// disconnected instead of backpressuring the pipeline.
type FeedHub struct {
	mu      sync.Mutex
	clients map[chan datatypes.FeedEvent]struct{}
	closed  bool

	metrics  *observability.Metrics
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewFeedHub creates a hub. metrics may be nil.
func NewFeedHub(metrics *observability.Metrics, logger *slog.Logger) *FeedHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedHub{
		clients: make(map[chan datatypes.FeedEvent]struct{}),
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The route sits behind admin auth; origin checks add nothing.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Publish sends an event to every connected client. Clients whose
// buffers are full miss the event.
func (h *FeedHub) Publish(event datatypes.FeedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close disconnects all clients. New connections are refused after.
func (h *FeedHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.clients {
		close(ch)
		delete(h.clients, ch)
	}
}

// ClientCount returns the number of connected clients.
func (h *FeedHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *FeedHub) register() (chan datatypes.FeedEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan datatypes.FeedEvent, feedBuffer)
	h.clients[ch] = struct{}{}
	return ch, true
}

func (h *FeedHub) unregister(ch chan datatypes.FeedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

// ServeWS handles GET /v1/admin/analytics/ws, upgrading to a websocket
// that streams FeedEvent JSON messages.
func (h *FeedHub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	ch, ok := h.register()
	if !ok {
		conn.Close()
		return
	}
	if h.metrics != nil {
		h.metrics.DashboardOpened()
	}
	h.logger.Info("dashboard connected", slog.String("remote", conn.RemoteAddr().String()))

	go h.writePump(conn, ch)
	h.readPump(conn, ch)
}

// readPump discards inbound messages and tears the client down when the
// connection drops.
func (h *FeedHub) readPump(conn *websocket.Conn, ch chan datatypes.FeedEvent) {
	defer func() {
		h.unregister(ch)
		conn.Close()
		if h.metrics != nil {
			h.metrics.DashboardClosed()
		}
		h.logger.Info("dashboard disconnected", slog.String("remote", conn.RemoteAddr().String()))
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump streams feed events and keepalive pings to one client.
func (h *FeedHub) writePump(conn *websocket.Conn, ch chan datatypes.FeedEvent) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
