// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the registration service's HTTP handlers:
// the public event and registration API, public content, the admin
// surface, and the live analytics feed.
package handlers

import (
	"log/slog"

	"github.com/foundersday/platform/services/registration/datatypes"
	"github.com/foundersday/platform/services/registration/observability"
	"github.com/foundersday/platform/services/registration/storage"
)

// Publisher pushes events onto the live dashboard feed.
type Publisher interface {
	Publish(event datatypes.FeedEvent)
}

// Handlers carries the dependencies shared by all HTTP handlers.
type Handlers struct {
	store     *storage.Store
	metrics   *observability.Metrics
	publisher Publisher
	logger    *slog.Logger
}

// New wires the handler set. metrics and publisher may be nil.
func New(store *storage.Store, metrics *observability.Metrics, publisher Publisher, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		store:     store,
		metrics:   metrics,
		publisher: publisher,
		logger:    logger,
	}
}

func (h *Handlers) publish(event datatypes.FeedEvent) {
	if h.publisher != nil {
		h.publisher.Publish(event)
	}
}
