// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package webhooks

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/foundersday/platform/services/registration/observability"
	"github.com/foundersday/platform/services/registration/storage"
)

// MaxBodyBytes caps delivery bodies. Square payloads are small; anything
// past 1 MiB is not a webhook.
const MaxBodyBytes = 1 << 20

// DefaultIdempotencyTTL is how long an event id stays in the seen set.
// Square retries for up to 72 hours, so markers live at least that long.
const DefaultIdempotencyTTL = 72 * time.Hour

// Handler is the HTTP ingestion endpoint for Square webhook deliveries.
//
// Pipeline, in order: read (capped), verify signature, parse envelope,
// dedupe by event id, enqueue. Each stage maps to a response the
// provider understands:
//
//	401  signature mismatch (no retry useful)
//	400  malformed body
//	200  duplicate event id (acknowledged, not re-enqueued)
//	503  queue full (provider retries later)
//	202  accepted for processing
type Handler struct {
	verifier *Verifier
	queue    *Queue
	store    *storage.Store
	metrics  *observability.Metrics
	logger   *slog.Logger
	seenTTL  time.Duration
}

// NewHandler wires the ingestion endpoint. A zero seenTTL falls back to
// DefaultIdempotencyTTL; metrics may be nil.
func NewHandler(verifier *Verifier, queue *Queue, store *storage.Store,
	metrics *observability.Metrics, logger *slog.Logger, seenTTL time.Duration) *Handler {
	if seenTTL <= 0 {
		seenTTL = DefaultIdempotencyTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		verifier: verifier,
		queue:    queue,
		store:    store,
		metrics:  metrics,
		logger:   logger,
		seenTTL:  seenTTL,
	}
}

// Receive handles POST /webhooks/square.
func (h *Handler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxBodyBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	if len(body) > MaxBodyBytes {
		h.record("low", observability.DispositionRejectedPayload)
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
		return
	}

	if err := h.verifier.Verify(c.GetHeader(SignatureHeader), body); err != nil {
		h.record("low", observability.DispositionRejectedSignature)
		h.logger.Warn("webhook signature rejected",
			slog.String("remote", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	env, err := ParseEnvelope(body)
	if err != nil {
		h.record("low", observability.DispositionRejectedPayload)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tier := PriorityFor(env.Type)

	first, err := h.store.FirstSeen(c.Request.Context(), env.EventID, h.seenTTL)
	if err != nil {
		h.logger.Error("idempotency check failed",
			slog.String("event_id", env.EventID),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !first {
		// Already seen: acknowledge so the provider stops redelivering,
		// but do not enqueue again.
		h.record(tier.String(), observability.DispositionDuplicate)
		h.count(c.Request.Context(), "webhooks_duplicates")
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	err = h.queue.Enqueue(Job{Envelope: env, Priority: tier})
	if err != nil {
		// Shed load. The marker set above would make the provider's
		// retry look like a duplicate, so roll it back before the 503.
		if delErr := h.store.DeleteSeen(c.Request.Context(), env.EventID); delErr != nil {
			h.logger.Error("rollback seen marker failed",
				slog.String("event_id", env.EventID),
				slog.String("error", delErr.Error()))
		}
		h.record(tier.String(), observability.DispositionQueueFull)
		h.logger.Warn("webhook queue full, shedding",
			slog.String("event_id", env.EventID),
			slog.String("type", env.Type))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue full, retry later"})
		return
	}

	h.record(tier.String(), observability.DispositionEnqueued)
	h.count(c.Request.Context(), "webhooks_received")
	h.count(c.Request.Context(), "webhooks_tier_"+tier.String())
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "event_id": env.EventID})
}

func (h *Handler) record(tier string, disposition observability.Disposition) {
	if h.metrics != nil {
		h.metrics.RecordWebhook(tier, disposition)
	}
}

// count bumps a persistent analytics counter; failures are logged, not
// surfaced, because the delivery itself already succeeded.
func (h *Handler) count(ctx context.Context, name string) {
	if _, err := h.store.IncrCounter(ctx, name, 1); err != nil {
		h.logger.Warn("increment counter",
			slog.String("counter", name),
			slog.String("error", err.Error()))
	}
}
