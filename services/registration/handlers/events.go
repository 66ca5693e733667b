// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/foundersday/platform/services/registration/datatypes"
	"github.com/foundersday/platform/services/registration/storage"
)

// ListEvents handles GET /v1/events. Only published events are public.
func (h *Handlers) ListEvents(c *gin.Context) {
	events, err := h.store.ListEvents(c.Request.Context(), true)
	if err != nil {
		h.internalError(c, "list events", err)
		return
	}
	if events == nil {
		events = []datatypes.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// GetEvent handles GET /v1/events/:eventId. The parameter is an event
// id or a slug; ids are UUIDs so the two cannot collide.
func (h *Handlers) GetEvent(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Param("eventId")

	var event datatypes.Event
	var err error
	if _, parseErr := uuid.Parse(key); parseErr == nil {
		event, err = h.store.GetEvent(ctx, key)
	} else {
		event, err = h.store.GetEventBySlug(ctx, key)
	}
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	if err != nil {
		h.internalError(c, "get event", err)
		return
	}
	if event.Status != datatypes.EventPublished {
		// Drafts and archived events are invisible to the public API.
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	c.JSON(http.StatusOK, event)
}

// =============================================================================
// Admin
// =============================================================================

// AdminListEvents handles GET /v1/admin/events, including drafts.
func (h *Handlers) AdminListEvents(c *gin.Context) {
	events, err := h.store.ListEvents(c.Request.Context(), false)
	if err != nil {
		h.internalError(c, "list events", err)
		return
	}
	if events == nil {
		events = []datatypes.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// adminEventRequest is the admin create/update body.
type adminEventRequest struct {
	Slug        string                `json:"slug" binding:"required,slug"`
	Name        string                `json:"name" binding:"required,max=200"`
	Description string                `json:"description"`
	Venue       string                `json:"venue"`
	StartsAt    time.Time             `json:"starts_at" binding:"required"`
	EndsAt      time.Time             `json:"ends_at" binding:"required,gtfield=StartsAt"`
	Status      datatypes.EventStatus `json:"status" binding:"required,oneof=draft published archived"`
	Tiers       []adminTierRequest    `json:"tiers" binding:"required,min=1,dive"`
}

type adminTierRequest struct {
	Code       string `json:"code" binding:"required,tiercode"`
	Name       string `json:"name" binding:"required,max=120"`
	PriceCents int64  `json:"price_cents" binding:"gte=0"`
	Capacity   int    `json:"capacity" binding:"required,gt=0"`
}

// AdminCreateEvent handles POST /v1/admin/events.
func (h *Handlers) AdminCreateEvent(c *gin.Context) {
	var req adminEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	event := datatypes.Event{
		ID:          uuid.NewString(),
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
		Venue:       req.Venue,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Status:      req.Status,
		CreatedAt:   time.Now().UTC(),
	}
	for _, tier := range req.Tiers {
		event.Tiers = append(event.Tiers, datatypes.TicketTier{
			Code:       tier.Code,
			Name:       tier.Name,
			PriceCents: tier.PriceCents,
			Capacity:   tier.Capacity,
			Available:  tier.Capacity,
		})
	}

	if err := h.store.PutEvent(c.Request.Context(), event); err != nil {
		h.internalError(c, "create event", err)
		return
	}
	h.logger.Info("event created",
		"event_id", event.ID,
		"slug", event.Slug,
		"tiers", len(event.Tiers))
	c.JSON(http.StatusCreated, event)
}

// AdminUpdateEvent handles PUT /v1/admin/events/:eventId. Tier
// availability is preserved: capacity changes adjust availability by
// the same delta, floored at zero.
func (h *Handlers) AdminUpdateEvent(c *gin.Context) {
	ctx := c.Request.Context()

	existing, err := h.store.GetEvent(ctx, c.Param("eventId"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	if err != nil {
		h.internalError(c, "get event", err)
		return
	}

	var req adminEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	updated := existing
	updated.Slug = req.Slug
	updated.Name = req.Name
	updated.Description = req.Description
	updated.Venue = req.Venue
	updated.StartsAt = req.StartsAt
	updated.EndsAt = req.EndsAt
	updated.Status = req.Status
	updated.Tiers = nil
	for _, tier := range req.Tiers {
		available := tier.Capacity
		if prev := existing.Tier(tier.Code); prev != nil {
			sold := prev.Capacity - prev.Available
			available = tier.Capacity - sold
			if available < 0 {
				available = 0
			}
		}
		updated.Tiers = append(updated.Tiers, datatypes.TicketTier{
			Code:       tier.Code,
			Name:       tier.Name,
			PriceCents: tier.PriceCents,
			Capacity:   tier.Capacity,
			Available:  available,
		})
	}

	if err := h.store.PutEvent(ctx, updated); err != nil {
		h.internalError(c, "update event", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handlers) internalError(c *gin.Context, op string, err error) {
	h.logger.Error(op, "error", err.Error(), "path", c.FullPath())
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
