// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"crypto/rand"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/foundersday/platform/services/registration/datatypes"
	"github.com/foundersday/platform/services/registration/storage"
)

// confirmationAlphabet avoids ambiguous characters (0/O, 1/I/L).
const confirmationAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// newConfirmationCode returns a short human-readable code like FD-8Q2XK.
func newConfirmationCode() string {
	buf := make([]byte, 5)
	rand.Read(buf)
	code := make([]byte, 5)
	for i, b := range buf {
		code[i] = confirmationAlphabet[int(b)%len(confirmationAlphabet)]
	}
	return "FD-" + string(code)
}

// CreateRegistration handles POST /v1/registrations.
//
// The inventory hold is taken before the registration is written; if
// the write fails the hold is rolled back so tickets never leak. The
// registration stays pending until a payment webhook settles it or the
// hold-expiry sweep reclaims it.
func (h *Handlers) CreateRegistration(c *gin.Context) {
	ctx := c.Request.Context()

	var req datatypes.CreateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	event, err := h.store.GetEvent(ctx, req.EventID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	if err != nil {
		h.internalError(c, "get event", err)
		return
	}
	if event.Status != datatypes.EventPublished {
		c.JSON(http.StatusConflict, gin.H{"error": "event is not open for registration"})
		return
	}

	event, err = h.store.ReserveTickets(ctx, req.EventID, req.TierCode, req.Quantity)
	switch {
	case errors.Is(err, storage.ErrUnknownTier):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown ticket tier"})
		return
	case errors.Is(err, storage.ErrSoldOut):
		c.JSON(http.StatusConflict, gin.H{"error": "not enough tickets available"})
		return
	case err != nil:
		h.internalError(c, "reserve tickets", err)
		return
	}

	tier := event.Tier(req.TierCode)
	reg := datatypes.Registration{
		ID:               uuid.NewString(),
		ConfirmationCode: newConfirmationCode(),
		EventID:          event.ID,
		TierCode:         req.TierCode,
		Quantity:         req.Quantity,
		Attendee:         req.Attendee,
		Status:           datatypes.RegistrationPending,
		AmountCents:      tier.PriceCents * int64(req.Quantity),
		CreatedAt:        time.Now().UTC(),
	}

	if err := h.store.PutRegistration(ctx, reg); err != nil {
		// Give the hold back; the registration does not exist.
		if relErr := h.store.ReleaseTickets(ctx, event.ID, req.TierCode, req.Quantity); relErr != nil {
			h.logger.Error("rollback hold failed",
				"event_id", event.ID,
				"error", relErr.Error())
		}
		h.internalError(c, "create registration", err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordTransition(string(datatypes.RegistrationPending))
	}
	h.publish(datatypes.FeedEvent{
		Kind:           "registration_created",
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		AmountCents:    reg.AmountCents,
		At:             reg.CreatedAt,
	})
	h.logger.Info("registration created",
		"registration_id", reg.ID,
		"event_id", reg.EventID,
		"tier", reg.TierCode,
		"quantity", reg.Quantity)
	c.JSON(http.StatusCreated, reg)
}

// GetRegistration handles GET /v1/registrations/:id. The parameter is
// a registration id or a confirmation code.
func (h *Handlers) GetRegistration(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Param("id")

	reg, err := h.store.GetRegistration(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		reg, err = h.store.GetRegistrationByCode(ctx, key)
	}
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "registration not found"})
		return
	}
	if err != nil {
		h.internalError(c, "get registration", err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

// CancelRegistration handles DELETE /v1/registrations/:id.
//
// Pending registrations cancel immediately; the status change and the
// inventory release commit in one transaction. Paid registrations move
// to refund_requested; the refund itself is issued in Square and lands
// back here as a refund webhook. Both moves go straight through the
// transition table rather than a pre-read status check, so a payment
// webhook racing this request gets a 409, never a 500.
func (h *Handlers) CancelRegistration(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	reg, err := h.store.TransitionAndRelease(ctx, id, datatypes.RegistrationCancelled, nil)
	if err == nil {
		if h.metrics != nil {
			h.metrics.RecordTransition(string(datatypes.RegistrationCancelled))
		}
		c.JSON(http.StatusOK, reg)
		return
	}
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "registration not found"})
		return
	}
	if !errors.Is(err, storage.ErrInvalidTransition) {
		h.internalError(c, "cancel registration", err)
		return
	}

	// Not pending anymore: a paid registration becomes a refund request;
	// anything further along cannot be cancelled at all.
	reg, err = h.store.TransitionRegistration(ctx, id, datatypes.RegistrationRefundRequested, nil)
	if errors.Is(err, storage.ErrInvalidTransition) {
		c.JSON(http.StatusConflict, gin.H{"error": "registration cannot be cancelled"})
		return
	}
	if err != nil {
		h.internalError(c, "request refund", err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordTransition(string(datatypes.RegistrationRefundRequested))
	}
	c.JSON(http.StatusAccepted, reg)
}

// AdminListRegistrations handles GET /v1/admin/registrations with an
// optional event_id filter.
func (h *Handlers) AdminListRegistrations(c *gin.Context) {
	regs, err := h.store.ListRegistrations(c.Request.Context(), c.Query("event_id"))
	if err != nil {
		h.internalError(c, "list registrations", err)
		return
	}
	if regs == nil {
		regs = []datatypes.Registration{}
	}
	c.JSON(http.StatusOK, gin.H{"registrations": regs})
}
