// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/foundersday/platform/services/registration/datatypes"
)

// AdminAnalyticsSummary handles GET /v1/admin/analytics/summary.
//
// The summary is computed on demand from stored registrations and the
// persistent webhook counters; nothing here depends on the in-memory
// Prometheus state, so it survives restarts.
func (h *Handlers) AdminAnalyticsSummary(c *gin.Context) {
	ctx := c.Request.Context()

	regs, err := h.store.ListRegistrations(ctx, "")
	if err != nil {
		h.internalError(c, "list registrations", err)
		return
	}

	summary := datatypes.AnalyticsSummary{
		GeneratedAt:           time.Now().UTC(),
		RegistrationsByStatus: make(map[string]int),
	}

	type revenueAcc struct {
		cents   int64
		tickets int
	}
	byEvent := make(map[string]*revenueAcc)
	for _, reg := range regs {
		summary.RegistrationsByStatus[string(reg.Status)]++

		// Revenue counts settled money still held: paid registrations
		// and refunds in flight. Refunded money is gone.
		if reg.Status == datatypes.RegistrationPaid || reg.Status == datatypes.RegistrationRefundRequested {
			acc := byEvent[reg.EventID]
			if acc == nil {
				acc = &revenueAcc{}
				byEvent[reg.EventID] = acc
			}
			acc.cents += reg.AmountCents
			acc.tickets += reg.Quantity
		}
	}

	events, err := h.store.ListEvents(ctx, false)
	if err != nil {
		h.internalError(c, "list events", err)
		return
	}
	summary.Revenue = []datatypes.EventRevenue{}
	for _, event := range events {
		acc := byEvent[event.ID]
		if acc == nil {
			continue
		}
		summary.Revenue = append(summary.Revenue, datatypes.EventRevenue{
			EventID:      event.ID,
			EventName:    event.Name,
			RevenueCents: acc.cents,
			TicketsSold:  acc.tickets,
		})
	}

	webhooks, err := h.webhookStats(ctx)
	if err != nil {
		h.internalError(c, "read webhook counters", err)
		return
	}
	summary.Webhooks = webhooks

	c.JSON(http.StatusOK, summary)
}

func (h *Handlers) webhookStats(ctx context.Context) (datatypes.WebhookStats, error) {
	stats := datatypes.WebhookStats{ByTier: make(map[string]uint64)}

	var err error
	if stats.Received, err = h.store.Counter(ctx, "webhooks_received"); err != nil {
		return stats, err
	}
	if stats.Duplicates, err = h.store.Counter(ctx, "webhooks_duplicates"); err != nil {
		return stats, err
	}
	if stats.Dead, err = h.store.Counter(ctx, "webhooks_dead"); err != nil {
		return stats, err
	}
	for _, tier := range []string{"critical", "high", "normal", "low"} {
		count, err := h.store.Counter(ctx, "webhooks_tier_"+tier)
		if err != nil {
			return stats, err
		}
		if count > 0 {
			stats.ByTier[tier] = count
		}
	}
	return stats, nil
}
