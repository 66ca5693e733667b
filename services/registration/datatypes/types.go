// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the domain types shared across the
// registration service: events, ticket tiers, registrations, content
// blocks, and payment records.
package datatypes

import (
	"time"
)

// =============================================================================
// Events & Tiers
// =============================================================================

// EventStatus is the publication state of an event.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventArchived  EventStatus = "archived"
)

// TicketTier is one purchasable ticket class within an event.
//
// Available is the number of tickets not currently held or sold. It is
// decremented when a registration is created and restored when the hold
// is released (cancel, payment failure, refund, or hold expiry).
type TicketTier struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Capacity   int    `json:"capacity"`
	Available  int    `json:"available"`
}

// Event is a Founders Day event with its ticket tiers.
type Event struct {
	ID          string       `json:"id"`
	Slug        string       `json:"slug"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Venue       string       `json:"venue,omitempty"`
	StartsAt    time.Time    `json:"starts_at"`
	EndsAt      time.Time    `json:"ends_at"`
	Status      EventStatus  `json:"status"`
	Tiers       []TicketTier `json:"tiers"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Tier returns the tier with the given code, or nil.
func (e *Event) Tier(code string) *TicketTier {
	for i := range e.Tiers {
		if e.Tiers[i].Code == code {
			return &e.Tiers[i]
		}
	}
	return nil
}

// =============================================================================
// Registrations
// =============================================================================

// RegistrationStatus tracks a registration through its lifecycle.
//
// Transitions:
//
//	pending -> paid             (payment completed)
//	pending -> payment_failed   (payment failed or canceled)
//	pending -> cancelled        (attendee cancel before payment)
//	pending -> expired          (hold TTL elapsed)
//	paid    -> refund_requested (attendee cancel after payment)
//	paid | refund_requested -> refunded
//
// Every transition out of pending releases the inventory hold exactly
// once; refunds release it again only because paid consumed it.
type RegistrationStatus string

const (
	RegistrationPending         RegistrationStatus = "pending"
	RegistrationPaid            RegistrationStatus = "paid"
	RegistrationPaymentFailed   RegistrationStatus = "payment_failed"
	RegistrationCancelled       RegistrationStatus = "cancelled"
	RegistrationExpired         RegistrationStatus = "expired"
	RegistrationRefundRequested RegistrationStatus = "refund_requested"
	RegistrationRefunded        RegistrationStatus = "refunded"
)

// HoldsInventory reports whether a registration in this status still
// counts against tier availability.
func (s RegistrationStatus) HoldsInventory() bool {
	switch s {
	case RegistrationPending, RegistrationPaid, RegistrationRefundRequested:
		return true
	default:
		return false
	}
}

// Attendee is the person registering. Validated at the API boundary via
// binding tags.
type Attendee struct {
	Name  string `json:"name" binding:"required,min=2,max=120"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone,omitempty" binding:"omitempty,min=7,max=20"`
}

// Registration is one ticket purchase attempt, from hold to settlement.
type Registration struct {
	ID               string             `json:"id"`
	ConfirmationCode string             `json:"confirmation_code"`
	EventID          string             `json:"event_id"`
	TierCode         string             `json:"tier_code"`
	Quantity         int                `json:"quantity"`
	Attendee         Attendee           `json:"attendee"`
	Status           RegistrationStatus `json:"status"`
	AmountCents      int64              `json:"amount_cents"`
	TicketNumber     string             `json:"ticket_number,omitempty"`
	SquarePaymentID  string             `json:"square_payment_id,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	PaidAt           *time.Time         `json:"paid_at,omitempty"`
}

// CreateRegistrationRequest is the public API request body.
type CreateRegistrationRequest struct {
	EventID  string   `json:"event_id" binding:"required,uuid4"`
	TierCode string   `json:"tier_code" binding:"required,tiercode"`
	Quantity int      `json:"quantity" binding:"required,gt=0,lte=10"`
	Attendee Attendee `json:"attendee" binding:"required"`
}

// =============================================================================
// Content
// =============================================================================

// ContentSource records whether a block came from the seed file or the
// admin API. API writes win over seed reloads.
type ContentSource string

const (
	ContentFromSeed ContentSource = "seed"
	ContentFromAPI  ContentSource = "api"
)

// ContentBlock is an admin-managed page fragment (schedule, FAQ,
// announcement) served to the public site.
type ContentBlock struct {
	Slug      string        `json:"slug" binding:"required,slug"`
	Title     string        `json:"title" binding:"required,max=200"`
	Body      string        `json:"body" binding:"required"`
	Format    string        `json:"format,omitempty" binding:"omitempty,oneof=markdown html"`
	Published bool          `json:"published"`
	Source    ContentSource `json:"source,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// =============================================================================
// Payments & Pipeline Records
// =============================================================================

// PaymentRecord is the stored trace of a processed payment-provider
// event, keyed by the provider payment id.
type PaymentRecord struct {
	PaymentID      string    `json:"payment_id"`
	WebhookEventID string    `json:"webhook_event_id"`
	RegistrationID string    `json:"registration_id,omitempty"`
	Kind           string    `json:"kind"` // payment, refund, payout, dispute
	Status         string    `json:"status"`
	AmountCents    int64     `json:"amount_cents"`
	Currency       string    `json:"currency,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// AttemptRecord is one webhook processing attempt, kept for the
// analytics surface.
type AttemptRecord struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	Outcome      string    `json:"outcome"` // succeeded, retry, dead
	AttemptCount int       `json:"attempt_count"`
	LastError    string    `json:"last_error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// =============================================================================
// Analytics
// =============================================================================

// WebhookStats summarizes pipeline activity for the dashboard.
type WebhookStats struct {
	Received   uint64            `json:"received"`
	Duplicates uint64            `json:"duplicates"`
	Dead       uint64            `json:"dead"`
	ByTier     map[string]uint64 `json:"by_tier"`
}

// EventRevenue is revenue attributed to one event.
type EventRevenue struct {
	EventID      string `json:"event_id"`
	EventName    string `json:"event_name"`
	RevenueCents int64  `json:"revenue_cents"`
	TicketsSold  int    `json:"tickets_sold"`
}

// AnalyticsSummary is the admin dashboard payload.
type AnalyticsSummary struct {
	GeneratedAt           time.Time      `json:"generated_at"`
	RegistrationsByStatus map[string]int `json:"registrations_by_status"`
	Revenue               []EventRevenue `json:"revenue"`
	Webhooks              WebhookStats   `json:"webhooks"`
}

// =============================================================================
// Dashboard Feed
// =============================================================================

// FeedEvent is one message on the live dashboard websocket feed.
type FeedEvent struct {
	Kind           string    `json:"kind"` // registration_created, payment_completed, refund_completed, webhook_dead
	RegistrationID string    `json:"registration_id,omitempty"`
	EventID        string    `json:"event_id,omitempty"`
	AmountCents    int64     `json:"amount_cents,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	At             time.Time `json:"at"`
}
