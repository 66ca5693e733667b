// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package webhooks implements the Square webhook ingestion pipeline:
// signature verification, idempotency, a bounded priority queue, and a
// worker pool that applies payment outcomes to registrations with
// bounded retries.
package webhooks

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Envelope
// =============================================================================

// Envelope is the outer shape of a Square webhook delivery. Data is kept
// raw; the processor decodes the object it cares about per event type.
type Envelope struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

// ParseEnvelope decodes and validates a delivery body. The event id and
// type are required; everything else is the processor's problem.
func ParseEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode webhook body: %w", err)
	}
	if env.EventID == "" {
		return Envelope{}, fmt.Errorf("webhook body missing event_id")
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("webhook body missing type")
	}
	return env, nil
}

// =============================================================================
// Priority
// =============================================================================

// Priority orders queued jobs. Lower values drain first.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

// String returns the tier label used in logs and metrics.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// PriorityFor maps a Square event type to its queue tier by prefix.
// Money movement drains first; anything unrecognized drains last.
func PriorityFor(eventType string) Priority {
	switch {
	case strings.HasPrefix(eventType, "payment.") || strings.HasPrefix(eventType, "refund."):
		return PriorityCritical
	case strings.HasPrefix(eventType, "order.") || strings.HasPrefix(eventType, "invoice."):
		return PriorityHigh
	case strings.HasPrefix(eventType, "payout.") || strings.HasPrefix(eventType, "dispute."):
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// =============================================================================
// Job
// =============================================================================

// Job is one verified, deduplicated delivery waiting to be processed.
// seq preserves arrival order within a priority tier.
type Job struct {
	Envelope   Envelope
	Priority   Priority
	EnqueuedAt time.Time

	seq uint64
}
