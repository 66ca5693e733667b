// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package webhooks

import (
	"testing"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "valid",
			body: `{"event_id":"evt-1","type":"payment.created","created_at":"2026-08-01T12:00:00Z","data":{"object":{}}}`,
		},
		{
			name:    "missing event id",
			body:    `{"type":"payment.created"}`,
			wantErr: true,
		},
		{
			name:    "missing type",
			body:    `{"event_id":"evt-1"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `not json at all`,
			wantErr: true,
		},
		{
			name:    "empty",
			body:    ``,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if env.EventID != "evt-1" {
				t.Errorf("EventID = %q, want evt-1", env.EventID)
			}
		})
	}
}

func TestPriorityFor(t *testing.T) {
	tests := []struct {
		eventType string
		want      Priority
	}{
		{"payment.created", PriorityCritical},
		{"payment.updated", PriorityCritical},
		{"refund.created", PriorityCritical},
		{"refund.updated", PriorityCritical},
		{"order.created", PriorityHigh},
		{"invoice.payment_made", PriorityHigh},
		{"payout.sent", PriorityNormal},
		{"dispute.created", PriorityNormal},
		{"catalog.version.updated", PriorityLow},
		{"team_member.created", PriorityLow},
		{"", PriorityLow},
		{"payment", PriorityLow}, // prefix requires the dot
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			if got := PriorityFor(tt.eventType); got != tt.want {
				t.Errorf("PriorityFor(%q) = %v, want %v", tt.eventType, got, tt.want)
			}
		})
	}
}

func TestPriorityString(t *testing.T) {
	tests := []struct {
		priority Priority
		want     string
	}{
		{PriorityCritical, "critical"},
		{PriorityHigh, "high"},
		{PriorityNormal, "normal"},
		{PriorityLow, "low"},
	}
	for _, tt := range tests {
		if got := tt.priority.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.priority, got, tt.want)
		}
	}
}
