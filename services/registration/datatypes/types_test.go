// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestEvent_Tier(t *testing.T) {
	event := Event{
		Tiers: []TicketTier{
			{Code: "GA", Name: "General Admission", Capacity: 100, Available: 40},
			{Code: "VIP", Name: "VIP", Capacity: 20, Available: 0},
		},
	}

	if tier := event.Tier("GA"); tier == nil || tier.Name != "General Admission" {
		t.Errorf("Tier(GA) = %+v, want General Admission", tier)
	}
	if tier := event.Tier("VIP"); tier == nil || tier.Available != 0 {
		t.Errorf("Tier(VIP) = %+v, want sold out VIP", tier)
	}
	if tier := event.Tier("STUDENT"); tier != nil {
		t.Errorf("Tier(STUDENT) = %+v, want nil", tier)
	}

	// Mutations through the returned pointer must stick.
	event.Tier("GA").Available = 39
	if event.Tiers[0].Available != 39 {
		t.Error("Tier() should return a pointer into the event's tiers")
	}
}

func TestRegistrationStatus_HoldsInventory(t *testing.T) {
	tests := []struct {
		status RegistrationStatus
		want   bool
	}{
		{RegistrationPending, true},
		{RegistrationPaid, true},
		{RegistrationRefundRequested, true},
		{RegistrationPaymentFailed, false},
		{RegistrationCancelled, false},
		{RegistrationExpired, false},
		{RegistrationRefunded, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.HoldsInventory(); got != tt.want {
				t.Errorf("HoldsInventory() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistration_JSONOmitsEmptyOptionals(t *testing.T) {
	reg := Registration{
		ID:      "reg-1",
		EventID: "evt-1",
		Status:  RegistrationPending,
	}
	data, err := json.Marshal(reg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, field := range []string{"ticket_number", "square_payment_id", "paid_at"} {
		if containsField(s, field) {
			t.Errorf("empty %s should be omitted: %s", field, s)
		}
	}

	now := time.Now()
	reg.TicketNumber = "FD-0001"
	reg.PaidAt = &now
	data, _ = json.Marshal(reg)
	if !containsField(string(data), "ticket_number") || !containsField(string(data), "paid_at") {
		t.Errorf("set optionals missing: %s", data)
	}
}

func TestValidTierCode(t *testing.T) {
	valid := []string{"GA", "VIP", "EARLY-BIRD", "T2"}
	invalid := []string{"", "g", "ga", "-GA", "WAY-TOO-LONG-TIER-CODE-THAT-GOES-ON-FOREVER", "GA A"}

	for _, code := range valid {
		if !ValidTierCode(code) {
			t.Errorf("ValidTierCode(%q) = false, want true", code)
		}
	}
	for _, code := range invalid {
		if ValidTierCode(code) {
			t.Errorf("ValidTierCode(%q) = true, want false", code)
		}
	}
}

func TestValidSlug(t *testing.T) {
	valid := []string{"schedule", "faq", "announcements-2026", "a1"}
	invalid := []string{"", "a", "Schedule", "-faq", "faq page"}

	for _, slug := range valid {
		if !ValidSlug(slug) {
			t.Errorf("ValidSlug(%q) = false, want true", slug)
		}
	}
	for _, slug := range invalid {
		if ValidSlug(slug) {
			t.Errorf("ValidSlug(%q) = true, want false", slug)
		}
	}
}

func containsField(s, field string) bool {
	return strings.Contains(s, `"`+field+`"`)
}
