// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/foundersday/platform/services/registration/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func testEvent() datatypes.Event {
	return datatypes.Event{
		ID:       "2f1d8a4e-1111-4222-8333-444455556666",
		Slug:     "founders-day-2026",
		Name:     "Founders Day 2026",
		Status:   datatypes.EventPublished,
		StartsAt: time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2026, 9, 12, 22, 0, 0, 0, time.UTC),
		Tiers: []datatypes.TicketTier{
			{Code: "GA", Name: "General Admission", PriceCents: 2500, Capacity: 100, Available: 100},
			{Code: "VIP", Name: "VIP", PriceCents: 7500, Capacity: 10, Available: 2},
		},
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestEvents_PutGetList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	event := testEvent()

	require.NoError(t, store.PutEvent(ctx, event))

	got, err := store.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.Name, got.Name)
	assert.Len(t, got.Tiers, 2)

	bySlug, err := store.GetEventBySlug(ctx, event.Slug)
	require.NoError(t, err)
	assert.Equal(t, event.ID, bySlug.ID)

	_, err = store.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	draft := event
	draft.ID = "3a2b8c4d-2222-4333-8444-555566667777"
	draft.Slug = "afterparty"
	draft.Status = datatypes.EventDraft
	require.NoError(t, store.PutEvent(ctx, draft))

	all, err := store.ListEvents(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	published, err := store.ListEvents(ctx, true)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, event.ID, published[0].ID)
}

func TestReserveTickets(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	event := testEvent()
	require.NoError(t, store.PutEvent(ctx, event))

	t.Run("decrements availability", func(t *testing.T) {
		updated, err := store.ReserveTickets(ctx, event.ID, "GA", 3)
		require.NoError(t, err)
		assert.Equal(t, 97, updated.Tier("GA").Available)
	})

	t.Run("unknown tier", func(t *testing.T) {
		_, err := store.ReserveTickets(ctx, event.ID, "STUDENT", 1)
		assert.ErrorIs(t, err, ErrUnknownTier)
	})

	t.Run("sold out", func(t *testing.T) {
		_, err := store.ReserveTickets(ctx, event.ID, "VIP", 3)
		assert.ErrorIs(t, err, ErrSoldOut)

		// The failed reservation must not have consumed anything.
		got, err := store.GetEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Tier("VIP").Available)
	})

	t.Run("release restores availability capped at capacity", func(t *testing.T) {
		require.NoError(t, store.ReleaseTickets(ctx, event.ID, "GA", 3))
		got, err := store.GetEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, got.Tier("GA").Available)

		// Double release cannot push past capacity.
		require.NoError(t, store.ReleaseTickets(ctx, event.ID, "GA", 3))
		got, _ = store.GetEvent(ctx, event.ID)
		assert.Equal(t, 100, got.Tier("GA").Available)
	})
}

// Concurrent purchases all write the same event record; Badger resolves
// that with transaction conflicts, which the store must absorb so every
// reservation either commits or reports sold out.
func TestReserveTickets_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	event := testEvent()
	require.NoError(t, store.PutEvent(ctx, event))

	const buyers = 50
	var wg sync.WaitGroup
	errs := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ReserveTickets(ctx, event.ID, "GA", 1); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("reservation failed: %v", err)
	}

	got, err := store.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Tier("GA").Available)
}

func TestIncrCounter_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	const writers = 40
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.IncrCounter(ctx, "webhooks_received", 1); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("increment failed: %v", err)
	}

	v, err := store.Counter(ctx, "webhooks_received")
	require.NoError(t, err)
	assert.Equal(t, uint64(writers), v)
}

func TestFirstSeen_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	const deliveries = 20
	var wg sync.WaitGroup
	var firsts atomic.Int64
	errs := make(chan error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := store.FirstSeen(ctx, "evt-wh-race", time.Hour)
			if err != nil {
				errs <- err
				return
			}
			if first {
				firsts.Add(1)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("FirstSeen failed: %v", err)
	}

	// Exactly one delivery may win the marker.
	assert.Equal(t, int64(1), firsts.Load())
}

func TestRegistrations_PutGetByCode(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	reg := datatypes.Registration{
		ID:               "reg-1",
		ConfirmationCode: "FD-8Q2XK",
		EventID:          "evt-1",
		TierCode:         "GA",
		Quantity:         2,
		Status:           datatypes.RegistrationPending,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, store.PutRegistration(ctx, reg))

	got, err := store.GetRegistration(ctx, "reg-1")
	require.NoError(t, err)
	assert.Equal(t, reg.ConfirmationCode, got.ConfirmationCode)

	byCode, err := store.GetRegistrationByCode(ctx, "FD-8Q2XK")
	require.NoError(t, err)
	assert.Equal(t, "reg-1", byCode.ID)

	_, err = store.GetRegistrationByCode(ctx, "FD-NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionRegistration(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	reg := datatypes.Registration{
		ID:        "reg-1",
		EventID:   "evt-1",
		Status:    datatypes.RegistrationPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.PutRegistration(ctx, reg))

	paid, err := store.TransitionRegistration(ctx, "reg-1", datatypes.RegistrationPaid,
		func(r *datatypes.Registration) {
			r.TicketNumber = "FD-0001"
			r.SquarePaymentID = "pay-1"
		})
	require.NoError(t, err)
	assert.Equal(t, datatypes.RegistrationPaid, paid.Status)
	assert.Equal(t, "FD-0001", paid.TicketNumber)

	// Replayed payment completion is rejected by the transition table.
	_, err = store.TransitionRegistration(ctx, "reg-1", datatypes.RegistrationPaid, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// paid -> refunded is allowed.
	refunded, err := store.TransitionRegistration(ctx, "reg-1", datatypes.RegistrationRefunded, nil)
	require.NoError(t, err)
	assert.Equal(t, datatypes.RegistrationRefunded, refunded.Status)

	// Terminal states move nowhere.
	_, err = store.TransitionRegistration(ctx, "reg-1", datatypes.RegistrationPending, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionAndRelease(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	event := testEvent()
	require.NoError(t, store.PutEvent(ctx, event))
	_, err := store.ReserveTickets(ctx, event.ID, "GA", 3)
	require.NoError(t, err)

	reg := datatypes.Registration{
		ID:        "reg-1",
		EventID:   event.ID,
		TierCode:  "GA",
		Quantity:  3,
		Status:    datatypes.RegistrationPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.PutRegistration(ctx, reg))

	t.Run("status change and release commit together", func(t *testing.T) {
		failed, err := store.TransitionAndRelease(ctx, "reg-1", datatypes.RegistrationPaymentFailed, nil)
		require.NoError(t, err)
		assert.Equal(t, datatypes.RegistrationPaymentFailed, failed.Status)

		got, err := store.GetEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, got.Tier("GA").Available)
	})

	t.Run("replay rejected without touching inventory", func(t *testing.T) {
		_, err := store.TransitionAndRelease(ctx, "reg-1", datatypes.RegistrationPaymentFailed, nil)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		got, err := store.GetEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, got.Tier("GA").Available)
	})

	t.Run("missing registration leaves inventory alone", func(t *testing.T) {
		_, err := store.TransitionAndRelease(ctx, "reg-missing", datatypes.RegistrationCancelled, nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("removed tier still transitions", func(t *testing.T) {
		orphan := datatypes.Registration{
			ID:        "reg-2",
			EventID:   event.ID,
			TierCode:  "STUDENT",
			Quantity:  1,
			Status:    datatypes.RegistrationPending,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, store.PutRegistration(ctx, orphan))

		expired, err := store.TransitionAndRelease(ctx, "reg-2", datatypes.RegistrationExpired, nil)
		require.NoError(t, err)
		assert.Equal(t, datatypes.RegistrationExpired, expired.Status)
	})
}

func TestListPendingOlderThan(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	old := datatypes.Registration{
		ID:        "reg-old",
		Status:    datatypes.RegistrationPending,
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	fresh := datatypes.Registration{
		ID:        "reg-fresh",
		Status:    datatypes.RegistrationPending,
		CreatedAt: time.Now().UTC(),
	}
	paid := datatypes.Registration{
		ID:        "reg-paid",
		Status:    datatypes.RegistrationPaid,
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	for _, r := range []datatypes.Registration{old, fresh, paid} {
		require.NoError(t, store.PutRegistration(ctx, r))
	}

	expired, err := store.ListPendingOlderThan(ctx, time.Now().UTC().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "reg-old", expired[0].ID)
}

func TestContent_SeedDoesNotOverwriteAPI(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	seed := datatypes.ContentBlock{Slug: "faq", Title: "FAQ", Body: "seed body", Published: true}
	require.NoError(t, store.PutSeedContent(ctx, seed))

	got, err := store.GetContent(ctx, "faq")
	require.NoError(t, err)
	assert.Equal(t, datatypes.ContentFromSeed, got.Source)

	api := got
	api.Body = "edited by admin"
	api.Source = datatypes.ContentFromAPI
	require.NoError(t, store.PutContent(ctx, api))

	// Seed reload must not clobber the admin edit.
	require.NoError(t, store.PutSeedContent(ctx, seed))
	got, err = store.GetContent(ctx, "faq")
	require.NoError(t, err)
	assert.Equal(t, "edited by admin", got.Body)

	require.NoError(t, store.DeleteContent(ctx, "faq"))
	_, err = store.GetContent(ctx, "faq")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContent_ListPublishedOnly(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.PutContent(ctx, datatypes.ContentBlock{Slug: "faq", Title: "FAQ", Body: "x", Published: true}))
	require.NoError(t, store.PutContent(ctx, datatypes.ContentBlock{Slug: "draft", Title: "Draft", Body: "y", Published: false}))

	published, err := store.ListContent(ctx, true)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, "faq", published[0].Slug)

	all, err := store.ListContent(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPaymentsAndAttempts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.RecordPayment(ctx, datatypes.PaymentRecord{
		PaymentID:      "pay-1",
		WebhookEventID: "evt-wh-1",
		Kind:           "payment",
		Status:         "COMPLETED",
		AmountCents:    2500,
	}))

	records, err := store.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].RecordedAt.IsZero())

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.RecordAttempt(ctx, datatypes.AttemptRecord{
			EventID:      "evt-wh-1",
			EventType:    "payment.created",
			Outcome:      "retry",
			AttemptCount: i,
		}))
	}
	attempts, err := store.ListAttempts(ctx, "evt-wh-1")
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	assert.Equal(t, 1, attempts[0].AttemptCount)
	assert.Equal(t, 3, attempts[2].AttemptCount)
}

func TestFirstSeen(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.FirstSeen(ctx, "evt-wh-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.FirstSeen(ctx, "evt-wh-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	other, err := store.FirstSeen(ctx, "evt-wh-2", time.Hour)
	require.NoError(t, err)
	assert.True(t, other)

	_, err = store.FirstSeen(ctx, "", time.Hour)
	assert.Error(t, err)
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	v, err := store.Counter(ctx, "webhooks_received")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)

	v, err = store.IncrCounter(ctx, "webhooks_received", 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	v, err = store.IncrCounter(ctx, "webhooks_received", 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), v)

	v, err = store.Counter(ctx, "webhooks_received")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), v)
}
