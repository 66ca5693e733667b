// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/foundersday/platform/services/registration/datatypes"
)

// ErrSoldOut is returned by ReserveTickets when the tier cannot cover
// the requested quantity.
var ErrSoldOut = errors.New("storage: tier sold out")

// ErrUnknownTier is returned when the tier code does not exist on the event.
var ErrUnknownTier = errors.New("storage: unknown tier")

func eventKey(id string) string       { return "event:" + id }
func eventSlugKey(slug string) string { return "eventslug:" + slug }

// PutEvent writes an event and its slug lookup.
func (s *Store) PutEvent(ctx context.Context, event datatypes.Event) error {
	if event.ID == "" {
		return errors.New("event id is required")
	}
	event.UpdatedAt = time.Now().UTC()
	return s.update(ctx, func(txn *badger.Txn) error {
		if err := setJSON(txn, eventKey(event.ID), event); err != nil {
			return err
		}
		if event.Slug != "" {
			if err := txn.Set([]byte(eventSlugKey(event.Slug)), []byte(event.ID)); err != nil {
				return fmt.Errorf("set event slug lookup: %w", err)
			}
		}
		return nil
	})
}

// GetEvent reads an event by id.
func (s *Store) GetEvent(ctx context.Context, id string) (datatypes.Event, error) {
	var event datatypes.Event
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, eventKey(id), &event)
	})
	return event, err
}

// GetEventBySlug reads an event by its public slug.
func (s *Store) GetEventBySlug(ctx context.Context, slug string) (datatypes.Event, error) {
	var event datatypes.Event
	err := s.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(eventSlugKey(slug)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: event slug %s", ErrNotFound, slug)
		}
		if err != nil {
			return fmt.Errorf("get event slug %s: %w", slug, err)
		}
		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		return getJSON(txn, eventKey(id), &event)
	})
	return event, err
}

// ListEvents returns all events, optionally filtered to published ones,
// sorted by start time.
func (s *Store) ListEvents(ctx context.Context, publishedOnly bool) ([]datatypes.Event, error) {
	var events []datatypes.Event
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("event:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var event datatypes.Event
			if err := it.Item().Value(func(val []byte) error {
				return unmarshalInto(val, &event)
			}); err != nil {
				return err
			}
			if publishedOnly && event.Status != datatypes.EventPublished {
				continue
			}
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].StartsAt.Before(events[j].StartsAt)
	})
	return events, nil
}

// ReserveTickets atomically decrements tier availability for a new hold.
//
// Returns ErrUnknownTier for a missing tier code and ErrSoldOut when
// fewer than quantity tickets remain. The decrement and the event write
// happen in one transaction, so availability can never go negative.
func (s *Store) ReserveTickets(ctx context.Context, eventID, tierCode string, quantity int) (datatypes.Event, error) {
	var event datatypes.Event
	err := s.update(ctx, func(txn *badger.Txn) error {
		event = datatypes.Event{} // reset between conflict retries
		if err := getJSON(txn, eventKey(eventID), &event); err != nil {
			return err
		}
		tier := event.Tier(tierCode)
		if tier == nil {
			return fmt.Errorf("%w: %s on event %s", ErrUnknownTier, tierCode, eventID)
		}
		if tier.Available < quantity {
			return fmt.Errorf("%w: %s has %d left, want %d", ErrSoldOut, tierCode, tier.Available, quantity)
		}
		tier.Available -= quantity
		event.UpdatedAt = time.Now().UTC()
		return setJSON(txn, eventKey(eventID), event)
	})
	return event, err
}

// ReleaseTickets atomically restores tier availability when a hold is
// released. Availability is capped at capacity so double releases
// cannot oversell a later sweep.
func (s *Store) ReleaseTickets(ctx context.Context, eventID, tierCode string, quantity int) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		var event datatypes.Event
		if err := getJSON(txn, eventKey(eventID), &event); err != nil {
			return err
		}
		tier := event.Tier(tierCode)
		if tier == nil {
			return fmt.Errorf("%w: %s on event %s", ErrUnknownTier, tierCode, eventID)
		}
		tier.Available += quantity
		if tier.Available > tier.Capacity {
			tier.Available = tier.Capacity
		}
		event.UpdatedAt = time.Now().UTC()
		return setJSON(txn, eventKey(eventID), event)
	})
}

// unmarshalInto exists so iterator values get the same error wrapping
// as keyed reads.
func unmarshalInto(val []byte, v any) error {
	if err := json.Unmarshal(val, v); err != nil {
		return fmt.Errorf("unmarshal iterator value: %w", err)
	}
	return nil
}
