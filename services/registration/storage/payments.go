// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/foundersday/platform/services/registration/datatypes"
)

func paymentKey(id string) string { return "payment:" + id }
func seenKey(eventID string) string { return "seen:" + eventID }

func attemptKey(eventID string, seq int) string {
	return fmt.Sprintf("attempt:%s:%04d", eventID, seq)
}

// DeleteSeen removes an idempotency marker. Used to roll back when an
// event was marked seen but could not be enqueued.
func (s *Store) DeleteSeen(ctx context.Context, eventID string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete([]byte(seenKey(eventID)))
	})
}

// RecordPayment stores the trace of a processed provider event.
func (s *Store) RecordPayment(ctx context.Context, record datatypes.PaymentRecord) error {
	if record.PaymentID == "" {
		return errors.New("payment id is required")
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, paymentKey(record.PaymentID), record)
	})
}

// ListPayments returns all payment records, newest first.
func (s *Store) ListPayments(ctx context.Context) ([]datatypes.PaymentRecord, error) {
	var records []datatypes.PaymentRecord
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("payment:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var record datatypes.PaymentRecord
			if err := it.Item().Value(func(val []byte) error {
				return unmarshalInto(val, &record)
			}); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].RecordedAt.After(records[j].RecordedAt)
	})
	return records, nil
}

// RecordAttempt appends a webhook processing attempt for an event id.
func (s *Store) RecordAttempt(ctx context.Context, attempt datatypes.AttemptRecord) error {
	if attempt.EventID == "" {
		return errors.New("attempt event id is required")
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, attemptKey(attempt.EventID, attempt.AttemptCount), attempt)
	})
}

// ListAttempts returns all recorded attempts for one webhook event id,
// in attempt order.
func (s *Store) ListAttempts(ctx context.Context, eventID string) ([]datatypes.AttemptRecord, error) {
	var attempts []datatypes.AttemptRecord
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("attempt:" + eventID + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var attempt datatypes.AttemptRecord
			if err := it.Item().Value(func(val []byte) error {
				return unmarshalInto(val, &attempt)
			}); err != nil {
				return err
			}
			attempts = append(attempts, attempt)
		}
		return nil
	})
	return attempts, err
}

// FirstSeen atomically marks a webhook event id as seen with the given
// TTL. It returns true when this call created the marker (the event is
// new) and false when the id was already present (a provider replay).
//
// Badger expires the marker natively, so the idempotency set needs no
// sweep of its own.
func (s *Store) FirstSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	first := false
	err := s.update(ctx, func(txn *badger.Txn) error {
		first = false // reset between conflict retries
		key := []byte(seenKey(eventID))
		_, err := txn.Get(key)
		if err == nil {
			return nil // already seen
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get seen marker: %w", err)
		}
		entry := badger.NewEntry(key, []byte{1})
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("set seen marker: %w", err)
		}
		first = true
		return nil
	})
	return first, err
}
