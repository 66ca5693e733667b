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

// ErrInvalidTransition is returned by TransitionRegistration when the
// current status does not allow the requested one.
var ErrInvalidTransition = errors.New("storage: invalid status transition")

func regKey(id string) string    { return "reg:" + id }
func regCodeKey(code string) string { return "regcode:" + code }

// PutRegistration writes a registration and its confirmation-code lookup.
func (s *Store) PutRegistration(ctx context.Context, reg datatypes.Registration) error {
	if reg.ID == "" {
		return errors.New("registration id is required")
	}
	reg.UpdatedAt = time.Now().UTC()
	return s.update(ctx, func(txn *badger.Txn) error {
		if err := setJSON(txn, regKey(reg.ID), reg); err != nil {
			return err
		}
		if reg.ConfirmationCode != "" {
			if err := txn.Set([]byte(regCodeKey(reg.ConfirmationCode)), []byte(reg.ID)); err != nil {
				return fmt.Errorf("set confirmation code lookup: %w", err)
			}
		}
		return nil
	})
}

// GetRegistration reads a registration by id.
func (s *Store) GetRegistration(ctx context.Context, id string) (datatypes.Registration, error) {
	var reg datatypes.Registration
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, regKey(id), &reg)
	})
	return reg, err
}

// GetRegistrationByCode reads a registration by confirmation code.
func (s *Store) GetRegistrationByCode(ctx context.Context, code string) (datatypes.Registration, error) {
	var reg datatypes.Registration
	err := s.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(regCodeKey(code)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: confirmation code %s", ErrNotFound, code)
		}
		if err != nil {
			return fmt.Errorf("get confirmation code %s: %w", code, err)
		}
		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		return getJSON(txn, regKey(id), &reg)
	})
	return reg, err
}

// ListRegistrations returns all registrations, newest first. eventID
// filters to one event when non-empty.
func (s *Store) ListRegistrations(ctx context.Context, eventID string) ([]datatypes.Registration, error) {
	var regs []datatypes.Registration
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("reg:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var reg datatypes.Registration
			if err := it.Item().Value(func(val []byte) error {
				return unmarshalInto(val, &reg)
			}); err != nil {
				return err
			}
			if eventID != "" && reg.EventID != eventID {
				continue
			}
			regs = append(regs, reg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].CreatedAt.After(regs[j].CreatedAt)
	})
	return regs, nil
}

// ListPendingOlderThan returns up to limit pending registrations created
// before cutoff. Used by the hold-expiry sweep.
func (s *Store) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]datatypes.Registration, error) {
	var regs []datatypes.Registration
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("reg:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(regs) < limit; it.Next() {
			var reg datatypes.Registration
			if err := it.Item().Value(func(val []byte) error {
				return unmarshalInto(val, &reg)
			}); err != nil {
				return err
			}
			if reg.Status == datatypes.RegistrationPending && reg.CreatedAt.Before(cutoff) {
				regs = append(regs, reg)
			}
		}
		return nil
	})
	return regs, err
}

// allowedTransitions maps a current status to the statuses it may move to.
var allowedTransitions = map[datatypes.RegistrationStatus][]datatypes.RegistrationStatus{
	datatypes.RegistrationPending: {
		datatypes.RegistrationPaid,
		datatypes.RegistrationPaymentFailed,
		datatypes.RegistrationCancelled,
		datatypes.RegistrationExpired,
	},
	datatypes.RegistrationPaid: {
		datatypes.RegistrationRefundRequested,
		datatypes.RegistrationRefunded,
	},
	datatypes.RegistrationRefundRequested: {
		datatypes.RegistrationRefunded,
	},
}

// TransitionRegistration atomically moves a registration to a new
// status, applying mutate (which may set ticket number, payment id,
// timestamps) before the write. The transition table rejects moves the
// lifecycle does not allow, which makes replayed webhook events
// harmless: a second payment.completed on a paid registration fails
// with ErrInvalidTransition.
func (s *Store) TransitionRegistration(
	ctx context.Context,
	id string,
	to datatypes.RegistrationStatus,
	mutate func(*datatypes.Registration),
) (datatypes.Registration, error) {
	var reg datatypes.Registration
	err := s.update(ctx, func(txn *badger.Txn) error {
		reg = datatypes.Registration{} // reset between conflict retries
		if err := getJSON(txn, regKey(id), &reg); err != nil {
			return err
		}
		if !transitionAllowed(reg.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, reg.Status, to)
		}
		reg.Status = to
		if mutate != nil {
			mutate(&reg)
		}
		reg.UpdatedAt = time.Now().UTC()
		return setJSON(txn, regKey(id), reg)
	})
	return reg, err
}

// TransitionAndRelease moves a registration to a status that no longer
// holds inventory and restores its tier availability, both in one
// transaction. Either both writes commit or neither does, so a hold is
// released exactly once: a transient failure rolls the transition back
// for a later retry, and a replayed transition fails the table check
// before touching the event.
func (s *Store) TransitionAndRelease(
	ctx context.Context,
	id string,
	to datatypes.RegistrationStatus,
	mutate func(*datatypes.Registration),
) (datatypes.Registration, error) {
	var reg datatypes.Registration
	err := s.update(ctx, func(txn *badger.Txn) error {
		reg = datatypes.Registration{} // reset between conflict retries
		if err := getJSON(txn, regKey(id), &reg); err != nil {
			return err
		}
		if !transitionAllowed(reg.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, reg.Status, to)
		}
		reg.Status = to
		if mutate != nil {
			mutate(&reg)
		}
		reg.UpdatedAt = time.Now().UTC()
		if err := setJSON(txn, regKey(id), reg); err != nil {
			return err
		}

		var event datatypes.Event
		if err := getJSON(txn, eventKey(reg.EventID), &event); err != nil {
			return err
		}
		tier := event.Tier(reg.TierCode)
		if tier == nil {
			// The tier was removed after the hold was taken; there is no
			// inventory left to restore.
			return nil
		}
		tier.Available += reg.Quantity
		if tier.Available > tier.Capacity {
			tier.Available = tier.Capacity
		}
		event.UpdatedAt = time.Now().UTC()
		return setJSON(txn, eventKey(reg.EventID), event)
	})
	return reg, err
}

func transitionAllowed(from, to datatypes.RegistrationStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
