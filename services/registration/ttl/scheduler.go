// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ttl implements the hold-expiry sweep: pending registrations
// whose payment never arrived are expired and their inventory released.
package ttl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foundersday/platform/services/registration/datatypes"
	"github.com/foundersday/platform/services/registration/observability"
	"github.com/foundersday/platform/services/registration/storage"
)

// =============================================================================
// Configuration
// =============================================================================

// SchedulerConfig holds configuration for the hold-expiry scheduler.
//
// # Fields
//
//   - Interval: How often to run sweep cycles. Default: 1 minute.
//   - BatchSize: Maximum registrations to expire per cycle. Default: 100.
//   - HoldTTL: How long a pending registration keeps its inventory
//     hold. Default: 30 minutes.
type SchedulerConfig struct {
	Interval  time.Duration
	BatchSize int
	HoldTTL   time.Duration
}

// DefaultSchedulerConfig returns production defaults.
//
// The interval is deliberately short relative to the hold TTL so a hold
// never outlives its TTL by more than one sweep.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:  1 * time.Minute,
		BatchSize: 100,
		HoldTTL:   30 * time.Minute,
	}
}

// SweepResult summarizes one sweep cycle.
type SweepResult struct {
	// Found is the number of overdue pending registrations seen.
	Found int

	// Expired is the number successfully transitioned to expired.
	Expired int

	// Errors collects per-registration failures; the sweep continues
	// past them.
	Errors []error

	StartTime time.Time
	EndTime   time.Time
}

// Duration returns the cycle's wall time.
func (r SweepResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// =============================================================================
// Scheduler
// =============================================================================

// Scheduler periodically expires overdue pending registrations.
//
// # Description
//
// Manages the lifecycle of a background goroutine that sweeps at the
// configured interval using the ticker + done channel pattern. Each
// expired registration has its tier inventory released exactly once:
// the transition table guards against a sweep racing a late payment
// webhook, because whichever moves the registration out of pending
// first wins and the loser's move is rejected.
//
// # Thread Safety
//
// All public methods are thread-safe.
type Scheduler struct {
	store   *storage.Store
	metrics *observability.Metrics
	logger  *slog.Logger
	config  SchedulerConfig
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a hold-expiry scheduler. metrics may be nil.
func NewScheduler(store *storage.Store, metrics *observability.Metrics, logger *slog.Logger, config SchedulerConfig) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSchedulerConfig().BatchSize
	}
	if config.HoldTTL <= 0 {
		config.HoldTTL = DefaultSchedulerConfig().HoldTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:   store,
		metrics: metrics,
		logger:  logger,
		config:  config,
		done:    make(chan struct{}),
	}
}

// Start begins the background sweep loop. Returns an error if the
// scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{}) // reset for restart
	s.mu.Unlock()

	s.logger.Info("hold-expiry scheduler starting",
		slog.String("interval", s.config.Interval.String()),
		slog.String("hold_ttl", s.config.HoldTTL.String()),
		slog.Int("batch_size", s.config.BatchSize))

	go s.runLoop(ctx)
	return nil
}

// Stop signals the sweep loop to exit. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.logger.Info("hold-expiry scheduler stopping")
	close(s.done)
	s.running = false
}

// RunNow performs one sweep cycle immediately, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) (SweepResult, error) {
	return s.sweep(ctx)
}

// =============================================================================
// Internal
// =============================================================================

func (s *Scheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.execute(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("hold-expiry scheduler stopped (context cancelled)")
			return
		case <-s.done:
			s.logger.Info("hold-expiry scheduler stopped (stop requested)")
			return
		case <-ticker.C:
			s.execute(ctx)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context) {
	result, err := s.sweep(ctx)
	if err != nil {
		s.logger.Error("hold-expiry sweep failed", slog.String("error", err.Error()))
		return
	}
	if result.Found > 0 {
		s.logger.Info("hold-expiry sweep completed",
			slog.Int("found", result.Found),
			slog.Int("expired", result.Expired),
			slog.Int("errors", len(result.Errors)),
			slog.Int64("duration_ms", result.Duration().Milliseconds()))
	} else {
		s.logger.Debug("hold-expiry sweep completed (nothing overdue)")
	}
}

// sweep expires overdue pending registrations and releases their holds.
func (s *Scheduler) sweep(ctx context.Context) (SweepResult, error) {
	result := SweepResult{StartTime: time.Now()}

	cutoff := time.Now().UTC().Add(-s.config.HoldTTL)
	overdue, err := s.store.ListPendingOlderThan(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		return result, fmt.Errorf("query overdue registrations: %w", err)
	}
	result.Found = len(overdue)

	for _, reg := range overdue {
		if err := s.expire(ctx, reg); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Expired++
	}

	result.EndTime = time.Now()
	return result, nil
}

// expire moves one overdue registration to expired. The status change
// and the inventory release commit in one transaction.
func (s *Scheduler) expire(ctx context.Context, reg datatypes.Registration) error {
	_, err := s.store.TransitionAndRelease(ctx, reg.ID, datatypes.RegistrationExpired, nil)
	if errors.Is(err, storage.ErrInvalidTransition) {
		// A payment webhook won the race; the hold is theirs now.
		return nil
	}
	if err != nil {
		return fmt.Errorf("expire registration %s: %w", reg.ID, err)
	}
	if s.metrics != nil {
		s.metrics.RecordTransition(string(datatypes.RegistrationExpired))
	}
	s.logger.Info("registration hold expired",
		slog.String("registration_id", reg.ID),
		slog.String("event_id", reg.EventID),
		slog.Int("quantity", reg.Quantity))
	return nil
}
