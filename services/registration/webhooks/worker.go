// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package webhooks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/foundersday/platform/pkg/retry"
	"github.com/foundersday/platform/services/registration/datatypes"
	"github.com/foundersday/platform/services/registration/observability"
	"github.com/foundersday/platform/services/registration/storage"
)

// DefaultWorkers is the fixed concurrency of the drain pool.
const DefaultWorkers = 4

// PoolConfig configures the worker pool.
type PoolConfig struct {
	// Workers is the number of concurrent drain goroutines.
	// Non-positive falls back to DefaultWorkers.
	Workers int

	// Retry governs per-job attempts. Zero value uses retry.DefaultConfig.
	Retry retry.Config
}

// Pool drains the priority queue with a fixed number of workers. Each
// job runs through the processor under the bounded retry policy;
// exhausted jobs are marked dead and recorded, never re-queued.
type Pool struct {
	queue     *Queue
	processor *Processor
	store     *storage.Store
	metrics   *observability.Metrics
	publisher Publisher
	logger    *slog.Logger

	workers  int
	retryCfg retry.Config
}

// NewPool wires a pool over a queue and processor. metrics and
// publisher may be nil.
func NewPool(cfg PoolConfig, queue *Queue, processor *Processor, store *storage.Store,
	metrics *observability.Metrics, publisher Publisher, logger *slog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Retry == (retry.Config{}) {
		cfg.Retry = retry.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		queue:     queue,
		processor: processor,
		store:     store,
		metrics:   metrics,
		publisher: publisher,
		logger:    logger,
		workers:   cfg.Workers,
		retryCfg:  cfg.Retry,
	}
}

// Run drains the queue until ctx is cancelled or the queue is closed
// and empty. It blocks; call it from its own goroutine or errgroup.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		worker := i
		g.Go(func() error {
			return p.drain(ctx, worker)
		})
	}
	return g.Wait()
}

func (p *Pool) drain(ctx context.Context, worker int) error {
	logger := p.logger.With(slog.Int("worker", worker))
	for {
		job, err := p.queue.Dequeue(ctx)
		if errors.Is(err, ErrQueueClosed) || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		p.processJob(ctx, logger, job)
	}
}

// processJob runs one job through the processor with bounded retries
// and records the final outcome.
func (p *Pool) processJob(ctx context.Context, logger *slog.Logger, job Job) {
	tier := job.Priority.String()
	start := time.Now()

	result, err := retry.Do(ctx, p.retryCfg, func(ctx context.Context, attempt int) error {
		procErr := p.processor.Process(ctx, job.Envelope)
		if procErr != nil && attempt < p.retryCfg.MaxAttempts && !retry.IsPermanent(procErr) {
			p.recordAttempt(ctx, job, "retry", attempt, procErr)
			if p.metrics != nil {
				p.metrics.RecordJob(tier, observability.OutcomeRetried)
			}
		}
		return procErr
	})

	if p.metrics != nil {
		p.metrics.RecordProcessing(tier, time.Since(start).Seconds())
	}

	if err == nil {
		p.recordAttempt(ctx, job, "succeeded", result.Attempts, nil)
		if p.metrics != nil {
			p.metrics.RecordJob(tier, observability.OutcomeSucceeded)
		}
		return
	}

	// Retries exhausted (or a permanent failure): the job is dead. It is
	// recorded for the analytics surface and never re-queued.
	p.recordAttempt(ctx, job, "dead", result.Attempts, err)
	if _, cntErr := p.store.IncrCounter(ctx, "webhooks_dead", 1); cntErr != nil {
		p.logger.Warn("increment dead counter", slog.String("error", cntErr.Error()))
	}
	if p.metrics != nil {
		p.metrics.RecordJob(tier, observability.OutcomeDead)
	}
	if p.publisher != nil {
		p.publisher.Publish(datatypes.FeedEvent{
			Kind:   "webhook_dead",
			Detail: job.Envelope.Type,
			At:     time.Now().UTC(),
		})
	}
	logger.Error("webhook job dead",
		slog.String("event_id", job.Envelope.EventID),
		slog.String("type", job.Envelope.Type),
		slog.Int("attempts", result.Attempts),
		slog.String("error", err.Error()))
}

func (p *Pool) recordAttempt(ctx context.Context, job Job, outcome string, attempt int, cause error) {
	record := datatypes.AttemptRecord{
		EventID:      job.Envelope.EventID,
		EventType:    job.Envelope.Type,
		Outcome:      outcome,
		AttemptCount: attempt,
	}
	if cause != nil {
		record.LastError = cause.Error()
	}
	if err := p.store.RecordAttempt(ctx, record); err != nil {
		p.logger.Warn("record webhook attempt",
			slog.String("event_id", job.Envelope.EventID),
			slog.String("error", err.Error()))
	}
}
