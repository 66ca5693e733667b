// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package webhooks

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueFull is returned by Enqueue when the queue is at capacity.
var ErrQueueFull = errors.New("webhooks: queue full")

// ErrQueueClosed is returned once the queue has been closed.
var ErrQueueClosed = errors.New("webhooks: queue closed")

// DefaultQueueCapacity bounds the number of jobs waiting for a worker.
// Past this the ingestion endpoint sheds load with 503 and lets Square
// redeliver.
const DefaultQueueCapacity = 1024

// Queue is a bounded priority queue of webhook jobs.
//
// # Description
//
// Jobs drain strictly by priority tier, FIFO within a tier (a sequence
// number assigned at enqueue breaks ties). Capacity is fixed at
// construction; Enqueue never blocks, it fails fast with ErrQueueFull so
// the HTTP layer can shed load. Dequeue blocks until a job, context
// cancellation, or Close.
//
// # Thread Safety
//
// All methods are safe for concurrent use. The ready channel carries one
// token per queued job, so a blocked Dequeue wakes without polling and
// without holding the lock.
type Queue struct {
	mu     sync.Mutex
	heap   jobHeap
	seq    uint64
	closed bool

	ready chan struct{}
	done  chan struct{}

	// onDepth, when set, observes the queue depth after every
	// enqueue/dequeue. Used to keep the Prometheus gauge current.
	onDepth func(int)
}

// NewQueue creates a queue holding at most capacity jobs. A
// non-positive capacity falls back to DefaultQueueCapacity.
func NewQueue(capacity int, onDepth func(int)) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		heap:    make(jobHeap, 0, capacity),
		ready:   make(chan struct{}, capacity),
		done:    make(chan struct{}),
		onDepth: onDepth,
	}
}

// Enqueue adds a job. Returns ErrQueueFull at capacity and
// ErrQueueClosed after Close.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if len(q.heap) >= cap(q.ready) {
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.seq++
	job.seq = q.seq
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	heap.Push(&q.heap, job)
	depth := len(q.heap)
	q.mu.Unlock()

	q.ready <- struct{}{} // capacity matches the heap bound, never blocks
	q.observe(depth)
	return nil
}

// Dequeue removes the highest-priority job, blocking until one is
// available. Returns ctx.Err on cancellation and ErrQueueClosed once
// the queue is closed and drained.
func (q *Queue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case <-q.ready:
	case <-q.done:
		// Closed: drain leftovers before reporting closed.
		select {
		case <-q.ready:
		default:
			return Job{}, ErrQueueClosed
		}
	}

	q.mu.Lock()
	job := heap.Pop(&q.heap).(Job)
	depth := len(q.heap)
	q.mu.Unlock()

	q.observe(depth)
	return job, nil
}

// Len returns the number of waiting jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Close stops accepting jobs. Blocked Dequeue calls drain remaining
// jobs, then return ErrQueueClosed. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
}

func (q *Queue) observe(depth int) {
	if q.onDepth != nil {
		q.onDepth(depth)
	}
}

// =============================================================================
// Heap
// =============================================================================

// jobHeap orders by priority, then by arrival sequence within a tier.
type jobHeap []Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(Job)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	*h = old[:n-1]
	return job
}
