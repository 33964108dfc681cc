// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package stream

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tomtom215/sigvoid/internal/metrics"
)

// OverflowPolicy decides what Push does when the queue is full.
type OverflowPolicy int

const (
	// Block makes the producer wait, pushing back on the sensor link.
	Block OverflowPolicy = iota
	// DropOldest evicts the oldest queued record to make room.
	DropOldest
)

// ParseOverflowPolicy maps the configuration value to a policy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "", "block":
		return Block, nil
	case "drop_oldest":
		return DropOldest, nil
	default:
		return Block, fmt.Errorf("unknown overflow policy %q", s)
	}
}

func (p OverflowPolicy) String() string {
	if p == DropOldest {
		return "drop_oldest"
	}
	return "block"
}

// Queue is a bounded FIFO between one producer (the reader) and one
// consumer (the dispatcher). Records come out in the order they went in.
type Queue struct {
	ch      chan *Record
	policy  OverflowPolicy
	dropped atomic.Uint64
}

// NewQueue creates a queue holding at most capacity records.
func NewQueue(capacity int, policy OverflowPolicy) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan *Record, capacity), policy: policy}
}

// Push enqueues rec. Under Block it waits for room or ctx; under DropOldest
// it never waits.
func (q *Queue) Push(ctx context.Context, rec *Record) error {
	if q.policy == DropOldest {
		for {
			select {
			case q.ch <- rec:
				metrics.QueueDepth.Set(float64(len(q.ch)))
				return nil
			default:
			}
			select {
			case <-q.ch:
				q.dropped.Add(1)
				metrics.QueueDropped.Inc()
			default:
			}
		}
	}

	select {
	case q.ch <- rec:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop waits for the next record or ctx.
func (q *Queue) Pop(ctx context.Context) (*Record, error) {
	select {
	case rec := <-q.ch:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return rec, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryPop returns the next record without waiting.
func (q *Queue) TryPop() (*Record, bool) {
	select {
	case rec := <-q.ch:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return rec, true
	default:
		return nil, false
	}
}

// Len returns the number of queued records.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

// Dropped returns how many records DropOldest has evicted.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// Policy returns the overflow policy.
func (q *Queue) Policy() OverflowPolicy { return q.policy }
