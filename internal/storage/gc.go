// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package storage

import (
	"context"
	"time"

	"github.com/tomtom215/sigvoid/internal/logging"
	"github.com/tomtom215/sigvoid/internal/metrics"
)

// DefaultGCRatio is the discard ratio passed to value log GC.
const DefaultGCRatio = 0.5

// Collector is a supervised service that periodically reclaims value log
// space left behind by expired log entries and, when configured, lifts
// bans older than a maximum age.
type Collector struct {
	store     *BadgerStore
	interval  time.Duration
	ratio     float64
	banMaxAge time.Duration
}

// NewCollector creates a collector for store.
func NewCollector(store *BadgerStore, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Collector{store: store, interval: interval, ratio: DefaultGCRatio}
}

// WithBanMaxAge makes every pass lift bans older than maxAge. Zero keeps
// bans until they are lifted through the API.
func (c *Collector) WithBanMaxAge(maxAge time.Duration) *Collector {
	c.banMaxAge = maxAge
	return c
}

// Serve runs until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.RunNow(ctx)
		}
	}
}

// RunNow performs one collection pass.
func (c *Collector) RunNow(ctx context.Context) {
	if c.banMaxAge > 0 {
		c.pruneBans(ctx)
	}

	start := time.Now()
	rewritten, err := c.store.RunGC(c.ratio)
	metrics.RecordPersistence("gc", err)
	if err != nil {
		logging.Error().Err(err).Msg("Storage GC failed")
		return
	}
	if rewritten > 0 {
		logging.Info().Int("files", rewritten).Dur("duration", time.Since(start)).Msg("Storage GC reclaimed value log files")
	}
}

func (c *Collector) pruneBans(ctx context.Context) {
	cutoff := c.store.now().Add(-c.banMaxAge)
	n, err := c.store.PruneBans(ctx, cutoff)
	metrics.RecordPersistence("prune_bans", err)
	if err != nil {
		logging.Error().Err(err).Msg("Ban pruning failed")
		return
	}
	if n > 0 {
		logging.Info().Int("bans", n).Dur("max_age", c.banMaxAge).Msg("Expired bans lifted")
	}
}

func (c *Collector) String() string { return "storage-gc" }
