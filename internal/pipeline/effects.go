// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sigvoid/internal/detection"
	"github.com/tomtom215/sigvoid/internal/device"
	"github.com/tomtom215/sigvoid/internal/metrics"
	"github.com/tomtom215/sigvoid/internal/storage"
)

// Effect is the external work produced by one applied record. Effects are
// applied strictly in the order the dispatcher produced them.
type Effect struct {
	Address string
	Summary device.Summary
	Raw     []byte
	Scores  storage.Scores
	Alert   *detection.Alert
}

// effectsWriter applies effects on a single goroutine. Failures are logged
// and counted, never retried.
type effectsWriter struct {
	gateway storage.Gateway
	sink    detection.AlertSink
	ch      chan Effect
	logger  zerolog.Logger
}

func newEffectsWriter(gateway storage.Gateway, sink detection.AlertSink, capacity int, logger zerolog.Logger) *effectsWriter {
	if capacity < 1 {
		capacity = 1
	}
	return &effectsWriter{
		gateway: gateway,
		sink:    sink,
		ch:      make(chan Effect, capacity),
		logger:  logger,
	}
}

// enqueue blocks while the writer is full.
func (w *effectsWriter) enqueue(ctx context.Context, e Effect) error {
	select {
	case w.ch <- e:
		metrics.EffectsDepth.Set(float64(len(w.ch)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops intake. run returns once the backlog is applied.
func (w *effectsWriter) close() { close(w.ch) }

func (w *effectsWriter) run(ctx context.Context) {
	for e := range w.ch {
		metrics.EffectsDepth.Set(float64(len(w.ch)))
		if ctx.Err() != nil {
			// Out of time: discard the rest.
			continue
		}
		w.apply(ctx, e)
	}
	metrics.EffectsDepth.Set(0)
}

func (w *effectsWriter) apply(ctx context.Context, e Effect) {
	if w.gateway != nil {
		err := w.gateway.UpsertDevice(ctx, e.Address, e.Summary)
		metrics.RecordPersistence("upsert_device", err)
		if err != nil {
			w.logger.Error().Err(err).Str("mac", e.Address).Msg("Failed to persist device")
		}

		if len(e.Raw) > 0 {
			err = w.gateway.AppendLogEntry(ctx, e.Address, e.Raw, e.Scores)
			metrics.RecordPersistence("append_log", err)
			if err != nil {
				w.logger.Error().Err(err).Str("mac", e.Address).Msg("Failed to append log entry")
			}
		}
	}

	if e.Alert != nil && w.sink != nil {
		if err := w.sink.Deliver(ctx, e.Alert); err != nil {
			w.logger.Error().Err(err).Str("mac", e.Address).Str("alert_id", e.Alert.ID).Msg("Alert delivery incomplete")
		}
	}
}
