// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

// Package pipeline consumes decoded sensor records, keeps device state and
// scores current, and hands persistence and alert work to an ordered
// side-effect writer.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sigvoid/internal/detection"
	"github.com/tomtom215/sigvoid/internal/device"
	"github.com/tomtom215/sigvoid/internal/logging"
	"github.com/tomtom215/sigvoid/internal/metrics"
	"github.com/tomtom215/sigvoid/internal/scoring"
	"github.com/tomtom215/sigvoid/internal/storage"
	"github.com/tomtom215/sigvoid/internal/stream"
)

// Observer is notified synchronously from the dispatcher goroutine and must
// not block.
type Observer interface {
	DeviceUpdated(summary device.Summary)
	DiagnosticsUpdated(diag device.Diagnostics)
	AlertFired(alert *detection.Alert)
}

// Config tunes the dispatcher.
type Config struct {
	// EffectsCapacity bounds the side-effect backlog. A full backlog blocks
	// the dispatcher.
	EffectsCapacity int
	// DrainTimeout bounds shutdown work: applying queued records and
	// flushing their effects.
	DrainTimeout time.Duration
}

// Deps are the collaborators of a Dispatcher. Bans, Gateway, Sink and
// Observer are optional.
type Deps struct {
	Queue     *stream.Queue
	Devices   *device.Store
	EvilTwin  *detection.EvilTwinDetector
	Bans      *detection.BanList
	Throttler *detection.Throttler
	Gateway   storage.Gateway
	Sink      detection.AlertSink
	Observer  Observer
}

// Dispatcher is the single consumer of the record queue and the only writer
// of device records.
type Dispatcher struct {
	deps   Deps
	cfg    Config
	logger zerolog.Logger
}

// New creates a dispatcher.
func New(deps Deps, cfg Config) *Dispatcher {
	if cfg.EffectsCapacity <= 0 {
		cfg.EffectsCapacity = 1024
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if deps.EvilTwin == nil && deps.Devices != nil {
		deps.EvilTwin = detection.NewEvilTwinDetector(deps.Devices, 0)
	}
	if deps.Throttler == nil {
		deps.Throttler = detection.NewThrottler(detection.DefaultThrottlerConfig(), nil)
	}
	return &Dispatcher{deps: deps, cfg: cfg, logger: logging.WithComponent("dispatcher")}
}

// Serve consumes the queue until ctx is cancelled, then applies whatever is
// still queued and flushes pending effects, both within DrainTimeout.
func (d *Dispatcher) Serve(ctx context.Context) error {
	effCtx, effCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer effCancel()

	effects := newEffectsWriter(d.deps.Gateway, d.deps.Sink, d.cfg.EffectsCapacity, d.logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		effects.run(effCtx)
	}()

	d.logger.Info().Int("queue_capacity", d.deps.Queue.Cap()).Str("overflow", d.deps.Queue.Policy().String()).
		Msg("Dispatcher started")

	var err error
	for {
		var rec *stream.Record
		rec, err = d.deps.Queue.Pop(ctx)
		if err != nil {
			break
		}
		if e, ok := d.Apply(ctx, rec); ok {
			if qerr := effects.enqueue(ctx, e); qerr != nil {
				// Cancelled while the writer was full; keep the effect.
				_ = effects.enqueue(effCtx, e)
			}
		}
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.DrainTimeout)
	defer cancel()

	drained := 0
	for drainCtx.Err() == nil {
		rec, ok := d.deps.Queue.TryPop()
		if !ok {
			break
		}
		if e, ok := d.Apply(drainCtx, rec); ok {
			if effects.enqueue(drainCtx, e) != nil {
				break
			}
		}
		drained++
	}
	effects.close()

	select {
	case <-done:
	case <-drainCtx.Done():
		d.logger.Warn().Msg("Drain timeout reached, discarding pending side effects")
		effCancel()
		<-done
	}

	d.logger.Info().Int("drained", drained).Int("left_in_queue", d.deps.Queue.Len()).Msg("Dispatcher stopped")
	return err
}

func (d *Dispatcher) String() string { return "dispatcher" }

// Apply folds one record into device state and returns the side effects it
// produced. Records that touch no device (diagnostics, info, error) return
// false.
func (d *Dispatcher) Apply(ctx context.Context, rec *stream.Record) (Effect, bool) {
	start := time.Now()
	defer func() {
		metrics.RecordScoring(string(rec.Type), time.Since(start))
	}()

	switch rec.Type {
	case stream.KindProbe:
		return d.applyProbe(ctx, rec), true
	case stream.KindDeauth:
		return d.applyDeauth(ctx, rec), true
	case stream.KindDiagnostics:
		diag := d.deps.Devices.SetDiagnostics(rec.FreeHeap, rec.Uptime)
		metrics.EventsApplied.WithLabelValues(string(rec.Type)).Inc()
		if d.deps.Observer != nil {
			d.deps.Observer.DiagnosticsUpdated(diag)
		}
		d.logger.Debug().Int64("free_heap", rec.FreeHeap).Float64("uptime_seconds", diag.UptimeSeconds).
			Msg("Sensor diagnostics")
	case stream.KindInfo:
		metrics.EventsApplied.WithLabelValues(string(rec.Type)).Inc()
		d.logger.Info().Str("message", rec.Message).Msg("Sensor info")
	case stream.KindError:
		metrics.EventsApplied.WithLabelValues(string(rec.Type)).Inc()
		d.logger.Warn().Str("message", rec.Message).Msg("Sensor error")
	default:
		d.logger.Warn().Str("type", string(rec.Type)).Msg("Ignoring record of unknown type")
	}
	return Effect{}, false
}

func (d *Dispatcher) applyProbe(ctx context.Context, rec *stream.Record) Effect {
	r := d.deps.Devices.ApplyProbe(device.Probe{
		Address:   rec.MAC,
		SSID:      rec.SSID,
		BSSID:     rec.BSSID,
		RSSI:      rec.RSSI,
		Channel:   rec.Channel,
		Timestamp: rec.Timestamp,
	})

	base := scoring.Anomaly(r, d.deps.Devices.Len())
	evilTwin := d.deps.EvilTwin.Check(r.Address, rec.SSID, rec.BSSID, rec.Timestamp)
	if evilTwin {
		metrics.EvilTwinMatches.Inc()
		d.logger.Warn().Str("mac", r.Address).Str("ssid", rec.SSID).Str("bssid", rec.BSSID).
			Msg("Evil twin indicator")
	}
	banned := d.isBanned(ctx, r.Address)

	d.deps.Devices.SetScores(r,
		scoring.Adjust(base, evilTwin, banned),
		scoring.Persistence(r),
		scoring.Pattern(r),
	)
	return d.finish(rec, r, evilTwin, banned)
}

func (d *Dispatcher) applyDeauth(ctx context.Context, rec *stream.Record) Effect {
	r := d.deps.Devices.ApplyDeauth(rec.MAC)

	base := scoring.Anomaly(r, d.deps.Devices.Len())
	banned := d.isBanned(ctx, r.Address)
	d.deps.Devices.SetAnomaly(r, scoring.Adjust(base, false, banned))
	return d.finish(rec, r, false, banned)
}

func (d *Dispatcher) isBanned(ctx context.Context, addr string) bool {
	if d.deps.Bans == nil {
		return false
	}
	return d.deps.Bans.IsBanned(ctx, addr)
}

// finish builds the effect for a mutated record and notifies the observer.
func (d *Dispatcher) finish(rec *stream.Record, r *device.Record, evilTwin, banned bool) Effect {
	metrics.EventsApplied.WithLabelValues(string(rec.Type)).Inc()
	metrics.DevicesKnown.Set(float64(d.deps.Devices.Len()))

	summary := r.Summary()
	e := Effect{
		Address: r.Address,
		Summary: summary,
		Raw:     rec.Raw,
		Scores: storage.Scores{
			Anomaly:     r.AnomalyScore,
			Persistence: r.PersistenceScore,
			Pattern:     r.PatternScore,
		},
	}

	if alert, ok := d.deps.Throttler.Evaluate(r, evilTwin, banned); ok {
		e.Alert = alert
		d.logger.Warn().Str("mac", alert.Address).Str("severity", string(alert.Severity)).
			Strs("reasons", alert.Reasons).Float64("anomaly", alert.AnomalyScore).Msg(alert.Message())
	}

	if d.deps.Observer != nil {
		d.deps.Observer.DeviceUpdated(summary)
		if e.Alert != nil {
			d.deps.Observer.AlertFired(e.Alert)
		}
	}
	return e
}
