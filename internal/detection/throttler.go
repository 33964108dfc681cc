// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package detection

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/sigvoid/internal/device"
	"github.com/tomtom215/sigvoid/internal/metrics"
)

// ThrottlerConfig sets alert thresholds and the per-address cooldown.
type ThrottlerConfig struct {
	Cooldown         time.Duration
	AnomalyThreshold float64 // alert when anomaly > threshold
	DeauthThreshold  int     // alert when deauth count > threshold
}

// DefaultThrottlerConfig returns the stock thresholds.
func DefaultThrottlerConfig() ThrottlerConfig {
	return ThrottlerConfig{
		Cooldown:         300 * time.Second,
		AnomalyThreshold: 0.8,
		DeauthThreshold:  5,
	}
}

// Throttler decides whether a device state warrants an alert and enforces
// a minimum gap between two alerts for the same address. The gap is measured
// on the wall clock.
type Throttler struct {
	cfg ThrottlerConfig
	now func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewThrottler creates a throttler. now may be nil (time.Now).
func NewThrottler(cfg ThrottlerConfig, now func() time.Time) *Throttler {
	if now == nil {
		now = time.Now
	}
	return &Throttler{cfg: cfg, now: now, last: make(map[string]time.Time)}
}

// Candidate reports whether r crosses an alert threshold.
func (t *Throttler) Candidate(r *device.Record) bool {
	return r.AnomalyScore > t.cfg.AnomalyThreshold || r.DeauthCount > t.cfg.DeauthThreshold
}

// Evaluate returns an alert for r when it is a candidate and the address is
// not cooling down. evilTwin and banned only annotate the alert.
func (t *Throttler) Evaluate(r *device.Record, evilTwin, banned bool) (*Alert, bool) {
	if !t.Candidate(r) {
		return nil, false
	}

	now := t.now()
	t.mu.Lock()
	if last, ok := t.last[r.Address]; ok && now.Sub(last) < t.cfg.Cooldown {
		t.mu.Unlock()
		metrics.AlertsSuppressed.Inc()
		return nil, false
	}
	t.last[r.Address] = now
	t.mu.Unlock()

	metrics.AlertsFired.Inc()
	return t.build(r, evilTwin, banned, now), true
}

func (t *Throttler) build(r *device.Record, evilTwin, banned bool, now time.Time) *Alert {
	a := &Alert{
		ID:               uuid.NewString(),
		Address:          r.Address,
		Vendor:           r.Vendor,
		AnomalyScore:     r.AnomalyScore,
		PersistenceScore: r.PersistenceScore,
		PatternScore:     r.PatternScore,
		DeauthCount:      r.DeauthCount,
		Severity:         SeverityWarning,
		FiredAt:          now,
	}
	if r.AnomalyScore > t.cfg.AnomalyThreshold {
		a.Reasons = append(a.Reasons, ReasonAnomaly)
	}
	if r.DeauthCount > t.cfg.DeauthThreshold {
		a.Reasons = append(a.Reasons, ReasonDeauth)
	}
	if evilTwin {
		a.Reasons = append(a.Reasons, ReasonEvilTwin)
	}
	if banned {
		a.Reasons = append(a.Reasons, ReasonBanned)
	}
	if banned || evilTwin || len(a.Reasons) > 1 {
		a.Severity = SeverityCritical
	}
	return a
}

// Prune forgets addresses whose cooldown has elapsed and returns how many
// entries were removed.
func (t *Throttler) Prune() int {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for addr, last := range t.last {
		if now.Sub(last) >= t.cfg.Cooldown {
			delete(t.last, addr)
			removed++
		}
	}
	return removed
}

// Len returns the number of addresses currently tracked.
func (t *Throttler) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}

// Cooldown returns the configured cooldown, used to schedule Prune.
func (t *Throttler) Cooldown() time.Duration {
	return t.cfg.Cooldown
}
