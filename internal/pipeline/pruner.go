// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package pipeline

import (
	"context"
	"time"

	"github.com/tomtom215/sigvoid/internal/detection"
	"github.com/tomtom215/sigvoid/internal/logging"
)

// CooldownPruner periodically drops expired throttler entries so the
// per-address map does not grow with every address ever alerted on.
type CooldownPruner struct {
	throttler *detection.Throttler
	interval  time.Duration
}

// NewCooldownPruner prunes every interval, defaulting to the cooldown.
func NewCooldownPruner(t *detection.Throttler, interval time.Duration) *CooldownPruner {
	if interval <= 0 {
		interval = t.Cooldown()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &CooldownPruner{throttler: t, interval: interval}
}

func (p *CooldownPruner) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := p.throttler.Prune(); n > 0 {
				logging.Debug().Int("removed", n).Int("tracked", p.throttler.Len()).Msg("Pruned alert cooldowns")
			}
		}
	}
}

func (p *CooldownPruner) String() string { return "cooldown-pruner" }
