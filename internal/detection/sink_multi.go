// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package detection

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/sigvoid/internal/logging"
	"github.com/tomtom215/sigvoid/internal/metrics"
)

// MultiSink delivers to every registered sink in order. A failing sink does
// not stop delivery to the others.
type MultiSink struct {
	sinks []AlertSink
}

// NewMultiSink fans out to sinks.
func NewMultiSink(sinks ...AlertSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Add registers another sink.
func (m *MultiSink) Add(s AlertSink) {
	m.sinks = append(m.sinks, s)
}

// Names lists the registered sinks.
func (m *MultiSink) Names() []string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return names
}

func (m *MultiSink) Name() string { return "multi" }

// Deliver returns the joined errors of all failed sinks.
func (m *MultiSink) Deliver(ctx context.Context, alert *Alert) error {
	var errs []error
	for _, s := range m.sinks {
		err := s.Deliver(ctx, alert)
		metrics.RecordDelivery(s.Name(), err)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("sink", s.Name()).Str("mac", alert.Address).
				Msg("Alert delivery failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
