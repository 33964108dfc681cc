// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package main

import (
	"fmt"

	"github.com/tomtom215/sigvoid/internal/config"
	"github.com/tomtom215/sigvoid/internal/detection"
	"github.com/tomtom215/sigvoid/internal/logging"
)

// buildSinks assembles the configured alert sinks. The returned func
// releases broker connections.
func buildSinks(alerts *config.AlertsConfig, nats *config.NATSConfig) (detection.AlertSink, func(), error) {
	multi := detection.NewMultiSink()
	closers := []func() error{}

	if alerts.LogPath != "" {
		multi.Add(detection.NewFileSink(alerts.LogPath))
	}
	if alerts.ExecCommand != "" {
		multi.Add(detection.NewExecSink(alerts.ExecCommand, alerts.ExecArgs, alerts.ExecTimeout))
	}
	if alerts.WebhookURL != "" {
		multi.Add(detection.NewWebhookNotifier(detection.WebhookConfig{
			URL:              alerts.WebhookURL,
			Timeout:          alerts.WebhookTimeout,
			MinGap:           alerts.WebhookMinGap,
			BreakerThreshold: alerts.BreakerThreshold,
			BreakerTimeout:   alerts.BreakerTimeout,
		}))
	}
	if nats.Enabled {
		pub, err := detection.NewNATSPublisher(nats.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect alert broker: %w", err)
		}
		ps := detection.NewPublisherSink(pub, nats.Topic)
		multi.Add(ps)
		closers = append(closers, ps.Close)
	}

	logging.Info().Strs("sinks", multi.Names()).Msg("Alert sinks configured")

	return multi, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logging.Warn().Err(err).Msg("Failed to close alert sink")
			}
		}
	}, nil
}
