// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package detection

import (
	"context"
	"fmt"
	"time"
)

// Severity indicates how urgent an alert is.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Reasons attached to an alert.
const (
	ReasonAnomaly  = "anomaly_score"
	ReasonDeauth   = "deauth_flood"
	ReasonEvilTwin = "evil_twin"
	ReasonBanned   = "banned"
)

// Alert is released by the Throttler and handed to every AlertSink.
type Alert struct {
	ID               string    `json:"id"`
	Address          string    `json:"mac"`
	Vendor           string    `json:"vendor"`
	AnomalyScore     float64   `json:"anomaly_score"`
	PersistenceScore float64   `json:"persistence_score"`
	PatternScore     float64   `json:"pattern_score"`
	DeauthCount      int       `json:"deauth_count"`
	Reasons          []string  `json:"reasons"`
	Severity         Severity  `json:"severity"`
	FiredAt          time.Time `json:"fired_at"`
}

// Message renders the alert as a single human readable line.
func (a *Alert) Message() string {
	return fmt.Sprintf("Suspicious - MAC=%s, Score=%.2f, Persistence=%.2f, Pattern=%.2f, Deauths=%d, Vendor=%s",
		a.Address, a.AnomalyScore, a.PersistenceScore, a.PatternScore, a.DeauthCount, a.Vendor)
}

// AlertSink delivers alerts somewhere outside the process.
type AlertSink interface {
	Deliver(ctx context.Context, alert *Alert) error
	Name() string
}
