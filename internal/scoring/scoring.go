// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

// Package scoring computes the per-device risk scores.
//
// All functions are pure: the same record and device count always yield the
// same score, and every result lies in [0, 1].
//
// The anomaly score is the capped sum of five weighted terms. Three of the
// weights grow slightly with the number of devices in view (up to 10), so a
// crowded environment makes diversity signals count a little more:
//
//	ssid diversity     0.30 + 0.10*d   scaled by min(1, ssids/5)
//	probe frequency    0.20 + 0.10*d   scaled by min(1, probes_per_second/2)
//	deauth volume      0.20            scaled by min(1, deauths/5)
//	rssi variance      0.10 + 0.05*d   scaled by min(1, variance/100)
//	channel diversity  0.10            scaled by min(1, channels/3)
//
// where d = min(deviceCount/10, 1).
package scoring

import (
	"github.com/tomtom215/sigvoid/internal/device"
)

// Escalation constants applied after the base anomaly sum.
const (
	EvilTwinBonus = 0.3
	BannedFloor   = 0.95
)

const millisPerHour = 3_600_000

// Terms is the per-term breakdown of the base anomaly score.
type Terms struct {
	SSIDDiversity    float64 `json:"ssid_diversity"`
	ProbeFrequency   float64 `json:"probe_frequency"`
	Deauth           float64 `json:"deauth"`
	RSSIVariance     float64 `json:"rssi_variance"`
	ChannelDiversity float64 `json:"channel_diversity"`
}

// Sum returns the capped base score.
func (t Terms) Sum() float64 {
	return Clamp(t.SSIDDiversity + t.ProbeFrequency + t.Deauth + t.RSSIVariance + t.ChannelDiversity)
}

// Breakdown computes each anomaly term for r given deviceCount devices in view.
func Breakdown(r *device.Record, deviceCount int) Terms {
	d := min(float64(deviceCount)/10, 1)

	var t Terms
	t.SSIDDiversity = (0.3 + 0.1*d) * ratio(float64(len(r.SSIDSet)), 5)

	if n := len(r.TimestampHistory); n >= 2 {
		span := r.TimestampHistory[n-1] - r.TimestampHistory[0]
		if span > 0 {
			freq := float64(n) / (float64(span) / 1000)
			t.ProbeFrequency = (0.2 + 0.1*d) * ratio(freq, 2)
		}
	}

	t.Deauth = 0.2 * ratio(float64(r.DeauthCount), 5)

	if len(r.RSSIHistory) >= 3 {
		if v := sampleVariance(r.RSSIHistory); v > 0 {
			t.RSSIVariance = (0.1 + 0.05*d) * ratio(v, 100)
		}
	}

	t.ChannelDiversity = 0.1 * ratio(float64(len(r.ChannelCounts)), 3)
	return t
}

// Anomaly returns the base anomaly score, before evil-twin and ban escalation.
func Anomaly(r *device.Record, deviceCount int) float64 {
	return Breakdown(r, deviceCount).Sum()
}

// Adjust applies escalation to a base anomaly score: the evil-twin bonus is
// added before clamping, and banned devices never score below BannedFloor.
func Adjust(base float64, evilTwin, banned bool) float64 {
	s := base
	if evilTwin {
		s += EvilTwinBonus
	}
	s = Clamp(s)
	if banned && s < BannedFloor {
		s = BannedFloor
	}
	return s
}

// Persistence measures how continuously a device has been present:
// probes per hour of observed span, saturating at 1. A tenth of an hour is
// added to the span so a short burst does not divide by zero.
func Persistence(r *device.Record) float64 {
	n := len(r.TimestampHistory)
	if n < 2 {
		return 0
	}
	spanHours := float64(r.TimestampHistory[n-1]-r.TimestampHistory[0]) / millisPerHour
	return Clamp(float64(n) / (spanHours + 0.1))
}

// Pattern is the fraction of distinct consecutive SSID transitions in the
// recent probe history. A device cycling through many different networks
// scores high; one repeating a single network scores low.
func Pattern(r *device.Record) float64 {
	h := r.SSIDHistory
	if len(h) < 2 {
		return 0
	}
	type pair struct{ from, to string }
	seen := make(map[pair]struct{}, len(h)-1)
	for i := 0; i < len(h)-1; i++ {
		seen[pair{h[i], h[i+1]}] = struct{}{}
	}
	return Clamp(float64(len(seen)) / float64(len(h)-1))
}

// Clamp bounds v to [0, 1].
func Clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func ratio(v, full float64) float64 {
	return min(1, v/full)
}

func sampleVariance(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var sq float64
	for _, x := range xs {
		dev := x - mean
		sq += dev * dev
	}
	return sq / float64(len(xs)-1)
}
