// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package detection

import (
	"time"

	"github.com/tomtom215/sigvoid/internal/device"
)

// RecordScanner iterates every record except one address.
type RecordScanner interface {
	EachOther(addr string, fn func(*device.Record) bool)
}

// EvilTwinDetector flags a probe whose network name was also probed for
// by a different transmitter seen recently. This is a heuristic: two
// legitimate phones looking for the same public network will also match.
type EvilTwinDetector struct {
	records RecordScanner
	window  time.Duration
}

// NewEvilTwinDetector creates a detector over records. A zero window
// defaults to five minutes.
func NewEvilTwinDetector(records RecordScanner, window time.Duration) *EvilTwinDetector {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &EvilTwinDetector{records: records, window: window}
}

// Check reports a match for a probe from addr for ssid via bssid at sensor
// time nowMillis. A probe without both ssid and bssid never matches. The
// window is symmetric: sensor time restarts at zero after a reboot, so a
// record stamped far ahead of nowMillis is stale, not recent.
func (d *EvilTwinDetector) Check(addr, ssid, bssid string, nowMillis int64) bool {
	if ssid == "" || bssid == "" {
		return false
	}
	windowMillis := d.window.Milliseconds()
	match := false
	d.records.EachOther(addr, func(r *device.Record) bool {
		if !r.HasSSID(ssid) {
			return true
		}
		last, ok := r.LastTimestamp()
		if !ok {
			return true
		}
		gap := nowMillis - last
		if gap < 0 {
			gap = -gap
		}
		if gap < windowMillis {
			match = true
			return false
		}
		return true
	})
	return match
}
