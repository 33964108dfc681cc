// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package stream

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sigvoid/internal/validation"
)

// Kind is the record type reported by the sensor.
type Kind string

const (
	KindProbe       Kind = "probe"
	KindDeauth      Kind = "deauth"
	KindDiagnostics Kind = "diagnostics"
	KindInfo        Kind = "info"
	KindError       Kind = "error"
)

// Record is one decoded line from the sensor. Optional numeric fields are
// pointers so that "absent" and "zero" stay distinguishable.
type Record struct {
	Type      Kind     `json:"type" validate:"required,oneof=probe deauth diagnostics info error"`
	MAC       string   `json:"mac,omitempty" validate:"required_if=Type probe,required_if=Type deauth,omitempty,mac"`
	SSID      string   `json:"ssid,omitempty" validate:"max=32"`
	BSSID     string   `json:"bssid,omitempty" validate:"omitempty,mac"`
	RSSI      *float64 `json:"rssi,omitempty" validate:"omitempty,gte=-128,lte=127"`
	Channel   *int     `json:"channel,omitempty" validate:"omitempty,gte=0,lte=255"`
	Timestamp int64    `json:"timestamp,omitempty" validate:"gte=0"`
	FreeHeap  int64    `json:"free_heap,omitempty" validate:"gte=0"`
	Uptime    int64    `json:"uptime,omitempty" validate:"gte=0"`
	Message   string   `json:"message,omitempty"`

	// Raw is the original line, kept for log entries.
	Raw []byte `json:"-"`
}

// Decode errors, distinguished for metrics.
var (
	ErrMalformed = errors.New("malformed record")
	ErrInvalid   = errors.New("invalid record")
)

// Decode parses and validates one line (without the trailing newline).
// The returned record keeps its own copy of line in Raw.
func Decode(line []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validation.ValidateStruct(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	rec.Raw = append([]byte(nil), line...)
	return &rec, nil
}
