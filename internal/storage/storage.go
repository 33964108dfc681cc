// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

// Package storage persists device summaries, per-event log entries, the
// operator ban list and sensor settings.
//
// The detection core only depends on Gateway. Admin operations used by the
// HTTP API live on Store, which both BadgerStore and MemoryStore implement.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sigvoid/internal/device"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrStoreClosed is returned by every operation after Close.
	ErrStoreClosed = errors.New("storage: closed")
)

// Setting keys for the sensor access point.
const (
	SettingAPSSID     = "esp_ap_ssid"
	SettingAPPassword = "esp_ap_password"
)

// Scores is the score triple recorded with each log entry.
type Scores struct {
	Anomaly     float64 `json:"anomaly"`
	Persistence float64 `json:"persistence"`
	Pattern     float64 `json:"pattern"`
}

// LogEntry is one raw sensor record with the scores computed after it.
type LogEntry struct {
	ID         string          `json:"id"`
	Address    string          `json:"mac"`
	Raw        json.RawMessage `json:"raw"`
	Scores     Scores          `json:"scores"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Ban is an operator ban on an address.
type Ban struct {
	Address  string    `json:"mac"`
	Reason   string    `json:"reason,omitempty"`
	BannedAt time.Time `json:"banned_at"`
}

// Gateway is what the detection pipeline needs from persistence.
type Gateway interface {
	UpsertDevice(ctx context.Context, addr string, summary device.Summary) error
	AppendLogEntry(ctx context.Context, addr string, raw []byte, scores Scores) error
	CountDevices(ctx context.Context) (int, error)
	ListBannedAddresses(ctx context.Context) ([]string, error)
}

// Store adds the admin operations behind the HTTP API.
type Store interface {
	Gateway

	GetDevice(ctx context.Context, addr string) (device.Summary, error)
	ListDevices(ctx context.Context) ([]device.Summary, error)
	ListLogEntries(ctx context.Context, addr string, limit int) ([]LogEntry, error)

	BanAddress(ctx context.Context, addr, reason string) error
	UnbanAddress(ctx context.Context, addr string) error
	ListBans(ctx context.Context) ([]Ban, error)

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	Close() error
}

// SettingOr returns the stored value for key, or def when it is unset or the
// lookup fails.
func SettingOr(ctx context.Context, s Store, key, def string) string {
	v, err := s.GetSetting(ctx, key)
	if err != nil {
		return def
	}
	return v
}
