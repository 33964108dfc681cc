// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/sigvoid/internal/device"
)

// MemoryStore is a map-backed Store for tests and throwaway runs.
type MemoryStore struct {
	mu       sync.RWMutex
	devices  map[string]device.Summary
	logs     map[string][]LogEntry
	bans     map[string]Ban
	settings map[string]string
	closed   bool

	// FailWrites makes every mutating call return this error when set.
	FailWrites error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices:  make(map[string]device.Summary),
		logs:     make(map[string][]LogEntry),
		bans:     make(map[string]Ban),
		settings: make(map[string]string),
	}
}

// writable must be called with mu held.
func (m *MemoryStore) writable() error {
	if m.closed {
		return ErrStoreClosed
	}
	return m.FailWrites
}

func (m *MemoryStore) UpsertDevice(_ context.Context, addr string, summary device.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return err
	}
	addr = device.NormalizeAddress(addr)
	summary.Address = addr
	m.devices[addr] = summary
	return nil
}

func (m *MemoryStore) AppendLogEntry(_ context.Context, addr string, raw []byte, scores Scores) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return err
	}
	addr = device.NormalizeAddress(addr)
	entry := LogEntry{
		ID:         uuid.NewString(),
		Address:    addr,
		Raw:        append(json.RawMessage(nil), raw...),
		Scores:     scores,
		RecordedAt: time.Now().UTC(),
	}
	m.logs[addr] = append(m.logs[addr], entry)
	return nil
}

func (m *MemoryStore) CountDevices(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrStoreClosed
	}
	return len(m.devices), nil
}

func (m *MemoryStore) ListBannedAddresses(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	out := make([]string, 0, len(m.bans))
	for addr := range m.bans {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) GetDevice(_ context.Context, addr string) (device.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return device.Summary{}, ErrStoreClosed
	}
	s, ok := m.devices[device.NormalizeAddress(addr)]
	if !ok {
		return device.Summary{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) ListDevices(context.Context) ([]device.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	out := make([]device.Summary, 0, len(m.devices))
	for _, s := range m.devices {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (m *MemoryStore) ListLogEntries(_ context.Context, addr string, limit int) ([]LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	entries := m.logs[device.NormalizeAddress(addr)]
	out := make([]LogEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) BanAddress(_ context.Context, addr, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return err
	}
	addr = device.NormalizeAddress(addr)
	m.bans[addr] = Ban{Address: addr, Reason: reason, BannedAt: time.Now().UTC()}
	return nil
}

func (m *MemoryStore) UnbanAddress(_ context.Context, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return err
	}
	addr = device.NormalizeAddress(addr)
	if _, ok := m.bans[addr]; !ok {
		return ErrNotFound
	}
	delete(m.bans, addr)
	return nil
}

func (m *MemoryStore) ListBans(context.Context) ([]Ban, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	out := make([]Ban, 0, len(m.bans))
	for _, b := range m.bans {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (m *MemoryStore) GetSetting(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", ErrStoreClosed
	}
	v, ok := m.settings[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return err
	}
	m.settings[key] = value
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
