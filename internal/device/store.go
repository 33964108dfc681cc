// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package device

import (
	"sort"
	"sync"
	"time"
)

// VendorResolver maps a hardware address to a manufacturer name.
type VendorResolver interface {
	Lookup(addr string) string
}

// Probe is one probe request observation. Optional fields are nil when the
// sensor did not report them.
type Probe struct {
	Address   string
	SSID      string
	BSSID     string
	RSSI      *float64
	Channel   *int
	Timestamp int64
}

// Diagnostics is the latest sensor health report. It is process-wide and
// overwritten wholesale on every report.
type Diagnostics struct {
	FreeMemory    int64     `json:"free_memory"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store maps addresses to records. Mutating methods must only be called from
// the dispatcher goroutine; the *Record they return is the live record and
// stays valid for reading on that goroutine. Read methods are safe for
// concurrent use and return copies.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
	diag    Diagnostics

	vendors VendorResolver
	now     func() time.Time
}

// NewStore creates an empty store. vendors may be nil.
func NewStore(vendors VendorResolver) *Store {
	return &Store{
		records: make(map[string]*Record),
		vendors: vendors,
		now:     time.Now,
	}
}

// getOrCreate must be called with mu held for writing.
func (s *Store) getOrCreate(addr string) *Record {
	if r, ok := s.records[addr]; ok {
		return r
	}
	vendor := UnknownVendor
	if s.vendors != nil {
		if v := s.vendors.Lookup(addr); v != "" {
			vendor = v
		}
	}
	r := newRecord(addr, vendor, s.now())
	s.records[addr] = r
	return r
}

// ApplyProbe folds a probe into the device history.
func (s *Store) ApplyProbe(p Probe) *Record {
	addr := NormalizeAddress(p.Address)

	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.getOrCreate(addr)
	if p.SSID != "" {
		r.appendSSID(p.SSID)
	}
	if p.BSSID != "" {
		r.BSSIDSet[NormalizeAddress(p.BSSID)] = struct{}{}
	}
	if p.RSSI != nil {
		r.appendRSSI(*p.RSSI)
	}
	r.appendTimestamp(p.Timestamp)
	if p.Channel != nil {
		r.ChannelCounts[*p.Channel]++
	}
	r.ProbeCount++
	r.LastSeen = s.now()
	return r
}

// ApplyDeauth counts one deauthentication event against addr.
func (s *Store) ApplyDeauth(addr string) *Record {
	addr = NormalizeAddress(addr)

	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.getOrCreate(addr)
	r.DeauthCount++
	r.LastSeen = s.now()
	return r
}

// SetScores stores recomputed scores on the live record.
func (s *Store) SetScores(r *Record, anomaly, persistence, pattern float64) {
	s.mu.Lock()
	r.AnomalyScore = anomaly
	r.PersistenceScore = persistence
	r.PatternScore = pattern
	s.mu.Unlock()
}

// SetAnomaly stores a recomputed anomaly score only.
func (s *Store) SetAnomaly(r *Record, anomaly float64) {
	s.mu.Lock()
	r.AnomalyScore = anomaly
	s.mu.Unlock()
}

// SetDiagnostics overwrites the sensor health report.
func (s *Store) SetDiagnostics(freeMemory int64, uptimeMillis int64) Diagnostics {
	d := Diagnostics{
		FreeMemory:    freeMemory,
		UptimeSeconds: float64(uptimeMillis) / 1000,
		UpdatedAt:     s.now(),
	}
	s.mu.Lock()
	s.diag = d
	s.mu.Unlock()
	return d
}

// Diagnostics returns the latest sensor health report.
func (s *Store) Diagnostics() Diagnostics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.diag
}

// Len returns the number of known devices.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// EachOther calls fn for every record except addr until fn returns false.
// fn must not retain the record or call back into the store.
func (s *Store) EachOther(addr string, fn func(*Record) bool) {
	addr = NormalizeAddress(addr)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for a, r := range s.records {
		if a == addr {
			continue
		}
		if !fn(r) {
			return
		}
	}
}

// Snapshot returns a copy of the record for addr.
func (s *Store) Snapshot(addr string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[NormalizeAddress(addr)]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Summaries returns a summary of every device ordered by address.
func (s *Store) Summaries() []Summary {
	s.mu.RLock()
	out := make([]Summary, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Summary())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}
