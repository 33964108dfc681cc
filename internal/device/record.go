// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

// Package device holds per-transmitter behavioural state.
//
// A Record accumulates everything observed for one transmitter address:
// the networks it probed for, signal strength and timing samples, channel
// usage and deauthentication count, plus the three risk scores computed
// from that history. Histories are bounded; the oldest samples are trimmed
// after every append.
//
// The Store is written by exactly one goroutine (the dispatcher). Snapshot
// methods return deep copies and may be called from anywhere.
package device

import (
	"sort"
	"strings"
	"time"
)

// History bounds.
const (
	MaxSSIDHistory   = 20
	MaxSampleHistory = 500
)

// UnknownVendor is used when the vendor of an address cannot be resolved.
const UnknownVendor = "Unknown"

// Record is the accumulated state for one transmitter address.
type Record struct {
	Address string
	Vendor  string

	// SSIDSet holds every distinct network name probed for. Unbounded.
	SSIDSet map[string]struct{}
	// SSIDHistory is the probe order, most recent last.
	SSIDHistory []string
	BSSIDSet    map[string]struct{}

	RSSIHistory      []float64
	TimestampHistory []int64 // sensor milliseconds, non-decreasing
	ChannelCounts    map[int]int

	DeauthCount int
	ProbeCount  int

	AnomalyScore     float64
	PersistenceScore float64
	PatternScore     float64

	FirstSeen time.Time
	LastSeen  time.Time
}

func newRecord(addr, vendor string, now time.Time) *Record {
	return &Record{
		Address:       addr,
		Vendor:        vendor,
		SSIDSet:       make(map[string]struct{}),
		BSSIDSet:      make(map[string]struct{}),
		ChannelCounts: make(map[int]int),
		FirstSeen:     now,
		LastSeen:      now,
	}
}

// NormalizeAddress upper-cases and trims a colon separated hardware address.
func NormalizeAddress(addr string) string {
	return strings.ToUpper(strings.TrimSpace(addr))
}

// HasSSID reports whether ssid was ever probed for by this device.
func (r *Record) HasSSID(ssid string) bool {
	_, ok := r.SSIDSet[ssid]
	return ok
}

// LastTimestamp returns the most recent sensor timestamp.
func (r *Record) LastTimestamp() (int64, bool) {
	if len(r.TimestampHistory) == 0 {
		return 0, false
	}
	return r.TimestampHistory[len(r.TimestampHistory)-1], true
}

// SSIDs returns the distinct probed SSIDs in sorted order.
func (r *Record) SSIDs() []string {
	return sortedKeys(r.SSIDSet)
}

// BSSIDs returns the distinct BSSIDs in sorted order.
func (r *Record) BSSIDs() []string {
	return sortedKeys(r.BSSIDSet)
}

func (r *Record) appendSSID(ssid string) {
	r.SSIDSet[ssid] = struct{}{}
	r.SSIDHistory = append(r.SSIDHistory, ssid)
	if over := len(r.SSIDHistory) - MaxSSIDHistory; over > 0 {
		r.SSIDHistory = append(r.SSIDHistory[:0], r.SSIDHistory[over:]...)
	}
}

func (r *Record) appendRSSI(v float64) {
	r.RSSIHistory = append(r.RSSIHistory, v)
	if over := len(r.RSSIHistory) - MaxSampleHistory; over > 0 {
		r.RSSIHistory = append(r.RSSIHistory[:0], r.RSSIHistory[over:]...)
	}
}

func (r *Record) appendTimestamp(ts int64) {
	r.TimestampHistory = append(r.TimestampHistory, ts)
	if over := len(r.TimestampHistory) - MaxSampleHistory; over > 0 {
		r.TimestampHistory = append(r.TimestampHistory[:0], r.TimestampHistory[over:]...)
	}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	c.SSIDSet = make(map[string]struct{}, len(r.SSIDSet))
	for k := range r.SSIDSet {
		c.SSIDSet[k] = struct{}{}
	}
	c.BSSIDSet = make(map[string]struct{}, len(r.BSSIDSet))
	for k := range r.BSSIDSet {
		c.BSSIDSet[k] = struct{}{}
	}
	c.ChannelCounts = make(map[int]int, len(r.ChannelCounts))
	for k, v := range r.ChannelCounts {
		c.ChannelCounts[k] = v
	}
	c.SSIDHistory = append([]string(nil), r.SSIDHistory...)
	c.RSSIHistory = append([]float64(nil), r.RSSIHistory...)
	c.TimestampHistory = append([]int64(nil), r.TimestampHistory...)
	return &c
}

// Summary is the flattened, serialisable view of a Record used by the
// persistence gateway, the HTTP API, exports and the live feed.
type Summary struct {
	Address          string      `json:"mac"`
	Vendor           string      `json:"vendor"`
	SSIDs            []string    `json:"ssids"`
	BSSIDs           []string    `json:"bssids,omitempty"`
	Channels         map[int]int `json:"channels,omitempty"`
	ProbeCount       int         `json:"probe_count"`
	DeauthCount      int         `json:"deauth_count"`
	LastRSSI         *float64    `json:"last_rssi,omitempty"`
	LastTimestamp    int64       `json:"last_timestamp,omitempty"`
	AnomalyScore     float64     `json:"anomaly_score"`
	PersistenceScore float64     `json:"persistence_score"`
	PatternScore     float64     `json:"pattern_score"`
	FirstSeen        time.Time   `json:"first_seen"`
	LastSeen         time.Time   `json:"last_seen"`
}

// Summary flattens the record.
func (r *Record) Summary() Summary {
	s := Summary{
		Address:          r.Address,
		Vendor:           r.Vendor,
		SSIDs:            r.SSIDs(),
		BSSIDs:           r.BSSIDs(),
		ProbeCount:       r.ProbeCount,
		DeauthCount:      r.DeauthCount,
		AnomalyScore:     r.AnomalyScore,
		PersistenceScore: r.PersistenceScore,
		PatternScore:     r.PatternScore,
		FirstSeen:        r.FirstSeen,
		LastSeen:         r.LastSeen,
	}
	if len(r.ChannelCounts) > 0 {
		s.Channels = make(map[int]int, len(r.ChannelCounts))
		for k, v := range r.ChannelCounts {
			s.Channels[k] = v
		}
	}
	if n := len(r.RSSIHistory); n > 0 {
		v := r.RSSIHistory[n-1]
		s.LastRSSI = &v
	}
	if ts, ok := r.LastTimestamp(); ok {
		s.LastTimestamp = ts
	}
	return s
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
