// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package device

import (
	"fmt"
	"sync"
	"testing"
)

type staticVendors map[string]string

func (v staticVendors) Lookup(addr string) string { return v[addr] }

func rssi(v float64) *float64 { return &v }
func channel(c int) *int      { return &c }

func TestApplyProbeCreatesRecord(t *testing.T) {
	s := NewStore(staticVendors{"AA:BB:CC:00:00:01": "Espressif"})

	r := s.ApplyProbe(Probe{
		Address:   "aa:bb:cc:00:00:01",
		SSID:      "CoffeeShop",
		BSSID:     "11:22:33:44:55:66",
		RSSI:      rssi(-42),
		Channel:   channel(6),
		Timestamp: 1000,
	})

	if r.Address != "AA:BB:CC:00:00:01" {
		t.Errorf("Address = %q, want upper-cased", r.Address)
	}
	if r.Vendor != "Espressif" {
		t.Errorf("Vendor = %q, want Espressif", r.Vendor)
	}
	if !r.HasSSID("CoffeeShop") || len(r.SSIDHistory) != 1 {
		t.Errorf("ssid not recorded: %+v", r.SSIDHistory)
	}
	if r.ChannelCounts[6] != 1 {
		t.Errorf("ChannelCounts[6] = %d, want 1", r.ChannelCounts[6])
	}
	if len(r.RSSIHistory) != 1 || len(r.TimestampHistory) != 1 {
		t.Errorf("histories = %v / %v", r.RSSIHistory, r.TimestampHistory)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestUnknownVendor(t *testing.T) {
	s := NewStore(nil)
	r := s.ApplyDeauth("de:ad:be:ef:00:01")
	if r.Vendor != UnknownVendor {
		t.Errorf("Vendor = %q, want %q", r.Vendor, UnknownVendor)
	}
}

func TestProbeWithoutOptionalFields(t *testing.T) {
	s := NewStore(nil)
	r := s.ApplyProbe(Probe{Address: "AA:AA:AA:AA:AA:AA", Timestamp: 5})

	if len(r.SSIDSet) != 0 || len(r.SSIDHistory) != 0 {
		t.Error("empty ssid must not be recorded")
	}
	if len(r.RSSIHistory) != 0 {
		t.Error("absent rssi must not be recorded")
	}
	if len(r.ChannelCounts) != 0 {
		t.Error("absent channel must not be recorded")
	}
	if len(r.TimestampHistory) != 1 {
		t.Errorf("timestamp should always be recorded, got %v", r.TimestampHistory)
	}
}

func TestHistoryBounds(t *testing.T) {
	s := NewStore(nil)
	var r *Record
	for i := 0; i < 600; i++ {
		r = s.ApplyProbe(Probe{
			Address:   "AA:AA:AA:AA:AA:AA",
			SSID:      fmt.Sprintf("net-%d", i),
			RSSI:      rssi(float64(-i)),
			Timestamp: int64(i),
		})
		if len(r.SSIDHistory) > MaxSSIDHistory {
			t.Fatalf("SSIDHistory grew to %d", len(r.SSIDHistory))
		}
		if len(r.RSSIHistory) != len(r.TimestampHistory) {
			t.Fatalf("rssi/timestamp histories diverged: %d vs %d", len(r.RSSIHistory), len(r.TimestampHistory))
		}
		if len(r.TimestampHistory) > MaxSampleHistory {
			t.Fatalf("TimestampHistory grew to %d", len(r.TimestampHistory))
		}
	}

	if len(r.SSIDSet) != 600 {
		t.Errorf("SSIDSet = %d entries, want all 600", len(r.SSIDSet))
	}
	if r.SSIDHistory[0] != "net-580" || r.SSIDHistory[MaxSSIDHistory-1] != "net-599" {
		t.Errorf("SSIDHistory should keep the newest entries, got %q..%q", r.SSIDHistory[0], r.SSIDHistory[MaxSSIDHistory-1])
	}
	if r.TimestampHistory[0] != 100 {
		t.Errorf("oldest timestamp = %d, want 100", r.TimestampHistory[0])
	}
}

func TestDeauthCount(t *testing.T) {
	s := NewStore(nil)
	var r *Record
	for i := 0; i < 25; i++ {
		r = s.ApplyDeauth("AA:AA:AA:AA:AA:AA")
	}
	if r.DeauthCount != 25 {
		t.Errorf("DeauthCount = %d, want 25", r.DeauthCount)
	}
	if len(r.TimestampHistory) != 0 || len(r.SSIDSet) != 0 {
		t.Error("deauth must not touch probe history")
	}
}

func TestDiagnostics(t *testing.T) {
	s := NewStore(nil)
	d := s.SetDiagnostics(180000, 90500)
	if d.UptimeSeconds != 90.5 {
		t.Errorf("UptimeSeconds = %v, want 90.5", d.UptimeSeconds)
	}
	if got := s.Diagnostics(); got.FreeMemory != 180000 {
		t.Errorf("FreeMemory = %d, want 180000", got.FreeMemory)
	}
	s.SetDiagnostics(1, 1000)
	if got := s.Diagnostics(); got.FreeMemory != 1 || got.UptimeSeconds != 1 {
		t.Errorf("diagnostics should be overwritten, got %+v", got)
	}
	if s.Len() != 0 {
		t.Error("diagnostics must not create devices")
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := NewStore(nil)
	s.ApplyProbe(Probe{Address: "AA:AA:AA:AA:AA:AA", SSID: "a", Channel: channel(1), Timestamp: 1})

	snap, ok := s.Snapshot("aa:aa:aa:aa:aa:aa")
	if !ok {
		t.Fatal("expected snapshot")
	}
	snap.SSIDSet["b"] = struct{}{}
	snap.ChannelCounts[1] = 99
	snap.TimestampHistory[0] = 42

	again, _ := s.Snapshot("AA:AA:AA:AA:AA:AA")
	if again.HasSSID("b") || again.ChannelCounts[1] != 1 || again.TimestampHistory[0] != 1 {
		t.Error("snapshot mutation leaked into the store")
	}
	if _, ok := s.Snapshot("00:00:00:00:00:00"); ok {
		t.Error("unexpected snapshot for unknown address")
	}
}

func TestEachOtherSkipsSelf(t *testing.T) {
	s := NewStore(nil)
	s.ApplyProbe(Probe{Address: "AA:AA:AA:AA:AA:01", SSID: "x", Timestamp: 1})
	s.ApplyProbe(Probe{Address: "AA:AA:AA:AA:AA:02", SSID: "x", Timestamp: 1})
	s.ApplyProbe(Probe{Address: "AA:AA:AA:AA:AA:03", SSID: "x", Timestamp: 1})

	seen := 0
	s.EachOther("aa:aa:aa:aa:aa:01", func(r *Record) bool {
		if r.Address == "AA:AA:AA:AA:AA:01" {
			t.Error("EachOther visited the excluded address")
		}
		seen++
		return true
	})
	if seen != 2 {
		t.Errorf("visited %d records, want 2", seen)
	}

	stopped := 0
	s.EachOther("AA:AA:AA:AA:AA:01", func(*Record) bool {
		stopped++
		return false
	})
	if stopped != 1 {
		t.Errorf("EachOther should stop after false, visited %d", stopped)
	}
}

func TestSummariesConcurrentWithWriter(t *testing.T) {
	s := NewStore(nil)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			r := s.ApplyProbe(Probe{Address: fmt.Sprintf("AA:AA:AA:AA:AA:%02X", i%16), SSID: "n", Timestamp: int64(i)})
			s.SetScores(r, 0.1, 0.2, 0.3)
		}
	}()
	for i := 0; i < 50; i++ {
		_ = s.Summaries()
	}
	wg.Wait()

	sums := s.Summaries()
	if len(sums) != 16 {
		t.Fatalf("Summaries() = %d entries, want 16", len(sums))
	}
	for i := 1; i < len(sums); i++ {
		if sums[i-1].Address >= sums[i].Address {
			t.Fatal("Summaries() not sorted by address")
		}
	}
	if sums[0].PatternScore != 0.3 {
		t.Errorf("PatternScore = %v, want 0.3", sums[0].PatternScore)
	}
}
