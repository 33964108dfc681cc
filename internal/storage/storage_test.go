// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sigvoid/internal/device"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	mem, err := OpenBadger(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger(in-memory) error = %v", err)
	}
	disk, err := OpenBadger(BadgerConfig{Path: t.TempDir(), LogRetention: time.Hour})
	if err != nil {
		t.Fatalf("OpenBadger(disk) error = %v", err)
	}
	t.Cleanup(func() {
		_ = mem.Close()
		_ = disk.Close()
	})

	return map[string]Store{
		"badger-memory": mem,
		"badger-disk":   disk,
		"map":           NewMemoryStore(),
	}
}

func TestDevices(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if n, err := s.CountDevices(ctx); err != nil || n != 0 {
				t.Fatalf("CountDevices() = %d, %v", n, err)
			}

			if err := s.UpsertDevice(ctx, "bb:00:00:00:00:02", device.Summary{ProbeCount: 1}); err != nil {
				t.Fatal(err)
			}
			if err := s.UpsertDevice(ctx, "AA:00:00:00:00:01", device.Summary{ProbeCount: 3, AnomalyScore: 0.4}); err != nil {
				t.Fatal(err)
			}
			if err := s.UpsertDevice(ctx, "BB:00:00:00:00:02", device.Summary{ProbeCount: 2}); err != nil {
				t.Fatal(err)
			}

			n, err := s.CountDevices(ctx)
			if err != nil || n != 2 {
				t.Errorf("CountDevices() = %d, %v; want 2", n, err)
			}

			got, err := s.GetDevice(ctx, "bb:00:00:00:00:02")
			if err != nil {
				t.Fatal(err)
			}
			if got.ProbeCount != 2 || got.Address != "BB:00:00:00:00:02" {
				t.Errorf("GetDevice() = %+v, want latest upsert", got)
			}

			list, err := s.ListDevices(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 2 || list[0].Address != "AA:00:00:00:00:01" || list[0].AnomalyScore != 0.4 {
				t.Errorf("ListDevices() = %+v", list)
			}

			if _, err := s.GetDevice(ctx, "CC:00:00:00:00:03"); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetDevice(missing) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestLogEntries(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			lines := []string{
				`{"type":"probe","mac":"AA:00:00:00:00:01","ssid":"one"}`,
				`{"type":"probe","mac":"AA:00:00:00:00:01","ssid":"two"}`,
				`{"type":"deauth","mac":"AA:00:00:00:00:01"}`,
			}
			for i, l := range lines {
				if err := s.AppendLogEntry(ctx, "aa:00:00:00:00:01", []byte(l), Scores{Anomaly: float64(i) / 10}); err != nil {
					t.Fatal(err)
				}
				time.Sleep(time.Millisecond)
			}
			if err := s.AppendLogEntry(ctx, "BB:00:00:00:00:02", []byte(`{"type":"deauth"}`), Scores{}); err != nil {
				t.Fatal(err)
			}

			all, err := s.ListLogEntries(ctx, "AA:00:00:00:00:01", 0)
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 3 {
				t.Fatalf("got %d entries, want 3", len(all))
			}

			latest, err := s.ListLogEntries(ctx, "AA:00:00:00:00:01", 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(latest) != 2 {
				t.Fatalf("got %d entries, want 2", len(latest))
			}
			var rec struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(latest[0].Raw, &rec); err != nil {
				t.Fatal(err)
			}
			if rec.Type != "deauth" || latest[0].Scores.Anomaly != 0.2 {
				t.Errorf("newest entry = %s / %+v", latest[0].Raw, latest[0].Scores)
			}
			if latest[0].ID == "" || latest[0].Address != "AA:00:00:00:00:01" {
				t.Errorf("entry metadata = %+v", latest[0])
			}
		})
	}
}

func TestBans(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.BanAddress(ctx, "de:ad:be:ef:00:01", "deauth attacker"); err != nil {
				t.Fatal(err)
			}
			if err := s.BanAddress(ctx, "AA:00:00:00:00:01", ""); err != nil {
				t.Fatal(err)
			}

			addrs, err := s.ListBannedAddresses(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(addrs) != 2 || addrs[0] != "AA:00:00:00:00:01" || addrs[1] != "DE:AD:BE:EF:00:01" {
				t.Errorf("ListBannedAddresses() = %v", addrs)
			}

			bans, err := s.ListBans(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(bans) != 2 || bans[1].Reason != "deauth attacker" || bans[1].BannedAt.IsZero() {
				t.Errorf("ListBans() = %+v", bans)
			}

			if err := s.UnbanAddress(ctx, "DE:AD:BE:EF:00:01"); err != nil {
				t.Fatal(err)
			}
			if err := s.UnbanAddress(ctx, "DE:AD:BE:EF:00:01"); !errors.Is(err, ErrNotFound) {
				t.Errorf("second unban error = %v, want ErrNotFound", err)
			}
			addrs, _ = s.ListBannedAddresses(ctx)
			if len(addrs) != 1 {
				t.Errorf("after unban = %v", addrs)
			}
		})
	}
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.GetSetting(ctx, SettingAPSSID); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetSetting(unset) error = %v", err)
			}
			if got := SettingOr(ctx, s, SettingAPSSID, "FreeWiFi_Honeypot"); got != "FreeWiFi_Honeypot" {
				t.Errorf("SettingOr() = %q", got)
			}

			if err := s.SetSetting(ctx, SettingAPSSID, "Lobby"); err != nil {
				t.Fatal(err)
			}
			if err := s.SetSetting(ctx, SettingAPPassword, ""); err != nil {
				t.Fatal(err)
			}
			if got := SettingOr(ctx, s, SettingAPSSID, "FreeWiFi_Honeypot"); got != "Lobby" {
				t.Errorf("SettingOr() = %q, want Lobby", got)
			}
			if got, err := s.GetSetting(ctx, SettingAPPassword); err != nil || got != "" {
				t.Errorf("empty setting = %q, %v", got, err)
			}
		})
	}
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Close(); err != nil {
				t.Fatal(err)
			}
			if err := s.UpsertDevice(ctx, "AA:00:00:00:00:01", device.Summary{}); !errors.Is(err, ErrStoreClosed) {
				t.Errorf("UpsertDevice after Close = %v", err)
			}
			if _, err := s.ListBannedAddresses(ctx); !errors.Is(err, ErrStoreClosed) {
				t.Errorf("ListBannedAddresses after Close = %v", err)
			}
			if err := s.Close(); err != nil {
				t.Errorf("second Close = %v", err)
			}
		})
	}
}

func TestBadgerReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenBadger(BadgerConfig{Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.BanAddress(ctx, "AA:00:00:00:00:01", "test"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSetting(ctx, SettingAPSSID, "Persisted"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = OpenBadger(BadgerConfig{Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	addrs, err := s.ListBannedAddresses(ctx)
	if err != nil || len(addrs) != 1 {
		t.Errorf("bans after reopen = %v, %v", addrs, err)
	}
	if got := SettingOr(ctx, s, SettingAPSSID, ""); got != "Persisted" {
		t.Errorf("setting after reopen = %q", got)
	}
}

func TestBadgerNonJSONLogEntry(t *testing.T) {
	ctx := context.Background()
	s, err := OpenBadger(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.AppendLogEntry(ctx, "AA:00:00:00:00:01", []byte("not json"), Scores{}); err != nil {
		t.Fatal(err)
	}
	entries, err := s.ListLogEntries(ctx, "AA:00:00:00:00:01", 1)
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries = %v, %v", entries, err)
	}
	if string(entries[0].Raw) != `"not json"` {
		t.Errorf("Raw = %s", entries[0].Raw)
	}
}

func TestCollectorInMemory(t *testing.T) {
	s, err := OpenBadger(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if n, err := s.RunGC(DefaultGCRatio); err != nil || n != 0 {
		t.Errorf("RunGC() = %d, %v", n, err)
	}

	c := NewCollector(s, 0)
	if c.String() != "storage-gc" {
		t.Errorf("String() = %q", c.String())
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}

func TestCollectorPrunesOldBans(t *testing.T) {
	ctx := context.Background()
	s, err := OpenBadger(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	if err := s.BanAddress(ctx, "AA:BB:CC:DD:EE:01", "old"); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return base.Add(6 * 24 * time.Hour) }
	if err := s.BanAddress(ctx, "AA:BB:CC:DD:EE:02", "recent"); err != nil {
		t.Fatal(err)
	}

	s.now = func() time.Time { return base.Add(8 * 24 * time.Hour) }
	NewCollector(s, time.Minute).RunNow(ctx)
	if bans, _ := s.ListBans(ctx); len(bans) != 2 {
		t.Fatalf("bans = %d without max age, want 2", len(bans))
	}

	NewCollector(s, time.Minute).WithBanMaxAge(7*24*time.Hour).RunNow(ctx)
	bans, err := s.ListBans(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(bans) != 1 || bans[0].Address != "AA:BB:CC:DD:EE:02" {
		t.Errorf("bans after prune = %+v, want only the recent one", bans)
	}
}
