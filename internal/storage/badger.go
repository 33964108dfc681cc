// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/sigvoid/internal/device"
	"github.com/tomtom215/sigvoid/internal/logging"
)

// Key prefixes. Log keys sort by address, then time.
const (
	prefixDevice  = "device:"
	prefixLog     = "log:"
	prefixBan     = "ban:"
	prefixSetting = "setting:"
)

// BadgerConfig configures BadgerStore.
type BadgerConfig struct {
	Path     string
	InMemory bool
	// SyncWrites fsyncs every write.
	SyncWrites bool
	// LogRetention expires log entries through badger TTL. Zero keeps them.
	LogRetention time.Duration
}

// BadgerStore implements Store on BadgerDB.
type BadgerStore struct {
	db  *badger.DB
	cfg BadgerConfig
	now func() time.Time

	mu     sync.RWMutex
	closed bool
}

// OpenBadger opens (or creates) the database described by cfg.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("open BadgerDB: empty path")
		}
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = cfg.SyncWrites
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("log_retention", cfg.LogRetention).
		Msg("Storage opened")

	return &BadgerStore{db: db, cfg: cfg, now: time.Now}, nil
}

func (s *BadgerStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func deviceKey(addr string) []byte { return []byte(prefixDevice + addr) }
func banKey(addr string) []byte    { return []byte(prefixBan + addr) }
func settingKey(k string) []byte   { return []byte(prefixSetting + k) }

func logPrefix(addr string) []byte { return []byte(prefixLog + addr + ":") }

func logKey(addr string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", prefixLog, addr, at.UnixNano(), id))
}

func (s *BadgerStore) put(key []byte, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

func (s *BadgerStore) get(key []byte, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

// scan decodes every value under prefix into a fresh T. Values that fail to
// decode are logged and skipped.
func scan[T any](ctx context.Context, db *badger.DB, prefix []byte, reverse bool, limit int) ([]T, error) {
	var out []T
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = prefix
		opts.Reverse = reverse
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := prefix
		if reverse {
			seek = append(append([]byte{}, prefix...), 0xFF)
		}
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var v T
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &v) }); err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping undecodable entry")
				continue
			}
			out = append(out, v)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// UpsertDevice stores the latest summary for addr.
func (s *BadgerStore) UpsertDevice(_ context.Context, addr string, summary device.Summary) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	addr = device.NormalizeAddress(addr)
	summary.Address = addr
	if err := s.put(deviceKey(addr), summary, 0); err != nil {
		return fmt.Errorf("upsert device %s: %w", addr, err)
	}
	return nil
}

// AppendLogEntry records one raw sensor line for addr.
func (s *BadgerStore) AppendLogEntry(_ context.Context, addr string, raw []byte, scores Scores) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	addr = device.NormalizeAddress(addr)
	entry := LogEntry{
		ID:         uuid.NewString(),
		Address:    addr,
		Raw:        append(json.RawMessage(nil), raw...),
		Scores:     scores,
		RecordedAt: s.now().UTC(),
	}
	if !json.Valid(entry.Raw) {
		// Keep non-JSON payloads readable as a JSON string.
		quoted, _ := json.Marshal(string(raw))
		entry.Raw = quoted
	}
	if err := s.put(logKey(addr, entry.RecordedAt, entry.ID), entry, s.cfg.LogRetention); err != nil {
		return fmt.Errorf("append log entry %s: %w", addr, err)
	}
	return nil
}

// CountDevices counts persisted device summaries.
func (s *BadgerStore) CountDevices(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixDevice)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count devices: %w", err)
	}
	return count, nil
}

// ListBannedAddresses returns every banned address, sorted.
func (s *BadgerStore) ListBannedAddresses(ctx context.Context) ([]string, error) {
	bans, err := s.ListBans(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(bans))
	for i, b := range bans {
		out[i] = b.Address
	}
	return out, nil
}

// GetDevice returns the persisted summary for addr.
func (s *BadgerStore) GetDevice(_ context.Context, addr string) (device.Summary, error) {
	var summary device.Summary
	if err := s.checkOpen(); err != nil {
		return summary, err
	}
	if err := s.get(deviceKey(device.NormalizeAddress(addr)), &summary); err != nil {
		return device.Summary{}, err
	}
	return summary, nil
}

// ListDevices returns every persisted summary ordered by address.
func (s *BadgerStore) ListDevices(ctx context.Context) ([]device.Summary, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out, err := scan[device.Summary](ctx, s.db, []byte(prefixDevice), false, 0)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return out, nil
}

// ListLogEntries returns the newest log entries for addr, newest first. A
// limit of zero returns all of them.
func (s *BadgerStore) ListLogEntries(ctx context.Context, addr string, limit int) ([]LogEntry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out, err := scan[LogEntry](ctx, s.db, logPrefix(device.NormalizeAddress(addr)), true, limit)
	if err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	return out, nil
}

// BanAddress bans addr. Banning an already banned address updates the reason.
func (s *BadgerStore) BanAddress(_ context.Context, addr, reason string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	addr = device.NormalizeAddress(addr)
	ban := Ban{Address: addr, Reason: reason, BannedAt: s.now().UTC()}
	if err := s.put(banKey(addr), ban, 0); err != nil {
		return fmt.Errorf("ban %s: %w", addr, err)
	}
	return nil
}

// UnbanAddress lifts a ban. It returns ErrNotFound when addr is not banned.
func (s *BadgerStore) UnbanAddress(_ context.Context, addr string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	key := banKey(device.NormalizeAddress(addr))
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// ListBans returns all bans ordered by address.
func (s *BadgerStore) ListBans(ctx context.Context) ([]Ban, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out, err := scan[Ban](ctx, s.db, []byte(prefixBan), false, 0)
	if err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

// PruneBans lifts every ban placed before cutoff and returns how many were
// removed.
func (s *BadgerStore) PruneBans(ctx context.Context, cutoff time.Time) (int, error) {
	bans, err := s.ListBans(ctx)
	if err != nil {
		return 0, err
	}
	pruned := 0
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, b := range bans {
			if !b.BannedAt.Before(cutoff) {
				continue
			}
			if err := txn.Delete(banKey(b.Address)); err != nil {
				return err
			}
			pruned++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune bans: %w", err)
	}
	return pruned, nil
}

// GetSetting returns the value stored for key.
func (s *BadgerStore) GetSetting(_ context.Context, key string) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	var v string
	if err := s.get(settingKey(key), &v); err != nil {
		return "", err
	}
	return v, nil
}

// SetSetting stores value under key.
func (s *BadgerStore) SetSetting(_ context.Context, key, value string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.put(settingKey(key), value, 0); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// RunGC reclaims value log space. It returns the number of rewritten log
// files. In-memory stores have nothing to collect.
func (s *BadgerStore) RunGC(ratio float64) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if s.cfg.InMemory {
		return 0, nil
	}
	rewritten := 0
	for {
		err := s.db.RunValueLogGC(ratio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return rewritten, nil
		}
		if err != nil {
			return rewritten, fmt.Errorf("value log GC: %w", err)
		}
		rewritten++
	}
}

// Close closes the database. Further calls return ErrStoreClosed.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Info().Msg("Storage closed")
	return nil
}
