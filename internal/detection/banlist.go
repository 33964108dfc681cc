// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package detection

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sigvoid/internal/device"
	"github.com/tomtom215/sigvoid/internal/logging"
)

// BanSource lists operator-banned addresses.
type BanSource interface {
	ListBannedAddresses(ctx context.Context) ([]string, error)
}

// BanList answers "is this address banned" from a short-lived cache of the
// ban source. It never writes to the source.
type BanList struct {
	src    BanSource
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu      sync.Mutex
	banned  map[string]struct{}
	fetched time.Time
	valid   bool
}

// NewBanList creates a cached view of src. A ttl of zero consults the
// source on every call.
func NewBanList(src BanSource, ttl time.Duration) *BanList {
	return &BanList{
		src:    src,
		ttl:    ttl,
		now:    time.Now,
		logger: logging.WithComponent("banlist"),
		banned: make(map[string]struct{}),
	}
}

// IsBanned reports whether addr is on the ban list. When the source fails
// the last known list is used (empty if none was ever loaded).
func (b *BanList) IsBanned(ctx context.Context, addr string) bool {
	addr = device.NormalizeAddress(addr)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if !b.valid || now.Sub(b.fetched) >= b.ttl {
		b.refreshLocked(ctx, now)
	}
	_, ok := b.banned[addr]
	return ok
}

func (b *BanList) refreshLocked(ctx context.Context, now time.Time) {
	list, err := b.src.ListBannedAddresses(ctx)
	b.fetched = now
	if err != nil {
		b.logger.Warn().Err(err).Msg("Ban list lookup failed, using last known list")
		return
	}
	banned := make(map[string]struct{}, len(list))
	for _, a := range list {
		banned[device.NormalizeAddress(a)] = struct{}{}
	}
	b.banned = banned
	b.valid = true
}

// Invalidate forces the next IsBanned call to consult the source.
func (b *BanList) Invalidate() {
	b.mu.Lock()
	b.valid = false
	b.mu.Unlock()
}
