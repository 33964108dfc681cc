// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

// Package oui resolves hardware addresses to manufacturer names using the
// 24-bit organisationally unique identifier prefix.
package oui

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/tomtom215/sigvoid/internal/device"
)

// Resolver is an in-memory prefix table. The zero value resolves every
// address to device.UnknownVendor.
type Resolver struct {
	mu      sync.RWMutex
	vendors map[string]string
}

// New returns an empty resolver.
func New() *Resolver {
	return &Resolver{vendors: make(map[string]string)}
}

// LoadFile reads a prefix table from path. See Load for the accepted format.
func LoadFile(path string) (*Resolver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open oui table: %w", err)
	}
	defer f.Close()

	r := New()
	if err := r.Load(f); err != nil {
		return nil, fmt.Errorf("load oui table %s: %w", path, err)
	}
	return r, nil
}

// Load merges CSV rows into the table. Two layouts are accepted:
//
//	AA:BB:CC,Vendor Name                     (two columns, any separator in the prefix)
//	MA-L,AABBCC,Vendor Name,Address          (IEEE registry export, header row skipped)
func (r *Resolver) Load(src io.Reader) error {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	cr.Comment = '#'

	loaded := make(map[string]string)
	prefixCol, vendorCol := 0, 1
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 && len(row) >= 3 && strings.EqualFold(strings.TrimSpace(row[1]), "Assignment") {
			prefixCol, vendorCol = 1, 2
			continue
		}
		if len(row) <= vendorCol {
			continue
		}
		prefix := normalizePrefix(row[prefixCol])
		vendor := strings.TrimSpace(row[vendorCol])
		if len(prefix) != 6 || vendor == "" {
			continue
		}
		loaded[prefix] = vendor
	}

	r.mu.Lock()
	if r.vendors == nil {
		r.vendors = make(map[string]string, len(loaded))
	}
	for k, v := range loaded {
		r.vendors[k] = v
	}
	r.mu.Unlock()
	return nil
}

// Add registers a single prefix.
func (r *Resolver) Add(prefix, vendor string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vendors == nil {
		r.vendors = make(map[string]string)
	}
	r.vendors[normalizePrefix(prefix)] = vendor
}

// Len returns the number of known prefixes.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.vendors)
}

// Lookup returns the vendor for addr, or device.UnknownVendor.
func (r *Resolver) Lookup(addr string) string {
	prefix := normalizePrefix(addr)
	if len(prefix) < 6 {
		return device.UnknownVendor
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.vendors[prefix[:6]]; ok {
		return v
	}
	return device.UnknownVendor
}

// normalizePrefix strips separators and upper-cases hex digits.
func normalizePrefix(s string) string {
	var b strings.Builder
	b.Grow(12)
	for _, c := range strings.TrimSpace(s) {
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'F':
			b.WriteRune(c)
		case c >= 'a' && c <= 'f':
			b.WriteRune(c - 'a' + 'A')
		case c == ':' || c == '-' || c == '.':
		default:
			return ""
		}
	}
	return b.String()
}
