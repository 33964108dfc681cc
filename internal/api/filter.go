// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package api

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/tomtom215/sigvoid/internal/device"
)

// Filter presets.
const (
	PresetAll      = "all"
	PresetRecent   = "recent"
	PresetHighRisk = "high_risk"
)

// Preset thresholds.
const (
	recentWindow       = time.Hour
	highRiskAnomaly    = 0.8
	highRiskDeauthSeen = 5
)

// DeviceFilter selects device summaries. Regexes are case-insensitive and
// unanchored; the SSID regex matches when any probed network matches.
type DeviceFilter struct {
	MinScore float64
	MAC      *regexp.Regexp
	SSID     *regexp.Regexp
	Preset   string
}

// ParseDeviceFilter reads min_score, mac, ssid and preset from a query.
func ParseDeviceFilter(q url.Values) (DeviceFilter, error) {
	f := DeviceFilter{Preset: PresetAll}

	if s := q.Get("min_score"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 || v > 1 {
			return f, fmt.Errorf("min_score must be a number in [0,1]")
		}
		f.MinScore = v
	}
	for _, p := range []struct {
		param string
		dst   **regexp.Regexp
	}{{"mac", &f.MAC}, {"ssid", &f.SSID}} {
		s := q.Get(p.param)
		if s == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + s)
		if err != nil {
			return f, fmt.Errorf("%s is not a valid regular expression: %w", p.param, err)
		}
		*p.dst = re
	}
	if s := q.Get("preset"); s != "" {
		switch s {
		case PresetAll, PresetRecent, PresetHighRisk:
			f.Preset = s
		default:
			return f, fmt.Errorf("preset must be one of all, recent, high_risk")
		}
	}
	return f, nil
}

// Match reports whether s passes the filter at time now.
func (f DeviceFilter) Match(s *device.Summary, now time.Time) bool {
	if s.AnomalyScore < f.MinScore {
		return false
	}
	if f.MAC != nil && !f.MAC.MatchString(s.Address) {
		return false
	}
	if f.SSID != nil && !slices.ContainsFunc(s.SSIDs, f.SSID.MatchString) {
		return false
	}
	switch f.Preset {
	case PresetRecent:
		return now.Sub(s.LastSeen) <= recentWindow
	case PresetHighRisk:
		return s.AnomalyScore > highRiskAnomaly || s.DeauthCount > highRiskDeauthSeen
	}
	return true
}

// Apply returns the matching summaries ordered by anomaly score, highest
// first, then by address.
func (f DeviceFilter) Apply(all []device.Summary, now time.Time) []device.Summary {
	out := make([]device.Summary, 0, len(all))
	for i := range all {
		if f.Match(&all[i], now) {
			out = append(out, all[i])
		}
	}
	slices.SortStableFunc(out, func(a, b device.Summary) int {
		switch {
		case a.AnomalyScore > b.AnomalyScore:
			return -1
		case a.AnomalyScore < b.AnomalyScore:
			return 1
		case a.Address < b.Address:
			return -1
		case a.Address > b.Address:
			return 1
		}
		return 0
	})
	return out
}
