// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package api

import (
	"encoding/csv"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/sigvoid/internal/device"
	"github.com/tomtom215/sigvoid/internal/logging"
	"github.com/tomtom215/sigvoid/internal/scoring"
	"github.com/tomtom215/sigvoid/internal/storage"
	"github.com/tomtom215/sigvoid/internal/stream"
	"github.com/tomtom215/sigvoid/internal/validation"
)

const deviceLogLimit = 100

// HealthStatus is the /health body.
type HealthStatus struct {
	Status  string         `json:"status"` // ok or degraded
	Link    *stream.Status `json:"link,omitempty"`
	Queue   QueueHealth    `json:"queue"`
	Devices int            `json:"devices"`
}

// QueueHealth describes the record queue.
type QueueHealth struct {
	Depth    int    `json:"depth"`
	Capacity int    `json:"capacity"`
	Dropped  uint64 `json:"dropped"`
}

// DeviceDetail is the /devices/{mac} body.
type DeviceDetail struct {
	Device device.Summary     `json:"device"`
	Live   bool               `json:"live"`
	Terms  *scoring.Terms     `json:"terms,omitempty"`
	Log    []storage.LogEntry `json:"log"`
}

// Health reports link, queue and device counts. A down link is reported as
// degraded but still answers 200 so the process is not restarted for it.
func (rt *Router) Health(w http.ResponseWriter, r *http.Request) {
	h := HealthStatus{Status: "ok", Devices: rt.deps.Devices.Len()}
	if rt.deps.Link != nil {
		st := rt.deps.Link.Status()
		h.Link = &st
		if !st.Connected {
			h.Status = "degraded"
		}
	}
	if q := rt.deps.Queue; q != nil {
		h.Queue = QueueHealth{Depth: q.Len(), Capacity: q.Cap(), Dropped: q.Dropped()}
	}
	respondData(w, http.StatusOK, h)
}

// Diagnostics returns the last sensor diagnostics.
func (rt *Router) Diagnostics(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, rt.deps.Devices.Diagnostics())
}

// ListDevices returns live summaries matching the query filter.
func (rt *Router) ListDevices(w http.ResponseWriter, r *http.Request) {
	f, err := ParseDeviceFilter(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	respondList(w, f.Apply(rt.deps.Devices.Summaries(), time.Now()))
}

// GetDevice returns one device, preferring live state over the persisted
// summary, together with its recent log entries.
func (rt *Router) GetDevice(w http.ResponseWriter, r *http.Request) {
	mac := chi.URLParam(r, "mac")
	if !validation.IsMAC(mac) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "mac must be a hardware address", nil)
		return
	}
	addr := device.NormalizeAddress(mac)
	ctx := r.Context()

	var detail DeviceDetail
	if rec, ok := rt.deps.Devices.Snapshot(addr); ok {
		terms := scoring.Breakdown(rec, rt.deps.Devices.Len())
		detail = DeviceDetail{Device: rec.Summary(), Live: true, Terms: &terms}
	} else {
		summary, err := rt.deps.Store.GetDevice(ctx, addr)
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "device not seen", nil)
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to load device", err)
			return
		}
		detail = DeviceDetail{Device: summary}
	}

	entries, err := rt.deps.Store.ListLogEntries(ctx, addr, deviceLogLimit)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("mac", addr).Msg("Failed to load device log")
	}
	if entries == nil {
		entries = []storage.LogEntry{}
	}
	detail.Log = entries
	respondData(w, http.StatusOK, detail)
}

// Export streams persisted summaries as a JSON or CSV attachment.
func (rt *Router) Export(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	if format != "json" && format != "csv" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "format must be json or csv", nil)
		return
	}
	f, err := ParseDeviceFilter(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	all, err := rt.deps.Store.ListDevices(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to list devices", err)
		return
	}
	devices := f.Apply(all, time.Now())

	filename := "sigvoid-devices-" + time.Now().UTC().Format("20060102T150405Z") + "." + format
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(devices); err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("JSON export failed")
		}
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	if err := writeCSV(w, devices); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("CSV export failed")
	}
}

var csvHeader = []string{
	"MAC", "Vendor", "SSIDs", "Anomaly Score", "Persistence Score",
	"Pattern Score", "Deauth Count", "Channels", "Last Seen",
}

func writeCSV(w http.ResponseWriter, devices []device.Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i := range devices {
		d := &devices[i]
		channels := make([]int, 0, len(d.Channels))
		for ch := range d.Channels {
			channels = append(channels, ch)
		}
		slices.Sort(channels)
		chs := make([]string, len(channels))
		for j, ch := range channels {
			chs[j] = strconv.Itoa(ch)
		}
		row := []string{
			d.Address,
			d.Vendor,
			strings.Join(d.SSIDs, ", "),
			strconv.FormatFloat(d.AnomalyScore, 'f', 2, 64),
			strconv.FormatFloat(d.PersistenceScore, 'f', 2, 64),
			strconv.FormatFloat(d.PatternScore, 'f', 2, 64),
			strconv.Itoa(d.DeauthCount),
			strings.Join(chs, ", "),
			d.LastSeen.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
