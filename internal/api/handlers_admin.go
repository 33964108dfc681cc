// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/sigvoid/internal/device"
	"github.com/tomtom215/sigvoid/internal/logging"
	"github.com/tomtom215/sigvoid/internal/storage"
	"github.com/tomtom215/sigvoid/internal/validation"
)

// Sensor command names for the access point settings.
const (
	CommandSetSSID     = "SET_SSID"
	CommandSetPassword = "SET_PASS"
)

// BanRequest is the optional body of POST /bans/{mac}.
type BanRequest struct {
	Reason string `json:"reason" validate:"max=256"`
}

// CommandRequest is the body of POST /commands.
type CommandRequest struct {
	Name  string `json:"name" validate:"required,cmdname"`
	Value string `json:"value" validate:"max=256,singleline"`
}

// APSettings is the body of PUT /settings/ap.
type APSettings struct {
	SSID     string `json:"ssid" validate:"required,max=32,singleline"`
	Password string `json:"password" validate:"omitempty,min=8,max=63,singleline"`
}

// APSettingsView is what GET /settings/ap returns. The password itself is
// never echoed.
type APSettingsView struct {
	SSID        string `json:"ssid"`
	PasswordSet bool   `json:"password_set"`
	Sent        *bool  `json:"sent,omitempty"`
}

// ListBans returns the persisted ban list.
func (rt *Router) ListBans(w http.ResponseWriter, r *http.Request) {
	bans, err := rt.deps.Store.ListBans(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to list bans", err)
		return
	}
	respondList(w, bans)
}

// Ban adds an address to the ban list. The body is optional.
func (rt *Router) Ban(w http.ResponseWriter, r *http.Request) {
	mac := chi.URLParam(r, "mac")
	if !validation.IsMAC(mac) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "mac must be a hardware address", nil)
		return
	}
	var req BanRequest
	if r.ContentLength != 0 {
		if apiErr := decodeAndValidate(w, r, &req); apiErr != nil {
			respondJSONError(w, apiErr)
			return
		}
	}

	addr := device.NormalizeAddress(mac)
	if err := rt.deps.Store.BanAddress(r.Context(), addr, req.Reason); err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to ban address", err)
		return
	}
	rt.invalidateBans()
	logging.Ctx(r.Context()).Info().Str("mac", addr).Str("reason", req.Reason).Msg("Address banned")
	respondData(w, http.StatusCreated, map[string]any{"mac": addr, "reason": req.Reason, "banned": true})
}

// Unban removes an address from the ban list.
func (rt *Router) Unban(w http.ResponseWriter, r *http.Request) {
	mac := chi.URLParam(r, "mac")
	if !validation.IsMAC(mac) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "mac must be a hardware address", nil)
		return
	}
	addr := device.NormalizeAddress(mac)
	err := rt.deps.Store.UnbanAddress(r.Context(), addr)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "address is not banned", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to unban address", err)
		return
	}
	rt.invalidateBans()
	logging.Ctx(r.Context()).Info().Str("mac", addr).Msg("Address unbanned")
	respondData(w, http.StatusOK, map[string]any{"mac": addr, "banned": false})
}

func (rt *Router) invalidateBans() {
	if rt.deps.Bans != nil {
		rt.deps.Bans.Invalidate()
	}
}

// SendCommand writes one command line to the sensor.
func (rt *Router) SendCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if apiErr := decodeAndValidate(w, r, &req); apiErr != nil {
		respondJSONError(w, apiErr)
		return
	}
	if rt.deps.Link == nil || !rt.deps.Link.Send(req.Name, req.Value) {
		respondError(w, http.StatusServiceUnavailable, "LINK_UNAVAILABLE", "sensor link is down", nil)
		return
	}
	respondData(w, http.StatusAccepted, map[string]any{"name": req.Name, "sent": true})
}

// GetAPSettings returns the stored access point settings, falling back to
// the configured defaults.
func (rt *Router) GetAPSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	respondData(w, http.StatusOK, APSettingsView{
		SSID:        storage.SettingOr(ctx, rt.deps.Store, storage.SettingAPSSID, rt.deps.AP.SSID),
		PasswordSet: storage.SettingOr(ctx, rt.deps.Store, storage.SettingAPPassword, rt.deps.AP.Password) != "",
	})
}

// PutAPSettings persists new access point settings and pushes them to the
// sensor when the link is up. They are pushed again after every reconnect.
func (rt *Router) PutAPSettings(w http.ResponseWriter, r *http.Request) {
	var req APSettings
	if apiErr := decodeAndValidate(w, r, &req); apiErr != nil {
		respondJSONError(w, apiErr)
		return
	}

	ctx := r.Context()
	if err := rt.deps.Store.SetSetting(ctx, storage.SettingAPSSID, req.SSID); err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to save settings", err)
		return
	}
	if err := rt.deps.Store.SetSetting(ctx, storage.SettingAPPassword, req.Password); err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to save settings", err)
		return
	}

	sent := false
	if rt.deps.Link != nil {
		sent = rt.deps.Link.Send(CommandSetSSID, req.SSID) &&
			rt.deps.Link.Send(CommandSetPassword, req.Password)
	}
	logging.Ctx(ctx).Info().Str("ssid", req.SSID).Bool("sent", sent).Msg("Access point settings updated")
	respondData(w, http.StatusOK, APSettingsView{SSID: req.SSID, PasswordSet: req.Password != "", Sent: &sent})
}
