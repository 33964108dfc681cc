// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

// Package api serves the HTTP surface: device summaries and export, ban
// management, sensor commands and settings, health, metrics and the live
// feed upgrade.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/sigvoid/internal/device"
	"github.com/tomtom215/sigvoid/internal/storage"
	"github.com/tomtom215/sigvoid/internal/stream"
)

// DeviceSource is the live, in-memory device view.
type DeviceSource interface {
	Summaries() []device.Summary
	Snapshot(addr string) (*device.Record, bool)
	Diagnostics() device.Diagnostics
	Len() int
}

// SensorLink sends commands to the sensor and reports link state.
type SensorLink interface {
	Send(name, value string) bool
	Status() stream.Status
}

// QueueStats reports the record queue.
type QueueStats interface {
	Len() int
	Cap() int
	Dropped() uint64
}

// BanInvalidator is told when the persisted ban list changes.
type BanInvalidator interface {
	Invalidate()
}

// APDefaults are the access point settings used until some are stored.
type APDefaults struct {
	SSID     string
	Password string
}

// Deps are the collaborators behind the handlers. Feed may be nil, in which
// case the websocket route is not mounted.
type Deps struct {
	Devices DeviceSource
	Store   storage.Store
	Link    SensorLink
	Queue   QueueStats
	Bans    BanInvalidator
	Feed    http.Handler
	AP      APDefaults
}

// Router builds the chi handler tree.
type Router struct {
	deps Deps
	cfg  MiddlewareConfig
}

// NewRouter creates a router.
func NewRouter(deps Deps, cfg MiddlewareConfig) *Router {
	return &Router{deps: deps, cfg: cfg}
}

// Handler returns the configured http.Handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(rt.cfg))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(rt.cfg))

		r.Group(func(r chi.Router) {
			r.Use(observe)

			r.Get("/health", rt.Health)
			r.Get("/diagnostics", rt.Diagnostics)

			r.Get("/devices", rt.ListDevices)
			r.Get("/devices/{mac}", rt.GetDevice)
			r.Get("/export/{format}", rt.Export)

			r.Get("/bans", rt.ListBans)
			r.Post("/bans/{mac}", rt.Ban)
			r.Delete("/bans/{mac}", rt.Unban)

			r.Post("/commands", rt.SendCommand)
			r.Get("/settings/ap", rt.GetAPSettings)
			r.Put("/settings/ap", rt.PutAPSettings)
		})

		if rt.deps.Feed != nil {
			r.Get("/ws", rt.deps.Feed.ServeHTTP)
		}
	})

	return r
}
