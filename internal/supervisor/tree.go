// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

// Package supervisor runs the long-lived services under a suture tree so a
// crashed service is restarted with backoff instead of taking the process
// down.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64
	// FailureDecay is the rate at which failures decay, in seconds.
	FailureDecay float64
	// FailureBackoff is how long a layer waits once the threshold is hit.
	FailureBackoff time.Duration
	// ShutdownTimeout bounds how long each service gets to stop.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's stock values.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Layer names one branch of the tree.
type Layer int

const (
	// LayerIngest holds the sensor stream reader.
	LayerIngest Layer = iota
	// LayerDetection holds the dispatcher and its maintenance services.
	LayerDetection
	// LayerAPI holds the live feed hub and the HTTP server.
	LayerAPI
	layerCount
)

var layerNames = [layerCount]string{"ingest-layer", "detection-layer", "api-layer"}

func (l Layer) String() string { return layerNames[l] }

// Tree is the process supervisor. Each Layer is its own sub-supervisor, so
// a reader stuck reconnecting never holds up the API and an API crash never
// interrupts detection.
type Tree struct {
	root   *suture.Supervisor
	layers [layerCount]*suture.Supervisor
	config TreeConfig
}

func (c *TreeConfig) fillDefaults() {
	def := DefaultTreeConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = def.FailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = def.FailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
}

func (c *TreeConfig) spec() suture.Spec {
	return suture.Spec{
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	}
}

// NewTree builds the tree. Zero config fields take their defaults. Restart
// events from every layer are reported through logger.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	config.fillDefaults()

	rootSpec := config.spec()
	rootSpec.EventHook = (&sutureslog.Handler{Logger: logger}).MustHook()

	t := &Tree{root: suture.New("sigvoid", rootSpec), config: config}
	for l := range t.layers {
		t.layers[l] = suture.New(Layer(l).String(), config.spec())
		t.root.Add(t.layers[l])
	}
	return t
}

// Config returns the effective configuration.
func (t *Tree) Config() TreeConfig { return t.config }

// Add supervises svc in layer.
func (t *Tree) Add(layer Layer, svc suture.Service) suture.ServiceToken {
	return t.layers[layer].Add(svc)
}

func (t *Tree) AddIngest(svc suture.Service) suture.ServiceToken { return t.Add(LayerIngest, svc) }

func (t *Tree) AddDetection(svc suture.Service) suture.ServiceToken {
	return t.Add(LayerDetection, svc)
}

func (t *Tree) AddAPI(svc suture.Service) suture.ServiceToken { return t.Add(LayerAPI, svc) }

// ServeBackground runs the tree on its own goroutine. The channel yields
// the tree's exit error once ctx is cancelled.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that ignored the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
