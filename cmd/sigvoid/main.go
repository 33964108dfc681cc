// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

// Command sigvoid reads probe-request and deauthentication reports from a
// capture sensor, scores every transmitter for suspicious behaviour and
// raises throttled alerts.
//
// Startup order:
//
//  1. Configuration (koanf: defaults, config.yaml, environment)
//  2. Logging
//  3. Storage (badger) and the OUI vendor table
//  4. Device store, record queue and sensor link reader
//  5. Alert sinks, throttler, ban list and dispatcher
//  6. Live feed hub and HTTP API
//  7. Supervisor tree: ingest, detection and api layers
//
// SIGINT or SIGTERM cancels the tree. The dispatcher drains what is already
// queued before it exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tomtom215/sigvoid/internal/api"
	"github.com/tomtom215/sigvoid/internal/config"
	"github.com/tomtom215/sigvoid/internal/detection"
	"github.com/tomtom215/sigvoid/internal/device"
	"github.com/tomtom215/sigvoid/internal/logging"
	"github.com/tomtom215/sigvoid/internal/oui"
	"github.com/tomtom215/sigvoid/internal/pipeline"
	"github.com/tomtom215/sigvoid/internal/storage"
	"github.com/tomtom215/sigvoid/internal/stream"
	"github.com/tomtom215/sigvoid/internal/supervisor"
	"github.com/tomtom215/sigvoid/internal/supervisor/services"
	"github.com/tomtom215/sigvoid/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Sigvoid stopped with an error")
	}
	logging.Info().Msg("Sigvoid stopped gracefully")
}

func run(cfg *config.Config) error {
	logging.Info().
		Str("link_kind", cfg.Link.Kind).
		Str("storage_path", cfg.Storage.Path).
		Bool("storage_in_memory", cfg.Storage.InMemory).
		Int("http_port", cfg.Server.Port).
		Msg("Configuration loaded")

	store, err := storage.OpenBadger(storage.BadgerConfig{
		Path:         cfg.Storage.Path,
		InMemory:     cfg.Storage.InMemory,
		SyncWrites:   cfg.Storage.SyncWrites,
		LogRetention: cfg.Storage.LogRetention,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	vendors := loadVendors(cfg.OUI.Path)
	devices := device.NewStore(vendors)

	policy, err := stream.ParseOverflowPolicy(cfg.Queue.Overflow)
	if err != nil {
		return err
	}
	queue := stream.NewQueue(cfg.Queue.Capacity, policy)
	reader := stream.NewReader(newOpener(&cfg.Link), queue, stream.ReaderConfig{
		Backoff:      cfg.Link.ReconnectBackoff,
		MaxLineBytes: cfg.Link.MaxLineBytes,
	})
	if cfg.Sensor.PushOnOpen {
		reader.OnOpen(pushAPSettings(store, reader, &cfg.Sensor))
	}

	sink, closeSinks, err := buildSinks(&cfg.Alerts, &cfg.NATS)
	if err != nil {
		return err
	}
	defer closeSinks()

	throttler := detection.NewThrottler(detection.ThrottlerConfig{
		Cooldown:         cfg.Detection.AlertCooldown,
		AnomalyThreshold: cfg.Detection.AnomalyThreshold,
		DeauthThreshold:  cfg.Detection.DeauthThreshold,
	}, nil)
	bans := detection.NewBanList(store, cfg.Detection.BanCacheTTL)
	hub := websocket.NewHub()

	dispatcher := pipeline.New(pipeline.Deps{
		Queue:     queue,
		Devices:   devices,
		EvilTwin:  detection.NewEvilTwinDetector(devices, cfg.Detection.EvilTwinWindow),
		Bans:      bans,
		Throttler: throttler,
		Gateway:   store,
		Sink:      sink,
		Observer:  hub,
	}, pipeline.Config{
		EffectsCapacity: cfg.Queue.EffectsCapacity,
		DrainTimeout:    cfg.Queue.DrainTimeout,
	})

	feed := websocket.NewHandler(hub, func() websocket.Snapshot {
		return websocket.Snapshot{Devices: devices.Summaries(), Diagnostics: devices.Diagnostics()}
	}, cfg.Server.CORSOrigins)

	router := api.NewRouter(api.Deps{
		Devices: devices,
		Store:   store,
		Link:    reader,
		Queue:   queue,
		Bans:    bans,
		Feed:    feed,
		AP:      api.APDefaults{SSID: cfg.Sensor.APSSID, Password: cfg.Sensor.APPassword},
	}, api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Server.RateLimitReqs,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
	})

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router.Handler(),
		ReadHeaderTimeout: cfg.Server.Timeout,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	tree.AddIngest(reader)
	tree.AddDetection(dispatcher)
	tree.AddDetection(pipeline.NewCooldownPruner(throttler, 0))
	tree.AddDetection(storage.NewCollector(store, cfg.Storage.GCInterval).WithBanMaxAge(cfg.Storage.BanMaxAge))
	tree.AddAPI(hub)
	tree.AddAPI(services.NewHTTPServerService(server, cfg.Supervisor.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Str("link", reader.Status().Link).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for services to stop")
	case treeErr = <-errCh:
	}
	for err := range errCh {
		if treeErr == nil {
			treeErr = err
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", treeErr)
	}
	return nil
}

// loadVendors reads the OUI table. A missing or unreadable table is not
// fatal: every vendor then resolves to "Unknown".
func loadVendors(path string) *oui.Resolver {
	if path == "" {
		return oui.New()
	}
	r, err := oui.LoadFile(path)
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("OUI table unavailable, vendors will be Unknown")
		return oui.New()
	}
	logging.Info().Int("prefixes", r.Len()).Str("path", path).Msg("OUI table loaded")
	return r
}

func newOpener(cfg *config.LinkConfig) stream.Opener {
	if cfg.Kind == config.LinkTCP {
		return stream.TCPOpener{
			Address:     cfg.Address,
			DialTimeout: cfg.DialTimeout,
			ReadTimeout: cfg.ReadTimeout,
		}
	}
	return stream.SerialOpener{
		Port:        cfg.Port,
		BaudRate:    cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout,
	}
}

// pushAPSettings re-sends the access point settings after every connect,
// preferring values stored through the API over configured ones.
func pushAPSettings(store storage.Store, reader *stream.Reader, cfg *config.SensorConfig) func(context.Context) {
	return func(ctx context.Context) {
		ssid := storage.SettingOr(ctx, store, storage.SettingAPSSID, cfg.APSSID)
		password := storage.SettingOr(ctx, store, storage.SettingAPPassword, cfg.APPassword)
		if ssid == "" {
			return
		}
		ok := reader.Send(api.CommandSetSSID, ssid) && reader.Send(api.CommandSetPassword, password)
		logging.Info().Str("ssid", ssid).Bool("sent", ok).Msg("Access point settings pushed to sensor")
	}
}
