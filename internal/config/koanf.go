// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/sigvoid/config.yaml",
	"/etc/sigvoid/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Link: LinkConfig{
			Kind:             LinkSerial,
			Port:             "/dev/ttyUSB0",
			BaudRate:         115200,
			ReadTimeout:      300 * time.Millisecond,
			DialTimeout:      5 * time.Second,
			ReconnectBackoff: 5 * time.Second,
			MaxLineBytes:     64 * 1024,
		},
		Sensor: SensorConfig{
			APSSID:     "FreeWiFi_Honeypot",
			PushOnOpen: true,
		},
		Queue: QueueConfig{
			Capacity:        4096,
			Overflow:        OverflowBlock,
			EffectsCapacity: 1024,
			DrainTimeout:    5 * time.Second,
		},
		Detection: DetectionConfig{
			AlertCooldown:    300 * time.Second,
			AnomalyThreshold: 0.8,
			DeauthThreshold:  5,
			EvilTwinWindow:   5 * time.Minute,
			BanCacheTTL:      5 * time.Second,
		},
		Alerts: AlertsConfig{
			LogPath:          "alerts.log",
			ExecTimeout:      10 * time.Second,
			WebhookTimeout:   10 * time.Second,
			WebhookMinGap:    time.Second,
			BreakerThreshold: 5,
			BreakerTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Path:         "/data/sigvoid",
			SyncWrites:   true,
			LogRetention: 7 * 24 * time.Hour,
			GCInterval:   10 * time.Minute,
			BanMaxAge:    7 * 24 * time.Hour,
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Topic:   "sigvoid.alerts",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load builds the configuration: struct defaults, then the first config file
// found, then environment variables. The result is validated.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Comma-separated env values for these keys become string slices.
var sliceConfigPaths = []string{
	"alerts.exec_args",
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"link_kind":         "link.kind",
	"serial_port":       "link.port",
	"serial_baud":       "link.baud_rate",
	"link_address":      "link.address",
	"link_read_timeout": "link.read_timeout",
	"link_dial_timeout": "link.dial_timeout",
	"reconnect_backoff": "link.reconnect_backoff",
	"max_line_bytes":    "link.max_line_bytes",

	"esp_ap_ssid":     "sensor.ap_ssid",
	"esp_ap_password": "sensor.ap_password",
	"sensor_push":     "sensor.push_on_open",

	"queue_capacity":         "queue.capacity",
	"queue_overflow":         "queue.overflow",
	"effects_queue_capacity": "queue.effects_capacity",
	"queue_drain_timeout":    "queue.drain_timeout",

	"alert_cooldown":    "detection.alert_cooldown",
	"anomaly_threshold": "detection.anomaly_threshold",
	"deauth_threshold":  "detection.deauth_threshold",
	"evil_twin_window":  "detection.evil_twin_window",
	"ban_cache_ttl":     "detection.ban_cache_ttl",

	"alert_log_path":          "alerts.log_path",
	"alert_exec_command":      "alerts.exec_command",
	"alert_exec_args":         "alerts.exec_args",
	"alert_exec_timeout":      "alerts.exec_timeout",
	"alert_webhook_url":       "alerts.webhook_url",
	"alert_webhook_timeout":   "alerts.webhook_timeout",
	"alert_webhook_min_gap":   "alerts.webhook_min_gap",
	"alert_breaker_threshold": "alerts.breaker_threshold",
	"alert_breaker_timeout":   "alerts.breaker_timeout",

	"storage_path":        "storage.path",
	"storage_in_memory":   "storage.in_memory",
	"storage_sync_writes": "storage.sync_writes",
	"log_retention":       "storage.log_retention",
	"storage_gc_interval": "storage.gc_interval",
	"ban_max_age":         "storage.ban_max_age",

	"oui_path": "oui.path",

	"nats_enabled": "nats.enabled",
	"nats_url":     "nats.url",
	"nats_topic":   "nats.topic",

	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",
	"cors_origins":        "server.cors_origins",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc maps a known environment variable to its koanf key.
// Unknown variables map to "" and are ignored.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
