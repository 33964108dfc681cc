// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

// Package config loads sigvoid configuration from defaults, an optional YAML
// file and environment variables (in that order of precedence, lowest first).
package config

import "time"

// Link kinds.
const (
	LinkSerial = "serial"
	LinkTCP    = "tcp"
)

// Queue overflow policies.
const (
	OverflowBlock      = "block"
	OverflowDropOldest = "drop_oldest"
)

// Config is the root configuration.
type Config struct {
	Link       LinkConfig       `koanf:"link"`
	Sensor     SensorConfig     `koanf:"sensor"`
	Queue      QueueConfig      `koanf:"queue"`
	Detection  DetectionConfig  `koanf:"detection"`
	Alerts     AlertsConfig     `koanf:"alerts"`
	Storage    StorageConfig    `koanf:"storage"`
	OUI        OUIConfig        `koanf:"oui"`
	NATS       NATSConfig       `koanf:"nats"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// LinkConfig describes how to reach the capture sensor.
type LinkConfig struct {
	Kind     string `koanf:"kind"`      // serial or tcp
	Port     string `koanf:"port"`      // serial device path
	BaudRate int    `koanf:"baud_rate"` // serial only
	Address  string `koanf:"address"`   // host:port, tcp only

	ReadTimeout      time.Duration `koanf:"read_timeout"`
	DialTimeout      time.Duration `koanf:"dial_timeout"`
	ReconnectBackoff time.Duration `koanf:"reconnect_backoff"`
	MaxLineBytes     int           `koanf:"max_line_bytes"`
}

// SensorConfig holds the access point settings pushed to the sensor after
// each successful connect. Values stored through the API take precedence.
type SensorConfig struct {
	APSSID     string `koanf:"ap_ssid"`
	APPassword string `koanf:"ap_password"`
	PushOnOpen bool   `koanf:"push_on_open"`
}

// QueueConfig bounds the hand-off between the reader and the dispatcher.
type QueueConfig struct {
	Capacity        int           `koanf:"capacity"`
	Overflow        string        `koanf:"overflow"`
	EffectsCapacity int           `koanf:"effects_capacity"`
	DrainTimeout    time.Duration `koanf:"drain_timeout"`
}

// DetectionConfig tunes alerting and escalation.
type DetectionConfig struct {
	AlertCooldown    time.Duration `koanf:"alert_cooldown"`
	AnomalyThreshold float64       `koanf:"anomaly_threshold"`
	DeauthThreshold  int           `koanf:"deauth_threshold"`
	EvilTwinWindow   time.Duration `koanf:"evil_twin_window"`
	BanCacheTTL      time.Duration `koanf:"ban_cache_ttl"`
}

// AlertsConfig enables the alert sinks. An empty path/URL/command disables
// the corresponding sink.
type AlertsConfig struct {
	LogPath string `koanf:"log_path"`

	ExecCommand string        `koanf:"exec_command"`
	ExecArgs    []string      `koanf:"exec_args"`
	ExecTimeout time.Duration `koanf:"exec_timeout"`

	WebhookURL       string        `koanf:"webhook_url"`
	WebhookTimeout   time.Duration `koanf:"webhook_timeout"`
	WebhookMinGap    time.Duration `koanf:"webhook_min_gap"`
	BreakerThreshold uint32        `koanf:"breaker_threshold"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout"`
}

// StorageConfig locates the badger directory. LogRetention bounds how long
// per-event log entries are kept and BanMaxAge how long a ban lasts; zero
// keeps either forever.
type StorageConfig struct {
	Path         string        `koanf:"path"`
	InMemory     bool          `koanf:"in_memory"`
	SyncWrites   bool          `koanf:"sync_writes"`
	LogRetention time.Duration `koanf:"log_retention"`
	GCInterval   time.Duration `koanf:"gc_interval"`
	BanMaxAge    time.Duration `koanf:"ban_max_age"`
}

// OUIConfig points at a vendor prefix CSV (prefix,vendor).
type OUIConfig struct {
	Path string `koanf:"path"`
}

// NATSConfig controls alert publishing to an external broker.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	Topic   string `koanf:"topic"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig mirrors supervisor.TreeConfig.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}
