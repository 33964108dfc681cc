// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/sigvoid/internal/logging"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLink(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateAlerts(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateLink() error {
	switch c.Link.Kind {
	case LinkSerial:
		if c.Link.Port == "" {
			return fmt.Errorf("SERIAL_PORT is required when LINK_KIND=serial")
		}
		if c.Link.BaudRate <= 0 {
			return fmt.Errorf("SERIAL_BAUD must be positive, got %d", c.Link.BaudRate)
		}
	case LinkTCP:
		if _, _, err := net.SplitHostPort(c.Link.Address); err != nil {
			return fmt.Errorf("LINK_ADDRESS must be host:port: %w", err)
		}
	default:
		return fmt.Errorf("LINK_KIND must be %q or %q, got %q", LinkSerial, LinkTCP, c.Link.Kind)
	}

	if c.Link.ReadTimeout <= 0 {
		return fmt.Errorf("LINK_READ_TIMEOUT must be positive")
	}
	if c.Link.ReconnectBackoff < 100*time.Millisecond {
		return fmt.Errorf("RECONNECT_BACKOFF must be at least 100ms, got %v", c.Link.ReconnectBackoff)
	}
	if c.Link.MaxLineBytes < 256 {
		return fmt.Errorf("MAX_LINE_BYTES must be at least 256, got %d", c.Link.MaxLineBytes)
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("QUEUE_CAPACITY must be positive, got %d", c.Queue.Capacity)
	}
	if c.Queue.EffectsCapacity <= 0 {
		return fmt.Errorf("EFFECTS_QUEUE_CAPACITY must be positive, got %d", c.Queue.EffectsCapacity)
	}
	switch c.Queue.Overflow {
	case OverflowBlock, OverflowDropOldest:
		return nil
	default:
		return fmt.Errorf("QUEUE_OVERFLOW must be %q or %q, got %q", OverflowBlock, OverflowDropOldest, c.Queue.Overflow)
	}
}

func (c *Config) validateDetection() error {
	d := c.Detection
	if d.AlertCooldown < 0 {
		return fmt.Errorf("ALERT_COOLDOWN must not be negative")
	}
	if d.AnomalyThreshold <= 0 || d.AnomalyThreshold > 1 {
		return fmt.Errorf("ANOMALY_THRESHOLD must be in (0, 1], got %v", d.AnomalyThreshold)
	}
	if d.DeauthThreshold < 0 {
		return fmt.Errorf("DEAUTH_THRESHOLD must not be negative")
	}
	if d.EvilTwinWindow <= 0 {
		return fmt.Errorf("EVIL_TWIN_WINDOW must be positive")
	}
	if d.BanCacheTTL < 0 {
		return fmt.Errorf("BAN_CACHE_TTL must not be negative")
	}
	return nil
}

func (c *Config) validateAlerts() error {
	if c.Alerts.WebhookURL != "" {
		u, err := url.Parse(c.Alerts.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("ALERT_WEBHOOK_URL must be an http(s) URL, got %q", c.Alerts.WebhookURL)
		}
	}
	if c.Alerts.BreakerThreshold == 0 {
		return fmt.Errorf("ALERT_BREAKER_THRESHOLD must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Storage.InMemory && strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("STORAGE_PATH is required unless STORAGE_IN_MEMORY=true")
	}
	if c.Storage.LogRetention < 0 {
		return fmt.Errorf("LOG_RETENTION must not be negative")
	}
	if c.Storage.BanMaxAge < 0 {
		return fmt.Errorf("BAN_MAX_AGE must not be negative, got %s", c.Storage.BanMaxAge)
	}
	if c.Storage.GCInterval < time.Minute {
		return fmt.Errorf("STORAGE_GC_INTERVAL must be at least 1m, got %s", c.Storage.GCInterval)
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		return fmt.Errorf("NATS_URL must start with nats:// or tls://, got %q", c.NATS.URL)
	}
	if c.NATS.Topic == "" {
		return fmt.Errorf("NATS_TOPIC is required when NATS_ENABLED=true")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitReqs < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a known level", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
