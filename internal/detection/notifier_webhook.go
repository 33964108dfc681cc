// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package detection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/sigvoid/internal/logging"
)

// WebhookConfig configures the webhook sink.
type WebhookConfig struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
	// MinGap is the minimum spacing between two requests.
	MinGap time.Duration
	// BreakerThreshold consecutive failures open the circuit for BreakerTimeout.
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
}

// WebhookPayload is the JSON body posted for each alert. Text carries the
// rendered message so chat bridges can forward it unchanged.
type WebhookPayload struct {
	Alert     *Alert    `json:"alert"`
	EventType string    `json:"event_type"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// WebhookNotifier posts alerts to an HTTP endpoint behind a rate limiter and
// a circuit breaker.
type WebhookNotifier struct {
	url     string
	headers map[string]string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewWebhookNotifier creates a webhook sink.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.MinGap > 0 {
		limit = rate.Every(cfg.MinGap)
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	logger := logging.WithComponent("webhook")
	threshold := cfg.BreakerThreshold
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "alert-webhook",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Webhook circuit breaker state changed")
		},
	})

	return &WebhookNotifier{
		url:     cfg.URL,
		headers: headers,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		breaker: breaker,
	}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

// State returns the circuit breaker state name.
func (n *WebhookNotifier) State() string {
	return n.breaker.State().String()
}

// Deliver posts the alert. While the breaker is open it fails fast with
// gobreaker.ErrOpenState.
func (n *WebhookNotifier) Deliver(ctx context.Context, alert *Alert) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit: %w", err)
	}

	body, err := json.Marshal(WebhookPayload{
		Alert:     alert,
		EventType: "device_alert",
		Text:      alert.Message(),
		Timestamp: time.Now().UTC(),
		Source:    "sigvoid",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	_, err = n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.post(ctx, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("webhook circuit open: %w", err)
	}
	return err
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
