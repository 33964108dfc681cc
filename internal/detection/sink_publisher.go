// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/sigvoid/internal/logging"
)

// NewNATSPublisher connects a watermill publisher to a NATS server. Alerts
// are fire-and-forget, so JetStream is not used.
func NewNATSPublisher(url string) (message.Publisher, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger("nats"))

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL: url,
		NatsOptions: []natsgo.Option{
			natsgo.Name("sigvoid"),
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(-1),
			natsgo.ReconnectWait(2 * time.Second),
			natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
				if err != nil {
					logger.Error("NATS disconnected", err, nil)
				}
			}),
			natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
				logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
			}),
		},
		Marshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return pub, nil
}

// PublisherSink publishes alerts as JSON messages on a topic.
type PublisherSink struct {
	pub     message.Publisher
	topic   string
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewPublisherSink wraps pub. Any watermill publisher works; production
// uses NewNATSPublisher.
func NewPublisherSink(pub message.Publisher, topic string) *PublisherSink {
	return &PublisherSink{
		pub:   pub,
		topic: topic,
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "alert-publisher",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (s *PublisherSink) Name() string { return "nats" }

func (s *PublisherSink) Deliver(_ context.Context, alert *Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	msg := message.NewMessage(alert.ID, data)
	msg.Metadata.Set("mac", alert.Address)
	msg.Metadata.Set("severity", string(alert.Severity))

	_, err = s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.pub.Publish(s.topic, msg)
	})
	if err != nil {
		return fmt.Errorf("publish alert %s: %w", alert.ID, err)
	}
	return nil
}

// Close closes the underlying publisher.
func (s *PublisherSink) Close() error {
	return s.pub.Close()
}
