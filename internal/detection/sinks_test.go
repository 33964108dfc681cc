// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package detection

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
)

func testAlert() *Alert {
	return &Alert{
		ID:               "7f1c2a9e-0000-4000-8000-000000000001",
		Address:          "AA:BB:CC:DD:EE:FF",
		Vendor:           "Espressif",
		AnomalyScore:     0.91,
		PersistenceScore: 0.4,
		PatternScore:     0.5,
		DeauthCount:      2,
		Reasons:          []string{ReasonAnomaly},
		Severity:         SeverityWarning,
		FiredAt:          time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFileSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.log")
	s := NewFileSink(path)

	for i := 0; i < 2; i++ {
		if err := s.Deliver(context.Background(), testAlert()); err != nil {
			t.Fatalf("Deliver() error = %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	want := "2026-03-01T12:00:00Z: Suspicious - MAC=AA:BB:CC:DD:EE:FF"
	if !strings.HasPrefix(lines[0], want) {
		t.Errorf("line = %q, want prefix %q", lines[0], want)
	}
}

func TestFileSinkBadPath(t *testing.T) {
	s := NewFileSink(filepath.Join(t.TempDir(), "missing", "alerts.log"))
	if err := s.Deliver(context.Background(), testAlert()); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestExecSink(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	out := filepath.Join(t.TempDir(), "env.txt")
	s := NewExecSink(sh, []string{"-c", `echo "$SIGVOID_MAC $SIGVOID_SEVERITY" > ` + out}, time.Second)
	if err := s.Deliver(context.Background(), testAlert()); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != "AA:BB:CC:DD:EE:FF warning" {
		t.Errorf("command saw %q", got)
	}

	failing := NewExecSink(sh, []string{"-c", "echo nope; exit 3"}, time.Second)
	err = failing.Deliver(context.Background(), testAlert())
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("expected failure with output, got %v", err)
	}
}

func TestWebhookNotifierPostsPayload(t *testing.T) {
	var got WebhookPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer token"},
	})
	if err := n.Deliver(context.Background(), testAlert()); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	if auth != "Bearer token" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.EventType != "device_alert" || got.Source != "sigvoid" {
		t.Errorf("payload = %+v", got)
	}
	if got.Alert == nil || got.Alert.Address != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("payload alert = %+v", got.Alert)
	}
	if !strings.HasPrefix(got.Text, "Suspicious - MAC=AA:BB:CC:DD:EE:FF") {
		t.Errorf("Text = %q", got.Text)
	}
}

func TestWebhookNotifierBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{
		URL:              srv.URL,
		BreakerThreshold: 2,
		BreakerTimeout:   time.Minute,
	})

	for i := 0; i < 2; i++ {
		err := n.Deliver(context.Background(), testAlert())
		if err == nil || !strings.Contains(err.Error(), "status 502") {
			t.Fatalf("attempt %d: err = %v, want status error", i, err)
		}
	}

	err := n.Deliver(context.Background(), testAlert())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want open circuit", err)
	}
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", hits.Load())
	}
	if n.State() != gobreaker.StateOpen.String() {
		t.Errorf("State() = %s", n.State())
	}
}

func TestPublisherSink(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 4}, watermill.NopLogger{})
	defer pubsub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := pubsub.Subscribe(ctx, "sigvoid.alerts")
	if err != nil {
		t.Fatal(err)
	}

	s := NewPublisherSink(pubsub, "sigvoid.alerts")
	if err := s.Deliver(ctx, testAlert()); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	select {
	case msg := <-messages:
		msg.Ack()
		if msg.UUID != testAlert().ID {
			t.Errorf("UUID = %s, want alert id", msg.UUID)
		}
		if msg.Metadata.Get("mac") != "AA:BB:CC:DD:EE:FF" {
			t.Errorf("mac metadata = %q", msg.Metadata.Get("mac"))
		}
		var a Alert
		if err := json.Unmarshal(msg.Payload, &a); err != nil {
			t.Fatal(err)
		}
		if a.AnomalyScore != 0.91 {
			t.Errorf("AnomalyScore = %v", a.AnomalyScore)
		}
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

type recordingSink struct {
	name  string
	err   error
	count int
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Deliver(context.Context, *Alert) error {
	r.count++
	return r.err
}

func TestMultiSinkDeliversToAll(t *testing.T) {
	failing := &recordingSink{name: "broken", err: errors.New("boom")}
	ok := &recordingSink{name: "ok"}
	m := NewMultiSink(failing)
	m.Add(ok)

	err := m.Deliver(context.Background(), testAlert())
	if err == nil || !strings.Contains(err.Error(), "broken: boom") {
		t.Errorf("err = %v", err)
	}
	if failing.count != 1 || ok.count != 1 {
		t.Errorf("counts = %d/%d, want 1/1", failing.count, ok.count)
	}
	if names := m.Names(); len(names) != 2 || names[0] != "broken" || names[1] != "ok" {
		t.Errorf("Names() = %v", names)
	}

	if err := NewMultiSink(ok).Deliver(context.Background(), testAlert()); err != nil {
		t.Errorf("all-ok delivery returned %v", err)
	}
}
