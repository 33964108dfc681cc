// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type fakeServer struct {
	listenErr   error
	shutdownErr error
	shutdowns   atomic.Int32
	stop        chan struct{}
	once        sync.Once
}

func newFakeServer() *fakeServer {
	return &fakeServer{stop: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	f.once.Do(func() { close(f.stop) })
	return f.shutdownErr
}

var _ suture.Service = (*HTTPServerService)(nil)

func TestNewHTTPServerServiceDefaultTimeout(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		if svc := NewHTTPServerService(newFakeServer(), d); svc.shutdownTimeout != 10*time.Second {
			t.Errorf("timeout %v -> %v, want 10s", d, svc.shutdownTimeout)
		}
	}
	if got := NewHTTPServerService(newFakeServer(), 0).String(); got != "http-server" {
		t.Errorf("String() = %q", got)
	}
}

func TestHTTPServerServiceServe(t *testing.T) {
	t.Run("graceful shutdown on cancel", func(t *testing.T) {
		srv := newFakeServer()
		svc := NewHTTPServerService(srv, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return")
		}
		if srv.shutdowns.Load() != 1 {
			t.Errorf("Shutdown called %d times", srv.shutdowns.Load())
		}
	})

	t.Run("listener failure is returned", func(t *testing.T) {
		srv := newFakeServer()
		srv.listenErr = errors.New("address already in use")
		err := NewHTTPServerService(srv, time.Second).Serve(context.Background())
		if err == nil || !errors.Is(err, srv.listenErr) {
			t.Errorf("Serve() = %v", err)
		}
	})

	t.Run("shutdown failure is returned", func(t *testing.T) {
		srv := newFakeServer()
		srv.shutdownErr = errors.New("timeout")
		svc := NewHTTPServerService(srv, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := svc.Serve(ctx); !errors.Is(err, srv.shutdownErr) {
			t.Errorf("Serve() = %v", err)
		}
	})
}
