// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

// Package services adapts blocking servers to suture.Service.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/sigvoid/internal/logging"
)

// HTTPServer is the part of *http.Server the service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

const defaultShutdownTimeout = 10 * time.Second

// HTTPServerService keeps the API listener under supervision. Cancelling
// the context passed to Serve triggers a graceful shutdown bounded by
// shutdownTimeout.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps server. A non-positive timeout means 10s.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	svc := &HTTPServerService{server: server, shutdownTimeout: shutdownTimeout}
	if svc.shutdownTimeout <= 0 {
		svc.shutdownTimeout = defaultShutdownTimeout
	}
	return svc
}

// listen runs ListenAndServe and reports its outcome on the returned
// channel. A closed server is reported as nil.
func (h *HTTPServerService) listen() <-chan error {
	done := make(chan error, 1)
	go func() {
		err := h.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()
	return done
}

// Serve blocks until the listener fails or ctx is cancelled. After a clean
// shutdown it returns ctx.Err() so the supervisor treats the stop as
// intentional.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	done := h.listen()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("api listener: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()
	if err := h.server.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("api graceful stop: %w", err)
	}
	<-done
	logging.Info().Dur("timeout", h.shutdownTimeout).Msg("API server stopped")
	return ctx.Err()
}

func (h *HTTPServerService) String() string { return "http-server" }
