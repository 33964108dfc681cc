// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey int

const (
	keyCorrelation ctxKey = iota
	keyLogger
)

// NewCorrelationID returns a short id used to tie the log lines of one
// sensor record or one HTTP request together.
func NewCorrelationID() string {
	return uuid.New().String()[:8]
}

// ContextWithCorrelationID attaches id to ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyCorrelation, id)
}

// CorrelationIDFromContext returns the id attached to ctx, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(keyCorrelation).(string)
	return id
}

// ContextWithLogger stores a pre-configured logger in ctx.
//
//nolint:gocritic // zerolog.Logger is passed by value throughout zerolog
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, keyLogger, logger)
}

// Ctx returns the logger stored in ctx (or the global one) with the
// correlation id added when present.
//
//	logging.Ctx(ctx).Warn().Err(err).Msg("Alert delivery failed")
func Ctx(ctx context.Context) *zerolog.Logger {
	logger, ok := ctx.Value(keyLogger).(zerolog.Logger)
	if !ok {
		logger = Logger()
	}
	id := CorrelationIDFromContext(ctx)
	if id == "" {
		return &logger
	}
	tagged := logger.With().Str("correlation_id", id).Logger()
	return &tagged
}
