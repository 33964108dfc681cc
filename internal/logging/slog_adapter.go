// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// SlogHandler forwards log/slog records to zerolog. The supervisor tree
// (sutureslog) only speaks slog.
//
// Attributes added through WithAttrs are baked into the zerolog context
// immediately; groups only prefix keys added after them.
type SlogHandler struct {
	logger zerolog.Logger
	prefix string
}

// NewSlogHandler wraps the global logger.
func NewSlogHandler() *SlogHandler {
	return &SlogHandler{logger: Logger()}
}

// NewSlogLogger is slog.New(NewSlogHandler()) with a component tag.
func NewSlogLogger(component string) *slog.Logger {
	return slog.New(&SlogHandler{logger: WithComponent(component)})
}

func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	lvl := zerologLevel(level)
	return lvl >= h.logger.GetLevel() && lvl >= zerolog.GlobalLevel()
}

//nolint:gocritic // slog.Handler takes the record by value
func (h *SlogHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make(map[string]any, record.NumAttrs())
	record.Attrs(func(attr slog.Attr) bool {
		flatten(fields, h.prefix, attr)
		return true
	})
	h.logger.WithLevel(zerologLevel(record.Level)).Fields(fields).Msg(record.Message)
	return nil
}

func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := make(map[string]any, len(attrs))
	for _, attr := range attrs {
		flatten(fields, h.prefix, attr)
	}
	return &SlogHandler{logger: h.logger.With().Fields(fields).Logger(), prefix: h.prefix}
}

func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SlogHandler{logger: h.logger, prefix: h.prefix + name + "."}
}

// flatten writes attr into dst under prefix, expanding groups into dotted
// keys.
func flatten(dst map[string]any, prefix string, attr slog.Attr) {
	v := attr.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		inner := prefix
		if attr.Key != "" {
			inner += attr.Key + "."
		}
		for _, ga := range v.Group() {
			flatten(dst, inner, ga)
		}
		return
	}
	if attr.Key == "" {
		return
	}
	switch v.Kind() {
	case slog.KindDuration:
		dst[prefix+attr.Key] = v.Duration().String()
	case slog.KindTime:
		dst[prefix+attr.Key] = v.Time().UTC().Format(zerolog.TimeFieldFormat)
	default:
		dst[prefix+attr.Key] = v.Any()
	}
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	}
	return zerolog.DebugLevel
}
