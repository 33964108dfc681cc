// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

// Package logging provides the process-wide zerolog logger for sigvoid.
//
// Every component logs through this package so that the sensor link, the
// dispatcher and the HTTP surface share one output stream and one level:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("port", "/dev/ttyUSB0").Msg("Sensor link opened")
//
//	linkLog := logging.WithComponent("stream")
//	linkLog.Warn().Err(err).Msg("Sensor link lost")
//
// Chains must be terminated with Msg or Send, otherwise nothing is written.
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error, disabled.
	Level string

	// Format is json (default) or console.
	Format string

	// Caller adds file:line to every entry.
	Caller bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the configuration used before Init is called.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

var levels = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"disabled": zerolog.Disabled,
	"off":      zerolog.Disabled,
}

// current is swapped wholesale by Init and SetLogger; readers never lock.
var current atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits // logging must work before main calls Init
func init() {
	Init(DefaultConfig())
}

// Init reconfigures the global logger. Safe to call more than once.
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339Nano

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	l := ctx.Logger()
	current.Store(&l)
}

// parseLevel maps a level name to zerolog. Unknown names fall back to info.
func parseLevel(level string) zerolog.Level {
	if lvl, ok := levels[strings.ToLower(level)]; ok {
		return lvl
	}
	return zerolog.InfoLevel
}

// ValidLevel reports whether level is one Init understands.
func ValidLevel(level string) bool {
	_, ok := levels[strings.ToLower(level)]
	return ok
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	return *current.Load()
}

// SetLogger replaces the global logger. Tests use it to capture output.
//
//nolint:gocritic // zerolog.Logger is passed by value throughout zerolog
func SetLogger(l zerolog.Logger) {
	current.Store(&l)
}

// WithComponent returns a child logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return current.Load().With().Str("component", component).Logger()
}

func Debug() *zerolog.Event { return current.Load().Debug() }
func Info() *zerolog.Event  { return current.Load().Info() }
func Warn() *zerolog.Event  { return current.Load().Warn() }
func Error() *zerolog.Event { return current.Load().Error() }

// Fatal logs and exits with status 1.
func Fatal() *zerolog.Event { return current.Load().Fatal() }

// NewTestLogger returns a JSON logger writing to w.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
