// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/sigvoid/internal/logging"
	"github.com/tomtom215/sigvoid/internal/metrics"
)

// ReaderConfig tunes the reconnect loop.
type ReaderConfig struct {
	// Backoff is the fixed wait between reconnect attempts.
	Backoff time.Duration
	// MaxLineBytes caps a single record line.
	MaxLineBytes int
}

// Status is a point-in-time view of the link.
type Status struct {
	Link      string    `json:"link"`
	Connected bool      `json:"connected"`
	Opens     uint64    `json:"opens"`
	Decoded   uint64    `json:"decoded"`
	Skipped   uint64    `json:"skipped"`
	LastLine  time.Time `json:"last_line,omitempty"`
}

// Reader owns the sensor link. Run reads newline-delimited JSON records into
// the queue and reconnects forever; Send writes commands over the same link.
type Reader struct {
	opener Opener
	queue  *Queue
	cfg    ReaderConfig
	logger zerolog.Logger

	// mu serializes access to conn: one Read call or one Send at a time.
	mu   sync.Mutex
	conn Transport

	onOpen   func(context.Context)
	warnings *rate.Limiter

	connected atomic.Bool
	opens     atomic.Uint64
	decoded   atomic.Uint64
	skipped   atomic.Uint64
	lastLine  atomic.Int64
}

// NewReader creates a reader feeding queue.
func NewReader(opener Opener, queue *Queue, cfg ReaderConfig) *Reader {
	if cfg.Backoff <= 0 {
		cfg.Backoff = 5 * time.Second
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 64 * 1024
	}
	return &Reader{
		opener:   opener,
		queue:    queue,
		cfg:      cfg,
		logger:   logging.WithComponent("stream"),
		warnings: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// OnOpen registers fn to run on the reader goroutine after every successful
// (re)connect, before the first read.
func (r *Reader) OnOpen(fn func(context.Context)) {
	r.onOpen = fn
}

// Run connects and reads until ctx is cancelled. It only returns ctx.Err().
func (r *Reader) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		metrics.LinkReconnects.Inc()
		t, err := r.opener.Open(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Str("link", r.opener.String()).
				Dur("retry_in", r.cfg.Backoff).Msg("Sensor link unavailable")
			if !r.wait(ctx) {
				return ctx.Err()
			}
			continue
		}

		r.attach(t)
		r.logger.Info().Str("link", r.opener.String()).Msg("Sensor link opened")
		if r.onOpen != nil {
			r.onOpen(ctx)
		}

		err = r.readLoop(ctx, t)
		r.detach()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn().Err(err).Str("link", r.opener.String()).
			Dur("retry_in", r.cfg.Backoff).Msg("Sensor link lost")
		if !r.wait(ctx) {
			return ctx.Err()
		}
	}
}

// Serve implements suture.Service.
func (r *Reader) Serve(ctx context.Context) error {
	return r.Run(ctx)
}

func (r *Reader) readLoop(ctx context.Context, t Transport) error {
	lines := newLineBuffer(r.cfg.MaxLineBytes)
	buf := make([]byte, 4096)

	emit := func(line []byte) {
		r.lastLine.Store(time.Now().UnixNano())
		rec, err := Decode(line)
		if err != nil {
			r.skip(reasonFor(err), err, line)
			return
		}
		r.decoded.Add(1)
		metrics.RecordsDecoded.WithLabelValues(string(rec.Type)).Inc()
		_ = r.queue.Push(ctx, rec)
	}
	oversize := func() {
		r.skip("oversize", errors.New("line exceeds limit"), nil)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.mu.Lock()
		n, err := t.Read(buf)
		r.mu.Unlock()

		if n > 0 {
			lines.feed(buf[:n], emit, oversize)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
}

func (r *Reader) skip(reason string, err error, line []byte) {
	r.skipped.Add(1)
	metrics.RecordsSkipped.WithLabelValues(reason).Inc()
	if r.warnings.Allow() {
		ev := r.logger.Warn().Err(err).Str("reason", reason)
		if len(line) > 0 {
			ev = ev.Bytes("line", truncate(line, 256))
		}
		ev.Msg("Skipping sensor line")
	}
}

func reasonFor(err error) string {
	if errors.Is(err, ErrInvalid) {
		return "invalid"
	}
	return "json"
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

func (r *Reader) attach(t Transport) {
	r.mu.Lock()
	r.conn = t
	r.mu.Unlock()
	r.opens.Add(1)
	r.connected.Store(true)
	metrics.SetLinkUp(true)
}

func (r *Reader) detach() {
	r.mu.Lock()
	if r.conn != nil {
		_ = r.conn.Close()
		r.conn = nil
	}
	r.mu.Unlock()
	r.connected.Store(false)
	metrics.SetLinkUp(false)
}

func (r *Reader) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(r.cfg.Backoff):
		return true
	}
}

// Send writes "NAME:VALUE\n" to the sensor. It returns false when the link is
// down, the command is malformed or the write fails. A failed send does not
// affect the read loop.
func (r *Reader) Send(name, value string) bool {
	if name == "" || strings.ContainsAny(name, ":\r\n") || strings.ContainsAny(value, "\r\n") {
		metrics.RecordCommand(false)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		metrics.RecordCommand(false)
		return false
	}
	if _, err := io.WriteString(r.conn, name+":"+value+"\n"); err != nil {
		r.logger.Warn().Err(err).Str("command", name).Msg("Sensor command failed")
		metrics.RecordCommand(false)
		return false
	}
	r.logger.Debug().Str("command", name).Msg("Sensor command sent")
	metrics.RecordCommand(true)
	return true
}

// Connected reports whether the link is currently open.
func (r *Reader) Connected() bool {
	return r.connected.Load()
}

// Status reports link counters.
func (r *Reader) Status() Status {
	s := Status{
		Link:      r.opener.String(),
		Connected: r.connected.Load(),
		Opens:     r.opens.Load(),
		Decoded:   r.decoded.Load(),
		Skipped:   r.skipped.Load(),
	}
	if ns := r.lastLine.Load(); ns > 0 {
		s.LastLine = time.Unix(0, ns)
	}
	return s
}

// String implements fmt.Stringer for the supervisor.
func (r *Reader) String() string {
	return "stream-reader"
}
