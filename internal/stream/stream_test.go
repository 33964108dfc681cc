// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeTransport replays scripted chunks, then fails with err (or idles when
// err is nil).
type fakeTransport struct {
	mu      sync.Mutex
	chunks  [][]byte
	err     error
	written bytes.Buffer
	closed  bool
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, errors.New("read on closed transport")
	}
	if len(f.chunks) > 0 {
		n := copy(p, f.chunks[0])
		f.chunks = f.chunks[1:]
		return n, nil
	}
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Unlock()
	time.Sleep(2 * time.Millisecond)
	f.mu.Lock()
	return 0, nil
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, errors.New("write on closed transport")
	}
	return f.written.Write(p)
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) Written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.String()
}

// fakeOpener hands out transports (or errors) in order, then keeps failing.
type fakeOpener struct {
	mu    sync.Mutex
	steps []any
	opens int
}

func (o *fakeOpener) Open(context.Context) (Transport, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if len(o.steps) == 0 {
		return nil, ErrLinkUnavailable
	}
	step := o.steps[0]
	o.steps = o.steps[1:]
	if err, ok := step.(error); ok {
		return nil, err
	}
	return step.(Transport), nil
}

func (o *fakeOpener) String() string { return "fake://sensor" }

func (o *fakeOpener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

func popN(t *testing.T, q *Queue, n int) []*Record {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out := make([]*Record, 0, n)
	for len(out) < n {
		rec, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("waiting for record %d of %d: %v", len(out)+1, n, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr error
		check   func(*testing.T, *Record)
	}{
		{
			name: "probe",
			line: `{"type":"probe","mac":"aa:bb:cc:dd:ee:ff","ssid":"Cafe","rssi":-61,"channel":6,"bssid":"11:22:33:44:55:66","timestamp":12345}`,
			check: func(t *testing.T, r *Record) {
				if r.Type != KindProbe || r.SSID != "Cafe" || r.Timestamp != 12345 {
					t.Errorf("unexpected record %+v", r)
				}
				if r.RSSI == nil || *r.RSSI != -61 || r.Channel == nil || *r.Channel != 6 {
					t.Errorf("optional fields not decoded: %+v", r)
				}
				if len(r.Raw) == 0 {
					t.Error("Raw should hold the line")
				}
			},
		},
		{
			name: "probe without optional fields",
			line: `{"type":"probe","mac":"aa:bb:cc:dd:ee:ff","timestamp":1}`,
			check: func(t *testing.T, r *Record) {
				if r.RSSI != nil || r.Channel != nil {
					t.Error("absent fields should stay nil")
				}
			},
		},
		{
			name: "diagnostics",
			line: `{"type":"diagnostics","free_heap":201344,"uptime":60000}`,
			check: func(t *testing.T, r *Record) {
				if r.FreeHeap != 201344 || r.Uptime != 60000 {
					t.Errorf("unexpected record %+v", r)
				}
			},
		},
		{name: "info", line: `{"type":"info","message":"boot"}`},
		{name: "not json", line: `{"type":"probe",`, wantErr: ErrMalformed},
		{name: "unknown type", line: `{"type":"beacon","mac":"aa:bb:cc:dd:ee:ff"}`, wantErr: ErrInvalid},
		{name: "probe without mac", line: `{"type":"probe","ssid":"x"}`, wantErr: ErrInvalid},
		{name: "deauth with bad mac", line: `{"type":"deauth","mac":"not-a-mac"}`, wantErr: ErrInvalid},
		{name: "wrong field type", line: `{"type":"probe","mac":"aa:bb:cc:dd:ee:ff","rssi":"loud"}`, wantErr: ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Decode([]byte(tt.line))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if tt.check != nil {
				tt.check(t, rec)
			}
		})
	}
}

func TestLineBuffer(t *testing.T) {
	var lines []string
	oversized := 0
	lb := newLineBuffer(16)
	emit := func(b []byte) { lines = append(lines, string(b)) }
	over := func() { oversized++ }

	lb.feed([]byte("abc"), emit, over)
	lb.feed([]byte("def\r\nxyz\n\n  \n"), emit, over)
	lb.feed([]byte("0123456789abcdefXYZ"), emit, over) // oversize without newline
	lb.feed([]byte("still the same line\nok\n"), emit, over)
	lb.feed([]byte("0123456789abcdefXYZ\nafter\n"), emit, over) // oversize in one chunk

	want := []string{"abcdef", "xyz", "ok", "after"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", lines, want)
	}
	if oversized != 2 {
		t.Errorf("oversized = %d, want 2", oversized)
	}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(8, Block)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := q.Push(ctx, &Record{Type: KindInfo, Message: fmt.Sprint(i)}); err != nil {
			t.Fatal(err)
		}
	}
	for i, rec := range popN(t, q, 5) {
		if rec.Message != fmt.Sprint(i) {
			t.Errorf("record %d = %q, out of order", i, rec.Message)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Error("queue should be empty")
	}
}

func TestQueueDropOldest(t *testing.T) {
	q := NewQueue(3, DropOldest)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := q.Push(ctx, &Record{Type: KindInfo, Message: fmt.Sprint(i)}); err != nil {
			t.Fatal(err)
		}
	}
	if q.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", q.Dropped())
	}
	got := popN(t, q, 3)
	if got[0].Message != "2" || got[2].Message != "4" {
		t.Errorf("expected the newest three records, got %q..%q", got[0].Message, got[2].Message)
	}
}

func TestQueueBlockHonoursContext(t *testing.T) {
	q := NewQueue(1, Block)
	if err := q.Push(context.Background(), &Record{}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Push(ctx, &Record{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Push() on full queue = %v, want deadline exceeded", err)
	}
	if q.Dropped() != 0 {
		t.Error("block policy must not drop")
	}
}

func TestParseOverflowPolicy(t *testing.T) {
	if p, err := ParseOverflowPolicy("drop_oldest"); err != nil || p != DropOldest {
		t.Errorf("drop_oldest -> %v, %v", p, err)
	}
	if p, err := ParseOverflowPolicy(""); err != nil || p != Block {
		t.Errorf("empty -> %v, %v", p, err)
	}
	if _, err := ParseOverflowPolicy("drop_newest"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestReaderDecodesAcrossChunks(t *testing.T) {
	tr := &fakeTransport{chunks: [][]byte{
		[]byte(`{"type":"probe","mac":"aa:bb:cc:dd:ee:01","ssid":"A","timest`),
		[]byte("amp\":1}\n{garbage}\n"),
		[]byte(`{"type":"deauth","mac":"aa:bb:cc:dd:ee:02","timestamp":2}` + "\n"),
	}}
	q := NewQueue(16, Block)
	r := NewReader(&fakeOpener{steps: []any{tr}}, q, ReaderConfig{Backoff: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	got := popN(t, q, 2)
	if got[0].Type != KindProbe || got[0].Timestamp != 1 {
		t.Errorf("first record = %+v", got[0])
	}
	if got[1].Type != KindDeauth {
		t.Errorf("second record = %+v", got[1])
	}
	if s := r.Status(); s.Skipped != 1 || s.Decoded != 2 || !s.Connected {
		t.Errorf("Status() = %+v", s)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
	if r.Connected() {
		t.Error("link should be closed after Run returns")
	}
}

func TestReaderReconnectsAfterLoss(t *testing.T) {
	first := &fakeTransport{
		chunks: [][]byte{[]byte(`{"type":"info","message":"one"}` + "\n" + `{"type":"info","mess`)},
		err:    errors.New("device unplugged"),
	}
	second := &fakeTransport{
		chunks: [][]byte{[]byte(`age":"partial"}` + "\n" + `{"type":"info","message":"two"}` + "\n")},
	}
	opener := &fakeOpener{steps: []any{first, ErrLinkUnavailable, second}}
	q := NewQueue(16, Block)
	r := NewReader(opener, q, ReaderConfig{Backoff: 5 * time.Millisecond})

	var opened sync.WaitGroup
	opened.Add(2)
	var onOpenCalls int
	r.OnOpen(func(context.Context) {
		onOpenCalls++
		if onOpenCalls <= 2 {
			opened.Done()
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	got := popN(t, q, 2)
	if got[0].Message != "one" || got[1].Message != "two" {
		t.Errorf("messages = %q, %q", got[0].Message, got[1].Message)
	}
	opened.Wait()
	if opener.Opens() < 3 {
		t.Errorf("Opens() = %d, want at least 3", opener.Opens())
	}
	if !first.closed {
		t.Error("lost transport should be closed")
	}
	// The partial line from the lost transport must not be glued onto the
	// first line of the new one; the leftover fragment is skipped instead.
	if r.Status().Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", r.Status().Skipped)
	}
}

func TestReaderSend(t *testing.T) {
	tr := &fakeTransport{}
	q := NewQueue(4, Block)
	r := NewReader(&fakeOpener{steps: []any{tr}}, q, ReaderConfig{Backoff: time.Hour})

	if r.Send("SET_SSID", "FreeWiFi") {
		t.Error("Send should fail before the link is open")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !r.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("link never opened")
		}
		time.Sleep(time.Millisecond)
	}

	if !r.Send("SET_SSID", "FreeWiFi") {
		t.Fatal("Send should succeed on an open link")
	}
	if !r.Send("SET_PASS", "") {
		t.Fatal("empty value is allowed")
	}
	if r.Send("BAD:NAME", "x") || r.Send("SET_SSID", "two\nlines") || r.Send("", "x") {
		t.Error("malformed commands must be rejected")
	}
	if got := tr.Written(); got != "SET_SSID:FreeWiFi\nSET_PASS:\n" {
		t.Errorf("written = %q", got)
	}
}
