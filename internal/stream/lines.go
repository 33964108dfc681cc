// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package stream

import "bytes"

// lineBuffer assembles newline-terminated lines from arbitrary read chunks.
// A line longer than max bytes is dropped up to and including its newline.
type lineBuffer struct {
	buf      []byte
	max      int
	skipping bool
}

func newLineBuffer(max int) *lineBuffer {
	return &lineBuffer{max: max, buf: make([]byte, 0, 1024)}
}

// feed appends chunk and calls emit for every complete line (without the
// trailing \r\n or \n). It calls oversize once per discarded line.
func (l *lineBuffer) feed(chunk []byte, emit func([]byte), oversize func()) {
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			if l.skipping {
				return
			}
			l.buf = append(l.buf, chunk...)
			if len(l.buf) > l.max {
				l.buf = l.buf[:0]
				l.skipping = true
				oversize()
			}
			return
		}

		part := chunk[:i]
		chunk = chunk[i+1:]

		if l.skipping {
			l.skipping = false
			continue
		}
		if len(l.buf)+len(part) > l.max {
			l.buf = l.buf[:0]
			oversize()
			continue
		}

		line := part
		if len(l.buf) > 0 {
			l.buf = append(l.buf, part...)
			line = l.buf
		}
		line = bytes.TrimRight(line, "\r")
		if len(bytes.TrimSpace(line)) > 0 {
			emit(line)
		}
		l.buf = l.buf[:0]
	}
}

