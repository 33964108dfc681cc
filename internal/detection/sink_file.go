// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package detection

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// FileSink appends one line per alert to a log file.
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink creates a sink appending to path. The file is created on first
// delivery.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Deliver(_ context.Context, alert *Alert) error {
	line := fmt.Sprintf("%s: %s\n", alert.FiredAt.Format(time.RFC3339), alert.Message())

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open alert log: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("write alert log: %w", err)
	}
	return f.Close()
}
