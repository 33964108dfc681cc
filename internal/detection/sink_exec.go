// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package detection

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ExecSink runs a local command per alert, typically an audible alarm such
// as "aplay alert.wav". Alert fields are passed as SIGVOID_* environment
// variables.
type ExecSink struct {
	command string
	args    []string
	timeout time.Duration
}

// NewExecSink creates a sink running command with args.
func NewExecSink(command string, args []string, timeout time.Duration) *ExecSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExecSink{command: command, args: append([]string(nil), args...), timeout: timeout}
}

func (s *ExecSink) Name() string { return "exec" }

func (s *ExecSink) Deliver(ctx context.Context, alert *Alert) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.command, s.args...) //nolint:gosec // operator-configured command
	cmd.Env = append(os.Environ(),
		"SIGVOID_MAC="+alert.Address,
		"SIGVOID_VENDOR="+alert.Vendor,
		"SIGVOID_SEVERITY="+string(alert.Severity),
		"SIGVOID_ANOMALY="+strconv.FormatFloat(alert.AnomalyScore, 'f', 2, 64),
		"SIGVOID_DEAUTHS="+strconv.Itoa(alert.DeauthCount),
		"SIGVOID_REASONS="+strings.Join(alert.Reasons, ","),
		"SIGVOID_MESSAGE="+alert.Message(),
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("alert command %s: %w (output: %s)", s.command, err, strings.TrimSpace(string(out)))
	}
	return nil
}
