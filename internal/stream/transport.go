// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.bug.st/serial"
)

// ErrLinkUnavailable is returned by an Opener when the sensor cannot be reached.
var ErrLinkUnavailable = errors.New("sensor link unavailable")

// Transport is an open byte stream to the sensor. Read must return within
// a bounded time; a read timeout is reported as (0, nil).
type Transport interface {
	io.ReadWriteCloser
}

// Opener establishes a Transport.
type Opener interface {
	Open(ctx context.Context) (Transport, error)
	String() string
}

// SerialOpener opens a serial port (USB CDC, UART bridge).
type SerialOpener struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

func (o SerialOpener) Open(_ context.Context) (Transport, error) {
	port, err := serial.Open(o.Port, &serial.Mode{
		BaudRate: o.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrLinkUnavailable, o.Port, err)
	}
	if err := port.SetReadTimeout(o.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("%w: set read timeout on %s: %v", ErrLinkUnavailable, o.Port, err)
	}
	return port, nil
}

func (o SerialOpener) String() string {
	return fmt.Sprintf("serial://%s@%d", o.Port, o.BaudRate)
}

// TCPOpener dials a sensor bridged onto the network (ser2net, ESP Wi-Fi).
type TCPOpener struct {
	Address     string
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

func (o TCPOpener) Open(ctx context.Context) (Transport, error) {
	d := net.Dialer{Timeout: o.DialTimeout, KeepAlive: 30 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", o.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrLinkUnavailable, o.Address, err)
	}
	return &deadlineConn{Conn: conn, readTimeout: o.ReadTimeout}, nil
}

func (o TCPOpener) String() string {
	return "tcp://" + o.Address
}

// deadlineConn gives a net.Conn the serial-port read contract: each Read
// waits at most readTimeout and reports a timeout as (0, nil).
type deadlineConn struct {
	net.Conn
	readTimeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return 0, err
	}
	n, err := c.Conn.Read(p)
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	return n, err
}
