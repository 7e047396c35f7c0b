// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package mux

import (
	"errors"
	"net"
	"time"

	"github.com/pion/transport/v3/packetio"
)

// ErrWriteDeadlineUnsupported is returned when a write deadline is set on an Endpoint.
var ErrWriteDeadlineUnsupported = errors.New("write deadlines are not supported on a mux endpoint")

// Endpoint implements net.Conn. It is used to read muxed packets.
type Endpoint struct {
	mux    *Mux
	buffer *packetio.Buffer
}

// Close unregisters the endpoint from the Mux.
func (e *Endpoint) Close() (err error) {
	if err = e.close(); err != nil {
		return err
	}

	e.mux.RemoveEndpoint(e)

	return nil
}

func (e *Endpoint) close() error {
	return e.buffer.Close()
}

// Read reads a packet of len(p) bytes from the underlying conn
// that are matched by the associated MatchFunc.
func (e *Endpoint) Read(p []byte) (int, error) {
	return e.buffer.Read(p)
}

// Write writes len(p) bytes to the underlying conn.
func (e *Endpoint) Write(p []byte) (int, error) {
	return e.mux.nextConn.Write(p)
}

// LocalAddr returns the address of the underlying conn.
func (e *Endpoint) LocalAddr() net.Addr {
	return e.mux.nextConn.LocalAddr()
}

// RemoteAddr returns the remote address of the underlying conn.
func (e *Endpoint) RemoteAddr() net.Addr {
	return e.mux.nextConn.RemoteAddr()
}

// SetDeadline sets the read deadline. Write deadlines are not supported.
func (e *Endpoint) SetDeadline(t time.Time) error {
	return e.SetReadDeadline(t)
}

// SetReadDeadline sets the deadline for future Read calls.
func (e *Endpoint) SetReadDeadline(t time.Time) error {
	return e.buffer.SetReadDeadline(t)
}

// SetWriteDeadline is unsupported, writes go straight to the underlying conn.
func (e *Endpoint) SetWriteDeadline(time.Time) error {
	return ErrWriteDeadlineUnsupported
}
