// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package mux

import (
	"net"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPipeBufferSize = 8192

func TestStressDuplex(t *testing.T) {
	lim := test.TimeOut(time.Second * 30)
	defer lim.Stop()

	// Check for leaking routines
	report := test.CheckRoutines(t)
	defer report()

	stressDuplex(t)
}

func stressDuplex(t *testing.T) {
	t.Helper()

	ca, cb, stop := pipeMemory(t)
	defer stop(t)

	opt := test.Options{
		MsgSize:  2048,
		MsgCount: 100,
	}

	assert.NoError(t, test.StressDuplex(ca, cb, opt))
}

func pipeMemory(t *testing.T) (*Endpoint, net.Conn, func(*testing.T)) {
	t.Helper()

	// In memory pipe
	ca, cb := net.Pipe()

	m := NewMux(Config{
		Conn:          ca,
		BufferSize:    testPipeBufferSize,
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})

	e := m.NewEndpoint(MatchAll)
	m.RemoveEndpoint(e)
	e = m.NewEndpoint(MatchAll)

	stop := func(t *testing.T) {
		t.Helper()

		assert.NoError(t, cb.Close())
		assert.NoError(t, m.Close())
	}

	return e, cb, stop
}

func TestNoEndpoints(t *testing.T) {
	// In memory pipe
	ca, cb := net.Pipe()
	require.NoError(t, cb.Close())

	m := NewMux(Config{
		Conn:          ca,
		BufferSize:    testPipeBufferSize,
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})

	assert.NoError(t, m.dispatch(make([]byte, 1)))
	assert.NoError(t, m.Close())
	assert.NoError(t, ca.Close())
}

func TestPendingQueue(t *testing.T) {
	lim := test.TimeOut(time.Second * 5)
	defer lim.Stop()

	report := test.CheckRoutines(t)
	defer report()

	ca, cb := net.Pipe()

	m := NewMux(Config{
		Conn:          ca,
		BufferSize:    testPipeBufferSize,
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})

	// Dispatch arrives before any endpoint is registered, must be queued
	// and replayed once a matching endpoint appears.
	inDTLS := []byte{20, 0, 0, 0}
	require.NoError(t, m.dispatch(inDTLS))

	e := m.NewEndpoint(MatchDTLS)

	out := make([]byte, testPipeBufferSize)
	n, err := e.Read(out)
	require.NoError(t, err)
	assert.Equal(t, inDTLS, out[:n])

	assert.NoError(t, cb.Close())
	assert.NoError(t, m.Close())
}

func TestDispatchToMatchingEndpoint(t *testing.T) {
	lim := test.TimeOut(time.Second * 5)
	defer lim.Stop()

	report := test.CheckRoutines(t)
	defer report()

	ca, cb := net.Pipe()

	m := NewMux(Config{
		Conn:          ca,
		BufferSize:    testPipeBufferSize,
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})

	eSTUN := m.NewEndpoint(MatchSTUN)
	eDTLS := m.NewEndpoint(MatchDTLS)

	inSTUN := []byte{0, 1, 0, 0}
	inDTLS := []byte{22, 254, 253, 0}

	go func() {
		_, _ = cb.Write(inSTUN)
		_, _ = cb.Write(inDTLS)
	}()

	out := make([]byte, testPipeBufferSize)
	n, err := eSTUN.Read(out)
	require.NoError(t, err)
	assert.Equal(t, inSTUN, out[:n])

	n, err = eDTLS.Read(out)
	require.NoError(t, err)
	assert.Equal(t, inDTLS, out[:n])

	assert.NoError(t, cb.Close())
	assert.NoError(t, m.Close())
}
