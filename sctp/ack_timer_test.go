// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testAckTimerObserver struct {
	onAck func()
}

func (o *testAckTimerObserver) onAckTimeout() {
	o.onAck()
}

func TestAckTimer(t *testing.T) {
	t.Run("start and stop", func(t *testing.T) {
		var nCbs int32
		var mu sync.Mutex
		rt := newAckTimer(&testAckTimerObserver{
			onAck: func() {
				mu.Lock()
				nCbs++
				mu.Unlock()
			},
		})

		// should start ok
		ok := rt.start()
		assert.True(t, ok, "start() should succeed")
		assert.True(t, rt.isRunning(), "should be running")

		// stop immediately
		rt.stop()
		assert.False(t, rt.isRunning(), "should not be running")

		// Sleep more than 2 * the ack interval to test if it is still running
		time.Sleep(ackInterval*2 + 50*time.Millisecond)

		mu.Lock()
		assert.Equal(t, int32(0), nCbs, "should not be timed out")
		mu.Unlock()

		// can start again
		ok = rt.start()
		assert.True(t, ok, "start() should succeed again")
		assert.True(t, rt.isRunning(), "should be running")

		// should fire after the ack interval
		time.Sleep(ackInterval + 50*time.Millisecond)

		mu.Lock()
		assert.Equal(t, int32(1), nCbs, "should be timed out once")
		mu.Unlock()

		assert.False(t, rt.isRunning(), "should not be running")

		rt.close()
	})

	t.Run("start fails when running or closed", func(t *testing.T) {
		rt := newAckTimer(&testAckTimerObserver{
			onAck: func() {},
		})

		ok := rt.start()
		assert.True(t, ok, "start() should succeed")
		ok = rt.start()
		assert.False(t, ok, "start() while running should fail")

		rt.close()
		assert.False(t, rt.isRunning(), "should not be running")

		ok = rt.start()
		assert.False(t, ok, "start() after close() should fail")
	})
}
