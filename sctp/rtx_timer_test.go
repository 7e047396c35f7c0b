// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRTOManager(t *testing.T) {
	t.Run("initial values", func(t *testing.T) {
		m := newRTOManager(0)
		assert.Equal(t, rtoInitial, m.rto, "should be rtoInitial")
		assert.Equal(t, float64(0), m.srtt, "should be 0")
		assert.Equal(t, float64(0), m.rttvar, "should be 0")
	})

	t.Run("RTO calculation (small RTT)", func(t *testing.T) {
		var rto float64
		m := newRTOManager(0)
		exp := []int32{
			1800,
			1500,
			1275,
			1106,
			1000, // capped at rtoMin
		}

		for i := 0; i < 5; i++ {
			rto = m.setNewRTT(600)
			assert.Equal(t, exp[i], int32(math32Round(rto)), "should be equal")
		}
	})

	t.Run("RTO calculation (large RTT)", func(t *testing.T) {
		var rto float64
		m := newRTOManager(0)
		exp := []int32{
			60000, // capped at RTO.Max
			60000, // capped at RTO.Max
			60000, // capped at RTO.Max
			55313,
			48984,
		}

		for i := 0; i < 5; i++ {
			rto = m.setNewRTT(30000)
			assert.Equal(t, exp[i], int32(math32Round(rto)), "should be equal")
		}
	})

	t.Run("calculateNextTimeout", func(t *testing.T) {
		rto := calculateNextTimeout(1.0, 0, defaultRTOMax)
		assert.Equal(t, float64(1), rto, "should match")
		rto = calculateNextTimeout(1.0, 1, defaultRTOMax)
		assert.Equal(t, float64(2), rto, "should match")
		rto = calculateNextTimeout(1.0, 2, defaultRTOMax)
		assert.Equal(t, float64(4), rto, "should match")
		rto = calculateNextTimeout(1.0, 30, defaultRTOMax)
		assert.Equal(t, float64(1<<30), rto, "should match")
		rto = calculateNextTimeout(1.0, 63, defaultRTOMax)
		assert.Equal(t, defaultRTOMax, rto, "should match")
		rto = calculateNextTimeout(1.0, 64, defaultRTOMax)
		assert.Equal(t, defaultRTOMax, rto, "should match")
	})

	t.Run("reset", func(t *testing.T) {
		m := newRTOManager(0)
		for i := 0; i < 10; i++ {
			m.setNewRTT(200)
		}

		m.reset()
		assert.Equal(t, rtoInitial, m.getRTO(), "should be rtoInitial")
		assert.Equal(t, float64(0), m.srtt, "should be 0")
		assert.Equal(t, float64(0), m.rttvar, "should be 0")
	})
}

func math32Round(v float64) float64 {
	return math.Round(v)
}

type testTimerObserver struct {
	onRTO    func(id int, n uint)
	onFailed func(id int)
}

func (o *testTimerObserver) onRetransmissionTimeout(id int, n uint) {
	o.onRTO(id, n)
}

func (o *testTimerObserver) onRetransmissionFailure(id int) {
	o.onFailed(id)
}

func TestRtxTimer(t *testing.T) { //nolint:maintidx,cyclop
	t.Run("callback interval", func(t *testing.T) {
		timerID := timerT1Init
		var nCbs int32
		var mu sync.Mutex
		done := make(chan struct{})

		var rt *rtxTimer
		rt = newRTXTimer(timerID, &testTimerObserver{
			onRTO: func(id int, nRtos uint) {
				assert.Equal(t, timerID, id, "unexpected timer ID: %d", id)
				mu.Lock()
				nCbs++
				n := nCbs
				mu.Unlock()
				if n == 3 {
					rt.stop()
					close(done)
				}
			},
			onFailed: func(int) {
				assert.Fail(t, "timer should not fail")
			},
		}, noMaxRetrans, 0)

		assert.False(t, rt.isRunning(), "should not be running")

		// since := time.Now()
		ok := rt.start(30)
		assert.True(t, ok, "should be true")
		assert.True(t, rt.isRunning(), "should be running")

		select {
		case <-done:
		case <-time.After(3 * time.Second):
			assert.Fail(t, "timed out waiting for 3 retransmissions")
		}

		assert.False(t, rt.isRunning(), "should not be running")
	})

	t.Run("start and stop", func(t *testing.T) {
		timerID := timerT2Shutdown
		rt := newRTXTimer(timerID, &testTimerObserver{
			onRTO: func(int, uint) {
				assert.Fail(t, "timer should not fire")
			},
			onFailed: func(int) {
				assert.Fail(t, "timer should not fail")
			},
		}, noMaxRetrans, 0)

		// Stop before start is a noop
		rt.stop()
		assert.False(t, rt.isRunning(), "should not be running")

		ok := rt.start(10000)
		assert.True(t, ok, "should be true")
		assert.True(t, rt.isRunning(), "should be running")

		// Subsequent start fails while running
		ok = rt.start(10000)
		assert.False(t, ok, "start while running should fail")

		rt.stop()
		assert.False(t, rt.isRunning(), "should not be running")

		// Can restart after stop
		ok = rt.start(10000)
		assert.True(t, ok, "should be true")
		rt.stop()
	})

	t.Run("max retransmission failure", func(t *testing.T) {
		timerID := timerT1Cookie
		const maxRtos uint = 2
		var nCbs int32
		var mu sync.Mutex
		doneCh := make(chan struct{})

		rt := newRTXTimer(timerID, &testTimerObserver{
			onRTO: func(id int, nRtos uint) {
				mu.Lock()
				nCbs++
				mu.Unlock()
				assert.Equal(t, timerID, id, "unexpected timer ID: %d", id)
			},
			onFailed: func(id int) {
				assert.Equal(t, timerID, id, "unexpected timer ID: %d", id)
				close(doneCh)
			},
		}, maxRtos, 0)

		ok := rt.start(10)
		assert.True(t, ok, "should be true")

		select {
		case <-doneCh:
		case <-time.After(3 * time.Second):
			assert.Fail(t, "timed out waiting for timer failure")
		}

		mu.Lock()
		assert.Equal(t, int32(maxRtos), nCbs, "should have been retransmitted %d times", maxRtos) //nolint:gosec // G115
		mu.Unlock()
		assert.False(t, rt.isRunning(), "should not be running")
	})

	t.Run("timer closed", func(t *testing.T) {
		rt := newRTXTimer(timerT3RTX, &testTimerObserver{
			onRTO: func(int, uint) {
				assert.Fail(t, "timer should not fire")
			},
			onFailed: func(int) {
				assert.Fail(t, "timer should not fail")
			},
		}, noMaxRetrans, 0)

		ok := rt.start(20)
		assert.True(t, ok, "should be true")

		rt.close()
		assert.False(t, rt.isRunning(), "should not be running")

		// start on a closed timer must fail
		ok = rt.start(20)
		assert.False(t, ok, "should fail to start")

		time.Sleep(100 * time.Millisecond)
	})

	t.Run("custom rtoMax caps the backoff", func(t *testing.T) {
		interval := calculateNextTimeout(1000, 10, 5000)
		require.Equal(t, float64(5000), interval)
	})
}
