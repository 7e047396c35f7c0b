// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"math"
	"sync"
	"time"
)

const (
	// RTO.Initial in msec (RFC 4960 section 15).
	rtoInitial float64 = 3.0 * 1000

	// RTO.Min in msec.
	rtoMin float64 = 1.0 * 1000

	// RTO.Max in msec.
	defaultRTOMax float64 = 60.0 * 1000

	// RTO.Alpha and RTO.Beta.
	rtoAlpha float64 = 0.125
	rtoBeta  float64 = 0.25

	// Max.Init.Retransmits.
	maxInitRetrans uint = 8

	// Path.Max.Retrans.
	pathMaxRetrans uint = 5

	noMaxRetrans uint = 0
)

// rtoManager manages Rtx timeout values.
// This is an implementation of RFC 4960 sec 6.3.1.
type rtoManager struct {
	srtt     float64
	rttvar   float64
	rto      float64
	noUpdate bool
	rtoMax   float64
	mutex    sync.RWMutex
}

// newRTOManager creates a new rtoManager.
func newRTOManager(rtoMax float64) *rtoManager {
	mgr := rtoManager{
		rtoMax: rtoMax,
	}
	if mgr.rtoMax == 0 {
		mgr.rtoMax = defaultRTOMax
	}
	mgr.reset()

	return &mgr
}

// setNewRTT takes a newly measured RTT then adjust the RTO in msec.
func (m *rtoManager) setNewRTT(rtt float64) float64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.noUpdate {
		return m.srtt
	}

	if m.srtt == 0 {
		// First measurement
		m.srtt = rtt
		m.rttvar = rtt / 2
	} else {
		// Subsequent measurement
		m.rttvar = (1-rtoBeta)*m.rttvar + rtoBeta*(math.Abs(m.srtt-rtt))
		m.srtt = (1-rtoAlpha)*m.srtt + rtoAlpha*rtt
	}
	m.rto = math.Min(math.Max(m.srtt+4*m.rttvar, rtoMin), m.rtoMax)

	return m.rto
}

// getRTO simply returns the current RTO in msec.
func (m *rtoManager) getRTO() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.rto
}

// reset resets the RTO variables to the initial values.
func (m *rtoManager) reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.noUpdate {
		return
	}

	m.srtt = 0
	m.rttvar = 0
	m.rto = rtoInitial
}

// set RTO value for testing.
func (m *rtoManager) setRTO(rto float64, noUpdate bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.rto = rto
	m.noUpdate = noUpdate
}

// rtxTimerObserver is the interface to a retransmission timer observer.
type rtxTimerObserver interface {
	onRetransmissionTimeout(timerID int, n uint)
	onRetransmissionFailure(timerID int)
}

// Retransmission timer IDs.
const (
	timerT1Init int = iota
	timerT1Cookie
	timerT2Shutdown
	timerT3RTX
	timerReconfig
)

type rtxTimerState uint8

const (
	rtxTimerStopped rtxTimerState = iota
	rtxTimerStarted
	rtxTimerClosed
)

// rtxTimer provides the retransmission timer conforming with RFC 4960 sec 6.3.1.
type rtxTimer struct {
	timer      *time.Timer
	observer   rtxTimerObserver
	id         int
	maxRetrans uint
	rtoMax     float64

	mutex    sync.Mutex
	state    rtxTimerState
	pending  uint8
	nRtos    uint
	interval float64
}

// newRTXTimer creates a new retransmission timer.
// if maxRetrans is set to 0, it will retransmit without limit.
// if rtoMax is set to 0, the default value (60 sec) is used.
func newRTXTimer(id int, observer rtxTimerObserver, maxRetrans uint, rtoMax float64) *rtxTimer {
	timer := &rtxTimer{
		id:         id,
		observer:   observer,
		maxRetrans: maxRetrans,
		rtoMax:     rtoMax,
	}
	if timer.rtoMax == 0 {
		timer.rtoMax = defaultRTOMax
	}

	timer.timer = time.AfterFunc(math.MaxInt64, timer.timeout)
	timer.timer.Stop()

	return timer
}

func (t *rtxTimer) timeout() {
	t.mutex.Lock()
	if t.pending--; t.pending == 0 && t.state == rtxTimerStarted {
		nRtos := t.nRtos + 1
		t.nRtos = nRtos

		if t.maxRetrans == 0 || nRtos <= t.maxRetrans {
			t.pending++
			interval := calculateNextTimeout(t.interval, nRtos, t.rtoMax)
			t.timer.Reset(time.Duration(interval) * time.Millisecond)
			defer t.observer.onRetransmissionTimeout(t.id, nRtos)
		} else {
			t.state = rtxTimerStopped
			defer t.observer.onRetransmissionFailure(t.id)
		}
	}
	t.mutex.Unlock()
}

// start starts the timer. Returns false if the timer is already running
// or closed.
func (t *rtxTimer) start(rto float64) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.state != rtxTimerStopped {
		return false
	}

	t.state = rtxTimerStarted
	t.nRtos = 0
	t.interval = rto
	t.pending++

	interval := calculateNextTimeout(rto, 0, t.rtoMax)
	t.timer.Reset(time.Duration(interval) * time.Millisecond)

	return true
}

// stop stops the timer if running, keeping it reusable.
func (t *rtxTimer) stop() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.state == rtxTimerStarted {
		if t.timer.Stop() {
			if t.pending > 0 {
				t.pending--
			}
		}
		t.state = rtxTimerStopped
	}
}

// close closes the timer. Subsequent start() calls will fail.
func (t *rtxTimer) close() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.state == rtxTimerStarted && t.timer.Stop() {
		if t.pending > 0 {
			t.pending--
		}
	}
	t.state = rtxTimerClosed
}

// isRunning tests if the timer is running.
// Debug purpose only.
func (t *rtxTimer) isRunning() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.state == rtxTimerStarted
}

// calculateNextTimeout implements the doubling back-off per RFC 4960
// sec 6.3.3 (E2), bounded by RTO.Max.
func calculateNextTimeout(rto float64, nRtos uint, rtoMax float64) float64 {
	if nRtos < 31 {
		m := 1 << nRtos

		return math.Min(rto*float64(m), rtoMax)
	}

	return rtoMax
}
