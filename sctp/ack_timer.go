// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"math"
	"sync"
	"time"
)

const (
	// Default SACK delay, protocol parameter 'SACK.Delay' (RFC 4960 section 15).
	ackInterval time.Duration = 200 * time.Millisecond
	// Implementations MUST NOT allow SACK.Delay > 500ms.
	ackMaxDelay time.Duration = 500 * time.Millisecond
)

// ackTimerObserver is notified when the SACK delay elapses.
type ackTimerObserver interface {
	onAckTimeout()
}

type ackTimerState uint8

const (
	ackTimerIdle ackTimerState = iota
	ackTimerArmed
	ackTimerDead
)

// ackTimer implements the delayed-SACK timer of RFC 4960 section 6.2. A
// single time.Timer is reused across arm/disarm cycles; the fires counter
// tells a late timeout callback that its cycle was already cancelled.
type ackTimer struct {
	timer    *time.Timer
	observer ackTimerObserver

	mutex sync.Mutex
	state ackTimerState
	fires uint8

	// SACK delay clamped to (0, ackMaxDelay].
	interval time.Duration
}

// newAckTimer creates a new acknowledgement timer used to enable delayed ack.
func newAckTimer(observer ackTimerObserver) *ackTimer {
	t := &ackTimer{
		observer: observer,
		interval: ackInterval,
	}

	t.timer = time.AfterFunc(math.MaxInt64, t.timeout)
	t.timer.Stop()

	return t
}

func (t *ackTimer) timeout() {
	t.mutex.Lock()
	if t.fires--; t.fires == 0 && t.state == ackTimerArmed {
		t.state = ackTimerIdle
		defer t.observer.onAckTimeout()
	}
	t.mutex.Unlock()
}

// start arms the timer unless it is already armed or closed. It reports
// whether the timer was armed by this call.
func (t *ackTimer) start() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.state != ackTimerIdle {
		return false
	}

	t.state = ackTimerArmed
	t.fires++

	delay := t.interval
	if delay <= 0 {
		delay = ackInterval
	} else if delay > ackMaxDelay {
		delay = ackMaxDelay
	}

	t.timer.Reset(delay)

	return true
}

// stop disarms the timer and keeps it reusable.
func (t *ackTimer) stop() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.state == ackTimerArmed {
		if t.timer.Stop() && t.fires > 0 {
			t.fires--
		}
		t.state = ackTimerIdle
	}
}

// close disarms the timer permanently; a subsequent start() fails.
func (t *ackTimer) close() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.state == ackTimerArmed && t.timer.Stop() && t.fires > 0 {
		t.fires--
	}
	t.state = ackTimerDead
}

// isRunning tests if the timer is running.
// Debug purpose only.
func (t *ackTimer) isRunning() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.state == ackTimerArmed
}
