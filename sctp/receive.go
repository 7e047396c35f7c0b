// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// recvLoop reads packets off the conn and feeds them through the inbound
// state machine until the conn errors or the association closes.
func (a *Association) recvLoop() {
	var closeErr error
	defer func() {
		// also stop the sendLoop, so it won't be leaked.
		a.stopSendLoopOnce.Do(func() {
			close(a.sendLoopStopCh)
		})

		a.lock.Lock()
		a.setState(closed)
		for _, s := range a.streams {
			a.unregisterStream(s, closeErr)
		}
		a.lock.Unlock()
		close(a.acceptCh)
		close(a.recvLoopDoneCh)

		a.log.Debugf("[%s] association closed", a.name)
		a.log.Debugf("[%s] stats nDATAs (in) : %d", a.name, a.stats.getNumDATAs())
		a.log.Debugf("[%s] stats nSACKs (in) : %d", a.name, a.stats.getNumSACKsReceived())
		a.log.Debugf("[%s] stats nT3Timeouts : %d", a.name, a.stats.getNumT3Timeouts())
		a.log.Debugf("[%s] stats nAckTimeouts: %d", a.name, a.stats.getNumAckTimeouts())
		a.log.Debugf("[%s] stats nFastRetrans: %d", a.name, a.stats.getNumFastRetrans())
	}()

	a.log.Debugf("[%s] recvLoop entered", a.name)
	defer a.log.Debugf("[%s] recvLoop exited", a.name)

	buffer := make([]byte, receiveMTU)

	for {
		n, err := a.netConn.Read(buffer)
		if err != nil {
			closeErr = err

			break
		}
		// The reassembly queue keeps references to the inbound payload, so
		// each read needs its own buffer.
		inbound := make([]byte, n)
		copy(inbound, buffer[:n])
		atomic.AddUint64(&a.bytesReceived, uint64(n))

		if err = a.processInbound(inbound); err != nil {
			closeErr = err

			break
		}
	}
}

func (a *Association) processInbound(raw []byte) error {
	pkt := &packet{}
	if err := pkt.unmarshal(raw); err != nil {
		a.log.Warnf("[%s] unable to parse SCTP packet %s", a.name, err)

		return nil
	}

	if err := validatePacket(pkt); err != nil {
		a.log.Warnf("[%s] failed validating packet %s", a.name, err)

		return nil
	}

	a.beginInboundPacket()

	for _, c := range pkt.chunks {
		if err := a.handleChunk(pkt, c); err != nil {
			return err
		}
	}

	a.endInboundPacket()

	return nil
}

// validatePacket enforces the packet-level rules of RFC 4960 sec 8.5 that
// the chunk handlers rely on: non-zero ports, and an INIT that is neither
// bundled nor carrying a verification tag.
func validatePacket(pkt *packet) error {
	// All packets must have a non-zero source and destination port.
	if pkt.sourcePort == 0 {
		return ErrSCTPPacketSourcePortZero
	}

	if pkt.destinationPort == 0 {
		return ErrSCTPPacketDestinationPortZero
	}

	for _, c := range pkt.chunks {
		if _, ok := c.(*chunkInit); !ok {
			continue
		}

		if len(pkt.chunks) != 1 {
			return ErrInitChunkBundled
		}

		if pkt.verificationTag != 0 {
			return ErrInitChunkVerifyTagNotZero
		}
	}

	return nil
}

// beginInboundPacket resets the per-packet SACK decision flags.
func (a *Association) beginInboundPacket() {
	a.lock.Lock()
	defer a.lock.Unlock()

	a.stats.incPacketsReceived()

	a.wantDelayedAck = false
	a.wantImmediateAck = false
}

// endInboundPacket acts on the SACK decision accumulated while handling
// the packet's chunks.
func (a *Association) endInboundPacket() {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.wantImmediateAck {
		a.ackState = ackStateImmediate
		a.ackTimer.stop()
		a.wakeSendLoop()
	} else if a.wantDelayedAck {
		a.ackState = ackStateDelay
		a.ackTimer.start()
	}
}

//nolint:cyclop
func (a *Association) handleChunk(pkt *packet, receivedChunk chunk) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	var packets []*packet
	var err error

	if _, err = receivedChunk.check(); err != nil {
		a.log.Errorf("[%s] failed validating chunk: %s ", a.name, err)

		return nil
	}

	isAbort := false

	switch receivedChunk := receivedChunk.(type) {
	case *chunkInit:
		packets, err = a.handleInit(pkt, receivedChunk)

	case *chunkInitAck:
		err = a.handleInitAck(pkt, receivedChunk)

	case *chunkAbort:
		isAbort = true
		err = a.handleAbort(receivedChunk)

	case *chunkError:
		var errStr string
		for _, e := range receivedChunk.errorCauses {
			errStr += fmt.Sprintf("(%s)", e)
		}
		a.log.Debugf("[%s] error chunk, with following errors: %s", a.name, errStr)

	case *chunkHeartbeat:
		packets = a.handleHeartbeat(receivedChunk)

	case *chunkHeartbeatAck:
		a.handleHeartbeatAck(receivedChunk)

	case *chunkCookieEcho:
		packets = a.handleCookieEcho(receivedChunk)

	case *chunkCookieAck:
		a.handleCookieAck()

	case *chunkPayloadData:
		packets = a.handleData(receivedChunk)

	case *chunkSelectiveAck:
		err = a.handleSack(receivedChunk)

	case *chunkReconfig:
		packets, err = a.handleReconfig(receivedChunk)

	case *chunkForwardTSN:
		packets = a.handleForwardTSN(receivedChunk)

	case *chunkShutdown:
		a.handleShutdown(receivedChunk)

	case *chunkShutdownAck:
		a.handleShutdownAck(receivedChunk)

	case *chunkShutdownComplete:
		err = a.handleShutdownComplete(receivedChunk)

	default:
		err = ErrChunkTypeUnhandled
	}

	// Log and return, the only condition that is fatal is a ABORT chunk
	if err != nil {
		if isAbort {
			return err
		}

		a.log.Errorf("Failed to handle chunk: %v", err)

		return nil
	}

	if len(packets) > 0 {
		a.controlOutbox.push(packets...)
		a.wakeSendLoop()
	}

	return nil
}

// The caller should hold the lock.
func (a *Association) handleData(chunkPayload *chunkPayloadData) []*packet { //nolint:cyclop
	a.log.Tracef(
		"[%s] DATA: tsn=%d immediateSack=%v len=%d",
		a.name, chunkPayload.tsn, chunkPayload.immediateSack, len(chunkPayload.userData),
	)
	a.stats.incDATAs()

	canPush := a.recvTracker.canPush(chunkPayload.tsn, a.lastRcvdTSN)
	if canPush && sna32GT(chunkPayload.tsn, a.lastRcvdTSN+maxTSNOffset) {
		// Drop chunks too far ahead of the cumulative TSN; accepting them
		// would let a misbehaving peer grow the tracker without bound.
		a.log.Debugf("[%s] dropped a DATA chunk too far ahead: tsn=%d lastRcvdTSN=%d",
			a.name, chunkPayload.tsn, a.lastRcvdTSN)
		canPush = false
	}

	if canPush { //nolint:nestif
		stream := a.getOrCreateStream(chunkPayload.streamIdentifier, true, PayloadTypeUnknown)
		if stream == nil {
			// silently discard the data. (sender will retry on T3-rtx timeout)
			// see pion/sctp#30
			a.log.Debugf("[%s] discard %d", a.name, chunkPayload.streamSequenceNumber)

			return nil
		}

		if a.receiverWindowCredit() > 0 {
			// Pass the new chunk to the stream for reassembly
			a.recvTracker.push(chunkPayload.tsn, a.lastRcvdTSN)
			stream.handleData(chunkPayload)
		} else {
			// Receive buffer is full: still accept a chunk that fills a gap
			// below the highest TSN seen, since the buffer already accounts
			// for its siblings.
			lastTSN, ok := a.recvTracker.getLastTSNReceived()
			if ok && sna32LT(chunkPayload.tsn, lastTSN) {
				a.log.Debugf("[%s] receive buffer full, but accepted as this is a missing chunk with tsn=%d ssn=%d",
					a.name, chunkPayload.tsn, chunkPayload.streamSequenceNumber)
				a.recvTracker.push(chunkPayload.tsn, a.lastRcvdTSN)
				stream.handleData(chunkPayload)
			} else {
				a.log.Debugf("[%s] receive buffer full. dropping DATA with tsn=%d ssn=%d",
					a.name, chunkPayload.tsn, chunkPayload.streamSequenceNumber)
			}
		}
	}

	// RFC 4960 sec 6.7: SACK immediately on detecting a gap in the TSN
	// sequence.
	expectedTSN := a.lastRcvdTSN + 1
	gapDetected := sna32GT(chunkPayload.tsn, expectedTSN)
	sackNow := chunkPayload.immediateSack || gapDetected

	return a.advanceLastRcvdTSN(sackNow)
}

// advanceLastRcvdTSN moves the cumulative TSN ack point forward over the
// chunks the tracker has buffered, answering any stream reset requests that
// become actionable, then decides how to acknowledge.
// The caller should hold the lock.
func (a *Association) advanceLastRcvdTSN(sackImmediately bool) []*packet {
	var reply []*packet

	for {
		if popped := a.recvTracker.pop(a.lastRcvdTSN + 1); !popped {
			break
		}
		a.lastRcvdTSN++

		for _, rstReq := range a.reconfigRequests {
			resp := a.resetStreamsIfAny(rstReq)
			if resp != nil {
				a.log.Debugf("[%s] RESET RESPONSE: %+v", a.name, resp)
				reply = append(reply, resp)
			}
		}
	}

	hasPacketLoss := a.recvTracker.size() > 0
	if hasPacketLoss {
		a.log.Tracef("[%s] packetloss: %s", a.name, a.recvTracker.getGapAckBlocksString(a.lastRcvdTSN))
	}

	if (a.ackState != ackStateImmediate && !sackImmediately && !hasPacketLoss && a.ackMode == ackModeNormal) ||
		a.ackMode == ackModeAlwaysDelay {
		if a.ackState == ackStateIdle {
			a.wantDelayedAck = true
		} else {
			a.wantImmediateAck = true
		}
	} else {
		a.wantImmediateAck = true
	}

	return reply
}

// dequeueAckedChunks removes the chunks the SACK acknowledges from the
// outstanding queue, taking RTT samples under Karn's algorithm on the way.
// The caller should hold the lock.
func (a *Association) dequeueAckedChunks(sack *chunkSelectiveAck) (map[uint16]int, uint32, error) { //nolint:cyclop
	bytesAckedPerStream := map[uint16]int{}
	now := time.Now()

	// New ack point, so pop all ACKed chunks from outstanding
	// until we reach the ack point, then we update the ack point.
	for i := a.cumAckPoint + 1; sna32LTE(i, sack.cumulativeTSNAck); i++ {
		chunkPayload, ok := a.outstanding.pop(i)
		if !ok {
			return nil, 0, fmt.Errorf("%w: %v", ErrInflightQueueTSNPop, i)
		}

		if !chunkPayload.acked {
			// RFC 4960 sec 6.3.2 R3: stop T3-rtx when the earliest
			// outstanding TSN is acknowledged.
			if i == a.cumAckPoint+1 {
				a.log.Tracef("[%s] T3-rtx timer stop (R3)", a.name)
				a.t3RTX.stop()
			}

			nBytesAcked := len(chunkPayload.userData)

			// Report the number of bytes acknowledged to the stream who sent
			// this chunk, so it can update its bufferedAmount.
			bytesAckedPerStream[chunkPayload.streamIdentifier] += nBytesAcked

			// Karn's algorithm: take an RTT sample only from chunks that
			// were transmitted exactly once.
			if chunkPayload.sendCount == 1 && sna32GTE(chunkPayload.tsn, a.minRTTMeasureTSN) {
				a.minRTTMeasureTSN = a.nextTSN
				rtt := now.Sub(chunkPayload.queuedAt).Seconds() * 1000.0
				srtt := a.rtoMgr.setNewRTT(rtt)
				a.srtt.Store(srtt)
				a.log.Tracef("[%s] SACK: measured-rtt=%f srtt=%f new-rto=%f",
					a.name, rtt, srtt, a.rtoMgr.getRTO())
			}
		}

		if a.inFastRecovery && chunkPayload.tsn == a.fastRecoverExitPoint {
			a.log.Debugf("[%s] exit fast-recovery", a.name)
			a.inFastRecovery = false
		}
	}

	htna := sack.cumulativeTSNAck

	// Mark selectively acknowledged chunks as "acked"
	for _, g := range sack.gapAckBlocks {
		for i := g.start; i <= g.end; i++ {
			tsn := sack.cumulativeTSNAck + uint32(i)

			chunkPayload, ok := a.outstanding.get(tsn)
			if !ok {
				return nil, 0, fmt.Errorf("%w: %v", ErrTSNRequestNotExist, tsn)
			}

			if !chunkPayload.acked {
				nBytesAcked := a.outstanding.ack(tsn)

				bytesAckedPerStream[chunkPayload.streamIdentifier] += nBytesAcked

				a.log.Tracef("[%s] tsn=%d has been sacked", a.name, chunkPayload.tsn)

				if chunkPayload.sendCount == 1 && sna32GTE(chunkPayload.tsn, a.minRTTMeasureTSN) {
					a.minRTTMeasureTSN = a.nextTSN
					rtt := now.Sub(chunkPayload.queuedAt).Seconds() * 1000.0
					srtt := a.rtoMgr.setNewRTT(rtt)
					a.srtt.Store(srtt)
					a.log.Tracef("[%s] SACK: measured-rtt=%f srtt=%f new-rto=%f",
						a.name, rtt, srtt, a.rtoMgr.getRTO())
				}
			}

			if sna32LT(htna, tsn) {
				htna = tsn
			}
		}
	}

	return bytesAckedPerStream, htna, nil
}

// onCumAckPointAdvanced grows cwnd per RFC 4960 sec 7.2.1 (slow start) or
// sec 7.2.2 (congestion avoidance), and manages T3-rtx per sec 6.3.2.
// The caller should hold the lock.
func (a *Association) onCumAckPointAdvanced(totalBytesAcked int) {
	// RFC 4960 sec 6.3.2 R2: stop T3-rtx when all outstanding data is
	// acknowledged; otherwise restart it.
	if a.outstanding.size() == 0 {
		a.log.Tracef("[%s] SACK: no more outstanding, stopping T3-rtx timer", a.name)
		a.t3RTX.stop()
	} else {
		a.log.Tracef("[%s] T3-rtx timer start (pt2)", a.name)
		a.t3RTX.start(a.rtoMgr.getRTO())
	}

	if a.CWND() <= a.ssthresh { //nolint:nestif
		// Slow start: grow cwnd only while it is being fully utilized and
		// the association is not in fast recovery.
		if !a.inFastRecovery && a.sendQueue.size() > 0 {
			a.setCWND(a.CWND() + min32(uint32(totalBytesAcked), a.CWND())) //nolint:gosec // G115
			a.log.Tracef("[%s] updated cwnd=%d ssthresh=%d acked=%d (SS)",
				a.name, a.CWND(), a.ssthresh, totalBytesAcked)
		} else {
			a.log.Tracef("[%s] cwnd did not grow: cwnd=%d ssthresh=%d acked=%d FR=%v pending=%d",
				a.name, a.CWND(), a.ssthresh, totalBytesAcked, a.inFastRecovery, a.sendQueue.size())
		}
	} else {
		// Congestion avoidance
		a.partialBytesAcked += uint32(totalBytesAcked) //nolint:gosec // G115

		if a.partialBytesAcked >= a.CWND() && a.sendQueue.size() > 0 {
			a.partialBytesAcked -= a.CWND()
			a.setCWND(a.CWND() + a.MTU())
			a.log.Tracef("[%s] updated cwnd=%d ssthresh=%d acked=%d (CA)",
				a.name, a.CWND(), a.ssthresh, totalBytesAcked)
		}
	}
}

// trackMissIndications implements the HTNA algorithm of RFC 4960 sec 7.2.4:
// chunks below the highest TSN newly acked accumulate miss indications, and
// the third one triggers fast retransmit / fast recovery.
// The caller should hold the lock.
func (a *Association) trackMissIndications(
	cumTSNAckPoint uint32,
	gapAckBlocks []gapAckBlock,
	htna uint32,
	cumTSNAckPointAdvanced bool,
) error {
	if !a.inFastRecovery || cumTSNAckPointAdvanced {
		maxTSN := htna
		if a.inFastRecovery && len(gapAckBlocks) > 0 {
			// During fast recovery, only consider TSNs up to the last gap.
			maxTSN = cumTSNAckPoint + uint32(gapAckBlocks[len(gapAckBlocks)-1].end)
		}

		for tsn := cumTSNAckPoint + 1; sna32LT(tsn, maxTSN); tsn++ {
			chunkPayload, ok := a.outstanding.get(tsn)
			if !ok {
				return fmt.Errorf("%w: %v", ErrTSNRequestNotExist, tsn)
			}
			if !chunkPayload.acked && !chunkPayload.abandoned() && chunkPayload.missCount < 3 {
				chunkPayload.missCount++
				if chunkPayload.missCount == 3 && !a.inFastRecovery {
					a.inFastRecovery = true
					a.fastRecoverExitPoint = htna
					a.ssthresh = max32(a.CWND()/2, 4*a.MTU())
					a.setCWND(a.ssthresh)
					a.partialBytesAcked = 0
					a.fastRetransmitQueued = true

					a.log.Tracef("[%s] updated cwnd=%d ssthresh=%d inflight=%d (FR)",
						a.name, a.CWND(), a.ssthresh, a.outstanding.getNumBytes())
				}
			}
		}
	}

	if a.inFastRecovery && cumTSNAckPointAdvanced {
		a.fastRetransmitQueued = true
	}

	return nil
}

// The caller should hold the lock.
func (a *Association) handleSack(sack *chunkSelectiveAck) error { //nolint:cyclop
	state := a.getState()
	if state != established && state != shutdownPending && state != shutdownReceived {
		return nil
	}

	a.stats.incSACKsReceived()

	a.log.Tracef(
		"[%s] SACK: cumTSN=%d a_rwnd=%d", a.name, sack.cumulativeTSNAck, sack.advertisedReceiverWindowCredit,
	)

	if sna32GT(a.cumAckPoint, sack.cumulativeTSNAck) {
		// RFC 4960 sec 6.2.1 D-i: drop SACKs whose cumulative TSN ack is
		// older than the current ack point.
		a.log.Debugf("[%s] SACK: cumulative TSN ack older than ack point: %d < %d",
			a.name, sack.cumulativeTSNAck, a.cumAckPoint)

		return nil
	}

	bytesAckedPerStream, htna, err := a.dequeueAckedChunks(sack)
	if err != nil {
		return err
	}

	var totalBytesAcked int
	for _, nBytesAcked := range bytesAckedPerStream {
		totalBytesAcked += nBytesAcked
	}

	cumTSNAckPointAdvanced := false
	if sna32LT(a.cumAckPoint, sack.cumulativeTSNAck) {
		a.log.Tracef("[%s] SACK: cumTSN advanced: %d -> %d",
			a.name, a.cumAckPoint, sack.cumulativeTSNAck)

		a.cumAckPoint = sack.cumulativeTSNAck
		cumTSNAckPointAdvanced = true
		a.onCumAckPointAdvanced(totalBytesAcked)
	}

	for si, nBytesAcked := range bytesAckedPerStream {
		if s, ok := a.streams[si]; ok {
			a.lock.Unlock()
			s.onBufferReleased(nBytesAcked)
			a.lock.Lock()
		}
	}

	// RFC 4960 sec 6.2.1 D-ii: rwnd is the advertised window minus the
	// bytes still in flight.
	bytesOutstanding := uint32(a.outstanding.getNumBytes()) //nolint:gosec // G115
	if bytesOutstanding >= sack.advertisedReceiverWindowCredit {
		a.setRWND(0)
	} else {
		a.setRWND(sack.advertisedReceiverWindowCredit - bytesOutstanding)
	}

	err = a.trackMissIndications(sack.cumulativeTSNAck, sack.gapAckBlocks, htna, cumTSNAckPointAdvanced)
	if err != nil {
		return err
	}

	if a.useForwardTSN { //nolint:nestif
		// RFC 3758 sec 3.5 C1
		if sna32LT(a.advancedAckPoint, a.cumAckPoint) {
			a.advancedAckPoint = a.cumAckPoint
		}

		// RFC 3758 sec 3.5 C2
		for i := a.advancedAckPoint + 1; ; i++ {
			c, ok := a.outstanding.get(i)
			if !ok {
				break
			}
			if !c.abandoned() {
				break
			}
			a.advancedAckPoint = i
		}

		// RFC 3758 sec 3.5 C3
		if sna32GT(a.advancedAckPoint, a.cumAckPoint) {
			a.forwardTSNQueued = true

			// Need to update the rwnd before the next fwd-tsn is sent
			a.wakeSendLoop()
		}
	}

	a.concludeSack(state, cumTSNAckPointAdvanced)

	return nil
}

// concludeSack restarts T3-rtx if data remains outstanding, or moves the
// shutdown sequence forward once the outstanding queue drains.
// The caller should hold the lock.
func (a *Association) concludeSack(state uint32, shouldWakeSendLoop bool) {
	switch {
	case a.outstanding.size() > 0:
		// Start timer. (noop if already started)
		a.log.Tracef("[%s] T3-rtx timer start (pt3)", a.name)
		a.t3RTX.start(a.rtoMgr.getRTO())
	case state == shutdownPending:
		// No more outstanding, send shutdown.
		shouldWakeSendLoop = true
		a.shutdownQueued = true
		a.setState(shutdownSent)
	case state == shutdownReceived:
		// No more outstanding, send shutdown ack.
		shouldWakeSendLoop = true
		a.shutdownAckQueued = true
		a.setState(shutdownAckSent)
	}

	if shouldWakeSendLoop {
		a.wakeSendLoop()
	}
}

// The caller should hold the lock.
func (a *Association) handleShutdown(_ *chunkShutdown) {
	state := a.getState()

	switch state {
	case established:
		if a.outstanding.size() > 0 {
			a.setState(shutdownReceived)
		} else {
			// No more outstanding, send shutdown ack.
			a.shutdownAckQueued = true
			a.setState(shutdownAckSent)
			a.wakeSendLoop()
		}
	case shutdownSent:
		// RFC 4960 sec 9.2: both endpoints sent SHUTDOWN at the same time.
		a.shutdownAckQueued = true
		a.setState(shutdownAckSent)
		a.wakeSendLoop()
	}
}

// The caller should hold the lock.
func (a *Association) handleShutdownAck(_ *chunkShutdownAck) {
	state := a.getState()
	if state == shutdownSent || state == shutdownAckSent {
		a.t2Shutdown.stop()
		a.shutdownCompleteQueued = true
		a.wakeSendLoop()
	}
}

func (a *Association) handleShutdownComplete(_ *chunkShutdownComplete) error {
	state := a.getState()
	if state == shutdownAckSent {
		a.t2Shutdown.stop()

		return a.close()
	}

	return nil
}

// The caller should hold the lock.
func (a *Association) handleAbort(c *chunkAbort) error {
	var errStr string
	for _, e := range c.errorCauses {
		errStr += fmt.Sprintf("(%s)", e)
	}

	_ = a.close()

	return fmt.Errorf("[%s] %w: %s", a.name, ErrChunk, errStr)
}

// The caller should hold the lock.
func (a *Association) handleReconfig(c *chunkReconfig) ([]*packet, error) {
	a.log.Tracef("[%s] handleReconfig", a.name)

	pp := make([]*packet, 0)

	pkt, err := a.handleReconfigParam(c.paramA)
	if err != nil {
		return nil, err
	}
	if pkt != nil {
		pp = append(pp, pkt)
	}

	if c.paramB != nil {
		pkt, err = a.handleReconfigParam(c.paramB)
		if err != nil {
			return nil, err
		}
		if pkt != nil {
			pp = append(pp, pkt)
		}
	}

	return pp, nil
}

// The caller should hold the lock.
func (a *Association) handleReconfigParam(raw param) (*packet, error) {
	switch par := raw.(type) {
	case *paramOutgoingResetRequest:
		a.log.Tracef("[%s] handleReconfigParam (OutgoingResetRequest)", a.name)
		if a.lastRcvdTSN < par.senderLastTSN && len(a.reconfigRequests) >= maxReconfigRequests {
			// RFC 6525 sec 5.1.1: at most one reconfiguration in flight per
			// direction; a peer queueing many deferred requests is
			// misbehaving.
			return nil, fmt.Errorf("%w: %d", ErrTooManyReconfigRequests, len(a.reconfigRequests))
		}
		a.reconfigRequests[par.reconfigRequestSequenceNumber] = par
		resp := a.resetStreamsIfAny(par)
		if resp != nil {
			return resp, nil
		}

		return nil, nil //nolint:nilnil

	case *paramReconfigResponse:
		a.log.Tracef("[%s] handleReconfigParam (ReconfigResponse)", a.name)
		if par.result == reconfigResultInProgress {
			// RFC 6525 sec 5.2.7: restart the reconfig timer and retry
			// the same request later.
			if _, ok := a.reconfigs[par.reconfigResponseSequenceNumber]; ok {
				a.tReconfig.stop()
				a.tReconfig.start(a.rtoMgr.getRTO())
			}

			return nil, nil //nolint:nilnil
		}
		delete(a.reconfigs, par.reconfigResponseSequenceNumber)
		if len(a.reconfigs) == 0 {
			a.tReconfig.stop()
		}

		return nil, nil //nolint:nilnil

	default:
		return nil, fmt.Errorf("%w: %t", ErrParamterType, par)
	}
}

// The caller should hold the lock.
func (a *Association) resetStreamsIfAny(par *paramOutgoingResetRequest) *packet {
	result := reconfigResultSuccessPerformed
	if sna32LTE(par.senderLastTSN, a.lastRcvdTSN) {
		a.log.Debugf("[%s] resetStream(): senderLastTSN=%d <= lastRcvdTSN=%d (happy)",
			a.name, par.senderLastTSN, a.lastRcvdTSN)
		for _, id := range par.streamIdentifiers {
			s, ok := a.streams[id]
			if !ok {
				continue
			}
			a.lock.Unlock()
			s.onInboundStreamReset()
			a.lock.Lock()
			a.log.Debugf("[%s] deleting stream %d", a.name, id)
			delete(a.streams, s.streamIdentifier)
		}
		delete(a.reconfigRequests, par.reconfigRequestSequenceNumber)
	} else {
		a.log.Debugf("[%s] resetStream(): senderLastTSN=%d > lastRcvdTSN=%d (defer)",
			a.name, par.senderLastTSN, a.lastRcvdTSN)
		result = reconfigResultInProgress
	}

	return a.makePacket([]chunk{&chunkReconfig{
		paramA: &paramReconfigResponse{
			reconfigResponseSequenceNumber: par.reconfigRequestSequenceNumber,
			result:                         result,
		},
	}})
}

// The caller should hold the lock.
func (a *Association) handleHeartbeat(c *chunkHeartbeat) []*packet {
	a.log.Tracef("[%s] chunkHeartbeat", a.name)

	if len(c.params) == 0 {
		a.log.Warnf("[%s] HEARTBEAT without heartbeat info", a.name)

		return nil
	}

	hbi, ok := c.params[0].(*paramHeartbeatInfo)
	if !ok {
		a.log.Warnf("[%s] failed to handle Heartbeat, no ParamHeartbeatInfo", a.name)

		return nil
	}

	return wrap(&packet{
		verificationTag: a.remoteVerificationTag,
		sourcePort:      a.sourcePort,
		destinationPort: a.destinationPort,
		chunks: []chunk{&chunkHeartbeatAck{
			params: []param{
				&paramHeartbeatInfo{
					heartbeatInformation: hbi.heartbeatInformation,
				},
			},
		}},
	})
}

// handleHeartbeatAck recovers the send timestamp echoed in the HEARTBEAT ACK
// and feeds the measured RTT into the RTO calculation.
// The caller should hold the lock.
func (a *Association) handleHeartbeatAck(c *chunkHeartbeatAck) {
	a.log.Tracef("[%s] chunkHeartbeatAck", a.name)

	if len(c.params) == 0 {
		return
	}

	hbi, ok := c.params[0].(*paramHeartbeatInfo)
	if !ok || len(hbi.heartbeatInformation) != 8 {
		return
	}

	ns := binary.BigEndian.Uint64(hbi.heartbeatInformation)
	if ns > math.MaxInt64 {
		a.log.Warnf("[%s] invalid heartbeat timestamp", a.name)

		return
	}

	sent := time.Unix(0, int64(ns))
	now := time.Now()
	if sent.IsZero() || now.Before(sent) {
		return
	}

	rttMs := now.Sub(sent).Seconds() * 1000.0
	srtt := a.rtoMgr.setNewRTT(rttMs)
	a.srtt.Store(srtt)
	a.log.Tracef("[%s] HEARTBEAT ACK: measured-rtt=%f srtt=%f new-rto=%f",
		a.name, rttMs, srtt, a.rtoMgr.getRTO())
}

// The caller should hold the lock.
func (a *Association) handleForwardTSN(c *chunkForwardTSN) []*packet {
	a.log.Tracef("[%s] FwdTSN: %s", a.name, c.String())

	if !a.useForwardTSN {
		a.log.Warnf("[%s] received FwdTSN but not enabled", a.name)
		// Report the unrecognized chunk back to the peer (RFC 4960 sec 3.2).
		cerr := &chunkError{
			errorCauses: []errorCause{&errorCauseUnrecognizedChunkType{}},
		}

		return wrap(&packet{
			verificationTag: a.remoteVerificationTag,
			sourcePort:      a.sourcePort,
			destinationPort: a.destinationPort,
			chunks:          []chunk{cerr},
		})
	}

	// RFC 3758 sec 3.6: a FORWARD TSN at or below the cumulative TSN is
	// out of date; respond with an immediate SACK so the sender catches up.
	if sna32LTE(c.newCumulativeTSN, a.lastRcvdTSN) {
		a.log.Tracef("[%s] FwdTSN: newCumulativeTSN not advanced: %d <= %d",
			a.name, c.newCumulativeTSN, a.lastRcvdTSN)
		a.ackState = ackStateImmediate
		a.ackTimer.stop()
		a.wakeSendLoop()

		return nil
	}

	// Advance the cumulative TSN over the skipped chunks.
	for sna32LT(a.lastRcvdTSN, c.newCumulativeTSN) {
		a.lastRcvdTSN++
		a.recvTracker.pop(a.lastRcvdTSN)
	}

	for _, forwarded := range c.streams {
		if s, ok := a.streams[forwarded.identifier]; ok {
			a.lock.Unlock()
			s.handleForwardTSNForOrdered(forwarded.sequence)
			a.lock.Lock()
		}
	}

	// Unordered messages on any stream may also have been skipped; each
	// stream drops buffered fragments at or below the new cumulative TSN.
	for _, s := range a.streams {
		a.lock.Unlock()
		s.handleForwardTSNForUnordered(c.newCumulativeTSN)
		a.lock.Lock()
	}

	return a.advanceLastRcvdTSN(false)
}

func wrap(p *packet) []*packet {
	return []*packet{p}
}
