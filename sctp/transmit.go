// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// sendLoop drains the outbound side: it assembles everything that is ready
// to go out, writes it to the conn, then sleeps until woken. A false from
// assembleOutbound means the association should close after the final write
// (e.g. SHUTDOWN COMPLETE or ABORT went out).
func (a *Association) sendLoop() {
	a.log.Debugf("[%s] sendLoop entered", a.name)
	defer a.log.Debugf("[%s] sendLoop exited", a.name)

loop:
	for {
		rawPackets, ok := a.assembleOutbound()

		for _, raw := range rawPackets {
			_, err := a.netConn.Write(raw)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					a.log.Warnf("[%s] failed to write packets on netConn: %v", a.name, err)
				}
				a.log.Debugf("[%s] sendLoop ended", a.name)

				break loop
			}
			atomic.AddUint64(&a.bytesSent, uint64(len(raw)))
			a.stats.incPacketsSent()
		}

		if !ok {
			if err := a.close(); err != nil {
				a.log.Warnf("[%s] failed to close association: %v", a.name, err)
			}

			return
		}

		select {
		case <-a.sendLoopWakeCh:
		case <-a.sendLoopStopCh:
			break loop
		}
	}

	a.setState(closed)
	a.closeAllTimers()
}

func (a *Association) wakeSendLoop() {
	select {
	case a.sendLoopWakeCh <- struct{}{}:
	default:
	}
}

// assembleOutbound collects everything ready for transmission in priority
// order. The returned bool set to false means the association should close
// down after the final send.
func (a *Association) assembleOutbound() ([][]byte, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.abortQueued {
		pkt, err := a.buildAbortPacket()
		if err != nil {
			a.log.Warnf("[%s] failed to serialize an abort packet", a.name)

			return nil, false
		}

		return [][]byte{pkt}, false
	}

	rawPackets := [][]byte{}

	if a.controlOutbox.size() > 0 {
		for _, p := range a.controlOutbox.drain() {
			raw, err := p.marshal()
			if err != nil {
				a.log.Warnf("[%s] failed to serialize a control packet", a.name)

				continue
			}
			rawPackets = append(rawPackets, raw)
		}
	}

	state := a.getState()

	ok := true

	switch state {
	case established:
		rawPackets = a.collectRetransmissions(rawPackets)
		rawPackets = a.collectDataAndReconfig(rawPackets)
		rawPackets = a.collectFastRetransmissions(rawPackets)
		rawPackets = a.collectSACK(rawPackets)
		rawPackets = a.collectForwardTSN(rawPackets)
	case shutdownPending, shutdownSent, shutdownReceived:
		rawPackets = a.collectRetransmissions(rawPackets)
		rawPackets = a.collectFastRetransmissions(rawPackets)
		rawPackets = a.collectSACK(rawPackets)
		rawPackets, ok = a.collectShutdown(rawPackets)
	case shutdownAckSent:
		rawPackets, ok = a.collectShutdown(rawPackets)
	}

	return rawPackets, ok
}

// The caller should hold the lock.
func (a *Association) collectRetransmissions(rawPackets [][]byte) [][]byte {
	for _, p := range a.buildRetransmitPackets() {
		raw, err := p.marshal()
		if err != nil {
			a.log.Warnf("[%s] failed to serialize a DATA packet to be retransmitted", a.name)

			continue
		}
		rawPackets = append(rawPackets, raw)
	}

	return rawPackets
}

// The caller should hold the lock.
//
//nolint:cyclop
func (a *Association) collectDataAndReconfig(rawPackets [][]byte) [][]byte {
	// Dequeue as many unsent data chunks as cwnd and rwnd allow.
	chunks, sisToReset := a.dequeueSendableChunks()

	if len(chunks) > 0 {
		// Start timer. (noop if already started)
		a.log.Tracef("[%s] T3-rtx timer start (pt1)", a.name)
		a.t3RTX.start(a.rtoMgr.getRTO())
		for _, p := range a.packDataChunks(chunks) {
			raw, err := p.marshal()
			if err != nil {
				a.log.Warnf("[%s] failed to serialize a DATA packet", a.name)

				continue
			}
			rawPackets = append(rawPackets, raw)
		}
	}

	if len(sisToReset) > 0 || a.reconfigRetransmitQueued { //nolint:nestif
		if a.reconfigRetransmitQueued {
			a.reconfigRetransmitQueued = false
			a.log.Debugf("[%s] retransmit %d RECONFIG chunk(s)", a.name, len(a.reconfigs))
			for _, c := range a.reconfigs {
				p := a.makePacket([]chunk{c})
				raw, err := p.marshal()
				if err != nil {
					a.log.Warnf("[%s] failed to serialize a RECONFIG packet to be retransmitted", a.name)
				} else {
					rawPackets = append(rawPackets, raw)
				}
			}
		}

		if len(sisToReset) > 0 {
			rsn := a.takeNextRSN()
			tsn := a.nextTSN - 1
			c := &chunkReconfig{
				paramA: &paramOutgoingResetRequest{
					reconfigRequestSequenceNumber: rsn,
					senderLastTSN:                 tsn,
					streamIdentifiers:             sisToReset,
				},
			}
			a.reconfigs[rsn] = c // keep for retransmission
			a.log.Debugf("[%s] sending RECONFIG: rsn=%d tsn=%d streams=%v",
				a.name, rsn, tsn, sisToReset)
			p := a.makePacket([]chunk{c})
			raw, err := p.marshal()
			if err != nil {
				a.log.Warnf("[%s] failed to serialize a RECONFIG packet to be transmitted", a.name)
			} else {
				rawPackets = append(rawPackets, raw)
			}
		}

		if len(a.reconfigs) > 0 {
			a.tReconfig.start(a.rtoMgr.getRTO())
		}
	}

	return rawPackets
}

// collectFastRetransmissions builds the single fast-retransmit packet per
// RFC 4960 sec 7.2.4: as many of the earliest chunks with three miss
// indications as fit within one MTU, ignoring cwnd.
// The caller should hold the lock.
func (a *Association) collectFastRetransmissions(rawPackets [][]byte) [][]byte { //nolint:cyclop
	if !a.fastRetransmitQueued {
		return rawPackets
	}
	a.fastRetransmitQueued = false

	toFastRetrans := []*chunkPayloadData{}
	fastRetransSize := int(commonHeaderSize)
	now := time.Now()

	for i := 0; ; i++ {
		chunkPayload, ok := a.outstanding.get(a.cumAckPoint + uint32(i) + 1) //nolint:gosec // G115
		if !ok {
			break // end of in-flight data
		}

		if chunkPayload.acked || chunkPayload.abandoned() {
			continue
		}

		if chunkPayload.sendCount > 1 || chunkPayload.missCount < 3 {
			continue
		}

		chunkBytes := int(dataChunkHeaderSize) + len(chunkPayload.userData)
		chunkBytes += getPadding(chunkBytes)
		if int(a.MTU()) < fastRetransSize+chunkBytes {
			break
		}

		fastRetransSize += chunkBytes
		a.stats.incFastRetrans()

		chunkPayload.sendCount++
		chunkPayload.queuedAt = now

		a.applyPartialReliability(chunkPayload)
		toFastRetrans = append(toFastRetrans, chunkPayload)
		a.log.Tracef("[%s] fast-retransmit: tsn=%d sent=%d htna=%d",
			a.name, chunkPayload.tsn, chunkPayload.sendCount, a.fastRecoverExitPoint)
	}

	if len(toFastRetrans) == 0 {
		return rawPackets
	}

	for _, p := range a.packDataChunks(toFastRetrans) {
		raw, err := p.marshal()
		if err != nil {
			a.log.Warnf("[%s] failed to serialize a DATA packet to be fast-retransmitted", a.name)

			continue
		}
		rawPackets = append(rawPackets, raw)
	}

	return rawPackets
}

// The caller should hold the lock.
func (a *Association) collectSACK(rawPackets [][]byte) [][]byte {
	if a.ackState == ackStateImmediate {
		a.ackState = ackStateIdle
		sack := a.buildSelectiveAck()
		a.stats.incSACKsSent()
		a.log.Debugf("[%s] sending SACK: %s", a.name, sack)
		raw, err := a.makePacket([]chunk{sack}).marshal()
		if err != nil {
			a.log.Warnf("[%s] failed to serialize a SACK packet", a.name)
		} else {
			rawPackets = append(rawPackets, raw)
		}
	}

	return rawPackets
}

// The caller should hold the lock.
func (a *Association) collectForwardTSN(rawPackets [][]byte) [][]byte {
	if a.forwardTSNQueued {
		a.forwardTSNQueued = false
		if sna32GT(a.advancedAckPoint, a.cumAckPoint) {
			fwdtsn := a.buildForwardTSN()
			raw, err := a.makePacket([]chunk{fwdtsn}).marshal()
			if err != nil {
				a.log.Warnf("[%s] failed to serialize a Forward TSN packet", a.name)
			} else {
				rawPackets = append(rawPackets, raw)
			}
		}
	}

	return rawPackets
}

func (a *Association) collectShutdown(rawPackets [][]byte) ([][]byte, bool) {
	ok := true

	switch {
	case a.shutdownQueued:
		a.shutdownQueued = false

		shutdown := &chunkShutdown{
			cumulativeTSNAck: a.cumAckPoint,
		}

		raw, err := a.makePacket([]chunk{shutdown}).marshal()
		if err != nil {
			a.log.Warnf("[%s] failed to serialize a Shutdown packet", a.name)
		} else {
			a.t2Shutdown.start(a.rtoMgr.getRTO())
			rawPackets = append(rawPackets, raw)
		}
	case a.shutdownAckQueued:
		a.shutdownAckQueued = false

		shutdownAck := &chunkShutdownAck{}

		raw, err := a.makePacket([]chunk{shutdownAck}).marshal()
		if err != nil {
			a.log.Warnf("[%s] failed to serialize a ShutdownAck packet", a.name)
		} else {
			a.t2Shutdown.start(a.rtoMgr.getRTO())
			rawPackets = append(rawPackets, raw)
		}
	case a.shutdownCompleteQueued:
		a.shutdownCompleteQueued = false

		shutdownComplete := &chunkShutdownComplete{}

		raw, err := a.makePacket([]chunk{shutdownComplete}).marshal()
		if err != nil {
			a.log.Warnf("[%s] failed to serialize a ShutdownComplete packet", a.name)
		} else {
			rawPackets = append(rawPackets, raw)
			ok = false
		}
	}

	return rawPackets, ok
}

func (a *Association) buildAbortPacket() ([]byte, error) {
	cause := a.abortCause

	a.abortQueued = false
	a.abortCause = nil

	abort := &chunkAbort{}

	if cause != nil {
		abort.errorCauses = []errorCause{cause}
	}

	raw, err := a.makePacket([]chunk{abort}).marshal()

	return raw, err
}

// enqueuePayloadData queues outbound data chunks produced by a stream.
func (a *Association) enqueuePayloadData(unordered bool, chunks []*chunkPayloadData) error {
	a.lock.Lock()

	state := a.getState()
	if state != established {
		a.lock.Unlock()

		return fmt.Errorf("%w: state=%s", ErrPayloadDataStateNotExist,
			associationStateName(state))
	}

	a.log.Tracef("[%s] enqueuePayloadData: unordered=%v nChunks=%d", a.name, unordered, len(chunks))

	for _, c := range chunks {
		a.sendQueue.push(c)
	}

	a.lock.Unlock()
	a.wakeSendLoop()

	return nil
}

// dequeueSendableChunks moves chunks from the send queue into the
// outstanding queue, as many as cwnd and rwnd permit. Zero-length chunks
// mark streams whose outgoing side is being reset; their identifiers are
// returned separately.
// The caller should hold the lock.
func (a *Association) dequeueSendableChunks() ([]*chunkPayloadData, []uint16) {
	chunks := []*chunkPayloadData{}
	var sisToReset []uint16 // stream identifiers to reset

	if a.sendQueue.size() > 0 { //nolint:nestif
		// RFC 4960 sec 6.1 rule A: never send new data into a zero rwnd,
		// except that one chunk may always be in flight (the zero window
		// probe below).
		for {
			chunkPayload := a.sendQueue.peek()
			if chunkPayload == nil {
				break // no more pending data
			}

			dataLen := uint32(len(chunkPayload.userData)) //nolint:gosec // G115
			if dataLen == 0 {
				sisToReset = append(sisToReset, chunkPayload.streamIdentifier)
				err := a.sendQueue.pop(chunkPayload)
				if err != nil {
					a.log.Errorf("failed to pop from send queue: %s", err.Error())
				}

				continue
			}

			if uint32(a.outstanding.getNumBytes())+dataLen > a.CWND() { //nolint:gosec // G115
				break // would exceed cwnd
			}

			if dataLen > a.RWND() {
				break // no more rwnd
			}

			a.setRWND(a.RWND() - dataLen)

			a.commitDataChunk(chunkPayload)
			chunks = append(chunks, chunkPayload)
		}

		// Zero window probe: keep one chunk in flight even at rwnd 0.
		if len(chunks) == 0 && a.outstanding.size() == 0 {
			chunkPayload := a.sendQueue.peek()
			if chunkPayload != nil {
				a.commitDataChunk(chunkPayload)
				chunks = append(chunks, chunkPayload)
			}
		}
	}

	return chunks, sisToReset
}

// commitDataChunk assigns a TSN to the chunk peeked with a.sendQueue.peek()
// and moves it to the outstanding queue.
// The caller should hold the lock.
func (a *Association) commitDataChunk(chunkPayload *chunkPayloadData) {
	if err := a.sendQueue.pop(chunkPayload); err != nil {
		a.log.Errorf("[%s] failed to pop from send queue: %s", a.name, err.Error())
	}

	if chunkPayload.endingFragment {
		chunkPayload.setAllInflight()
	}

	chunkPayload.tsn = a.takeNextTSN()
	chunkPayload.queuedAt = time.Now()
	chunkPayload.sendCount = 1

	a.applyPartialReliability(chunkPayload)

	a.log.Tracef(
		"[%s] sending ppi=%d tsn=%d ssn=%d sent=%d len=%d (%v,%v)",
		a.name,
		chunkPayload.payloadType,
		chunkPayload.tsn,
		chunkPayload.streamSequenceNumber,
		chunkPayload.sendCount,
		len(chunkPayload.userData),
		chunkPayload.beginningFragment,
		chunkPayload.endingFragment,
	)

	a.outstanding.push(chunkPayload)
}

// packDataChunks bundles DATA chunks into as few packets as the path MTU
// allows (RFC 4960 sec 6.1).
// The caller should hold the lock.
func (a *Association) packDataChunks(chunks []*chunkPayloadData) []*packet {
	packets := []*packet{}
	chunksToSend := []chunk{}
	bytesInPacket := int(commonHeaderSize)

	for _, chunkPayload := range chunks {
		chunkSizeInPacket := int(dataChunkHeaderSize) + len(chunkPayload.userData)
		chunkSizeInPacket += getPadding(chunkSizeInPacket)
		if bytesInPacket+chunkSizeInPacket > int(a.MTU()) {
			packets = append(packets, a.makePacket(chunksToSend))
			chunksToSend = []chunk{}
			bytesInPacket = int(commonHeaderSize)
		}
		chunksToSend = append(chunksToSend, chunkPayload)
		bytesInPacket += chunkSizeInPacket
	}

	if len(chunksToSend) > 0 {
		packets = append(packets, a.makePacket(chunksToSend))
	}

	return packets
}

// applyPartialReliability abandons the chunk once its stream's PR-SCTP
// policy is exhausted (RFC 3758). DCEP messages are always fully reliable
// (RFC 8832 sec 6).
// The caller should hold the lock.
func (a *Association) applyPartialReliability(chunkPayload *chunkPayloadData) {
	if !a.useForwardTSN {
		return
	}

	if chunkPayload.payloadType == PayloadTypeWebRTCDCEP {
		return
	}

	if stream, ok := a.streams[chunkPayload.streamIdentifier]; ok { //nolint:nestif
		stream.lock.RLock()
		if stream.reliabilityType == ReliabilityTypeRexmit {
			if chunkPayload.sendCount >= stream.reliabilityValue {
				chunkPayload.setAbandoned(true)
				a.log.Tracef(
					"[%s] marked as abandoned: tsn=%d ppi=%d (rexmit: %d)",
					a.name, chunkPayload.tsn, chunkPayload.payloadType, chunkPayload.sendCount,
				)
			}
		} else if stream.reliabilityType == ReliabilityTypeTimed {
			elapsed := int64(time.Since(chunkPayload.queuedAt).Seconds() * 1000)
			if elapsed >= int64(stream.reliabilityValue) {
				chunkPayload.setAbandoned(true)
				a.log.Tracef(
					"[%s] marked as abandoned: tsn=%d ppi=%d (timed: %d)",
					a.name, chunkPayload.tsn, chunkPayload.payloadType, elapsed,
				)
			}
		}
		stream.lock.RUnlock()
	} else {
		// The remote reset its side of the stream; sending may continue.
		a.log.Tracef("[%s] stream %d not found, remote reset", a.name, chunkPayload.streamIdentifier)
	}
}

// buildRetransmitPackets packs the outstanding chunks flagged by the last
// T3-rtx timeout, bounded by min(cwnd, rwnd).
// The caller should hold the lock.
func (a *Association) buildRetransmitPackets() []*packet {
	awnd := min32(a.CWND(), a.RWND())
	chunks := []*chunkPayloadData{}
	var bytesToSend int
	var done bool

	for i := 0; !done; i++ {
		chunkPayload, ok := a.outstanding.get(a.cumAckPoint + uint32(i) + 1) //nolint:gosec // G115
		if !ok {
			break // end of in-flight data
		}

		if !chunkPayload.retransmit {
			continue
		}

		if i == 0 && int(a.RWND()) < len(chunkPayload.userData) {
			// Send it as a zero window probe
			done = true
		} else if bytesToSend+len(chunkPayload.userData) > int(awnd) {
			break
		}

		// cleared so it isn't resent before the next T3-rtx fires
		chunkPayload.retransmit = false
		bytesToSend += len(chunkPayload.userData)

		chunkPayload.sendCount++
		chunkPayload.queuedAt = time.Now()

		a.applyPartialReliability(chunkPayload)

		a.log.Tracef(
			"[%s] retransmitting tsn=%d ssn=%d sent=%d",
			a.name, chunkPayload.tsn, chunkPayload.streamSequenceNumber, chunkPayload.sendCount,
		)

		chunks = append(chunks, chunkPayload)
	}

	return a.packDataChunks(chunks)
}

// takeNextTSN returns the next outbound TSN and advances the counter.
// The caller should hold the lock.
func (a *Association) takeNextTSN() uint32 {
	tsn := a.nextTSN
	a.nextTSN++

	return tsn
}

// takeNextRSN returns the next reconfig request sequence number and
// advances the counter. The caller should hold the lock.
func (a *Association) takeNextRSN() uint32 {
	rsn := a.nextRSN
	a.nextRSN++

	return rsn
}

// buildForwardTSN assembles a FORWARD-TSN chunk reporting, per stream, the
// largest SSN being skipped (RFC 3758 sec 3.5 C4).
// The caller should hold the lock.
func (a *Association) buildForwardTSN() *chunkForwardTSN {
	streamMap := map[uint16]uint16{} // report each stream once
	for i := a.cumAckPoint + 1; sna32LTE(i, a.advancedAckPoint); i++ {
		c, ok := a.outstanding.get(i)
		if !ok {
			break
		}

		ssn, ok := streamMap[c.streamIdentifier]
		if !ok {
			streamMap[c.streamIdentifier] = c.streamSequenceNumber
		} else if sna16LT(ssn, c.streamSequenceNumber) {
			streamMap[c.streamIdentifier] = c.streamSequenceNumber
		}
	}

	fwdtsn := &chunkForwardTSN{
		newCumulativeTSN: a.advancedAckPoint,
		streams:          []chunkForwardTSNStream{},
	}

	var streamStr string
	for si, ssn := range streamMap {
		streamStr += fmt.Sprintf("(si=%d ssn=%d)", si, ssn)
		fwdtsn.streams = append(fwdtsn.streams, chunkForwardTSNStream{
			identifier: si,
			sequence:   ssn,
		})
	}
	a.log.Tracef(
		"[%s] building fwdtsn: newCumulativeTSN=%d cumTSN=%d - %s",
		a.name, fwdtsn.newCumulativeTSN, a.cumAckPoint, streamStr,
	)

	return fwdtsn
}

func (a *Association) buildSelectiveAck() *chunkSelectiveAck {
	sack := &chunkSelectiveAck{}
	sack.cumulativeTSNAck = a.lastRcvdTSN
	sack.advertisedReceiverWindowCredit = a.receiverWindowCredit()
	sack.duplicateTSN = a.recvTracker.popDuplicates()
	sack.gapAckBlocks = a.recvTracker.getGapAckBlocks(a.lastRcvdTSN)

	return sack
}

// makePacket wraps chunks in a packet addressed to the peer.
// The caller should hold the read lock.
func (a *Association) makePacket(cs []chunk) *packet {
	return &packet{
		verificationTag: a.remoteVerificationTag,
		sourcePort:      a.sourcePort,
		destinationPort: a.destinationPort,
		chunks:          cs,
	}
}

// requestStreamReset queues an outgoing stream reset for the given stream
// (RFC 6525). The zero-length chunk acts as the end-of-stream marker in the
// send queue.
func (a *Association) requestStreamReset(streamIdentifier uint16) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	state := a.getState()
	if state != established {
		return fmt.Errorf("%w: state=%s", ErrResetPacketInStateNotExist,
			associationStateName(state))
	}

	c := &chunkPayloadData{
		streamIdentifier:  streamIdentifier,
		beginningFragment: true,
		endingFragment:    true,
		userData:          nil,
	}

	a.sendQueue.push(c)
	a.wakeSendLoop()

	return nil
}

// ActiveHeartbeat sends a HEARTBEAT chunk on the association to perform an
// on-demand RTT measurement without application payload.
//
// It is safe to call from outside; it will take the association lock and
// be a no-op if the association is not established.
func (a *Association) ActiveHeartbeat() {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.getState() != established {
		return
	}

	a.sendActiveHeartbeatLocked()
}

// caller must hold a.lock.
func (a *Association) sendActiveHeartbeatLocked() {
	now := time.Now().UnixNano()
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(now)) //nolint:gosec // time.Now() will never be negative

	info := &paramHeartbeatInfo{heartbeatInformation: buf}

	hb := &chunkHeartbeat{
		params: []param{info},
	}

	a.controlOutbox.push(&packet{
		verificationTag: a.remoteVerificationTag,
		sourcePort:      a.sourcePort,
		destinationPort: a.destinationPort,
		chunks:          []chunk{hb},
	})
	a.wakeSendLoop()
}

func (a *Association) onRetransmissionTimeout(id int, nRtos uint) { //nolint:cyclop
	a.lock.Lock()
	defer a.lock.Unlock()

	if id == timerT1Init {
		err := a.sendInit()
		if err != nil {
			a.log.Debugf("[%s] failed to retransmit init (nRtos=%d): %v", a.name, nRtos, err)
		}

		return
	}

	if id == timerT1Cookie {
		err := a.sendCookieEcho()
		if err != nil {
			a.log.Debugf("[%s] failed to retransmit cookie-echo (nRtos=%d): %v", a.name, nRtos, err)
		}

		return
	}

	if id == timerT2Shutdown {
		a.log.Debugf("[%s] retransmission of shutdown timeout (nRtos=%d)", a.name, nRtos)
		state := a.getState()

		switch state {
		case shutdownSent:
			a.shutdownQueued = true
			a.wakeSendLoop()
		case shutdownAckSent:
			a.shutdownAckQueued = true
			a.wakeSendLoop()
		}
	}

	if id == timerT3RTX {
		a.stats.incT3Timeouts()

		// RFC 4960 sec 6.3.3 (E1) / sec 7.2.3: on T3-rtx expiration,
		// ssthresh = max(cwnd/2, 4*MTU) and cwnd = 1*MTU.
		a.ssthresh = max32(a.CWND()/2, 4*a.MTU())
		a.setCWND(a.MTU())
		a.log.Tracef("[%s] updated cwnd=%d ssthresh=%d inflight=%d (RTO)",
			a.name, a.CWND(), a.ssthresh, a.outstanding.getNumBytes())

		// Exit fast-recovery on T3-rtx expiration (RFC 9260 sec 7.2.4).
		if a.inFastRecovery {
			a.inFastRecovery = false
			a.fastRetransmitQueued = false
			a.fastRecoverExitPoint = 0
			a.partialBytesAcked = 0
			a.log.Debugf("[%s] exit fast-recovery (RTO)", a.name)
		}

		// RFC 3758 sec 3.5 A5: on every T3-rtx expiration, try to advance
		// the advanced ack point over abandoned chunks (rules C2/C3).
		if a.useForwardTSN {
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

			if sna32GT(a.advancedAckPoint, a.cumAckPoint) {
				a.forwardTSNQueued = true
			}
		}

		a.log.Debugf("[%s] T3-rtx timed out: nRtos=%d cwnd=%d ssthresh=%d", a.name, nRtos, a.CWND(), a.ssthresh)

		a.outstanding.markAllForRetransmit()
		a.wakeSendLoop()

		return
	}

	if id == timerReconfig {
		a.reconfigRetransmitQueued = true
		a.wakeSendLoop()
	}
}

func (a *Association) onRetransmissionFailure(id int) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if id == timerT1Init {
		a.log.Errorf("[%s] retransmission failure: T1-init", a.name)
		a.finishHandshake(ErrHandshakeInitAck)

		return
	}

	if id == timerT1Cookie {
		a.log.Errorf("[%s] retransmission failure: T1-cookie", a.name)
		a.finishHandshake(ErrHandshakeCookieEcho)

		return
	}

	if id == timerT2Shutdown {
		a.log.Errorf("[%s] retransmission failure: T2-shutdown", a.name)

		return
	}

	if id == timerT3RTX {
		// T3-rtx retries without limit: connectivity loss surfaces at the
		// ICE layer, not here.
		a.log.Errorf("[%s] retransmission failure: T3-rtx (DATA)", a.name)

		return
	}
}

func (a *Association) onAckTimeout() {
	a.lock.Lock()
	defer a.lock.Unlock()

	a.log.Tracef("[%s] ack timed out (ackState: %d)", a.name, a.ackState)
	a.stats.incAckTimeouts()

	a.ackState = ackStateImmediate
	a.wakeSendLoop()
}
