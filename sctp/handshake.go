// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"bytes"
	"fmt"
)

// declareSupportedExtensions advertises the optional chunk types this
// implementation understands (RFC 5061 supported extensions parameter):
// RE-CONFIG (RFC 6525) and FORWARD-TSN (RFC 3758).
func declareSupportedExtensions(init *chunkInitCommon) {
	init.params = append(init.params, &paramSupportedExtensions{
		ChunkTypes: []chunkType{ctReconfig, ctForwardTSN},
	})
}

// caller must hold a.lock.
func (a *Association) sendInit() error {
	a.log.Debugf("[%s] sending INIT", a.name)
	if a.pendingInit == nil {
		return ErrInitNotStoredToSend
	}

	outbound := &packet{}
	outbound.verificationTag = 0
	a.sourcePort = defaultSCTPSrcDstPort
	a.destinationPort = defaultSCTPSrcDstPort
	outbound.sourcePort = a.sourcePort
	outbound.destinationPort = a.destinationPort

	outbound.chunks = []chunk{a.pendingInit}

	a.controlOutbox.push(outbound)
	a.wakeSendLoop()

	return nil
}

// caller must hold a.lock.
func (a *Association) sendCookieEcho() error {
	if a.pendingCookieEcho == nil {
		return ErrCookieEchoNotStoredToSend
	}

	a.log.Debugf("[%s] sending COOKIE-ECHO", a.name)

	outbound := &packet{}
	outbound.verificationTag = a.remoteVerificationTag
	outbound.sourcePort = a.sourcePort
	outbound.destinationPort = a.destinationPort
	outbound.chunks = []chunk{a.pendingCookieEcho}

	a.controlOutbox.push(outbound)
	a.wakeSendLoop()

	return nil
}

// handleInit responds to an INIT with an INIT ACK carrying our state cookie.
// Per RFC 4960 sec 5.2.1 an INIT received in COOKIE-WAIT or COOKIE-ECHOED
// (a handshake collision) gets the same INIT ACK the original INIT would.
// The caller should hold the lock.
func (a *Association) handleInit(pkt *packet, initChunk *chunkInit) ([]*packet, error) {
	state := a.getState()
	a.log.Debugf("[%s] chunkInit received in state '%s'", a.name, associationStateName(state))

	if state != closed && state != cookieWait && state != cookieEchoed {
		// RFC 4960 sec 5.2.2: unexpected INIT in any other state.
		return nil, fmt.Errorf("%w: %s", ErrHandleInitState, associationStateName(state))
	}

	// Adopting the peer's parameters before its COOKIE ECHO arrives is a
	// deviation from RFC 9260 sec 5.1; it makes resource attacks slightly
	// easier but keeps the handshake state machine simple.
	a.maxInboundStreams = min16(initChunk.numInboundStreams, a.maxInboundStreams)
	a.maxOutboundStreams = min16(initChunk.numOutboundStreams, a.maxOutboundStreams)
	a.remoteVerificationTag = initChunk.initiateTag
	a.sourcePort = pkt.destinationPort
	a.destinationPort = pkt.sourcePort

	// The cumulative TSN starts one below the peer's initial TSN
	// (RFC 4960 sec 13.2).
	a.lastRcvdTSN = initChunk.initialTSN - 1

	a.setRWND(initChunk.advertisedReceiverWindowCredit)
	a.log.Debugf("[%s] initial rwnd=%d", a.name, a.RWND())

	for _, param := range initChunk.params {
		switch v := param.(type) { // nolint:gocritic
		case *paramSupportedExtensions:
			for _, t := range v.ChunkTypes {
				if t == ctForwardTSN {
					a.log.Debugf("[%s] use ForwardTSN (on init)", a.name)
					a.useForwardTSN = true
				}
			}
		}
	}

	if !a.useForwardTSN {
		a.log.Warnf("[%s] not using ForwardTSN (on init)", a.name)
	}

	outbound := &packet{}
	outbound.verificationTag = a.remoteVerificationTag
	outbound.sourcePort = a.sourcePort
	outbound.destinationPort = a.destinationPort

	initAck := &chunkInitAck{}
	a.log.Debug("sending INIT ACK")

	initAck.initialTSN = a.nextTSN
	initAck.numOutboundStreams = a.maxOutboundStreams
	initAck.numInboundStreams = a.maxInboundStreams
	initAck.initiateTag = a.localVerificationTag
	initAck.advertisedReceiverWindowCredit = a.maxReceiveBufferSize

	if a.stateCookie == nil {
		var err error
		// The cookie is random rather than derived per RFC 4960
		// sec 5.1.3; it is never validated across restarts anyway.
		if a.stateCookie, err = newRandomStateCookie(); err != nil {
			return nil, err
		}
	}

	initAck.params = []param{a.stateCookie}

	declareSupportedExtensions(&initAck.chunkInitCommon)

	outbound.chunks = []chunk{initAck}

	return wrap(outbound), nil
}

// The caller should hold the lock.
func (a *Association) handleInitAck(pkt *packet, initChunkAck *chunkInitAck) error {
	state := a.getState()
	a.log.Debugf("[%s] chunkInitAck received in state '%s'", a.name, associationStateName(state))
	if state != cookieWait {
		// RFC 4960 sec 5.2.3: an INIT ACK outside COOKIE-WAIT is the
		// residue of an old or duplicated INIT; discard it.
		return nil
	}

	a.maxInboundStreams = min16(initChunkAck.numInboundStreams, a.maxInboundStreams)
	a.maxOutboundStreams = min16(initChunkAck.numOutboundStreams, a.maxOutboundStreams)
	a.remoteVerificationTag = initChunkAck.initiateTag
	a.lastRcvdTSN = initChunkAck.initialTSN - 1
	if a.sourcePort != pkt.destinationPort ||
		a.destinationPort != pkt.sourcePort {
		a.log.Warnf("[%s] handleInitAck: port mismatch", a.name)

		return nil
	}

	a.setRWND(initChunkAck.advertisedReceiverWindowCredit)
	a.log.Debugf("[%s] initial rwnd=%d", a.name, a.RWND())

	// RFC 4960 sec 7.2.1 allows an arbitrarily high initial ssthresh;
	// use the peer's advertised window.
	a.ssthresh = a.RWND()
	a.log.Tracef("[%s] updated cwnd=%d ssthresh=%d inflight=%d (INI)",
		a.name, a.CWND(), a.ssthresh, a.outstanding.getNumBytes())

	a.t1Init.stop()
	a.pendingInit = nil

	var cookieParam *paramStateCookie
	for _, param := range initChunkAck.params {
		switch v := param.(type) {
		case *paramStateCookie:
			cookieParam = v
		case *paramSupportedExtensions:
			for _, t := range v.ChunkTypes {
				if t == ctForwardTSN {
					a.log.Debugf("[%s] use ForwardTSN (on initAck)", a.name)
					a.useForwardTSN = true
				}
			}
		}
	}
	if !a.useForwardTSN {
		a.log.Warnf("[%s] not using ForwardTSN (on initAck)", a.name)
	}
	if cookieParam == nil {
		return ErrInitAckNoCookie
	}

	a.pendingCookieEcho = &chunkCookieEcho{}
	a.pendingCookieEcho.cookie = cookieParam.cookie

	err := a.sendCookieEcho()
	if err != nil {
		a.log.Errorf("[%s] failed to send cookie-echo: %s", a.name, err.Error())
	}

	a.t1Cookie.start(a.rtoMgr.getRTO())
	a.setState(cookieEchoed)

	return nil
}

// The caller should hold the lock.
func (a *Association) handleCookieEcho(cookieEcho *chunkCookieEcho) []*packet {
	state := a.getState()
	a.log.Debugf("[%s] COOKIE-ECHO received in state '%s'", a.name, associationStateName(state))

	if a.stateCookie == nil {
		a.log.Debugf("[%s] COOKIE-ECHO received before initialization", a.name)

		return nil
	}
	switch state {
	default:
		return nil
	case established:
		if !bytes.Equal(a.stateCookie.cookie, cookieEcho.cookie) {
			return nil
		}
	case closed, cookieWait, cookieEchoed:
		if !bytes.Equal(a.stateCookie.cookie, cookieEcho.cookie) {
			return nil
		}

		a.t1Init.stop()
		a.pendingInit = nil

		a.t1Cookie.stop()
		a.pendingCookieEcho = nil

		a.setState(established)
		if !a.finishHandshake(nil) {
			return nil
		}
	}

	p := &packet{
		verificationTag: a.remoteVerificationTag,
		sourcePort:      a.sourcePort,
		destinationPort: a.destinationPort,
		chunks:          []chunk{&chunkCookieAck{}},
	}

	return wrap(p)
}

// The caller should hold the lock.
func (a *Association) handleCookieAck() {
	state := a.getState()
	a.log.Debugf("[%s] COOKIE-ACK received in state '%s'", a.name, associationStateName(state))
	if state != cookieEchoed {
		// RFC 4960 sec 5.2.5: silently discard outside COOKIE-ECHOED.
		return
	}

	a.t1Cookie.stop()
	a.pendingCookieEcho = nil

	a.setState(established)
	a.finishHandshake(nil)
}
