// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchRange(t *testing.T) {
	f := MatchRange(20, 63)

	assert.False(t, f([]byte{}))
	assert.False(t, f([]byte{19}))
	assert.True(t, f([]byte{20}))
	assert.True(t, f([]byte{63}))
	assert.False(t, f([]byte{64}))
}

func TestMatchSRTPAndSRTCP(t *testing.T) {
	// version 2 RTP packet, payload type 96
	rtpPacket := []byte{0x80, 0x60, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	// version 2 RTCP Sender Report, packet type 200
	rtcpPacket := []byte{0x80, 0xc8, 0x00, 0x06, 0x00, 0x00, 0x00, 0x00}

	assert.True(t, MatchSRTPOrSRTCP(rtpPacket))
	assert.True(t, MatchSRTPOrSRTCP(rtcpPacket))

	assert.True(t, MatchSRTP(rtpPacket))
	assert.False(t, MatchSRTP(rtcpPacket))

	assert.False(t, MatchSRTCP(rtpPacket))
	assert.True(t, MatchSRTCP(rtcpPacket))

	// Too short to classify; treated as RTP
	assert.True(t, MatchSRTP([]byte{0x80, 0xc8}))

	// STUN and DTLS are out of the SRTP range entirely
	assert.False(t, MatchSRTPOrSRTCP([]byte{0x00, 0x01, 0x00, 0x00}))
	assert.False(t, MatchSRTPOrSRTCP([]byte{0x16, 0xfe, 0xfd, 0x00}))
}
