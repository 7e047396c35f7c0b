// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package mux

// MatchFunc allows custom logic for mapping packets to an Endpoint.
type MatchFunc func([]byte) bool

// MatchAll always returns true.
func MatchAll([]byte) bool {
	return true
}

// MatchNone always returns false.
func MatchNone([]byte) bool {
	return false
}

// MatchRange returns a MatchFunc that accepts packets whose first byte
// is in [lower..upper].
func MatchRange(lower, upper byte) MatchFunc {
	return func(buf []byte) bool {
		if len(buf) < 1 {
			return false
		}
		b := buf[0]

		return b >= lower && b <= upper
	}
}

// MatchFuncs as described in RFC 7983
// https://tools.ietf.org/html/rfc7983
//
//	            +----------------+
//	            |        [0..3] -+--> forward to STUN
//	            |                |
//	            |      [16..19] -+--> forward to ZRTP
//	            |                |
//	packet -->  |      [20..63] -+--> forward to DTLS
//	            |                |
//	            |      [64..79] -+--> forward to TURN Channel
//	            |                |
//	            |    [128..191] -+--> forward to RTP/RTCP
//	            +----------------+

// MatchSTUN accepts packets with the first byte in [0..3].
var MatchSTUN = MatchRange(0, 3) //nolint:gochecknoglobals

// MatchDTLS accepts packets with the first byte in [20..63].
var MatchDTLS = MatchRange(20, 63) //nolint:gochecknoglobals

// MatchTURNChannelData accepts TURN ChannelData messages, first byte in [64..79].
var MatchTURNChannelData = MatchRange(64, 79) //nolint:gochecknoglobals

// MatchSRTPOrSRTCP accepts packets with the first byte in [128..191].
var MatchSRTPOrSRTCP = MatchRange(128, 191) //nolint:gochecknoglobals

// isRTCP checks the second byte against the RTCP packet-type range.
// Demuxing on the PT byte is sufficient when, as here, RTP payload
// types are constrained to avoid [192..223] (RFC 5761 section 4).
func isRTCP(buf []byte) bool {
	// Not long enough to determine RTP/RTCP
	if len(buf) < 4 {
		return false
	}

	return buf[1] >= 192 && buf[1] <= 223
}

// MatchSRTP accepts SRTP packets, excluding SRTCP.
func MatchSRTP(buf []byte) bool {
	return MatchSRTPOrSRTCP(buf) && !isRTCP(buf)
}

// MatchSRTCP accepts SRTCP packets, excluding SRTP.
func MatchSRTCP(buf []byte) bool {
	return MatchSRTPOrSRTCP(buf) && isRTCP(buf)
}
