// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

// Package rtcnet composes ICE, DTLS and SCTP into a real-time transport
// stack following the ORTC object model: an ICETransport establishes a
// connection, a DTLSTransport secures it, and an SCTPTransport carries
// reliable and partially reliable streams on top. SRTP/SRTCP sessions for
// media share the same ICE connection through the demultiplexer.
package rtcnet

const (
	// Unknown defines default public constant to use for "enum" like struct
	// comparisons when no value was defined.
	Unknown    = iota
	unknownStr = "unknown"

	// receiveMTU is the size of the buffers used to read from the wire.
	// It matches the read MTU of the ICE agent.
	receiveMTU = 8192
)
