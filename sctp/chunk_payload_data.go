// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// chunkPayloadData is a DATA chunk (RFC 4960 section 3.3.1): the chunk
// header with the U/B/E/I flag bits, followed by TSN, stream identifier,
// stream sequence number, payload protocol identifier, and the user data.
// An unfragmented message has both B and E set; a middle fragment has
// neither.
type chunkPayloadData struct {
	chunkHeader

	unordered         bool
	beginningFragment bool
	endingFragment    bool
	immediateSack     bool

	tsn                  uint32
	streamIdentifier     uint16
	streamSequenceNumber uint16
	payloadType          PayloadProtocolIdentifier
	userData             []byte

	// Sender-side bookkeeping, never marshaled.
	acked     bool      // selectively acknowledged by the peer
	missCount uint32    // miss indications (RFC 4960 section 7.2.4)
	queuedAt  time.Time // when this chunk last entered the wire path
	sendCount uint32    // number of transmissions so far

	// Abandonment state lives on the first fragment of the message.
	abandonedFlag   bool
	allInflightFlag bool

	// Set when T3-rtx expired while this chunk was still outstanding.
	retransmit bool

	first *chunkPayloadData // first fragment of this chunk's message
}

const (
	payloadDataEndingFragmentBitmask    = 1
	payloadDataBeginningFragmentBitmask = 2
	payloadDataUnorderedBitmask         = 4
	payloadDataImmediateSACK            = 8

	payloadDataHeaderSize = 12 // TSN(4) + SID(2) + SSN(2) + PPID(4)
)

// PayloadProtocolIdentifier is an enum for DataChannel payload types.
type PayloadProtocolIdentifier uint32

// PayloadProtocolIdentifier enums
// https://www.iana.org/assignments/sctp-parameters/sctp-parameters.xhtml#sctp-parameters-25
const (
	PayloadTypeUnknown           PayloadProtocolIdentifier = 0
	PayloadTypeWebRTCDCEP        PayloadProtocolIdentifier = 50
	PayloadTypeWebRTCString      PayloadProtocolIdentifier = 51
	PayloadTypeWebRTCBinary      PayloadProtocolIdentifier = 53
	PayloadTypeWebRTCStringEmpty PayloadProtocolIdentifier = 56
	PayloadTypeWebRTCBinaryEmpty PayloadProtocolIdentifier = 57
)

// Data chunk errors.
var (
	ErrChunkPayloadSmall = errors.New("packet is smaller than the header size")
	ErrDATAZeroUserData  = errors.New("DATA chunk carries no user data")
)

func (p PayloadProtocolIdentifier) String() string {
	switch p {
	case PayloadTypeWebRTCDCEP:
		return "WebRTC DCEP"
	case PayloadTypeWebRTCString:
		return "WebRTC String"
	case PayloadTypeWebRTCBinary:
		return "WebRTC Binary"
	case PayloadTypeWebRTCStringEmpty:
		return "WebRTC String (Empty)"
	case PayloadTypeWebRTCBinaryEmpty:
		return "WebRTC Binary (Empty)"
	default:
		return fmt.Sprintf("Unknown Payload Protocol Identifier: %d", p)
	}
}

func (p *chunkPayloadData) unmarshal(raw []byte) error {
	if err := p.chunkHeader.unmarshal(raw); err != nil {
		return err
	}

	p.immediateSack = p.flags&payloadDataImmediateSACK != 0
	p.unordered = p.flags&payloadDataUnorderedBitmask != 0
	p.beginningFragment = p.flags&payloadDataBeginningFragmentBitmask != 0
	p.endingFragment = p.flags&payloadDataEndingFragmentBitmask != 0

	if len(p.raw) < payloadDataHeaderSize {
		return ErrChunkPayloadSmall
	}

	p.tsn = binary.BigEndian.Uint32(p.raw[0:])
	p.streamIdentifier = binary.BigEndian.Uint16(p.raw[4:])
	p.streamSequenceNumber = binary.BigEndian.Uint16(p.raw[6:])
	p.payloadType = PayloadProtocolIdentifier(binary.BigEndian.Uint32(p.raw[8:]))

	// RFC 4960 section 3.3.1: user data length must be > 0.
	p.userData = p.raw[payloadDataHeaderSize:]
	if len(p.userData) == 0 {
		return ErrDATAZeroUserData
	}

	return nil
}

func (p *chunkPayloadData) marshal() ([]byte, error) {
	if len(p.userData) == 0 {
		return nil, ErrDATAZeroUserData
	}

	payRaw := make([]byte, payloadDataHeaderSize+len(p.userData))

	binary.BigEndian.PutUint32(payRaw[0:], p.tsn)
	binary.BigEndian.PutUint16(payRaw[4:], p.streamIdentifier)
	binary.BigEndian.PutUint16(payRaw[6:], p.streamSequenceNumber)
	binary.BigEndian.PutUint32(payRaw[8:], uint32(p.payloadType))
	copy(payRaw[payloadDataHeaderSize:], p.userData)

	// Only set the defined bits; reserved bits are 0 on transmit
	flags := uint8(0)
	if p.endingFragment {
		flags |= payloadDataEndingFragmentBitmask
	}

	if p.beginningFragment {
		flags |= payloadDataBeginningFragmentBitmask
	}

	if p.unordered {
		flags |= payloadDataUnorderedBitmask
	}

	if p.immediateSack {
		flags |= payloadDataImmediateSACK
	}

	p.chunkHeader.flags = flags
	p.chunkHeader.typ = ctPayloadData
	p.chunkHeader.raw = payRaw

	return p.chunkHeader.marshal()
}

func (p *chunkPayloadData) check() (abort bool, err error) {
	return false, nil
}

// String makes chunkPayloadData printable.
func (p *chunkPayloadData) String() string {
	return fmt.Sprintf("%s\n%d", p.chunkHeader, p.tsn)
}

// abandoned reports whether the whole message this chunk belongs to was
// given up on. A message is only abandoned once all of its fragments have
// been transmitted at least once, so the receiver can reassemble or skip
// it cleanly.
func (p *chunkPayloadData) abandoned() bool {
	if p.first != nil {
		return p.first.abandonedFlag && p.first.allInflightFlag
	}

	return p.abandonedFlag && p.allInflightFlag
}

func (p *chunkPayloadData) setAbandoned(abandoned bool) {
	if p.first != nil {
		p.first.abandonedFlag = abandoned

		return
	}
	p.abandonedFlag = abandoned
}

func (p *chunkPayloadData) setAllInflight() {
	if p.endingFragment {
		if p.first != nil {
			p.first.allInflightFlag = true
		} else {
			p.allInflightFlag = true
		}
	}
}

func (p *chunkPayloadData) isFragmented() bool {
	return p.first != nil || !p.beginningFragment || !p.endingFragment
}
