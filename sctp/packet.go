// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// CRC32c table used for the packet checksum.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli) // nolint:gochecknoglobals

// Zeroed once, reused for checksumming the checksum field itself.
var fourZeroes [4]byte // nolint:gochecknoglobals

// packet is an SCTP packet (RFC 4960 section 3): a 12-byte common header
// (source port, destination port, verification tag, CRC32c checksum)
// followed by one or more chunks, each padded to a 4-byte boundary.
type packet struct {
	sourcePort      uint16
	destinationPort uint16
	verificationTag uint32
	chunks          []chunk
}

const (
	packetHeaderSize = 12
)

// SCTP packet errors.
var (
	ErrPacketRawTooSmall           = errors.New("raw is smaller than the minimum length for a SCTP packet")
	ErrParseSCTPChunkNotEnoughData = errors.New("unable to parse SCTP chunk, not enough data for complete header")
	ErrUnmarshalUnknownChunkType   = errors.New("failed to unmarshal, contains unknown chunk type")
	ErrChecksumMismatch            = errors.New("checksum mismatch theirs")
)

// chunkFromType returns an empty chunk of the given type, ready to be
// unmarshaled into.
func chunkFromType(t chunkType) (chunk, error) { //nolint:cyclop
	switch t {
	case ctInit:
		return &chunkInit{}, nil
	case ctInitAck:
		return &chunkInitAck{}, nil
	case ctAbort:
		return &chunkAbort{}, nil
	case ctCookieEcho:
		return &chunkCookieEcho{}, nil
	case ctCookieAck:
		return &chunkCookieAck{}, nil
	case ctHeartbeat:
		return &chunkHeartbeat{}, nil
	case ctHeartbeatAck:
		return &chunkHeartbeatAck{}, nil
	case ctPayloadData:
		return &chunkPayloadData{}, nil
	case ctSack:
		return &chunkSelectiveAck{}, nil
	case ctReconfig:
		return &chunkReconfig{}, nil
	case ctForwardTSN:
		return &chunkForwardTSN{}, nil
	case ctError:
		return &chunkError{}, nil
	case ctShutdown:
		return &chunkShutdown{}, nil
	case ctShutdownAck:
		return &chunkShutdownAck{}, nil
	case ctShutdownComplete:
		return &chunkShutdownComplete{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnmarshalUnknownChunkType, t.String())
	}
}

// unmarshal parses an SCTP packet and verifies its CRC32c checksum
// (RFC 4960 section 6.8). A mismatch is an error; the caller drops the
// packet silently.
func (p *packet) unmarshal(raw []byte) error {
	if len(raw) < packetHeaderSize {
		return fmt.Errorf("%w: raw only %d bytes, %d is the minimum length", ErrPacketRawTooSmall, len(raw), packetHeaderSize)
	}

	theirChecksum := binary.LittleEndian.Uint32(raw[8:])
	ourChecksum := generatePacketChecksum(raw)
	if theirChecksum != ourChecksum {
		return fmt.Errorf("%w: %d ours: %d", ErrChecksumMismatch, theirChecksum, ourChecksum)
	}

	p.sourcePort = binary.BigEndian.Uint16(raw[0:])
	p.destinationPort = binary.BigEndian.Uint16(raw[2:])
	p.verificationTag = binary.BigEndian.Uint32(raw[4:])

	offset := packetHeaderSize
	for offset != len(raw) {
		if offset+chunkHeaderSize > len(raw) {
			return fmt.Errorf("%w: offset %d remaining %d", ErrParseSCTPChunkNotEnoughData, offset, len(raw))
		}

		parsed, err := chunkFromType(chunkType(raw[offset]))
		if err != nil {
			return err
		}

		if err := parsed.unmarshal(raw[offset:]); err != nil {
			return err
		}

		p.chunks = append(p.chunks, parsed)
		chunkValuePadding := getPadding(parsed.valueLength())
		offset += chunkHeaderSize + parsed.valueLength() + chunkValuePadding
	}

	return nil
}

// marshal builds an SCTP packet with a correct CRC32c checksum.
func (p *packet) marshal() ([]byte, error) {
	// The checksum at bytes 8-12 is filled in once the chunks are appended.
	raw := make([]byte, packetHeaderSize)
	binary.BigEndian.PutUint16(raw[0:], p.sourcePort)
	binary.BigEndian.PutUint16(raw[2:], p.destinationPort)
	binary.BigEndian.PutUint32(raw[4:], p.verificationTag)

	for _, c := range p.chunks {
		chunkRaw, err := c.marshal()
		if err != nil {
			return nil, err
		}
		raw = append(raw, chunkRaw...) //nolint:makezero

		paddingNeeded := getPadding(len(raw))
		if paddingNeeded != 0 {
			raw = append(raw, make([]byte, paddingNeeded)...) //nolint:makezero
		}
	}

	binary.LittleEndian.PutUint32(raw[8:], generatePacketChecksum(raw))

	return raw, nil
}

func generatePacketChecksum(raw []byte) (sum uint32) {
	// Fastest way to do a crc32 without allocating.
	sum = crc32.Update(sum, castagnoliTable, raw[0:8])
	sum = crc32.Update(sum, castagnoliTable, fourZeroes[:])
	sum = crc32.Update(sum, castagnoliTable, raw[12:])

	return sum
}

// String makes packet printable.
func (p *packet) String() string {
	format := `Packet:
	sourcePort: %d
	destinationPort: %d
	verificationTag: %d
	`
	res := fmt.Sprintf(format,
		p.sourcePort,
		p.destinationPort,
		p.verificationTag,
	)
	for i, chunk := range p.chunks {
		res += fmt.Sprintf("Chunk %d:\n %s", i, chunk)
	}

	return res
}
