// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

type paramHeader struct {
	typ                paramType
	unrecognizedAction paramHeaderUnrecognizedAction
	len                int
	raw                []byte
}

type paramHeaderUnrecognizedAction byte

const (
	paramHeaderLength = 4

	// The top two bits of the parameter type select the receiver's
	// behavior for an unrecognized parameter (RFC 4960 section 3.2.1).
	paramHeaderUnrecognizedActionMask          paramHeaderUnrecognizedAction = 0b11000000
	paramHeaderUnrecognizedActionStop          paramHeaderUnrecognizedAction = 0b00000000
	paramHeaderUnrecognizedActionStopAndReport paramHeaderUnrecognizedAction = 0b01000000
	paramHeaderUnrecognizedActionSkip          paramHeaderUnrecognizedAction = 0b10000000
	paramHeaderUnrecognizedActionSkipAndReport paramHeaderUnrecognizedAction = 0b11000000
)

// SCTP parameter header errors.
var (
	ErrParamHeaderTooShort              = errors.New("param header too short")
	ErrParamHeaderSelfReportedLengthBig = errors.New("param self reported length is longer than actual length")
	ErrParamHeaderSelfReportedLengthSml = errors.New("param self reported length is shorter than header length")
)

func (p *paramHeader) marshal() ([]byte, error) {
	paramLengthPlusHeader := paramHeaderLength + len(p.raw)

	rawParam := make([]byte, paramLengthPlusHeader)
	binary.BigEndian.PutUint16(rawParam[0:], uint16(p.typ))
	binary.BigEndian.PutUint16(rawParam[2:], uint16(paramLengthPlusHeader)) //nolint:gosec // G115
	copy(rawParam[paramHeaderLength:], p.raw)

	return rawParam, nil
}

func (p *paramHeader) unmarshal(raw []byte) error {
	if len(raw) < paramHeaderLength {
		return ErrParamHeaderTooShort
	}

	paramLengthPlusHeader := binary.BigEndian.Uint16(raw[2:])
	if int(paramLengthPlusHeader) < paramHeaderLength {
		return fmt.Errorf(
			"%w: param self reported length (%d) shorter than header length (%d)",
			ErrParamHeaderSelfReportedLengthSml, int(paramLengthPlusHeader), paramHeaderLength,
		)
	}
	if len(raw) < int(paramLengthPlusHeader) {
		return fmt.Errorf(
			"%w: param length (%d) shorter than its self reported length (%d)",
			ErrParamHeaderSelfReportedLengthBig, len(raw), int(paramLengthPlusHeader),
		)
	}

	typ, err := parseParamType(raw)
	if err != nil {
		return err
	}
	p.typ = typ
	p.unrecognizedAction = paramHeaderUnrecognizedAction(raw[0]) & paramHeaderUnrecognizedActionMask
	p.raw = raw[paramHeaderLength:paramLengthPlusHeader]
	p.len = int(paramLengthPlusHeader)

	return nil
}

func (p *paramHeader) length() int {
	return p.len
}

// String makes paramHeader printable.
func (p paramHeader) String() string {
	return fmt.Sprintf("%s (%d): %s", p.typ, p.len, p.raw)
}
