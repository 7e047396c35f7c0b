// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import "fmt"

// errorCauseUnrecognizedChunkType is returned when the receiver does not
// understand a chunk and its upper bits indicate that an ERROR should be
// reported (RFC 4960 section 3.3.10.6).
type errorCauseUnrecognizedChunkType struct {
	errorCauseHeader
	unrecognizedChunk []byte
}

func (e *errorCauseUnrecognizedChunkType) marshal() ([]byte, error) {
	e.code = unrecognizedChunkType
	e.errorCauseHeader.raw = e.unrecognizedChunk

	return e.errorCauseHeader.marshal()
}

func (e *errorCauseUnrecognizedChunkType) unmarshal(raw []byte) error {
	if err := e.errorCauseHeader.unmarshal(raw); err != nil {
		return err
	}
	e.unrecognizedChunk = e.errorCauseHeader.raw

	return nil
}

// String makes errorCauseUnrecognizedChunkType printable.
func (e *errorCauseUnrecognizedChunkType) String() string {
	return fmt.Sprintf("%s: %s", e.errorCauseHeader.String(), e.unrecognizedChunk)
}
