// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import "fmt"

// errorCauseProtocolViolation is the catch-all cause for peer behavior
// that has no more specific cause code (RFC 4960 section 3.3.10.13).
type errorCauseProtocolViolation struct {
	errorCauseHeader
	additionalInformation []byte
}

func (e *errorCauseProtocolViolation) marshal() ([]byte, error) {
	e.code = protocolViolation
	e.errorCauseHeader.raw = e.additionalInformation

	return e.errorCauseHeader.marshal()
}

func (e *errorCauseProtocolViolation) unmarshal(raw []byte) error {
	if err := e.errorCauseHeader.unmarshal(raw); err != nil {
		return err
	}
	e.additionalInformation = e.errorCauseHeader.raw

	return nil
}

// String makes errorCauseProtocolViolation printable.
func (e *errorCauseProtocolViolation) String() string {
	return fmt.Sprintf("%s: %s", e.errorCauseHeader.String(), e.additionalInformation)
}
