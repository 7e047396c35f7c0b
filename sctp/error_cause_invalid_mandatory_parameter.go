// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

// errorCauseInvalidMandatoryParameter is returned when one of the
// mandatory parameters of an INIT or INIT ACK chunk is set to an
// invalid value (RFC 4960 section 3.3.10.7).
type errorCauseInvalidMandatoryParameter struct {
	errorCauseHeader
}

func (e *errorCauseInvalidMandatoryParameter) marshal() ([]byte, error) {
	e.code = invalidMandatoryParameter

	return e.errorCauseHeader.marshal()
}

func (e *errorCauseInvalidMandatoryParameter) unmarshal(raw []byte) error {
	return e.errorCauseHeader.unmarshal(raw)
}

// String makes errorCauseInvalidMandatoryParameter printable.
func (e *errorCauseInvalidMandatoryParameter) String() string {
	return e.errorCauseHeader.String()
}
