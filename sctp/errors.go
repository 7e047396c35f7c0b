// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"errors"
)

var (
	errNilNetConn       = errors.New("netConn must not be nil")
	errNilLoggerFactory = errors.New("loggerFactory must not be nil")

	// errInvalidRTOMax indicates that the RTO max was set to a negative value.
	errInvalidRTOMax = errors.New("RTO max must not be negative")
)
