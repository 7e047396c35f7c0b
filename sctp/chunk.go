// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

type chunk interface {
	unmarshal(raw []byte) error
	marshal() ([]byte, error)
	check() (bool, error)

	valueLength() int
}
