// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package srtp

type readStream interface {
	init(child streamSession, ssrc uint32) error

	Read(buf []byte) (int, error)
	GetSSRC() uint32
}
