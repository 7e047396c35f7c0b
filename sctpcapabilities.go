// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

// SCTPCapabilities indicates the capabilities of the SCTPTransport.
type SCTPCapabilities struct {
	MaxMessageSize uint32 `json:"maxMessageSize"`
}
