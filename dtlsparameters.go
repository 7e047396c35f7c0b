// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

// DTLSParameters holds information relating to DTLS configuration.
type DTLSParameters struct {
	Role         DTLSRole          `json:"role"`
	Fingerprints []DTLSFingerprint `json:"fingerprints"`
}
