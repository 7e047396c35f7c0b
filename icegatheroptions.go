// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

// ICEGatherOptions provides options relating to the gathering of ICE
// candidates.
type ICEGatherOptions struct {
	ICEServers []ICEServer
}
