// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import "sync"

// controlOutbox buffers non-DATA packets (handshake, SACK replies, reconfig
// responses, heartbeats) until the send loop drains them.
type controlOutbox struct {
	mu      sync.Mutex
	packets []*packet
}

func newControlOutbox() *controlOutbox {
	return &controlOutbox{}
}

func (o *controlOutbox) push(packets ...*packet) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.packets = append(o.packets, packets...)
}

func (o *controlOutbox) drain() []*packet {
	o.mu.Lock()
	defer o.mu.Unlock()
	packets := o.packets
	o.packets = nil

	return packets
}

func (o *controlOutbox) size() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.packets)
}
