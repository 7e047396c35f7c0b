// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

// outstandingQueue tracks data chunks that have been committed to the wire
// but not yet cumulatively acknowledged. Chunks are keyed by TSN, with a
// parallel slice kept in serial-arithmetic order so the oldest chunk is
// always at the front.
type outstandingQueue struct {
	chunks map[uint32]*chunkPayloadData
	sorted []uint32
	nBytes int
}

func newOutstandingQueue() *outstandingQueue {
	return &outstandingQueue{
		chunks: map[uint32]*chunkPayloadData{},
	}
}

func (q *outstandingQueue) push(c *chunkPayloadData) {
	if _, ok := q.chunks[c.tsn]; ok {
		return
	}

	// Insertion uses serial number arithmetic so ordering stays correct
	// when TSNs wrap around 2^32.
	pos := len(q.sorted) - 1
	for ; pos >= 0; pos-- {
		if sna32LT(q.sorted[pos], c.tsn) {
			break
		}
	}
	q.sorted = append(q.sorted, 0)
	copy(q.sorted[pos+2:], q.sorted[pos+1:])
	q.sorted[pos+1] = c.tsn

	q.chunks[c.tsn] = c
	q.nBytes += len(c.userData)
}

// pop removes and returns the chunk with the given TSN only if it is the
// oldest outstanding chunk.
func (q *outstandingQueue) pop(tsn uint32) (*chunkPayloadData, bool) {
	if len(q.sorted) == 0 || q.sorted[0] != tsn {
		return nil, false
	}

	q.sorted = q.sorted[1:]
	c, ok := q.chunks[tsn]
	if !ok {
		return nil, false
	}
	delete(q.chunks, tsn)
	q.nBytes -= len(c.userData)

	return c, true
}

func (q *outstandingQueue) get(tsn uint32) (*chunkPayloadData, bool) {
	c, ok := q.chunks[tsn]

	return c, ok
}

// ack marks the chunk as selectively acknowledged and releases its payload.
// It returns the number of bytes released.
func (q *outstandingQueue) ack(tsn uint32) int {
	c, ok := q.chunks[tsn]
	if !ok {
		return 0
	}

	c.acked = true
	c.retransmit = false

	n := len(c.userData)
	q.nBytes -= n
	// The receiver has the payload now; keep only the bookkeeping fields
	// until the cumulative ack point passes this TSN.
	c.userData = nil

	return n
}

func (q *outstandingQueue) markAllForRetransmit() {
	for _, c := range q.chunks {
		if c.acked || c.abandoned() {
			continue
		}
		c.retransmit = true
	}
}

func (q *outstandingQueue) getNumBytes() int {
	return q.nBytes
}

func (q *outstandingQueue) size() int {
	return len(q.sorted)
}
