// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"errors"
)

// chunkFIFO is a slice-backed FIFO of payload chunks.
type chunkFIFO struct {
	queue []*chunkPayloadData
}

func newChunkFIFO() *chunkFIFO {
	return &chunkFIFO{queue: []*chunkPayloadData{}}
}

func (q *chunkFIFO) push(c *chunkPayloadData) {
	q.queue = append(q.queue, c)
}

func (q *chunkFIFO) pop() *chunkPayloadData {
	if len(q.queue) == 0 {
		return nil
	}
	c := q.queue[0]
	q.queue = q.queue[1:]

	return c
}

func (q *chunkFIFO) at(i int) *chunkPayloadData {
	if i < 0 || i >= len(q.queue) {
		return nil
	}

	return q.queue[i]
}

func (q *chunkFIFO) size() int {
	return len(q.queue)
}

// Which sub-queue the current fragmented message is being drained from.
const (
	selectionNone int = iota
	selectionUnordered
	selectionOrdered
)

// sendQueue holds data chunks a stream has written but the association has
// not yet committed to the wire. Unordered chunks take priority, but once a
// fragmented message is started all of its fragments drain before the other
// sub-queue is considered, so fragments are never interleaved across
// messages.
type sendQueue struct {
	unordered *chunkFIFO
	ordered   *chunkFIFO
	nBytes    int
	selection int
}

// Errors returned by sendQueue consistency checks.
var (
	// ErrUnexpectedChunkPoppedUnordered is returned when a chunk other than
	// the head of the unordered sub-queue was popped.
	ErrUnexpectedChunkPoppedUnordered = errors.New("unexpected chunk popped (unordered)")

	// ErrUnexpectedChunkPoppedOrdered is returned when a chunk other than
	// the head of the ordered sub-queue was popped.
	ErrUnexpectedChunkPoppedOrdered = errors.New("unexpected chunk popped (ordered)")

	// ErrUnexpectedQState is returned when both sub-queues are empty while a
	// fragmented message is still being drained.
	ErrUnexpectedQState = errors.New("unexpected queue state (should not happen)")
)

func newSendQueue() *sendQueue {
	return &sendQueue{
		unordered: newChunkFIFO(),
		ordered:   newChunkFIFO(),
		selection: selectionNone,
	}
}

func (q *sendQueue) push(c *chunkPayloadData) {
	if c.unordered {
		q.unordered.push(c)
	} else {
		q.ordered.push(c)
	}
	q.nBytes += len(c.userData)
}

// peek returns the chunk the next pop must remove, without removing it.
func (q *sendQueue) peek() *chunkPayloadData {
	switch q.selection {
	case selectionUnordered:
		return q.unordered.at(0)
	case selectionOrdered:
		return q.ordered.at(0)
	}

	if c := q.unordered.at(0); c != nil {
		return c
	}

	return q.ordered.at(0)
}

// pop removes the given chunk, which must be the one peek returned. While a
// fragmented message is being drained, pops stay on the same sub-queue until
// the ending fragment goes out.
func (q *sendQueue) pop(c *chunkPayloadData) error { //nolint:cyclop
	switch q.selection {
	case selectionUnordered:
		popped := q.unordered.pop()
		if popped != c {
			return ErrUnexpectedChunkPoppedUnordered
		}
		if popped.endingFragment {
			q.selection = selectionNone
		}
	case selectionOrdered:
		popped := q.ordered.pop()
		if popped != c {
			return ErrUnexpectedChunkPoppedOrdered
		}
		if popped.endingFragment {
			q.selection = selectionNone
		}
	default:
		switch {
		case q.unordered.at(0) == c:
			q.unordered.pop()
			if !c.endingFragment {
				q.selection = selectionUnordered
			}
		case q.ordered.at(0) == c:
			q.ordered.pop()
			if !c.endingFragment {
				q.selection = selectionOrdered
			}
		default:
			return ErrUnexpectedQState
		}
	}

	q.nBytes -= len(c.userData)

	return nil
}

func (q *sendQueue) getNumBytes() int {
	return q.nBytes
}

func (q *sendQueue) size() int {
	return q.unordered.size() + q.ordered.size()
}
