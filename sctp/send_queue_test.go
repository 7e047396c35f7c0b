// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	noFragment = iota
	fragBegin
	fragMiddle
	fragEnd
)

func makeDataChunk(tsn uint32, unordered bool, frag int) *chunkPayloadData {
	var begin, end bool
	switch frag {
	case noFragment:
		begin = true
		end = true
	case fragBegin:
		begin = true
	case fragEnd:
		end = true
	}

	return &chunkPayloadData{
		tsn:               tsn,
		unordered:         unordered,
		beginningFragment: begin,
		endingFragment:    end,
		userData:          make([]byte, 10),
	}
}

func TestSendQueue(t *testing.T) {
	t.Run("push and pop", func(t *testing.T) {
		q := newSendQueue()

		for i := uint32(0); i < 3; i++ {
			q.push(makeDataChunk(i, false, noFragment))
		}
		assert.Equal(t, 30, q.getNumBytes())
		assert.Equal(t, 3, q.size())

		for i := uint32(0); i < 3; i++ {
			c := q.peek()
			require.NotNil(t, c)
			assert.Equal(t, i, c.tsn)
			require.NoError(t, q.pop(c))
		}
		assert.Equal(t, 0, q.getNumBytes())
		assert.Equal(t, 0, q.size())
	})

	t.Run("unordered chunks take priority", func(t *testing.T) {
		q := newSendQueue()
		q.push(makeDataChunk(0, false, noFragment))
		q.push(makeDataChunk(1, true, noFragment))

		c := q.peek()
		require.NotNil(t, c)
		assert.True(t, c.unordered, "unordered chunk should be peeked first")
		require.NoError(t, q.pop(c))

		c = q.peek()
		require.NotNil(t, c)
		assert.False(t, c.unordered)
		require.NoError(t, q.pop(c))
	})

	t.Run("fragments of a message are not interleaved", func(t *testing.T) {
		q := newSendQueue()
		// an ordered fragmented message, then an unordered one
		q.push(makeDataChunk(0, false, fragBegin))
		q.push(makeDataChunk(1, false, fragMiddle))
		q.push(makeDataChunk(2, false, fragEnd))
		q.push(makeDataChunk(3, true, noFragment))

		// popping the ordered beginning fragment locks the selection onto
		// the ordered sub-queue until its ending fragment is popped
		c := q.peek()
		require.NoError(t, q.pop(c))
		assert.Equal(t, uint32(3), c.tsn, "unordered wins before a selection starts")

		for i := uint32(0); i < 3; i++ {
			c = q.peek()
			require.NotNil(t, c)
			assert.Equal(t, i, c.tsn)
			require.NoError(t, q.pop(c))
		}
	})

	t.Run("selection stays on one sub-queue", func(t *testing.T) {
		q := newSendQueue()
		q.push(makeDataChunk(0, false, fragBegin))
		q.push(makeDataChunk(1, false, fragEnd))

		c := q.peek()
		require.NoError(t, q.pop(c))
		assert.Equal(t, uint32(0), c.tsn)

		// mid-message, an unordered chunk arrives; the ordered selection
		// must still drain first
		q.push(makeDataChunk(2, true, noFragment))

		c = q.peek()
		require.NoError(t, q.pop(c))
		assert.Equal(t, uint32(1), c.tsn)

		c = q.peek()
		require.NoError(t, q.pop(c))
		assert.Equal(t, uint32(2), c.tsn)
	})

	t.Run("mis-popped chunks are rejected", func(t *testing.T) {
		q := newSendQueue()
		q.push(makeDataChunk(0, false, noFragment))
		q.push(makeDataChunk(1, false, noFragment))

		assert.ErrorIs(t, q.pop(makeDataChunk(9, false, noFragment)), ErrUnexpectedQState)

		// start an unordered selection, then pop the wrong chunk
		q2 := newSendQueue()
		first := makeDataChunk(0, true, fragBegin)
		q2.push(first)
		q2.push(makeDataChunk(1, true, fragEnd))
		require.NoError(t, q2.pop(first))
		assert.ErrorIs(t, q2.pop(makeDataChunk(9, true, fragEnd)), ErrUnexpectedChunkPoppedUnordered)

		q3 := newSendQueue()
		first = makeDataChunk(0, false, fragBegin)
		q3.push(first)
		q3.push(makeDataChunk(1, false, fragEnd))
		require.NoError(t, q3.pop(first))
		assert.ErrorIs(t, q3.pop(makeDataChunk(9, false, fragEnd)), ErrUnexpectedChunkPoppedOrdered)
	})
}
