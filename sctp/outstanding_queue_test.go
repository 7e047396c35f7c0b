// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeOutstandingChunk(tsn uint32, nBytes int) *chunkPayloadData {
	return &chunkPayloadData{
		tsn:               tsn,
		userData:          make([]byte, nBytes),
		beginningFragment: true,
		endingFragment:    true,
	}
}

func TestOutstandingQueue(t *testing.T) {
	t.Run("push and pop in order", func(t *testing.T) {
		q := newOutstandingQueue()
		assert.Equal(t, 0, q.getNumBytes())
		assert.Equal(t, 0, q.size())

		for i := uint32(0); i < 10; i++ {
			q.push(makeOutstandingChunk(i, 10))
		}
		assert.Equal(t, 100, q.getNumBytes())
		assert.Equal(t, 10, q.size())

		for i := uint32(0); i < 10; i++ {
			c, ok := q.pop(i)
			require.True(t, ok, "pop should succeed for tsn=%d", i)
			assert.Equal(t, i, c.tsn)
		}
		assert.Equal(t, 0, q.getNumBytes())
		assert.Equal(t, 0, q.size())
	})

	t.Run("duplicate push is ignored", func(t *testing.T) {
		q := newOutstandingQueue()
		q.push(makeOutstandingChunk(7, 10))
		q.push(makeOutstandingChunk(7, 10))
		assert.Equal(t, 1, q.size())
		assert.Equal(t, 10, q.getNumBytes())
	})

	t.Run("pop only removes the oldest", func(t *testing.T) {
		q := newOutstandingQueue()
		q.push(makeOutstandingChunk(1, 10))
		q.push(makeOutstandingChunk(2, 10))

		_, ok := q.pop(2)
		assert.False(t, ok, "popping a non-head TSN should fail")

		_, ok = q.pop(1)
		assert.True(t, ok)
		_, ok = q.pop(2)
		assert.True(t, ok)
	})

	t.Run("get", func(t *testing.T) {
		q := newOutstandingQueue()
		q.push(makeOutstandingChunk(3, 10))

		c, ok := q.get(3)
		require.True(t, ok)
		assert.Equal(t, uint32(3), c.tsn)

		_, ok = q.get(4)
		assert.False(t, ok)
	})

	t.Run("ack releases the payload", func(t *testing.T) {
		q := newOutstandingQueue()
		q.push(makeOutstandingChunk(1, 10))
		q.push(makeOutstandingChunk(2, 20))

		n := q.ack(2)
		assert.Equal(t, 20, n)
		assert.Equal(t, 10, q.getNumBytes())

		c, ok := q.get(2)
		require.True(t, ok)
		assert.True(t, c.acked)
		assert.Nil(t, c.userData)

		// acking an unknown TSN is a no-op
		assert.Equal(t, 0, q.ack(9))
	})

	t.Run("markAllForRetransmit skips acked and abandoned", func(t *testing.T) {
		q := newOutstandingQueue()
		q.push(makeOutstandingChunk(1, 10))
		q.push(makeOutstandingChunk(2, 10))
		q.push(makeOutstandingChunk(3, 10))

		q.ack(2)
		c3, _ := q.get(3)
		c3.setAllInflight()
		c3.setAbandoned(true)

		q.markAllForRetransmit()

		c1, _ := q.get(1)
		assert.True(t, c1.retransmit)
		c2, _ := q.get(2)
		assert.False(t, c2.retransmit)
		assert.False(t, c3.retransmit)
	})

	t.Run("keeps serial order across the TSN wrap", func(t *testing.T) {
		q := newOutstandingQueue()
		tsns := []uint32{0xFFFFFFFE, 0xFFFFFFFF, 0, 1}
		for _, tsn := range tsns {
			q.push(makeOutstandingChunk(tsn, 10))
		}
		assert.Equal(t, len(tsns), q.size())

		for _, tsn := range tsns {
			c, ok := q.pop(tsn)
			require.True(t, ok, "pop should succeed for tsn=%d", tsn)
			assert.Equal(t, tsn, c.tsn)
		}
		assert.Equal(t, 0, q.size())
	})
}
