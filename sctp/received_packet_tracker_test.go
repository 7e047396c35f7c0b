// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReceivedChunkTracker(t *testing.T) {
	t.Run("push and pop in order", func(t *testing.T) {
		q := newReceivedPacketTracker()
		assert.Equal(t, 0, q.size(), "should be empty")

		cumTSN := uint32(0)
		for tsn := uint32(1); tsn <= 10; tsn++ {
			assert.True(t, q.canPush(tsn, cumTSN))
			assert.True(t, q.push(tsn, cumTSN))
		}
		assert.Equal(t, 10, q.size(), "should hold 10 chunks")

		lastTSN, ok := q.getLastTSNReceived()
		assert.True(t, ok)
		assert.Equal(t, uint32(10), lastTSN)

		// contiguous from cumTSN+1, so no gaps
		gabs := q.getGapAckBlocks(cumTSN)
		assert.Len(t, gabs, 1)
		assert.Equal(t, uint16(1), gabs[0].start)
		assert.Equal(t, uint16(10), gabs[0].end)

		for tsn := uint32(1); tsn <= 10; tsn++ {
			assert.True(t, q.pop(tsn), "pop should succeed for tsn=%d", tsn)
		}
		assert.Equal(t, 0, q.size(), "should be empty")
	})

	t.Run("pop only the oldest", func(t *testing.T) {
		q := newReceivedPacketTracker()
		q.push(1, 0)
		q.push(2, 0)
		assert.False(t, q.pop(2), "must pop the oldest first")
		assert.True(t, q.pop(1))
		assert.True(t, q.pop(2))
	})

	t.Run("duplicates", func(t *testing.T) {
		q := newReceivedPacketTracker()
		assert.True(t, q.push(1, 0))
		assert.False(t, q.push(1, 0), "duplicate should be rejected")
		assert.False(t, q.canPush(1, 0))

		// older than the cumulative TSN is also a duplicate
		assert.False(t, q.push(7, 8))

		dups := q.popDuplicates()
		assert.Equal(t, []uint32{1, 7}, dups)
		assert.Empty(t, q.popDuplicates(), "duplicates should have been flushed")
	})

	t.Run("gap ack blocks", func(t *testing.T) {
		q := newReceivedPacketTracker()
		q.push(1, 0)
		q.push(2, 0)
		q.push(6, 0)
		q.push(7, 0)
		q.push(8, 0)

		gabs := q.getGapAckBlocks(0)
		assert.Len(t, gabs, 2)
		assert.Equal(t, uint16(1), gabs[0].start)
		assert.Equal(t, uint16(2), gabs[0].end)
		assert.Equal(t, uint16(6), gabs[1].start)
		assert.Equal(t, uint16(8), gabs[1].end)

		// filling the hole merges the ranges
		q.push(3, 0)
		q.push(4, 0)
		q.push(5, 0)
		gabs = q.getGapAckBlocks(0)
		assert.Len(t, gabs, 1)
		assert.Equal(t, uint16(1), gabs[0].start)
		assert.Equal(t, uint16(8), gabs[0].end)
	})

	t.Run("gap ack blocks string", func(t *testing.T) {
		q := newReceivedPacketTracker()
		q.push(2, 0)
		q.push(3, 0)
		q.push(7, 0)
		assert.Equal(t, "cumTSN=0,2-3,7-7", q.getGapAckBlocksString(0))
	})

	t.Run("last TSN received", func(t *testing.T) {
		q := newReceivedPacketTracker()
		_, ok := q.getLastTSNReceived()
		assert.False(t, ok, "empty tracker has no last TSN")

		q.push(3, 0)
		q.push(10, 0)
		lastTSN, ok := q.getLastTSNReceived()
		assert.True(t, ok)
		assert.Equal(t, uint32(10), lastTSN)
	})
}
