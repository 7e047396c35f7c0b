// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReassemblyQueue(t *testing.T) { //nolint:maintidx,cyclop
	t.Run("ordered fragments", func(t *testing.T) {
		rq := newReassemblyQueue(0)

		orgPpi := PayloadTypeWebRTCBinary

		var chunks []*chunkPayloadData
		chunks = append(chunks, &chunkPayloadData{
			payloadType:          orgPpi,
			beginningFragment:    true,
			tsn:                  1,
			streamSequenceNumber: 0,
			userData:             []byte("ABC"),
		})
		chunks = append(chunks, &chunkPayloadData{
			payloadType:          orgPpi,
			endingFragment:       true,
			tsn:                  2,
			streamSequenceNumber: 0,
			userData:             []byte("DEFG"),
		})

		var complete bool
		for _, c := range chunks {
			complete = rq.push(c)
		}
		assert.True(t, complete, "chunk set should be complete")
		assert.Equal(t, 7, rq.getNumBytes(), "num bytes mismatch")
		assert.True(t, rq.isReadable(), "should be readable")

		buf := make([]byte, 16)
		n, ppi, err := rq.read(buf)
		require.NoError(t, err, "read should succeed")
		assert.Equal(t, 7, n, "should received 7 bytes")
		assert.Equal(t, orgPpi, ppi, "should have valid ppi")
		assert.Equal(t, "ABCDEFG", string(buf[:n]), "data should match")
		assert.Equal(t, 0, rq.getNumBytes(), "num bytes mismatch")
	})

	t.Run("ordered messages in the right order", func(t *testing.T) {
		rq := newReassemblyQueue(0)

		// push SSN 1 first
		rq.push(&chunkPayloadData{
			payloadType:          PayloadTypeWebRTCBinary,
			beginningFragment:    true,
			endingFragment:       true,
			tsn:                  2,
			streamSequenceNumber: 1,
			userData:             []byte("SECOND"),
		})

		// SSN 1 is not yet readable, SSN 0 hasn't arrived
		buf := make([]byte, 16)
		_, _, err := rq.read(buf)
		assert.ErrorIs(t, err, errTryAgain, "read should block on SSN 0")

		rq.push(&chunkPayloadData{
			payloadType:          PayloadTypeWebRTCBinary,
			beginningFragment:    true,
			endingFragment:       true,
			tsn:                  1,
			streamSequenceNumber: 0,
			userData:             []byte("FIRST"),
		})

		n, _, err := rq.read(buf)
		require.NoError(t, err)
		assert.Equal(t, "FIRST", string(buf[:n]))

		n, _, err = rq.read(buf)
		require.NoError(t, err)
		assert.Equal(t, "SECOND", string(buf[:n]))
	})

	t.Run("unordered fragments", func(t *testing.T) {
		rq := newReassemblyQueue(0)

		// push out of order; unordered chunks are keyed by TSN
		rq.push(&chunkPayloadData{
			payloadType:    PayloadTypeWebRTCBinary,
			unordered:      true,
			endingFragment: true,
			tsn:            12,
			userData:       []byte("DEF"),
		})
		complete := rq.push(&chunkPayloadData{
			payloadType:       PayloadTypeWebRTCBinary,
			unordered:         true,
			beginningFragment: true,
			tsn:               11,
			userData:          []byte("ABC"),
		})
		assert.True(t, complete, "chunk set should be complete")

		buf := make([]byte, 16)
		n, _, err := rq.read(buf)
		require.NoError(t, err)
		assert.Equal(t, "ABCDEF", string(buf[:n]))
	})

	t.Run("short buffer", func(t *testing.T) {
		rq := newReassemblyQueue(0)
		rq.push(&chunkPayloadData{
			payloadType:          PayloadTypeWebRTCBinary,
			beginningFragment:    true,
			endingFragment:       true,
			tsn:                  1,
			streamSequenceNumber: 0,
			userData:             []byte("0123456789"),
		})

		buf := make([]byte, 8)
		_, _, err := rq.read(buf)
		assert.ErrorIs(t, err, io.ErrShortBuffer, "should be io.ErrShortBuffer")
		assert.Equal(t, 0, rq.getNumBytes(), "bytes are dropped even on short buffer")
	})

	t.Run("forwardTSNForOrdered drops incomplete sets", func(t *testing.T) {
		rq := newReassemblyQueue(0)

		// incomplete message (missing the ending fragment) with SSN 0
		rq.push(&chunkPayloadData{
			payloadType:          PayloadTypeWebRTCBinary,
			beginningFragment:    true,
			tsn:                  1,
			streamSequenceNumber: 0,
			userData:             []byte("ABC"),
		})
		// complete message with SSN 1
		rq.push(&chunkPayloadData{
			payloadType:          PayloadTypeWebRTCBinary,
			beginningFragment:    true,
			endingFragment:       true,
			tsn:                  3,
			streamSequenceNumber: 1,
			userData:             []byte("DEF"),
		})

		assert.False(t, rq.isReadable(), "should not be readable yet")

		// the peer abandoned SSN 0
		rq.forwardTSNForOrdered(0)

		assert.True(t, rq.isReadable(), "SSN 1 should now be readable")

		buf := make([]byte, 16)
		n, _, err := rq.read(buf)
		require.NoError(t, err)
		assert.Equal(t, "DEF", string(buf[:n]))
		assert.Equal(t, 0, rq.getNumBytes(), "num bytes mismatch")
	})

	t.Run("forwardTSNForUnordered drops stale fragments", func(t *testing.T) {
		rq := newReassemblyQueue(0)

		// fragment of an unordered message that will never complete
		rq.push(&chunkPayloadData{
			payloadType:       PayloadTypeWebRTCBinary,
			unordered:         true,
			beginningFragment: true,
			tsn:               10,
			userData:          []byte("ABC"),
		})
		assert.Equal(t, 3, rq.getNumBytes(), "num bytes mismatch")

		rq.forwardTSNForUnordered(11)
		assert.Equal(t, 0, rq.getNumBytes(), "stale fragment should be dropped")
		assert.False(t, rq.isReadable(), "should not be readable")
	})

	t.Run("ignores chunks for other streams", func(t *testing.T) {
		rq := newReassemblyQueue(123)
		ok := rq.push(&chunkPayloadData{
			payloadType:          PayloadTypeWebRTCBinary,
			beginningFragment:    true,
			endingFragment:       true,
			tsn:                  1,
			streamIdentifier:     124,
			streamSequenceNumber: 0,
			userData:             []byte("ABC"),
		})
		assert.False(t, ok, "chunk for another stream should be rejected")
		assert.Equal(t, 0, rq.getNumBytes(), "num bytes mismatch")
	})
}
