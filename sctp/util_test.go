// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package sctp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerialNumberArithmetic32(t *testing.T) {
	const div = int32(16)

	t.Run("less than", func(t *testing.T) {
		for i := int32(0); i < div; i++ {
			s1 := (uint32(1) << 31) / uint32(div) * uint32(i)
			s2 := s1 + 1
			assert.Truef(t, sna32LT(s1, s2), "s1 < s2 should be true: s1=0x%x s2=0x%x", s1, s2)
			assert.Falsef(t, sna32LT(s2, s1), "s2 < s1 should be false: s1=0x%x s2=0x%x", s1, s2)

			// wrap around the top of the space
			s2 = s1 + (uint32(1) << 30)
			assert.Truef(t, sna32LT(s1, s2), "s1 < s2 should be true: s1=0x%x s2=0x%x", s1, s2)
		}

		assert.True(t, sna32LT(0xffffffff, 0x00000000))
		assert.False(t, sna32LT(0x00000000, 0xffffffff))
	})

	t.Run("greater than or equal", func(t *testing.T) {
		assert.True(t, sna32GT(0x00000000, 0xffffffff))
		assert.False(t, sna32GT(0xffffffff, 0x00000000))
		assert.True(t, sna32GTE(0x00000000, 0xffffffff))
		assert.True(t, sna32GTE(0x12345678, 0x12345678))
		assert.True(t, sna32LTE(0x12345678, 0x12345678))
	})
}

func TestSerialNumberArithmetic16(t *testing.T) {
	assert.True(t, sna16LT(0xffff, 0x0000))
	assert.False(t, sna16LT(0x0000, 0xffff))
	assert.True(t, sna16GT(0x0000, 0xffff))
	assert.True(t, sna16LTE(0x0101, 0x0101))
	assert.True(t, sna16LT(0x0100, 0x0101))
}

func TestGetPadding(t *testing.T) {
	assert.Equal(t, 0, getPadding(0))
	assert.Equal(t, 3, getPadding(1))
	assert.Equal(t, 2, getPadding(2))
	assert.Equal(t, 1, getPadding(3))
	assert.Equal(t, 0, getPadding(4))
}
