// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package ice

import (
	"testing"

	"github.com/pion/stun/v3"
	"github.com/stretchr/testify/require"
)

func TestControlled_GetFrom(t *testing.T) {
	m := new(stun.Message)
	var c AttrControlled
	require.ErrorIs(t, c.GetFrom(m), stun.ErrAttributeNotFound)

	require.NoError(t, m.Build(stun.BindingRequest, &c))

	m1 := new(stun.Message)
	var c1 AttrControlled
	require.NoError(t, m1.Build(stun.BindingRequest, AttrControlled(4321)))
	require.NoError(t, c1.GetFrom(m1))
	require.Equal(t, AttrControlled(4321), c1)
}

func TestControlling_GetFrom(t *testing.T) {
	m := new(stun.Message)
	var c AttrControlling
	require.ErrorIs(t, c.GetFrom(m), stun.ErrAttributeNotFound)

	m1 := new(stun.Message)
	var c1 AttrControlling
	require.NoError(t, m1.Build(stun.BindingRequest, AttrControlling(4321)))
	require.NoError(t, c1.GetFrom(m1))
	require.Equal(t, AttrControlling(4321), c1)
}

func TestControl_GetFrom(t *testing.T) {
	t.Run("Blank", func(t *testing.T) {
		m := new(stun.Message)
		var c AttrControl
		require.ErrorIs(t, c.GetFrom(m), stun.ErrAttributeNotFound)
	})
	t.Run("Controlling", func(t *testing.T) {
		m := new(stun.Message)
		require.NoError(t, m.Build(stun.BindingRequest, AttrControl{
			Role:       RoleControlling,
			Tiebreaker: 4321,
		}))

		var c AttrControl
		require.NoError(t, c.GetFrom(m))
		require.Equal(t, RoleControlling, c.Role)
		require.Equal(t, uint64(4321), c.Tiebreaker)
	})
	t.Run("Controlled", func(t *testing.T) {
		m := new(stun.Message)
		require.NoError(t, m.Build(stun.BindingRequest, AttrControl{
			Role:       RoleControlled,
			Tiebreaker: 1234,
		}))

		var c AttrControl
		require.NoError(t, c.GetFrom(m))
		require.Equal(t, RoleControlled, c.Role)
		require.Equal(t, uint64(1234), c.Tiebreaker)
	})
}

func TestPriority_GetFrom(t *testing.T) {
	m := new(stun.Message)
	var p PriorityAttr
	require.ErrorIs(t, p.GetFrom(m), stun.ErrAttributeNotFound)

	m1 := new(stun.Message)
	var p1 PriorityAttr
	require.NoError(t, m1.Build(stun.BindingRequest, PriorityAttr(1234)))
	require.NoError(t, p1.GetFrom(m1))
	require.Equal(t, PriorityAttr(1234), p1)
}

func TestUseCandidateAttr(t *testing.T) {
	m := new(stun.Message)
	require.False(t, UseCandidate().IsSet(m))

	require.NoError(t, m.Build(stun.BindingRequest, UseCandidate()))
	require.True(t, UseCandidate().IsSet(m))
}
