// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSCTPTransportStateString(t *testing.T) {
	for _, test := range []struct {
		state    SCTPTransportState
		expected string
	}{
		{SCTPTransportStateUnknown, unknownStr},
		{SCTPTransportStateConnecting, "connecting"},
		{SCTPTransportStateConnected, "connected"},
		{SCTPTransportStateClosed, "closed"},
	} {
		require.Equal(t, test.expected, test.state.String())
	}
}

func TestSCTPTransportStateRoundTrip(t *testing.T) {
	for _, state := range []SCTPTransportState{
		SCTPTransportStateConnecting,
		SCTPTransportStateConnected,
		SCTPTransportStateClosed,
	} {
		require.Equal(t, state, newSCTPTransportState(state.String()))
	}
	require.Equal(t, SCTPTransportStateUnknown, newSCTPTransportState("bogus"))
}
