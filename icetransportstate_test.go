// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

import (
	"testing"

	"github.com/amberlink/rtcnet/ice"
	"github.com/stretchr/testify/require"
)

func TestICETransportStateString(t *testing.T) {
	for _, test := range []struct {
		state    ICETransportState
		expected string
	}{
		{ICETransportStateUnknown, unknownStr},
		{ICETransportStateNew, "new"},
		{ICETransportStateChecking, "checking"},
		{ICETransportStateConnected, "connected"},
		{ICETransportStateCompleted, "completed"},
		{ICETransportStateFailed, "failed"},
		{ICETransportStateDisconnected, "disconnected"},
		{ICETransportStateClosed, "closed"},
	} {
		require.Equal(t, test.expected, test.state.String())
	}
}

func TestICETransportStateRoundTrip(t *testing.T) {
	for _, state := range []ICETransportState{
		ICETransportStateNew,
		ICETransportStateChecking,
		ICETransportStateConnected,
		ICETransportStateCompleted,
		ICETransportStateFailed,
		ICETransportStateDisconnected,
		ICETransportStateClosed,
	} {
		require.Equal(t, state, newICETransportState(state.String()))
	}
	require.Equal(t, ICETransportStateUnknown, newICETransportState("bogus"))
}

func TestICETransportStateFromICE(t *testing.T) {
	for _, test := range []struct {
		iceState ice.ConnectionState
		expected ICETransportState
	}{
		{ice.ConnectionStateNew, ICETransportStateNew},
		{ice.ConnectionStateChecking, ICETransportStateChecking},
		{ice.ConnectionStateConnected, ICETransportStateConnected},
		{ice.ConnectionStateCompleted, ICETransportStateCompleted},
		{ice.ConnectionStateFailed, ICETransportStateFailed},
		{ice.ConnectionStateDisconnected, ICETransportStateDisconnected},
		{ice.ConnectionStateClosed, ICETransportStateClosed},
		{ice.ConnectionStateUnknown, ICETransportStateUnknown},
	} {
		require.Equal(t, test.expected, newICETransportStateFromICE(test.iceState))
	}
}
