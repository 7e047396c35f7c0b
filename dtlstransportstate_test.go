// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDTLSTransportStateString(t *testing.T) {
	for _, test := range []struct {
		state    DTLSTransportState
		expected string
	}{
		{DTLSTransportStateUnknown, unknownStr},
		{DTLSTransportStateNew, "new"},
		{DTLSTransportStateConnecting, "connecting"},
		{DTLSTransportStateConnected, "connected"},
		{DTLSTransportStateClosed, "closed"},
		{DTLSTransportStateFailed, "failed"},
	} {
		require.Equal(t, test.expected, test.state.String())
	}
}

func TestDTLSTransportStateRoundTrip(t *testing.T) {
	for _, state := range []DTLSTransportState{
		DTLSTransportStateNew,
		DTLSTransportStateConnecting,
		DTLSTransportStateConnected,
		DTLSTransportStateClosed,
		DTLSTransportStateFailed,
	} {
		require.Equal(t, state, newDTLSTransportState(state.String()))
	}
	require.Equal(t, DTLSTransportStateUnknown, newDTLSTransportState("bogus"))
}

func TestDTLSRoleString(t *testing.T) {
	for _, test := range []struct {
		role     DTLSRole
		expected string
	}{
		{DTLSRole(Unknown), unknownStr},
		{DTLSRoleAuto, "auto"},
		{DTLSRoleClient, "client"},
		{DTLSRoleServer, "server"},
	} {
		require.Equal(t, test.expected, test.role.String())
	}
}
