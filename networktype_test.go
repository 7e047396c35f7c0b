// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

import (
	"testing"

	"github.com/amberlink/rtcnet/ice"
	"github.com/stretchr/testify/require"
)

func TestNetworkTypeStrings(t *testing.T) {
	for _, test := range []struct {
		networkType NetworkType
		expected    string
	}{
		{NetworkTypeUDP4, "udp4"},
		{NetworkTypeUDP6, "udp6"},
	} {
		require.Equal(t, test.expected, test.networkType.String())

		parsed, err := NewNetworkType(test.expected)
		require.NoError(t, err)
		require.Equal(t, test.networkType, parsed)
	}

	_, err := NewNetworkType("tcp4")
	require.ErrorIs(t, err, errNetworkTypeUnknown)
}

func TestGetICENetworkType(t *testing.T) {
	iceNetworkType, err := getICENetworkType(NetworkTypeUDP4)
	require.NoError(t, err)
	require.Equal(t, ice.NetworkTypeUDP4, iceNetworkType)

	iceNetworkType, err = getICENetworkType(NetworkTypeUDP6)
	require.NoError(t, err)
	require.Equal(t, ice.NetworkTypeUDP6, iceNetworkType)

	_, err = getICENetworkType(NetworkType(Unknown))
	require.ErrorIs(t, err, errNetworkTypeUnknown)
}
