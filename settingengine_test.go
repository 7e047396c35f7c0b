// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

import (
	"testing"
	"time"

	"github.com/amberlink/rtcnet/ice"
	"github.com/stretchr/testify/require"
)

func TestSetEphemeralUDPPortRange(t *testing.T) {
	settingEngine := SettingEngine{}

	require.Zero(t, settingEngine.ephemeralUDP.PortMin)
	require.Zero(t, settingEngine.ephemeralUDP.PortMax)

	require.NoError(t, settingEngine.SetEphemeralUDPPortRange(3000, 4000))
	require.Equal(t, uint16(3000), settingEngine.ephemeralUDP.PortMin)
	require.Equal(t, uint16(4000), settingEngine.ephemeralUDP.PortMax)

	// Invalid range, max must not be smaller than min.
	require.ErrorIs(t, settingEngine.SetEphemeralUDPPortRange(4000, 3000), ice.ErrPort)
}

func TestSetICETimeouts(t *testing.T) {
	settingEngine := SettingEngine{}

	require.Nil(t, settingEngine.timeout.ICEDisconnectedTimeout)
	require.Nil(t, settingEngine.timeout.ICEFailedTimeout)
	require.Nil(t, settingEngine.timeout.ICEKeepaliveInterval)

	settingEngine.SetICETimeouts(time.Second, 2*time.Second, 3*time.Second)
	require.Equal(t, time.Second, *settingEngine.timeout.ICEDisconnectedTimeout)
	require.Equal(t, 2*time.Second, *settingEngine.timeout.ICEFailedTimeout)
	require.Equal(t, 3*time.Second, *settingEngine.timeout.ICEKeepaliveInterval)
}

func TestSetAnsweringDTLSRole(t *testing.T) {
	settingEngine := SettingEngine{}

	require.ErrorIs(t, settingEngine.SetAnsweringDTLSRole(DTLSRoleAuto), errSettingEngineSetAnsweringDTLSRole)
	require.NoError(t, settingEngine.SetAnsweringDTLSRole(DTLSRoleServer))
	require.Equal(t, DTLSRoleServer, settingEngine.dtls.answeringRole)
}

func TestSetICECredentials(t *testing.T) {
	settingEngine := SettingEngine{}

	settingEngine.SetICECredentials("myUFrag", "myPassword")
	require.Equal(t, "myUFrag", settingEngine.candidates.UsernameFragment)
	require.Equal(t, "myPassword", settingEngine.candidates.Password)
}
