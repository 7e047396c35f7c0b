// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

import (
	"testing"

	"github.com/amberlink/rtcnet/ice"
	"github.com/stretchr/testify/require"
)

func TestICEServerValidate(t *testing.T) {
	server := ICEServer{
		URLs:       []string{"turn:192.158.29.39?transport=udp"},
		Username:   "unittest",
		Credential: "placeholder",
	}

	urls, err := server.validate()
	require.NoError(t, err)
	require.Len(t, urls, 1)
	require.Equal(t, ice.SchemeTypeTURN, urls[0].Scheme)
	require.Equal(t, "unittest", urls[0].Username)
	require.Equal(t, "placeholder", urls[0].Password)
}

func TestICEServerValidateSTUN(t *testing.T) {
	server := ICEServer{URLs: []string{"stun:google.de?transport=udp"}}

	// STUN URLs with query arguments are rejected by the parser.
	_, err := server.validate()
	require.ErrorIs(t, err, ice.ErrSTUNQuery)

	server = ICEServer{URLs: []string{"stun:google.de"}}
	urls, err := server.validate()
	require.NoError(t, err)
	require.Len(t, urls, 1)
	require.Equal(t, ice.SchemeTypeSTUN, urls[0].Scheme)
}

func TestICEServerValidateErrors(t *testing.T) {
	for _, test := range []struct {
		server      ICEServer
		expectedErr error
	}{
		{
			server:      ICEServer{URLs: []string{"turn:192.158.29.39?transport=udp"}},
			expectedErr: ErrNoTurnCredentials,
		},
		{
			server: ICEServer{
				URLs:       []string{"turn:192.158.29.39?transport=udp"},
				Username:   "unittest",
				Credential: 12345,
			},
			expectedErr: ErrTurnCredentials,
		},
	} {
		_, err := test.server.validate()
		require.ErrorIs(t, err, test.expectedErr)
	}
}
