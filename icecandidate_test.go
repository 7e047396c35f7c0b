// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

import (
	"testing"

	"github.com/amberlink/rtcnet/ice"
	"github.com/stretchr/testify/require"
)

func TestICECandidateConversionHost(t *testing.T) {
	candidate := ICECandidate{
		Foundation: "foundation",
		Priority:   128,
		Address:    "1.0.0.1",
		Protocol:   ICEProtocolUDP,
		Port:       1234,
		Typ:        ICECandidateTypeHost,
		Component:  1,
	}

	iceCandidate, err := candidate.toICE()
	require.NoError(t, err)
	require.Equal(t, ice.CandidateTypeHost, iceCandidate.Type())
	require.Equal(t, "1.0.0.1", iceCandidate.Address())
	require.Equal(t, 1234, iceCandidate.Port())

	back, err := newICECandidateFromICE(iceCandidate)
	require.NoError(t, err)
	require.Equal(t, candidate, back)
}

func TestICECandidateConversionSrflx(t *testing.T) {
	candidate := ICECandidate{
		Foundation:     "foundation",
		Priority:       128,
		Address:        "1.0.0.1",
		Protocol:       ICEProtocolUDP,
		Port:           1234,
		Typ:            ICECandidateTypeSrflx,
		Component:      1,
		RelatedAddress: "10.0.0.1",
		RelatedPort:    4321,
	}

	iceCandidate, err := candidate.toICE()
	require.NoError(t, err)
	require.Equal(t, ice.CandidateTypeServerReflexive, iceCandidate.Type())
	require.NotNil(t, iceCandidate.RelatedAddress())
	require.Equal(t, "10.0.0.1", iceCandidate.RelatedAddress().Address)

	back, err := newICECandidateFromICE(iceCandidate)
	require.NoError(t, err)
	require.Equal(t, candidate, back)
}

func TestICECandidateConversionUnknownType(t *testing.T) {
	candidate := ICECandidate{Typ: ICECandidateType(Unknown)}
	_, err := candidate.toICE()
	require.ErrorIs(t, err, errICECandidateTypeUnknown)
}

func TestICECandidateTypeStrings(t *testing.T) {
	for _, test := range []struct {
		typ      ICECandidateType
		expected string
	}{
		{ICECandidateTypeHost, "host"},
		{ICECandidateTypeSrflx, "srflx"},
		{ICECandidateTypePrflx, "prflx"},
		{ICECandidateTypeRelay, "relay"},
	} {
		require.Equal(t, test.expected, test.typ.String())

		parsed, err := NewICECandidateType(test.expected)
		require.NoError(t, err)
		require.Equal(t, test.typ, parsed)
	}

	_, err := NewICECandidateType("bogus")
	require.ErrorIs(t, err, errICECandidateTypeUnknown)
}
