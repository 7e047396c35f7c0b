// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package ice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExternalIPMapper_NewExternalIPMapper(t *testing.T) {
	// No IPs, should succeed and mapper should be nil
	m, err := newExternalIPMapper(CandidateTypeUnspecified, nil)
	require.NoError(t, err)
	require.Nil(t, m)

	m, err = newExternalIPMapper(CandidateTypeUnspecified, []string{})
	require.NoError(t, err)
	require.Nil(t, m)

	// Unspecified defaults to host
	m, err = newExternalIPMapper(CandidateTypeUnspecified, []string{"1.2.3.4"})
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, CandidateTypeHost, m.candidateType)

	m, err = newExternalIPMapper(CandidateTypeServerReflexive, []string{"1.2.3.4"})
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, CandidateTypeServerReflexive, m.candidateType)

	// Relay and prflx cannot be remapped
	_, err = newExternalIPMapper(CandidateTypeRelay, []string{"1.2.3.4"})
	require.ErrorIs(t, err, ErrUnsupportedNAT1To1IPCandidateType)

	_, err = newExternalIPMapper(CandidateTypePeerReflexive, []string{"1.2.3.4"})
	require.ErrorIs(t, err, ErrUnsupportedNAT1To1IPCandidateType)

	// Invalid strings
	for _, ips := range [][]string{
		{"bad.2.3.4"},
		{"1.2.3.4/10.0.0.bad"},
		{"1.2.3.4/10.0.0.1/8.8.8.8"},
		{"1.2.3.4", "5.6.7.8"},             // two sole IPv4
		{"1.2.3.4/10.0.0.1", "1.2.3.4"},    // sole after mapping
		{"1.2.3.4", "5.6.7.8/10.0.0.1"},    // mapping after sole
		{"1.2.3.4/10.0.0.1", "5.6.7.8/10.0.0.1"}, // duplicate local IP
		{"1.2.3.4/fe80::1"},                // family mismatch
		{"fe80::1/10.0.0.1"},               // family mismatch
	} {
		_, err = newExternalIPMapper(CandidateTypeUnspecified, ips)
		require.ErrorIs(t, err, ErrInvalidNAT1To1IPMapping, "ips: %v", ips)
	}
}

func TestExternalIPMapper_FindExternalIP(t *testing.T) {
	t.Run("sole IP", func(t *testing.T) {
		m, err := newExternalIPMapper(CandidateTypeUnspecified, []string{"1.2.3.4"})
		require.NoError(t, err)

		extIP, err := m.findExternalIP("10.0.0.1")
		require.NoError(t, err)
		require.Equal(t, "1.2.3.4", extIP.String())

		extIP, err = m.findExternalIP("10.0.0.2")
		require.NoError(t, err)
		require.Equal(t, "1.2.3.4", extIP.String())
	})

	t.Run("explicit mapping", func(t *testing.T) {
		m, err := newExternalIPMapper(CandidateTypeUnspecified, []string{
			"1.2.3.4/10.0.0.1",
			"1.2.3.5/10.0.0.2",
		})
		require.NoError(t, err)

		extIP, err := m.findExternalIP("10.0.0.1")
		require.NoError(t, err)
		require.Equal(t, "1.2.3.4", extIP.String())

		extIP, err = m.findExternalIP("10.0.0.2")
		require.NoError(t, err)
		require.Equal(t, "1.2.3.5", extIP.String())

		_, err = m.findExternalIP("10.0.0.3")
		require.ErrorIs(t, err, ErrExternalMappedIPNotFound)
	})

	t.Run("invalid local IP", func(t *testing.T) {
		m, err := newExternalIPMapper(CandidateTypeUnspecified, []string{"1.2.3.4"})
		require.NoError(t, err)

		_, err = m.findExternalIP("not-an-ip")
		require.ErrorIs(t, err, ErrInvalidNAT1To1IPMapping)
	})

	t.Run("IPv6 sole IP", func(t *testing.T) {
		m, err := newExternalIPMapper(CandidateTypeUnspecified, []string{"2200::1"})
		require.NoError(t, err)

		extIP, err := m.findExternalIP("fe80::1")
		require.NoError(t, err)
		require.Equal(t, "2200::1", extIP.String())

		// no IPv4 mapping configured
		_, err = m.findExternalIP("10.0.0.1")
		require.ErrorIs(t, err, ErrExternalMappedIPNotFound)
	})
}
