// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package ice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustCandidateHost(t *testing.T, config *CandidateHostConfig) Candidate {
	t.Helper()
	c, err := NewCandidateHost(config)
	require.NoError(t, err)
	return c
}

func mustCandidateServerReflexive(t *testing.T, config *CandidateServerReflexiveConfig) Candidate {
	t.Helper()
	c, err := NewCandidateServerReflexive(config)
	require.NoError(t, err)
	return c
}

func mustCandidateRelay(t *testing.T, config *CandidateRelayConfig) Candidate {
	t.Helper()
	c, err := NewCandidateRelay(config)
	require.NoError(t, err)
	return c
}

func TestCandidatePriority(t *testing.T) {
	testCases := []struct {
		name             string
		candidate        Candidate
		expectedPriority uint32
	}{
		{
			name: "Host UDP",
			candidate: mustCandidateHost(t, &CandidateHostConfig{
				Network:   "udp",
				Address:   "192.168.1.1",
				Port:      19216,
				Component: ComponentRTP,
			}),
			expectedPriority: 2130706431,
		},
		{
			name: "ServerReflexive UDP",
			candidate: mustCandidateServerReflexive(t, &CandidateServerReflexiveConfig{
				Network:   "udp",
				Address:   "180.8.81.1",
				Port:      19216,
				Component: ComponentRTP,
			}),
			expectedPriority: 1694498815,
		},
		{
			name: "Relay UDP",
			candidate: mustCandidateRelay(t, &CandidateRelayConfig{
				Network:   "udp",
				Address:   "1.2.3.4",
				Port:      12340,
				Component: ComponentRTP,
			}),
			expectedPriority: 16777215,
		},
	}

	for _, testCase := range testCases {
		require.Equal(t, testCase.expectedPriority, testCase.candidate.Priority(), "Test case: %s", testCase.name)
	}
}

func TestCandidateFoundation(t *testing.T) {
	// Same type, address and protocol agree on the foundation
	require.Equal(t,
		mustCandidateHost(t, &CandidateHostConfig{
			Network: "udp",
			Address: "10.0.0.1",
			Port:    2340,
		}).Foundation(),
		mustCandidateHost(t, &CandidateHostConfig{
			Network: "udp",
			Address: "10.0.0.1",
			Port:    2340,
		}).Foundation())

	// Different Address
	require.NotEqual(t,
		mustCandidateHost(t, &CandidateHostConfig{
			Network: "udp",
			Address: "10.0.0.1",
			Port:    2340,
		}).Foundation(),
		mustCandidateHost(t, &CandidateHostConfig{
			Network: "udp",
			Address: "10.0.0.2",
			Port:    2340,
		}).Foundation())

	// Different Type
	require.NotEqual(t,
		mustCandidateHost(t, &CandidateHostConfig{
			Network: "udp",
			Address: "10.0.0.1",
			Port:    2340,
		}).Foundation(),
		mustCandidateServerReflexive(t, &CandidateServerReflexiveConfig{
			Network: "udp",
			Address: "10.0.0.1",
			Port:    2340,
		}).Foundation())

	// Port has no effect
	require.Equal(t,
		mustCandidateHost(t, &CandidateHostConfig{
			Network: "udp",
			Address: "10.0.0.1",
			Port:    2340,
		}).Foundation(),
		mustCandidateHost(t, &CandidateHostConfig{
			Network: "udp",
			Address: "10.0.0.1",
			Port:    2350,
		}).Foundation())
}

func TestCandidateMarshal(t *testing.T) {
	testCases := []struct {
		candidate Candidate
		marshaled string
	}{
		{
			mustCandidateHost(t, &CandidateHostConfig{
				Network:    "udp",
				Address:    "192.168.1.1",
				Port:       53987,
				Component:  ComponentRTP,
				Foundation: "1299692247",
			}),
			"1299692247 1 udp 2130706431 192.168.1.1 53987 typ host",
		},
		{
			mustCandidateServerReflexive(t, &CandidateServerReflexiveConfig{
				Network:    "udp",
				Address:    "191.228.238.68",
				Port:       53991,
				Component:  ComponentRTP,
				Foundation: "647372371",
				RelAddr:    "192.168.1.1",
				RelPort:    53991,
			}),
			"647372371 1 udp 1694498815 191.228.238.68 53991 typ srflx raddr 192.168.1.1 rport 53991",
		},
		{
			mustCandidateRelay(t, &CandidateRelayConfig{
				Network:    "udp",
				Address:    "50.0.0.1",
				Port:       5000,
				Component:  ComponentRTP,
				Foundation: "848194626",
				RelAddr:    "192.168.0.1",
				RelPort:    5001,
			}),
			"848194626 1 udp 16777215 50.0.0.1 5000 typ relay raddr 192.168.0.1 rport 5001",
		},
	}

	for _, testCase := range testCases {
		require.Equal(t, testCase.marshaled, testCase.candidate.Marshal())

		parsed, err := UnmarshalCandidate(testCase.marshaled)
		require.NoError(t, err)
		require.True(t, testCase.candidate.Equal(parsed), "%s != %s", testCase.candidate, parsed)
	}
}

func TestCandidateMarshalFailures(t *testing.T) {
	for _, raw := range []string{
		"",
		"1938809241",                                              // too few fields
		"1986380506 99999999 udp 2122063615 10.0.75.1 53634 typ host", // component out of range
		"1986380506 1 udp 99999999999 10.0.75.1 53634 typ host",       // priority out of range
		"1986380506 1 udp 2122063615 10.0.75.1 99999999 typ host",     // port out of range
		"4207374051 1 udp 1685790463 191.228.238.68 53991 typ srflx raddr", // missing related values
	} {
		_, err := UnmarshalCandidate(raw)
		require.Error(t, err, "expected error for %q", raw)
	}

	_, err := UnmarshalCandidate("1986380506 1 udp 2122063615 10.0.75.1 53634 typ bogus")
	require.ErrorIs(t, err, ErrUnknownCandidateTyp)
}
