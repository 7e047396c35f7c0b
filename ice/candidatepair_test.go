// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package ice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func hostCandidate(t *testing.T) Candidate {
	t.Helper()
	return mustCandidateHost(t, &CandidateHostConfig{
		Network:   "udp",
		Address:   "10.0.0.1",
		Port:      9000,
		Component: ComponentRTP,
	})
}

func srflxCandidate(t *testing.T) Candidate {
	t.Helper()
	return mustCandidateServerReflexive(t, &CandidateServerReflexiveConfig{
		Network:   "udp",
		Address:   "1.2.3.4",
		Port:      9000,
		Component: ComponentRTP,
	})
}

func relayCandidate(t *testing.T) Candidate {
	t.Helper()
	return mustCandidateRelay(t, &CandidateRelayConfig{
		Network:   "udp",
		Address:   "5.6.7.8",
		Port:      9000,
		Component: ComponentRTP,
	})
}

func TestCandidatePairPriority(t *testing.T) {
	for _, test := range []struct {
		Pair             *CandidatePair
		WantPriority     uint64
	}{
		{
			Pair:         newCandidatePair(hostCandidate(t), hostCandidate(t), false),
			WantPriority: 9151314440652587007,
		},
		{
			Pair:         newCandidatePair(hostCandidate(t), hostCandidate(t), true),
			WantPriority: 9151314440652587007,
		},
		{
			Pair:         newCandidatePair(hostCandidate(t), srflxCandidate(t), true),
			WantPriority: 7277816996102668288,
		},
		{
			Pair:         newCandidatePair(hostCandidate(t), srflxCandidate(t), false),
			WantPriority: 7277816996102668287,
		},
		{
			Pair:         newCandidatePair(hostCandidate(t), relayCandidate(t), true),
			WantPriority: 72057593987596288,
		},
		{
			Pair:         newCandidatePair(hostCandidate(t), relayCandidate(t), false),
			WantPriority: 72057593987596287,
		},
	} {
		require.Equal(t, test.WantPriority, test.Pair.Priority(), "pair: %s", test.Pair)
	}
}

func TestCandidatePairEquality(t *testing.T) {
	pairA := newCandidatePair(hostCandidate(t), srflxCandidate(t), true)
	pairB := newCandidatePair(hostCandidate(t), srflxCandidate(t), false)

	require.True(t, pairA.Equal(pairB))
	require.False(t, pairA.Equal(newCandidatePair(hostCandidate(t), relayCandidate(t), true)))

	var nilPair *CandidatePair
	require.True(t, nilPair.Equal(nil))
	require.False(t, nilPair.Equal(pairA))
	require.Equal(t, "", nilPair.String())
}

func TestCandidatePairStateString(t *testing.T) {
	for state, want := range map[CandidatePairState]string{
		CandidatePairStateWaiting:    "waiting",
		CandidatePairStateInProgress: "in-progress",
		CandidatePairStateFailed:     "failed",
		CandidatePairStateSucceeded:  "succeeded",
	} {
		require.Equal(t, want, state.String())
	}
}
