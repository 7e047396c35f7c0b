// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package rtcnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestICERoleStrings(t *testing.T) {
	for _, test := range []struct {
		role     ICERole
		expected string
	}{
		{ICERoleControlling, "controlling"},
		{ICERoleControlled, "controlled"},
	} {
		require.Equal(t, test.expected, test.role.String())
		require.Equal(t, test.role, newICERole(test.expected))
	}

	require.Equal(t, unknownStr, ICERole(Unknown).String())
	require.Equal(t, ICERole(Unknown), newICERole("bogus"))
}
