// SPDX-FileCopyrightText: 2025 The Amberlink Authors
// SPDX-License-Identifier: MIT

package ice

// Role describes the role an ice.Agent is playing in selecting the
// preferred candidate pair.
type Role int

const (
	// RoleControlling indicates the ICE agent that is responsible for
	// selecting the final choice of candidate pairs. In any session one
	// agent is always controlling, the other is the controlled agent.
	RoleControlling Role = iota + 1

	// RoleControlled indicates an ICE agent that waits for the controlling
	// agent to select the final choice of candidate pairs.
	RoleControlled
)

func (r Role) String() string {
	switch r {
	case RoleControlling:
		return "controlling"
	case RoleControlled:
		return "controlled"
	default:
		return ErrUnknownType.Error()
	}
}
