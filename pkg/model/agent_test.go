package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentCapacityInvariant(t *testing.T) {
	a := NewAgent("agent001", 1)
	require.NoError(t, a.AssignItem(101))
	assert.True(t, a.AtCapacity())
	assert.Error(t, a.AssignItem(102), "must not exceed max capacity")
}

func TestAgentReleaseReturnsToAvailable(t *testing.T) {
	a := NewAgent("agent001", 2)
	require.NoError(t, a.AssignItem(1))
	a.ReleaseItem(1)
	assert.Equal(t, AgentAvailable, a.Snapshot().State)
}

func TestAgentBlockRecordsCause(t *testing.T) {
	a := NewAgent("agent001", 2)
	a.Block("memory ceiling exceeded")
	snap := a.Snapshot()
	assert.Equal(t, AgentBlocked, snap.State)
	assert.Equal(t, "memory ceiling exceeded", snap.BlockedCause)
}
