package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckpointIntegrityVerify(t *testing.T) {
	c := NewContinuityCheckpoint("agent001", AgentWorking, 42, "agent001/42-x", 3, time.Now(), ReasonPeriodicSave)
	assert.True(t, c.Verify())

	c.CommitsAhead = 99
	assert.False(t, c.Verify(), "mutating a field after hashing must invalidate it")
}

func TestCheckpointFreshness(t *testing.T) {
	now := time.Now()
	c := NewContinuityCheckpoint("agent001", AgentWorking, 1, "b", 0, now.Add(-25*time.Hour), ReasonPeriodicSave)
	assert.False(t, c.Fresh(now, DefaultFreshnessWindow))

	c2 := NewContinuityCheckpoint("agent001", AgentWorking, 1, "b", 0, now.Add(-1*time.Hour), ReasonPeriodicSave)
	assert.True(t, c2.Fresh(now, DefaultFreshnessWindow))
}
