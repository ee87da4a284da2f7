package agentlifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/forgeapi"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/registry"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/statemachine"
)

func newLifecycle(gw *forgeapi.MemoryGateway) *Lifecycle {
	reg := registry.NewBaseRegistry[*model.Agent]()
	sm := statemachine.New(gw, nil)
	return New(reg, gw, sm)
}

func TestRegisterAndStatus(t *testing.T) {
	l := newLifecycle(forgeapi.NewMemoryGateway())
	require.NoError(t, l.Register("agent001", 2))

	snap, ok := l.Status("agent001")
	require.True(t, ok)
	assert.Equal(t, model.AgentAvailable, snap.State)
	assert.Equal(t, 2, snap.MaxCapacity)
}

func TestDiagnoseDetectsDivergence(t *testing.T) {
	ctx := context.Background()
	gw := forgeapi.NewMemoryGateway()
	gw.SeedItem(&model.WorkItem{Key: 1, Title: "t", Open: true, Labels: model.NewLabelSet("agent009")})

	l := newLifecycle(gw)
	require.NoError(t, l.Register("agent001", 2))
	a, _ := l.agents.Get("agent001")
	require.NoError(t, a.AssignItem(1))

	result, err := l.Diagnose(ctx, "agent001")
	require.NoError(t, err)
	assert.False(t, result.Consistent)
	assert.Len(t, result.Divergences, 1)
}

func TestForceResetClearsOwnership(t *testing.T) {
	l := newLifecycle(forgeapi.NewMemoryGateway())
	require.NoError(t, l.Register("agent001", 2))
	a, _ := l.agents.Get("agent001")
	require.NoError(t, a.AssignItem(5))

	require.NoError(t, l.ForceReset("agent001"))
	snap, _ := l.Status("agent001")
	assert.Empty(t, snap.OwnedKeys)
	assert.Equal(t, model.AgentAvailable, snap.State)
}

func TestValidateCreatesMissingLabels(t *testing.T) {
	ctx := context.Background()
	gw := forgeapi.NewMemoryGateway()
	l := newLifecycle(gw)

	created, err := l.Validate(ctx)
	require.NoError(t, err)
	assert.Contains(t, created, model.LabelRouteReady)

	// second run is idempotent
	created2, err := l.Validate(ctx)
	require.NoError(t, err)
	assert.Empty(t, created2)
}
