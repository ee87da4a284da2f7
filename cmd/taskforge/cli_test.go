package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/bundler"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/forgeapi"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/metrics"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/registry"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/router"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/statemachine"
)

func newTestContext(gw *forgeapi.MemoryGateway) *appContext {
	surface := metrics.NoOp()
	sm := statemachine.New(gw, surface)
	agents := registry.NewBaseRegistry[*model.Agent]()
	return &appContext{
		gw:      gw,
		sm:      sm,
		router:  router.New(gw, sm, agents, surface),
		bundler: bundler.New(gw, sm, nil, surface, ""),
		agents:  agents,
	}
}

func TestResolveDefaultBranchSHAPrefersMain(t *testing.T) {
	gw := forgeapi.NewMemoryGateway()
	gw.SeedBranch("feature/x", "sha-feature")
	gw.SeedBranch("main", "sha-main")
	app := newTestContext(gw)

	sha, err := resolveDefaultBranchSHA(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, "sha-main", sha)
}

func TestResolveDefaultBranchSHAFallsBackToFirstBranch(t *testing.T) {
	gw := forgeapi.NewMemoryGateway()
	gw.SeedBranch("trunk", "sha-trunk")
	app := newTestContext(gw)

	sha, err := resolveDefaultBranchSHA(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, "sha-trunk", sha)
}

func TestNextAssignableItemPicksHighestPriority(t *testing.T) {
	gw := forgeapi.NewMemoryGateway()
	gw.SeedItem(&model.WorkItem{Key: 1, Title: "low", Open: true, Labels: model.NewLabelSet("route:ready")})
	gw.SeedItem(&model.WorkItem{Key: 2, Title: "high", Open: true, Labels: model.NewLabelSet("route:ready", "route:priority-high")})
	app := newTestContext(gw)

	item, err := nextAssignableItem(context.Background(), app)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, 2, item.Key)
}

func TestNextAssignableItemSkipsOwnedAndHumanOnly(t *testing.T) {
	gw := forgeapi.NewMemoryGateway()
	gw.SeedItem(&model.WorkItem{Key: 1, Title: "owned", Open: true, Labels: model.NewLabelSet("route:ready", "agent001")})
	gw.SeedItem(&model.WorkItem{Key: 2, Title: "human", Open: true, Labels: model.NewLabelSet("route:human-only")})
	app := newTestContext(gw)

	item, err := nextAssignableItem(context.Background(), app)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestPopClaimsNextItemAndUpdatesForge(t *testing.T) {
	gw := forgeapi.NewMemoryGateway()
	gw.SeedItem(&model.WorkItem{Key: 1, Title: "x", Open: true, Labels: model.NewLabelSet("route:ready")})
	gw.SeedBranch("main", "sha-main")
	app := newTestContext(gw)
	ctx := context.Background()

	agentID := "agent001"
	agent := model.NewAgent(agentID, 1)
	app.agents.Put(agentID, agent)

	item, err := nextAssignableItem(ctx, app)
	require.NoError(t, err)
	require.NotNil(t, item)

	sha, err := resolveDefaultBranchSHA(ctx, app)
	require.NoError(t, err)

	proposal := model.NewAssignmentProposal(agentID, item)
	require.NoError(t, app.sm.Assign(ctx, proposal, sha))
	require.NoError(t, agent.AssignItem(item.Key))

	reloaded, err := app.gw.GetItem(ctx, 1)
	require.NoError(t, err)
	assert.True(t, reloaded.Labels.Has(model.AgentLabel(agentID)))
	assert.False(t, reloaded.AssignableToAgent(), "item should no longer be assignable once owned")
	assert.True(t, agent.OwnsItem(1))
}
