package router

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

func newTestRouter(gw *forgeapi.MemoryGateway, agents ...*model.Agent) *Router {
	reg := registry.NewBaseRegistry[*model.Agent]()
	for _, a := range agents {
		reg.Put(a.ID, a)
	}
	sm := statemachine.New(gw, nil)
	return New(gw, sm, reg, nil)
}

func TestItemWithAgentLabelNeverProposed(t *testing.T) {
	// spec.md §8 scenario 1 — item 95
	ctx := context.Background()
	gw := forgeapi.NewMemoryGateway()
	gw.SeedItem(&model.WorkItem{Key: 95, Title: "t", Open: true,
		Labels: model.NewLabelSet("route:unblocker", "route:priority-high", "agent001")})

	r := newTestRouter(gw, model.NewAgent("agent001", 3))
	result, err := r.Run(ctx, 3, "sha")
	require.NoError(t, err)

	for _, p := range result.Proposals {
		assert.NotEqual(t, 95, p.ItemKey)
	}
	assert.Empty(t, result.Proposals)
}

func TestPriorityRespectingSelection(t *testing.T) {
	// spec.md §8 scenario 2
	ctx := context.Background()
	gw := forgeapi.NewMemoryGateway()
	gw.SeedItem(&model.WorkItem{Key: 101, Title: "t", Open: true, Labels: model.NewLabelSet("route:ready", "route:priority-low")})
	gw.SeedItem(&model.WorkItem{Key: 102, Title: "t", Open: true, Labels: model.NewLabelSet("route:ready", "route:priority-high")})
	gw.SeedItem(&model.WorkItem{Key: 103, Title: "t", Open: true, Labels: model.NewLabelSet("route:ready")})

	r := newTestRouter(gw, model.NewAgent("agent001", 1))
	result, err := r.Run(ctx, 5, "sha")
	require.NoError(t, err)

	require.Len(t, result.Proposals, 1)
	assert.Equal(t, "agent001", result.Proposals[0].AgentID)
	assert.Equal(t, 102, result.Proposals[0].ItemKey)
}

func TestNoAvailableAgentsProducesNoProposals(t *testing.T) {
	ctx := context.Background()
	gw := forgeapi.NewMemoryGateway()
	gw.SeedItem(&model.WorkItem{Key: 1, Title: "t", Open: true, Labels: model.NewLabelSet("route:ready")})

	r := newTestRouter(gw)
	result, err := r.Run(ctx, 5, "sha")
	require.NoError(t, err)
	assert.Empty(t, result.Proposals)
}

func TestEmptyRepositoryNoError(t *testing.T) {
	ctx := context.Background()
	gw := forgeapi.NewMemoryGateway()
	r := newTestRouter(gw, model.NewAgent("agent001", 1))

	result, err := r.Run(ctx, 5, "sha")
	require.NoError(t, err)
	assert.Empty(t, result.Proposals)
}

func TestRerunOverSameForgeStateProducesNoDuplicates(t *testing.T) {
	// spec §4.3 idempotency / testable property 9: a second pass over forge
	// state a first pass already fully committed must not re-propose, and
	// a pass over state left mid-commit (branch created, label not yet
	// confirmed) must not error or duplicate.
	ctx := context.Background()
	gw := forgeapi.NewMemoryGateway()
	gw.SeedItem(&model.WorkItem{Key: 1, Title: "t", Open: true, Labels: model.NewLabelSet("route:ready")})
	agent := model.NewAgent("agent001", 1)
	r := newTestRouter(gw, agent)

	result, err := r.Run(ctx, 5, "sha")
	require.NoError(t, err)
	require.Len(t, result.Proposals, 1)
	branch := result.Proposals[0].BranchName

	item, err := gw.GetItem(ctx, 1)
	require.NoError(t, err)
	assert.True(t, item.Labels.HasAgentLabel())

	// Second pass: the item is now owned, so it is no longer a candidate at
	// all — confirms a full re-run produces no further proposals.
	result2, err := r.Run(ctx, 5, "sha")
	require.NoError(t, err)
	assert.Empty(t, result2.Proposals)

	branches, err := gw.ListBranches(ctx)
	require.NoError(t, err)
	count := 0
	for _, b := range branches {
		if b.Name == branch {
			count++
		}
	}
	assert.Equal(t, 1, count, "branch must not be duplicated across passes")
}

func TestRunToleratesBranchLeftOverFromPartialFailure(t *testing.T) {
	// A prior pass's create_branch step succeeded but a later step (or the
	// label confirmation) didn't, leaving the item routable again with the
	// branch already on the forge. Re-proposing it must not error, and
	// must still end with the label/assignee applied.
	ctx := context.Background()
	gw := forgeapi.NewMemoryGateway()
	item := &model.WorkItem{Key: 7, Title: "t", Open: true, Labels: model.NewLabelSet("route:ready")}
	gw.SeedItem(item)
	gw.SeedBranch(model.BranchName("agent001", item.Key, item.Title), "stale-sha")

	r := newTestRouter(gw, model.NewAgent("agent001", 1))
	result, err := r.Run(ctx, 5, "sha")
	require.NoError(t, err)
	require.Len(t, result.Proposals, 1)
	assert.Equal(t, "branch already existed; proposal already committed", result.Skipped[7])

	reloaded, err := gw.GetItem(ctx, 7)
	require.NoError(t, err)
	assert.True(t, reloaded.Labels.HasAgentLabel())
	assert.Equal(t, "agent001", reloaded.Assignee)
}

func TestAtMostOneAssignmentPerAgentPerPass(t *testing.T) {
	ctx := context.Background()
	gw := forgeapi.NewMemoryGateway()
	gw.SeedItem(&model.WorkItem{Key: 1, Title: "a", Open: true, Labels: model.NewLabelSet("route:ready")})
	gw.SeedItem(&model.WorkItem{Key: 2, Title: "b", Open: true, Labels: model.NewLabelSet("route:ready")})

	r := newTestRouter(gw, model.NewAgent("agent001", 5))
	result, err := r.Run(ctx, 5, "sha")
	require.NoError(t, err)
	assert.Len(t, result.Proposals, 1, "one agent must receive at most one new assignment per pass")
}
