package statemachine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/forgeapi"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
)

func seedRoutable(gw *forgeapi.MemoryGateway, key int) {
	gw.SeedItem(&model.WorkItem{Key: key, Title: "t", Open: true, Labels: model.NewLabelSet("route:ready")})
}

func TestAssignThenReleaseRoundTrip(t *testing.T) {
	ctx := context.Background()
	gw := forgeapi.NewMemoryGateway()
	seedRoutable(gw, 1)

	m := New(gw, nil)
	proposal := model.NewAssignmentProposal("agent001", &model.WorkItem{Key: 1, Title: "t"})

	require.NoError(t, m.Assign(ctx, proposal, "base-sha"))

	item, err := gw.GetItem(ctx, 1)
	require.NoError(t, err)
	assert.True(t, item.Labels.HasAgentLabel())
	assert.Equal(t, "agent001", item.Assignee)

	require.NoError(t, m.Release(ctx, 1, "agent001"))

	item, err = gw.GetItem(ctx, 1)
	require.NoError(t, err)
	assert.False(t, item.Labels.HasAgentLabel(), "release must return labels to pre-assign set (spec round-trip law)")
	assert.Equal(t, "", item.Assignee)
}

func TestCompleteThenBundled(t *testing.T) {
	ctx := context.Background()
	gw := forgeapi.NewMemoryGateway()
	seedRoutable(gw, 2)

	m := New(gw, nil)
	proposal := model.NewAssignmentProposal("agent002", &model.WorkItem{Key: 2, Title: "t"})
	require.NoError(t, m.Assign(ctx, proposal, "sha"))
	require.NoError(t, m.Complete(ctx, 2))

	item, err := gw.GetItem(ctx, 2)
	require.NoError(t, err)
	assert.True(t, item.Labels.Has(model.LabelRouteReadyToMerge))
	assert.True(t, item.Labels.HasAgentLabel(), "agent label retained until bundled")

	require.NoError(t, m.Bundled(ctx, 2, "agent002"))

	item, err = gw.GetItem(ctx, 2)
	require.NoError(t, err)
	assert.False(t, item.Labels.Has(model.LabelRouteReadyToMerge))
	assert.False(t, item.Labels.HasAgentLabel())
}

// erroringBranchGateway wraps a MemoryGateway but fails any CreateBranch
// call, simulating a forge that rejects re-creating a ref that already
// exists — used to prove Assign never calls CreateBranch for a branch its
// own pre-check already found on the forge.
type erroringBranchGateway struct {
	*forgeapi.MemoryGateway
}

func (g *erroringBranchGateway) CreateBranch(ctx context.Context, name, fromSHA string) error {
	return &forgeapi.Error{Kind: forgeapi.InvalidResponse, Message: "reference already exists"}
}

func TestAssignIsIdempotentWhenBranchAlreadyExists(t *testing.T) {
	// spec §4.3 idempotency: a retried Assign whose branch was created by a
	// prior partial attempt must not fail and must not strip the label or
	// assignee it just applied via a spurious compensate.
	ctx := context.Background()
	gw := forgeapi.NewMemoryGateway()
	seedRoutable(gw, 1)
	proposal := model.NewAssignmentProposal("agent001", &model.WorkItem{Key: 1, Title: "t"})
	gw.SeedBranch(proposal.BranchName, "base-sha")

	wrapped := &erroringBranchGateway{MemoryGateway: gw}
	m := New(wrapped, nil)

	require.NoError(t, m.Assign(ctx, proposal, "base-sha"))

	item, err := gw.GetItem(ctx, 1)
	require.NoError(t, err)
	assert.True(t, item.Labels.HasAgentLabel(), "label must survive, not be stripped by a spurious compensate")
	assert.Equal(t, "agent001", item.Assignee)
}

func TestCheckConsistencyDetectsDivergence(t *testing.T) {
	ctx := context.Background()
	gw := forgeapi.NewMemoryGateway()
	gw.SeedItem(&model.WorkItem{Key: 3, Title: "t", Open: true, Labels: model.NewLabelSet("agent009")})

	m := New(gw, nil)
	div, err := m.CheckConsistency(ctx, 3, "agent001")
	require.NoError(t, err)
	require.NotNil(t, div)
	assert.Equal(t, 3, div.ItemKey)
}

func TestCheckConsistencyNoDivergence(t *testing.T) {
	ctx := context.Background()
	gw := forgeapi.NewMemoryGateway()
	gw.SeedItem(&model.WorkItem{Key: 4, Title: "t", Open: true, Labels: model.NewLabelSet("agent001")})

	m := New(gw, nil)
	div, err := m.CheckConsistency(ctx, 4, "agent001")
	require.NoError(t, err)
	assert.Nil(t, div)
}
