package forgeapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
)

func TestMemoryGatewayListAndEditLabels(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway()
	gw.SeedItem(&model.WorkItem{Key: 1, Title: "t", Open: true, Labels: model.NewLabelSet("route:ready")})

	items, err := gw.ListItemsByLabel(ctx, model.LabelRouteReady)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, gw.EditLabels(ctx, 1, []model.Label{model.AgentLabel("agent001")}, []model.Label{model.LabelRouteReady}))

	got, err := gw.GetItem(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.Labels.HasAgentLabel())
	assert.False(t, got.Labels.Has(model.LabelRouteReady))
}

func TestMemoryGatewayGetItemNotFound(t *testing.T) {
	gw := NewMemoryGateway()
	_, err := gw.GetItem(context.Background(), 999)
	require.Error(t, err)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, NotFound, fe.Kind)
}

func TestMemoryGatewayBranchCreateIdempotent(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway()
	require.NoError(t, gw.CreateBranch(ctx, "agent001/1-x", "sha1"))
	require.NoError(t, gw.CreateBranch(ctx, "agent001/1-x", "sha2"), "re-creating an existing branch must be idempotent")

	branches, err := gw.ListBranches(ctx)
	require.NoError(t, err)
	require.Len(t, branches, 1)
	assert.Equal(t, "sha1", branches[0].SHA)
}
