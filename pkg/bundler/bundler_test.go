package bundler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/forgeapi"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/statemachine"
)

type fakeVCS struct {
	diffs   map[string][]string // "base..head" -> changed file paths
	content map[string]string   // "ref:path" -> text
	commits map[string]int      // "base..head" -> commit count; defaults to 0
}

func (f *fakeVCS) DiffNameOnly(ctx context.Context, base, head string) ([]string, error) {
	return f.diffs[base+".."+head], nil
}

func (f *fakeVCS) ShowFile(ctx context.Context, ref, path string) (string, error) {
	return f.content[ref+":"+path], nil
}

func (f *fakeVCS) CommitsAhead(ctx context.Context, base, head string) (int, error) {
	return f.commits[base+".."+head], nil
}

func TestConflictReportOneOverlappingFileScoresSixty(t *testing.T) {
	// spec.md §8 scenario 6: two eligible branches, one overlapping file,
	// compatibility score computed at 60 — bundling must fall back to one
	// PR per branch rather than a consolidated PR.
	vcs := &fakeVCS{
		diffs: map[string][]string{
			"main..branchA": {"shared.go"},
			"main..branchB": {"shared.go"},
		},
		content: map[string]string{
			"main:shared.go":    "line1\nline2\nline3\n",
			"branchA:shared.go": "line1\nlineA\nline3\n",
			"branchB:shared.go": "line1\nlineB\nline3\n",
		},
	}

	report, err := BuildConflictReport(context.Background(), vcs, "main", []string{"branchA", "branchB"})
	require.NoError(t, err)
	assert.Equal(t, 60, report.CompatibilityScore)
	assert.False(t, report.BundleSafe())
	assert.ElementsMatch(t, []string{"shared.go"}, report.OverlappingFiles())
}

func TestConflictReportLightOverlapStaysBundleSafe(t *testing.T) {
	vcs := &fakeVCS{
		diffs: map[string][]string{
			"main..branchA": {"big.go"},
			"main..branchB": {"big.go"},
		},
		content: map[string]string{
			"main:big.go": "l1\nl2\nl3\nl4\nl5\nl6\nl7\nl8\nl9\nl10\n",
			// branchA changes lines 2-6; branchB changes only line 2 (the one they share)
			"branchA:big.go": "l1\nA2\nA3\nA4\nA5\nA6\nl7\nl8\nl9\nl10\n",
			"branchB:big.go": "l1\nB2\nl3\nl4\nl5\nl6\nl7\nl8\nl9\nl10\n",
		},
	}

	report, err := BuildConflictReport(context.Background(), vcs, "main", []string{"branchA", "branchB"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, report.CompatibilityScore, model.BundleSafeThreshold)
	assert.True(t, report.BundleSafe())
}

func seedReadyToMerge(gw *forgeapi.MemoryGateway, key int, title, agentID string, updatedAt time.Time) string {
	branch := model.BranchName(agentID, key, title)
	gw.SeedItem(&model.WorkItem{
		Key: key, Title: title, Open: true, UpdatedAt: updatedAt,
		Labels: model.NewLabelSet(string(model.LabelRouteReadyToMerge), agentID),
	})
	gw.SeedBranch(branch, "sha-"+branch)
	return branch
}

func TestRunFallsBackOnHeavyOverlap(t *testing.T) {
	ctx := context.Background()
	gw := forgeapi.NewMemoryGateway()
	gw.SeedBranch("main", "sha-main")

	branchA := seedReadyToMerge(gw, 1, "Fix A", "agent001", time.Unix(100, 0))
	branchB := seedReadyToMerge(gw, 2, "Fix B", "agent002", time.Unix(200, 0))

	vcs := &fakeVCS{
		diffs: map[string][]string{
			"main.." + branchA: {"shared.go"},
			"main.." + branchB: {"shared.go"},
		},
		content: map[string]string{
			"main:shared.go":           "line1\nline2\nline3\n",
			branchA + ":shared.go": "line1\nlineA\nline3\n",
			branchB + ":shared.go": "line1\nlineB\nline3\n",
		},
	}

	sm := statemachine.New(gw, nil)
	b := New(gw, sm, vcs, nil, t.TempDir())

	result, err := b.Run(ctx, Options{BaseBranch: "main", Force: true, Now: time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.Nil(t, result.Consolidated)
	assert.Len(t, result.Fallback, 2)
	assert.Equal(t, 60, result.Report.CompatibilityScore)

	// both items transitioned out of ready_to_merge once bundled
	item1, _ := gw.GetItem(ctx, 1)
	item2, _ := gw.GetItem(ctx, 2)
	assert.False(t, item1.ReadyToMerge())
	assert.False(t, item2.ReadyToMerge())
}

func TestRunSkipsWhenNoCandidates(t *testing.T) {
	ctx := context.Background()
	gw := forgeapi.NewMemoryGateway()
	gw.SeedBranch("main", "sha-main")
	sm := statemachine.New(gw, nil)
	vcs := &fakeVCS{diffs: map[string][]string{}, content: map[string]string{}}
	b := New(gw, sm, vcs, nil, t.TempDir())

	result, err := b.Run(ctx, Options{BaseBranch: "main", Force: true, Now: time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.True(t, result.SkippedEmpty)
}

func TestRunWithoutForceOutsideDepartureWindowIsNoOp(t *testing.T) {
	ctx := context.Background()
	gw := forgeapi.NewMemoryGateway()
	sm := statemachine.New(gw, nil)
	vcs := &fakeVCS{}
	b := New(gw, sm, vcs, nil, t.TempDir())

	result, err := b.Run(ctx, Options{BaseBranch: "main", Now: time.Date(2024, 1, 1, 14, 4, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Nil(t, result.Consolidated)
	assert.Empty(t, result.Fallback)
}
