package forgeapi

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
)

// MemoryGateway is a stub in-memory Gateway implementation, used by tests
// for the Router, Bundler, and Continuity Manager so they can be exercised
// without a network call (spec §9: "stub in-memory Gateway for tests").
// It implements the same capability interface and the same classified
// error taxonomy as GitHubGateway, but with no rate limit or cache.
type MemoryGateway struct {
	mu sync.Mutex

	items       map[int]*model.WorkItem
	labels      map[model.Label]struct{}
	branches    map[string]BranchRef
	nextPRNum   int
	pullRequests []PullRequest
	dispatched  []string
	runs        map[string]*WorkflowRun
}

// NewMemoryGateway builds an empty stub: no items, no branches, and no
// labels defined in the repository.
func NewMemoryGateway() *MemoryGateway {
	g := &MemoryGateway{
		items:    make(map[int]*model.WorkItem),
		labels:   make(map[model.Label]struct{}),
		branches: make(map[string]BranchRef),
		runs:     make(map[string]*WorkflowRun),
		nextPRNum: 1,
	}
	return g
}

// SeedItem inserts or replaces a work item, for test setup.
func (g *MemoryGateway) SeedItem(item *model.WorkItem) {
	g.mu.Lock()
	defer g.mu.Unlock()
	clone := *item
	clone.Labels = item.Labels.Clone()
	g.items[item.Key] = &clone
	for l := range clone.Labels {
		g.labels[l] = struct{}{}
	}
}

// SeedBranch registers a branch as already existing, for idempotency tests.
func (g *MemoryGateway) SeedBranch(name, sha string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.branches[name] = BranchRef{Name: name, SHA: sha}
}

func (g *MemoryGateway) ListItemsByLabel(ctx context.Context, label model.Label) ([]*model.WorkItem, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []*model.WorkItem
	for _, item := range g.items {
		if item.Labels.Has(label) {
			out = append(out, cloneItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (g *MemoryGateway) GetItem(ctx context.Context, key int) (*model.WorkItem, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	item, ok := g.items[key]
	if !ok {
		return nil, &Error{Kind: NotFound, Message: fmt.Sprintf("item %d not found", key)}
	}
	return cloneItem(item), nil
}

func (g *MemoryGateway) EditLabels(ctx context.Context, key int, add, remove []model.Label) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	item, ok := g.items[key]
	if !ok {
		return &Error{Kind: NotFound, Message: fmt.Sprintf("item %d not found", key)}
	}
	for _, l := range add {
		item.Labels.Add(l)
		g.labels[l] = struct{}{}
	}
	for _, l := range remove {
		item.Labels.Remove(l)
	}
	return nil
}

func (g *MemoryGateway) EditAssignee(ctx context.Context, key int, assignee string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	item, ok := g.items[key]
	if !ok {
		return &Error{Kind: NotFound, Message: fmt.Sprintf("item %d not found", key)}
	}
	item.Assignee = assignee
	return nil
}

func (g *MemoryGateway) ListLabels(ctx context.Context) ([]model.Label, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]model.Label, 0, len(g.labels))
	for l := range g.labels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (g *MemoryGateway) CreateLabel(ctx context.Context, label model.Label, color, description string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.labels[label] = struct{}{}
	return nil
}

func (g *MemoryGateway) ListBranches(ctx context.Context) ([]BranchRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]BranchRef, 0, len(g.branches))
	for _, b := range g.branches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (g *MemoryGateway) CreateBranch(ctx context.Context, name, fromSHA string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.branches[name]; exists {
		return nil // idempotent: branch already exists
	}
	g.branches[name] = BranchRef{Name: name, SHA: fromSHA}
	return nil
}

func (g *MemoryGateway) CreatePullRequest(ctx context.Context, spec PullRequestSpec) (*PullRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pr := PullRequest{Number: g.nextPRNum, URL: fmt.Sprintf("https://example.invalid/pull/%d", g.nextPRNum)}
	g.nextPRNum++
	g.pullRequests = append(g.pullRequests, pr)
	return &pr, nil
}

func (g *MemoryGateway) DispatchWorkflow(ctx context.Context, filename string, inputs map[string]string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dispatched = append(g.dispatched, filename)
	g.runs[filename] = &WorkflowRun{ID: int64(len(g.dispatched)), Status: "completed", Conclusion: "success"}
	return nil
}

func (g *MemoryGateway) WaitForRun(ctx context.Context, workflowFilename string, since time.Time) (*WorkflowRun, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	run, ok := g.runs[workflowFilename]
	if !ok {
		return nil, &Error{Kind: NotFound, Message: "no run observed for " + workflowFilename}
	}
	return run, nil
}

// PullRequests returns every PR created so far, for test assertions.
func (g *MemoryGateway) PullRequests() []PullRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]PullRequest, len(g.pullRequests))
	copy(out, g.pullRequests)
	return out
}

func cloneItem(item *model.WorkItem) *model.WorkItem {
	clone := *item
	clone.Labels = item.Labels.Clone()
	return &clone
}
