// Package router implements the Router & Assigner (C3): it filters
// routable items, selects agents under capacity and priority policy, and
// drives the State Machine to realise assignments. The Router itself
// produces only metrics and proposals — committing them is the State
// Machine's job.
package router

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/forgeapi"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/metrics"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/registry"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/statemachine"
)

// Router drives one routing pass at a time; spec §5 disallows concurrent
// passes in the same process, enforced here by a simple non-reentrant
// guard rather than a mutex held across the whole pass (so a caller that
// accidentally re-enters gets an explicit error, not a silent deadlock).
type Router struct {
	gw      forgeapi.Gateway
	sm      *statemachine.Machine
	metrics metrics.Surface
	agents  *registry.BaseRegistry[*model.Agent]

	inPass chan struct{} // 1-buffered semaphore
}

// New builds a Router over the given agent registry (populated by the
// Agent Lifecycle component). metrics may be nil.
func New(gw forgeapi.Gateway, sm *statemachine.Machine, agents *registry.BaseRegistry[*model.Agent], m metrics.Surface) *Router {
	if m == nil {
		m = metrics.NoOp()
	}
	r := &Router{gw: gw, sm: sm, metrics: m, agents: agents, inPass: make(chan struct{}, 1)}
	r.inPass <- struct{}{}
	return r
}

// PassResult summarizes one routing pass.
type PassResult struct {
	Proposals []model.AssignmentProposal
	Evaluated int
	Skipped   map[int]string // item key -> reason (informational, not errors)
}

// Run executes one routing pass capped at maxAgents new assignments. It
// reads candidate items through the Gateway, decides proposals, and
// commits each one via the State Machine before returning.
func (r *Router) Run(ctx context.Context, maxAgents int, defaultBranchSHA string) (*PassResult, error) {
	select {
	case <-r.inPass:
		defer func() { r.inPass <- struct{}{} }()
	default:
		return nil, errAlreadyRunning
	}

	start := time.Now()

	items, err := r.fetchCandidates(ctx)
	if err != nil {
		return nil, err
	}

	proposals, skipped := r.selectProposals(items, maxAgents)

	// Idempotency (spec §4.3): a proposal whose branch already exists on
	// the forge for this (agent, item) pair is treated as already
	// committed, so a re-run over the same forge state never asks the
	// State Machine to duplicate labels or overwrite an assignee. The
	// branch may exist without the agent label yet being confirmed (a
	// prior pass's create_branch step succeeded but a later step didn't) —
	// Assign itself is idempotent against that case, so it is still
	// called; this check only tracks which proposals were already done.
	existingBranches, err := r.gw.ListBranches(ctx)
	if err != nil {
		return nil, err
	}
	branchExists := make(map[string]bool, len(existingBranches))
	for _, b := range existingBranches {
		branchExists[b.Name] = true
	}

	for _, p := range proposals {
		if err := r.sm.Assign(ctx, p, defaultBranchSHA); err != nil {
			return nil, err
		}
		if branchExists[p.BranchName] {
			skipped[p.ItemKey] = "branch already existed; proposal already committed"
		}
		if agent, ok := r.agents.Get(p.AgentID); ok {
			_ = agent.AssignItem(p.ItemKey)
		}
	}

	r.metrics.RecordRoutingPass(metrics.RoutingOutcome{
		DurationSeconds: time.Since(start).Seconds(),
		ItemsEvaluated:  len(items),
		AgentsAvailable: r.countAvailable(),
		ProposalsMade:   len(proposals),
	})
	r.metrics.RecordDecision("router", map[string]any{"proposals": len(proposals)})

	return &PassResult{Proposals: proposals, Evaluated: len(items), Skipped: skipped}, nil
}

// fetchCandidates fans out reads across the routing labels concurrently and
// joins on the first error, deduplicating items that carry more than one
// routing label.
func (r *Router) fetchCandidates(ctx context.Context) ([]*model.WorkItem, error) {
	labels := []model.Label{model.LabelRouteReady, model.LabelRouteUnblocker, model.LabelRouteReadyToMerge}
	results := make([][]*model.WorkItem, len(labels))

	g, gctx := errgroup.WithContext(ctx)
	for i, label := range labels {
		i, label := i, label
		g.Go(func() error {
			items, err := r.gw.ListItemsByLabel(gctx, label)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[int]*model.WorkItem)
	for _, items := range results {
		for _, it := range items {
			seen[it.Key] = it
		}
	}

	out := make([]*model.WorkItem, 0, len(seen))
	for _, it := range seen {
		out = append(out, it)
	}
	return out, nil
}

// selectProposals filters to AssignableToAgent items, orders them by
// priority descending then key ascending, and walks Available agents in
// ascending id order, giving each at most one new assignment per pass.
func (r *Router) selectProposals(items []*model.WorkItem, maxAgents int) ([]model.AssignmentProposal, map[int]string) {
	skipped := make(map[int]string)

	var candidates []*model.WorkItem
	for _, it := range items {
		if it.AssignableToAgent() {
			candidates = append(candidates, it)
		} else if it.Labels.HasAgentLabel() {
			skipped[it.Key] = "already owned"
		} else if it.Labels.Has(model.LabelRouteHumanOnly) {
			skipped[it.Key] = "human-only"
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		pi, pj := candidates[i].Labels.Priority(), candidates[j].Labels.Priority()
		if pi != pj {
			return pi > pj
		}
		return candidates[i].Key < candidates[j].Key
	})

	availableAgents := r.availableAgentsSorted()
	if len(availableAgents) == 0 {
		return nil, skipped
	}

	assignedAgent := make(map[string]bool)
	assignedItem := make(map[int]bool)
	var proposals []model.AssignmentProposal

	for _, item := range candidates {
		if len(proposals) >= maxAgents {
			break
		}
		for _, agent := range availableAgents {
			if assignedAgent[agent.ID] || agent.AtCapacity() {
				continue
			}
			if assignedItem[item.Key] {
				continue
			}
			proposals = append(proposals, model.NewAssignmentProposal(agent.ID, item))
			assignedAgent[agent.ID] = true
			assignedItem[item.Key] = true
			break
		}
	}

	return proposals, skipped
}

func (r *Router) availableAgentsSorted() []*model.Agent {
	all := r.agents.List()
	var available []*model.Agent
	for _, a := range all {
		if a.Snapshot().State == model.AgentAvailable && !a.AtCapacity() {
			available = append(available, a)
		}
	}
	sort.Slice(available, func(i, j int) bool { return available[i].ID < available[j].ID })
	return available
}

func (r *Router) countAvailable() int {
	return len(r.availableAgentsSorted())
}

var errAlreadyRunning = routerError("router: a pass is already running in this process")

type routerError string

func (e routerError) Error() string { return string(e) }
