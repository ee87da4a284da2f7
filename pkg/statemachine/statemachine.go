// Package statemachine implements the Atomic State Machine (C2): the legal
// transitions on a WorkItem, each realised as a minimal sequence of Gateway
// calls with a best-effort compensating action on partial failure.
// Transitions on the same item key are serialised; transitions on
// different items proceed in parallel.
package statemachine

import (
	"context"
	"fmt"
	"sync"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/forgeapi"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/metrics"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
)

// Machine applies transitions against a Gateway, serialising per item key
// via a per-key mutex so two concurrent calls on the same item linearise.
type Machine struct {
	gw      forgeapi.Gateway
	metrics metrics.Surface

	keyLocks sync.Map // int -> *sync.Mutex
}

// New builds a Machine. metrics may be nil, in which case recordings are
// dropped (useful for tests that don't care about the metrics surface).
func New(gw forgeapi.Gateway, m metrics.Surface) *Machine {
	if m == nil {
		m = metrics.NoOp()
	}
	return &Machine{gw: gw, metrics: m}
}

func (m *Machine) lockFor(key int) *sync.Mutex {
	v, _ := m.keyLocks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// step is one Gateway call plus its compensating action, executed in order
// by runSteps; if a later step fails, earlier steps' compensations run in
// reverse.
type step struct {
	name     string
	do       func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

func (m *Machine) runSteps(ctx context.Context, itemKey int, transition string, steps []step) error {
	lock := m.lockFor(itemKey)
	lock.Lock()
	defer lock.Unlock()

	var completed []step
	for _, s := range steps {
		if err := s.do(ctx); err != nil {
			m.compensate(ctx, itemKey, transition, completed)
			return fmt.Errorf("statemachine: transition %s step %q failed: %w", transition, s.name, err)
		}
		completed = append(completed, s)
	}
	return nil
}

// compensate runs completed steps' compensations in reverse order,
// best-effort: a compensation failure is recorded but does not abort the
// rest of the rollback.
func (m *Machine) compensate(ctx context.Context, itemKey int, transition string, completed []step) {
	for i := len(completed) - 1; i >= 0; i-- {
		s := completed[i]
		if s.compensate == nil {
			continue
		}
		if err := s.compensate(ctx); err != nil {
			m.metrics.RecordBottleneck(metrics.BottleneckDecisionTime, metrics.SeverityHigh, map[string]any{
				"item":       itemKey,
				"transition": transition,
				"step":       s.name,
				"compensation_error": err.Error(),
			})
		}
	}
}

// Assign transitions a routable item to assigned: adds the agent label,
// sets the assignee, and creates the branch from the default branch's SHA.
func (m *Machine) Assign(ctx context.Context, proposal model.AssignmentProposal, defaultBranchSHA string) error {
	agentLabel := model.AgentLabel(proposal.AgentID)

	return m.runSteps(ctx, proposal.ItemKey, "assign", []step{
		{
			name: "add_agent_label",
			do: func(ctx context.Context) error {
				return m.gw.EditLabels(ctx, proposal.ItemKey, []model.Label{agentLabel}, nil)
			},
			compensate: func(ctx context.Context) error {
				return m.gw.EditLabels(ctx, proposal.ItemKey, nil, []model.Label{agentLabel})
			},
		},
		{
			name: "set_assignee",
			do: func(ctx context.Context) error {
				return m.gw.EditAssignee(ctx, proposal.ItemKey, proposal.AgentID)
			},
			compensate: func(ctx context.Context) error {
				return m.gw.EditAssignee(ctx, proposal.ItemKey, "")
			},
		},
		{
			name: "create_branch",
			do: func(ctx context.Context) error {
				// Idempotency (spec §4.3): a retried proposal may find its
				// branch already created by a prior partial attempt. That is
				// success, not failure — treating it as an error here would
				// trigger compensate and strip the label/assignee the
				// earlier steps of this very call just (re)applied.
				refs, err := m.gw.ListBranches(ctx)
				if err != nil {
					return err
				}
				for _, r := range refs {
					if r.Name == proposal.BranchName {
						return nil
					}
				}
				return m.gw.CreateBranch(ctx, proposal.BranchName, defaultBranchSHA)
			},
		},
	})
}

// Release reverses Assign: removes the agent label and clears the assignee.
// Assign's own rollback uses its per-step compensations, not this method.
func (m *Machine) Release(ctx context.Context, itemKey int, agentID string) error {
	agentLabel := model.AgentLabel(agentID)
	return m.runSteps(ctx, itemKey, "release", []step{
		{
			name: "remove_agent_label",
			do: func(ctx context.Context) error {
				return m.gw.EditLabels(ctx, itemKey, nil, []model.Label{agentLabel})
			},
		},
		{
			name: "clear_assignee",
			do: func(ctx context.Context) error {
				return m.gw.EditAssignee(ctx, itemKey, "")
			},
		},
	})
}

// Complete transitions working to completed: adds route:ready_to_merge and
// retains the agent label until the item is bundled.
func (m *Machine) Complete(ctx context.Context, itemKey int) error {
	return m.runSteps(ctx, itemKey, "complete", []step{
		{
			name: "add_ready_to_merge",
			do: func(ctx context.Context) error {
				return m.gw.EditLabels(ctx, itemKey, []model.Label{model.LabelRouteReadyToMerge}, nil)
			},
			compensate: func(ctx context.Context) error {
				return m.gw.EditLabels(ctx, itemKey, nil, []model.Label{model.LabelRouteReadyToMerge})
			},
		},
	})
}

// Bundled transitions completed to bundled: removes the agent label and
// route:ready_to_merge once the bundler has referenced the item from the
// integration PR.
func (m *Machine) Bundled(ctx context.Context, itemKey int, agentID string) error {
	agentLabel := model.AgentLabel(agentID)
	return m.runSteps(ctx, itemKey, "bundled", []step{
		{
			name: "remove_agent_and_ready_to_merge",
			do: func(ctx context.Context) error {
				return m.gw.EditLabels(ctx, itemKey, nil, []model.Label{agentLabel, model.LabelRouteReadyToMerge})
			},
		},
	})
}

// Divergence describes a consistency check failure between an item's forge
// labels and its locally-believed agent ownership.
type Divergence struct {
	ItemKey       int
	LocalAgentID  string
	ForgeAgentLabels []model.Label
}

// CheckConsistency rechecks an item's labels against the locally-believed
// owning agent and reports any divergence (spec §4.2's "side operation").
func (m *Machine) CheckConsistency(ctx context.Context, itemKey int, localAgentID string) (*Divergence, error) {
	item, err := m.gw.GetItem(ctx, itemKey)
	if err != nil {
		return nil, err
	}

	forgeLabels := item.Labels.AgentLabels()
	localLabel := ""
	if localAgentID != "" {
		localLabel = string(model.AgentLabel(localAgentID))
	}

	matches := len(forgeLabels) == 0 && localLabel == "" ||
		len(forgeLabels) == 1 && string(forgeLabels[0]) == localLabel

	if matches {
		return nil, nil
	}
	return &Divergence{ItemKey: itemKey, LocalAgentID: localAgentID, ForgeAgentLabels: forgeLabels}, nil
}
