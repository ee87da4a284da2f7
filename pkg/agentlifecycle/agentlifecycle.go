// Package agentlifecycle implements the Agent Lifecycle (C4): the
// in-process view of each agent's ownership and process status, capacity
// accounting, and diagnostic operations that always revalidate against the
// forge rather than trusting a possibly-stale local record.
package agentlifecycle

import (
	"context"
	"fmt"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/forgeapi"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/registry"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/statemachine"
)

// Lifecycle owns the agent registry and the diagnostics that compare it
// against forge reality.
type Lifecycle struct {
	agents *registry.BaseRegistry[*model.Agent]
	gw     forgeapi.Gateway
	sm     *statemachine.Machine
}

// New builds a Lifecycle over an existing (possibly empty) agent registry.
func New(agents *registry.BaseRegistry[*model.Agent], gw forgeapi.Gateway, sm *statemachine.Machine) *Lifecycle {
	return &Lifecycle{agents: agents, gw: gw, sm: sm}
}

// Register adds a new agent with the given maximum capacity, returning an error if
// the id is already present.
func (l *Lifecycle) Register(id string, maxCapacity int) error {
	return l.agents.Register(id, model.NewAgent(id, maxCapacity))
}

// Status returns the local snapshot for an agent.
func (l *Lifecycle) Status(id string) (model.AgentSnapshot, bool) {
	a, ok := l.agents.Get(id)
	if !ok {
		return model.AgentSnapshot{}, false
	}
	return a.Snapshot(), true
}

// DiagnoseResult reports what Diagnose found for one agent.
type DiagnoseResult struct {
	AgentID     string
	Consistent  bool
	Divergences []*statemachine.Divergence
}

// Diagnose rechecks every item the agent locally claims to own against the
// forge and reports divergence. It never mutates local or forge state.
func (l *Lifecycle) Diagnose(ctx context.Context, id string) (*DiagnoseResult, error) {
	a, ok := l.agents.Get(id)
	if !ok {
		return nil, fmt.Errorf("agentlifecycle: unknown agent %q", id)
	}

	result := &DiagnoseResult{AgentID: id, Consistent: true}
	for _, key := range a.Snapshot().OwnedKeys {
		div, err := l.sm.CheckConsistency(ctx, key, id)
		if err != nil {
			return nil, err
		}
		if div != nil {
			result.Consistent = false
			result.Divergences = append(result.Divergences, div)
		}
	}
	return result, nil
}

// ForceReset clears an agent's local ownership record without touching the
// forge — used when Diagnose has already shown the forge is the side to
// trust and the local record is simply wrong.
func (l *Lifecycle) ForceReset(id string) error {
	a, ok := l.agents.Get(id)
	if !ok {
		return fmt.Errorf("agentlifecycle: unknown agent %q", id)
	}
	for _, key := range a.Snapshot().OwnedKeys {
		a.ReleaseItem(key)
	}
	a.Unblock()
	return nil
}

// Validate checks that the closed label vocabulary exists on the forge,
// creating any labels that are missing (supplemental "doctor" diagnostic,
// recovered from original_source/src/cli/commands/doctor/github_labels.rs).
func (l *Lifecycle) Validate(ctx context.Context) ([]model.Label, error) {
	required := []model.Label{
		model.LabelRouteReady,
		model.LabelRouteUnblocker,
		model.LabelRouteReadyToMerge,
		model.LabelRouteReview,
		model.LabelRouteHumanOnly,
	}

	existing, err := l.gw.ListLabels(ctx)
	if err != nil {
		return nil, err
	}
	have := make(map[model.Label]struct{}, len(existing))
	for _, l := range existing {
		have[l] = struct{}{}
	}

	var created []model.Label
	for _, label := range required {
		if _, ok := have[label]; ok {
			continue
		}
		if err := l.gw.CreateLabel(ctx, label, "ededed", "managed by taskforge"); err != nil {
			return created, err
		}
		created = append(created, label)
	}
	return created, nil
}
