package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
)

// PopCmd claims the next assignable item directly for one named agent,
// rather than running a full multi-agent routing pass.
type PopCmd struct {
	Agent string `required:"" help:"Agent id claiming work."`
	Mine  bool   `help:"Report this agent's already-owned item instead of claiming a new one."`
}

func (c *PopCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := buildContext(cli)
	if err != nil {
		return err
	}

	agent, ok := app.agents.Get(c.Agent)
	if !ok {
		agent = model.NewAgent(c.Agent, app.cfg.Agents.MaxCapacityPerAgent)
		app.agents.Put(c.Agent, agent)
	}

	if c.Mine {
		return c.reportOwned(ctx, app, agent)
	}

	if agent.AtCapacity() {
		app.logger().Info("agent at capacity, nothing claimed", "agent", c.Agent)
		return nil
	}

	item, err := nextAssignableItem(ctx, app)
	if err != nil {
		return fmt.Errorf("find next item: %w", err)
	}
	if item == nil {
		app.logger().Info("no routable item available", "agent", c.Agent)
		return nil
	}

	defaultBranchSHA, err := resolveDefaultBranchSHA(ctx, app)
	if err != nil {
		return fmt.Errorf("resolve default branch: %w", err)
	}

	proposal := model.NewAssignmentProposal(c.Agent, item)
	if err := app.sm.Assign(ctx, proposal, defaultBranchSHA); err != nil {
		return fmt.Errorf("claim item %d: %w", item.Key, err)
	}
	_ = agent.AssignItem(item.Key)

	if err := app.saveRoster(); err != nil {
		return fmt.Errorf("save agent roster: %w", err)
	}

	app.logger().Info("claimed item", "agent", c.Agent, "item", item.Key, "title", item.Title)
	return nil
}

func (c *PopCmd) reportOwned(ctx context.Context, app *appContext, agent *model.Agent) error {
	owned := agent.Snapshot().OwnedKeys
	if len(owned) == 0 {
		app.logger().Info("agent owns no items", "agent", c.Agent)
		return nil
	}
	sort.Ints(owned)
	item, err := app.gw.GetItem(ctx, owned[0])
	if err != nil {
		return fmt.Errorf("fetch owned item %d: %w", owned[0], err)
	}
	app.logger().Info("agent's current item", "agent", c.Agent, "item", item.Key, "title", item.Title)
	return nil
}

// nextAssignableItem mirrors the router's candidate selection narrowed to
// a single claim: the highest-priority, lowest-key item that is not yet
// owned and not human-only.
func nextAssignableItem(ctx context.Context, app *appContext) (*model.WorkItem, error) {
	var candidates []*model.WorkItem
	for _, label := range []model.Label{model.LabelRouteReady, model.LabelRouteUnblocker} {
		items, err := app.gw.ListItemsByLabel(ctx, label)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if it.AssignableToAgent() {
				candidates = append(candidates, it)
			}
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		pi, pj := candidates[i].Labels.Priority(), candidates[j].Labels.Priority()
		if pi != pj {
			return pi > pj
		}
		return candidates[i].Key < candidates[j].Key
	})
	return candidates[0], nil
}
