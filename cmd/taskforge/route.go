package main

import (
	"context"
	"fmt"
)

// RouteCmd runs one routing pass.
type RouteCmd struct {
	Agents int `help:"Maximum number of new assignments this pass may make." default:"5"`
}

func (c *RouteCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := buildContext(cli)
	if err != nil {
		return err
	}

	defaultBranchSHA, err := resolveDefaultBranchSHA(ctx, app)
	if err != nil {
		return fmt.Errorf("resolve default branch: %w", err)
	}

	maxAgents := c.Agents
	if maxAgents <= 0 {
		maxAgents = app.cfg.Agents.MaxAgentsPerPass
	}

	result, err := app.router.Run(ctx, maxAgents, defaultBranchSHA)
	if err != nil {
		return fmt.Errorf("routing pass: %w", err)
	}

	if err := app.saveRoster(); err != nil {
		return fmt.Errorf("save agent roster: %w", err)
	}

	app.logger().Info("routing pass complete",
		"evaluated", result.Evaluated,
		"proposals", len(result.Proposals),
		"skipped", len(result.Skipped),
	)
	for _, p := range result.Proposals {
		app.logger().Info("assigned", "item", p.ItemKey, "agent", p.AgentID)
	}
	return nil
}

// resolveDefaultBranchSHA looks up the repository's "main" branch tip,
// falling back to "master", and then to the first branch returned if
// neither is present.
func resolveDefaultBranchSHA(ctx context.Context, app *appContext) (string, error) {
	refs, err := app.gw.ListBranches(ctx)
	if err != nil {
		return "", err
	}
	if len(refs) == 0 {
		return "", fmt.Errorf("repository has no branches")
	}
	for _, r := range refs {
		if r.Name == "main" {
			return r.SHA, nil
		}
	}
	for _, r := range refs {
		if r.Name == "master" {
			return r.SHA, nil
		}
	}
	return refs[0].SHA, nil
}
