package main

import (
	"context"
	"fmt"
	"time"
)

// AgentCmd groups the agent registry and diagnostic operations.
type AgentCmd struct {
	Status     AgentStatusCmd     `cmd:"" help:"Show an agent's local snapshot."`
	Diagnose   AgentDiagnoseCmd   `cmd:"" help:"Recheck an agent's owned items against the forge."`
	Recover    AgentRecoverCmd    `cmd:"" help:"Resume an agent from its last continuity checkpoint."`
	ForceReset AgentForceResetCmd `cmd:"" help:"Clear an agent's local ownership without touching the forge."`
	Validate   AgentValidateCmd   `cmd:"" help:"Ensure the required label vocabulary exists on the forge."`
}

type AgentStatusCmd struct {
	Agent string `required:"" help:"Agent id."`
}

func (c *AgentStatusCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := buildContext(cli)
	if err != nil {
		return err
	}
	snap, ok := app.lifecycle.Lifecycle.Status(c.Agent)
	if !ok {
		return fmt.Errorf("unknown agent %q", c.Agent)
	}
	app.logger().Info("agent status",
		"agent", snap.ID,
		"state", snap.State,
		"owned", snap.OwnedKeys,
		"capacity", snap.MaxCapacity,
		"blocked_cause", snap.BlockedCause,
	)
	return nil
}

type AgentDiagnoseCmd struct {
	Agent string `required:"" help:"Agent id."`
}

func (c *AgentDiagnoseCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := buildContext(cli)
	if err != nil {
		return err
	}
	result, err := app.lifecycle.Lifecycle.Diagnose(ctx, c.Agent)
	if err != nil {
		return fmt.Errorf("diagnose %s: %w", c.Agent, err)
	}
	if result.Consistent {
		app.logger().Info("agent consistent with forge", "agent", c.Agent)
		return nil
	}
	app.logger().Warn("agent diverges from forge", "agent", c.Agent, "divergences", len(result.Divergences))
	for _, d := range result.Divergences {
		app.logger().Warn("divergence", "item", d.ItemKey, "local_agent", d.LocalAgentID, "forge_labels", d.ForgeAgentLabels)
	}
	return nil
}

type AgentRecoverCmd struct {
	Agent string `required:"" help:"Agent id."`
}

func (c *AgentRecoverCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := buildContext(cli)
	if err != nil {
		return err
	}
	action, err := app.lifecycle.Continuity.Resume(ctx, c.Agent, time.Now())
	if err != nil {
		return fmt.Errorf("resume %s: %w", c.Agent, err)
	}
	app.logger().Info("recovery decision",
		"agent", c.Agent,
		"action", action.Kind,
		"issue", action.Issue,
		"branch", action.Branch,
		"reason", action.Reason,
	)
	return nil
}

type AgentForceResetCmd struct {
	Agent string `required:"" help:"Agent id."`
}

func (c *AgentForceResetCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := buildContext(cli)
	if err != nil {
		return err
	}
	if err := app.lifecycle.Lifecycle.ForceReset(c.Agent); err != nil {
		return fmt.Errorf("force-reset %s: %w", c.Agent, err)
	}
	if err := app.saveRoster(); err != nil {
		return fmt.Errorf("save agent roster: %w", err)
	}
	app.logger().Info("agent local ownership reset", "agent", c.Agent)
	return nil
}

type AgentValidateCmd struct{}

func (c *AgentValidateCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := buildContext(cli)
	if err != nil {
		return err
	}
	created, err := app.lifecycle.Lifecycle.Validate(ctx)
	if err != nil {
		return fmt.Errorf("validate labels: %w", err)
	}
	if len(created) == 0 {
		app.logger().Info("label vocabulary already complete")
		return nil
	}
	app.logger().Info("created missing labels", "count", len(created), "labels", created)
	return nil
}
