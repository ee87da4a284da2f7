package main

import (
	"context"
	"fmt"
	"time"

	"github.com/johnhkchen/my-little-soda-sub004/pkg/bundler"
)

// BundleCmd runs one bundle departure attempt.
type BundleCmd struct {
	Force  bool `help:"Bypass the scheduler's departure-time gate."`
	DryRun bool `help:"Compute and log the decision but create no branches, PRs, or label edits."`
	Base   string `help:"Integration base branch." default:"main"`
}

func (c *BundleCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := buildContext(cli)
	if err != nil {
		return err
	}

	result, err := app.bundler.Run(ctx, bundler.Options{
		BaseBranch: c.Base,
		Force:      c.Force,
		DryRun:     c.DryRun,
		Now:        time.Now(),
	})
	if err != nil {
		return fmt.Errorf("bundle run: %w", err)
	}

	if err := app.saveRoster(); err != nil {
		return fmt.Errorf("save agent roster: %w", err)
	}

	switch {
	case result.SkippedEmpty:
		app.logger().Info("bundle departure skipped: no ready-to-merge items")
	case result.Degraded:
		app.logger().Warn("bundle departure degraded to per-branch fallback",
			"score", result.Report.CompatibilityScore,
			"prs", len(result.Fallback),
		)
	case result.Consolidated != nil:
		app.logger().Info("bundle departure consolidated",
			"pr", result.Consolidated.Number,
			"url", result.Consolidated.URL,
		)
	default:
		app.logger().Info("bundle departure was a no-op outside departure time")
	}
	return nil
}
