package main

import (
	"context"
	"fmt"
)

// PeekCmd reports the next routable item without mutating any state.
type PeekCmd struct{}

func (c *PeekCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := buildContext(cli)
	if err != nil {
		return err
	}

	item, err := nextAssignableItem(ctx, app)
	if err != nil {
		return fmt.Errorf("find next item: %w", err)
	}
	if item == nil {
		app.logger().Info("no routable item available")
		return nil
	}

	app.logger().Info("next routable item", "item", item.Key, "title", item.Title, "priority", item.Labels.Priority())
	return nil
}
