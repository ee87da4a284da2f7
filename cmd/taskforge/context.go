// Package main implements the taskforge command: a Kong-based CLI that
// drives one coordination action per invocation (route, pop, bundle, peek,
// agent diagnostics) against a repository's hosted forge.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/johnhkchen/my-little-soda-sub004/internal/applog"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/agentlifecycle"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/bundler"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/config"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/continuity"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/forgeapi"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/gitcli"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/metrics"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/model"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/registry"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/router"
	"github.com/johnhkchen/my-little-soda-sub004/pkg/statemachine"
)

// appContext is the composition root: every component wired from one
// resolved Config, built fresh for each CLI invocation since each command
// runs as its own OS process.
type appContext struct {
	cfg Config

	gw       forgeapi.Gateway
	sm       *statemachine.Machine
	router   *router.Router
	bundler  *bundler.Bundler
	lifecycle *continuityWiring
	agents   *registry.BaseRegistry[*model.Agent]
	surface  metrics.Surface

	rosterPath string

	// runID identifies this invocation in logs, letting a single pass's
	// scattered log lines be grepped back together.
	runID string
}

// continuityWiring bundles the Agent Lifecycle and Work-Continuity
// components, which both need the agent registry and Gateway but have no
// dependency on each other.
type continuityWiring struct {
	Lifecycle *agentlifecycle.Lifecycle
	Continuity *continuity.Manager
}

// Config is the subset of pkg/config.Config the CLI layer resolves plus
// anything derived from flags (e.g. a forced in-memory gateway for local
// dry-runs).
type Config struct {
	config.Config
	UseMemoryGateway bool
}

func buildContext(cli *CLI) (*appContext, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	var gw forgeapi.Gateway
	if cli.Memory {
		gw = forgeapi.NewMemoryGateway()
	} else {
		gw = forgeapi.NewGitHubGateway(cfg.GitHubToken, cfg.RepoOwner, cfg.RepoName, &http.Client{Timeout: 30 * time.Second})
	}

	surface, _ := metrics.New()
	sm := statemachine.New(gw, surface)

	rosterPath := agentlifecycle.RosterPath(cfg.WorkDir)
	agents, err := agentlifecycle.LoadRoster(rosterPath)
	if err != nil {
		return nil, fmt.Errorf("load agent roster: %w", err)
	}

	r := router.New(gw, sm, agents, surface)

	vcs := gitcli.New(cfg.WorkDir)
	b := bundler.New(gw, sm, vcs, surface, cfg.WorkDir)

	lc := agentlifecycle.New(agents, gw, sm)
	cm := continuity.NewManager(continuity.NewStorage(filepath.Join(cfg.WorkDir, config.AppDirName, "agents")), gw, cfg.Bundle.ContinuityFreshness)

	return &appContext{
		cfg:        Config{Config: cfg, UseMemoryGateway: cli.Memory},
		gw:         gw,
		sm:         sm,
		router:     r,
		bundler:    b,
		lifecycle:  &continuityWiring{Lifecycle: lc, Continuity: cm},
		agents:     agents,
		surface:    surface,
		rosterPath: rosterPath,
		runID:      uuid.NewString(),
	}, nil
}

// saveRoster persists the agent registry back to disk; called at the end
// of every command that may have mutated agent state.
func (a *appContext) saveRoster() error {
	return agentlifecycle.SaveRoster(a.rosterPath, a.agents)
}

func (a *appContext) logger() *slog.Logger {
	return applog.Get().With("run_id", a.runID)
}
