package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/johnhkchen/my-little-soda-sub004/internal/applog"
)

// CLI is the top-level command tree. Each subcommand builds its own
// composition root via buildContext, since a fresh OS process backs every
// invocation.
type CLI struct {
	Config    string `help:"Path to the configuration file." type:"path"`
	LogLevel  string `help:"Log level: debug, info, warn, error." default:"info"`
	LogFile   string `help:"Write logs to this file instead of stderr." type:"path"`
	LogFormat string `help:"Log format: simple, verbose." default:"simple"`
	Memory    bool   `help:"Use the in-memory forge gateway instead of GitHub (local testing)." hidden:""`

	Route   RouteCmd   `cmd:"" help:"Run one routing pass, assigning ready work to available agents."`
	Pop     PopCmd     `cmd:"" help:"Claim the next assignable item for an agent."`
	Bundle  BundleCmd  `cmd:"" help:"Run one bundle departure, consolidating ready-to-merge branches."`
	Peek    PeekCmd    `cmd:"" help:"Show the current routable queue without mutating state."`
	Agent   AgentCmd   `cmd:"" help:"Agent registry and diagnostic operations."`
	Version VersionCmd `cmd:"" help:"Print version information."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("taskforge"),
		kong.Description("Forge-native multi-agent work coordinator."),
		kong.UsageOnError(),
	)

	level, err := applog.ParseLevel(cli.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}

	logOutput := os.Stderr
	if cli.LogFile != "" {
		file, cleanup, err := applog.OpenLogFile(cli.LogFile)
		if err != nil {
			kctx.FatalIfErrorf(fmt.Errorf("open log file: %w", err))
		}
		defer cleanup()
		logOutput = file
	}
	applog.Init(level, logOutput, cli.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Warn("shutdown signal received, cancelling in-flight work")
		cancel()
	}()
	defer cancel()

	err = kctx.Run(ctx, &cli)
	kctx.FatalIfErrorf(err)
}

// VersionCmd prints the module's build version, read from the embedded
// build info rather than a hand-maintained constant.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		fmt.Println("taskforge (version unknown)")
		return nil
	}
	fmt.Printf("taskforge %s\n", info.Main.Version)
	return nil
}
