package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/RogueMacro/grill/internal/descriptor"
	"github.com/RogueMacro/grill/internal/grillctx"
	"github.com/RogueMacro/grill/internal/grilllog"
	"github.com/RogueMacro/grill/internal/orchestrator"
	"github.com/RogueMacro/grill/internal/workspace"
)

// makeCommand runs the full index→resolve→fetch→link pipeline.
type makeCommand struct {
	forceRefresh bool
}

func (c *makeCommand) Name() string      { return "make" }
func (c *makeCommand) Args() string      { return "" }
func (c *makeCommand) ShortHelp() string { return "Resolve, fetch, and link the workspace" }
func (c *makeCommand) LongHelp() string {
	return "Updates the package index, resolves dependencies against the manifest,\n" +
		"fetches every pinned package into the package cache, and regenerates the\n" +
		"build host's workspace and project descriptors."
}
func (c *makeCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&c.forceRefresh, "refresh", false, "force an index refresh before resolving")
}

func (c *makeCommand) Run(args []string, ctx *grillctx.Ctx, log *grilllog.Logger) error {
	root, err := ctx.LoadProject("")
	if err != nil {
		return err
	}

	pipeline := &orchestrator.Pipeline{
		Ctx:               ctx,
		Log:               log,
		ForceIndexRefresh: c.forceRefresh,
	}
	return pipeline.Make(context.Background(), root)
}

// listCommand prints the workspace's resolved project table without
// re-running the pipeline — a read-only inspection command.
type listCommand struct{}

func (c *listCommand) Name() string      { return "list" }
func (c *listCommand) Args() string      { return "" }
func (c *listCommand) ShortHelp() string { return "List the workspace's linked projects" }
func (c *listCommand) LongHelp() string {
	return "Prints every project identifier currently registered in BeefSpace.toml,\n" +
		"without touching the index, the lock, or the package cache."
}
func (c *listCommand) Register(*flag.FlagSet) {}

func (c *listCommand) Run(args []string, ctx *grillctx.Ctx, log *grilllog.Logger) error {
	root, err := ctx.LoadProject("")
	if err != nil {
		return err
	}

	ws, err := descriptor.LoadWorkspace(root.Dir)
	if err != nil {
		return err
	}

	for _, id := range workspace.ListProjects(ws) {
		fmt.Println(id)
	}
	return nil
}
