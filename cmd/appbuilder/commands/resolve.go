package commands

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/appbuilder/internal/toolchain"
)

// ResolveCmd implements the 'resolve' command.
type ResolveCmd struct {
	ToolchainVersion string `name:"toolchain-version" help:"Toolchain version to resolve instead of the project's"`
}

func (r *ResolveCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	resolver := toolchain.NewResolver(cfg.Toolchain, cfg.Project.Path)
	inst, err := resolver.Resolve(r.ToolchainVersion)
	if err != nil {
		return err
	}

	out := g.out()
	fmt.Fprintf(out, "requested: %s (%s)\n", inst.Requested, inst.VersionSource)
	match := "exact"
	if !inst.Exact {
		match = "nearest"
	}
	fmt.Fprintf(out, "resolved:  %s (%s, strategy %s)\n", inst.Version, match, inst.Strategy)
	fmt.Fprintf(out, "path:      %s\n", inst.Path)
	fmt.Fprintf(out, "roots:     %s\n", strings.Join(resolver.Roots(), ", "))
	return nil
}
