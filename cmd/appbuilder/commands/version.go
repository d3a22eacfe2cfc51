package commands

import (
	"fmt"

	"git.home.luguber.info/inful/appbuilder/internal/version"
)

// VersionCmd implements the 'version' command.
type VersionCmd struct{}

func (v *VersionCmd) Run(g *Global, _ *CLI) error {
	_, err := fmt.Fprintf(g.out(), "appbuilder %s (commit %s, built %s)\n",
		version.Version, version.GitCommit, version.BuildTime)
	return err
}
