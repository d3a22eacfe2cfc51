package main

import (
	stderrors "errors"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/appbuilder/cmd/appbuilder/commands"
	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/version"
)

func main() {
	var cli commands.CLI
	parser, err := kong.New(&cli,
		kong.Name("appbuilder"),
		kong.Description("Build orchestrator for ios and android releases of an engine project."),
		kong.Vars{"version": version.Version},
		kong.Bind(&cli),
	)
	if err != nil {
		panic(err)
	}

	kctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		parser.Errorf("%s", err)
		var perr *kong.ParseError
		if stderrors.As(err, &perr) && perr.Context != nil {
			_ = perr.Context.PrintUsage(true)
		}
		os.Exit(errors.ExitUsage)
	}

	err = kctx.Run(&commands.Global{Logger: slog.Default()})
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
