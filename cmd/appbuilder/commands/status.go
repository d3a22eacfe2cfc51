package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/gookit/color"

	"git.home.luguber.info/inful/appbuilder/internal/staleness"
	"git.home.luguber.info/inful/appbuilder/internal/workspace"
)

// StatusCmd implements the 'status' command.
type StatusCmd struct{}

func (s *StatusCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	layout := workspace.NewLayout(cfg.Project.Path, cfg.Staleness.Dir, cfg.Logging.Dir)
	tracker, err := staleness.Open(cfg.Staleness, layout.StateDir())
	if err != nil {
		return err
	}
	defer func() { _ = tracker.Close() }()

	markers, err := tracker.List(context.Background())
	if err != nil {
		return err
	}
	return writeStatus(g, markers, time.Now())
}

func writeStatus(g *Global, markers []staleness.Marker, now time.Time) error {
	out := g.out()
	if len(markers) == 0 {
		_, err := fmt.Fprintln(out, color.Yellow.Sprint("No preprocessing markers; every platform is stale."))
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PLATFORM\tPROFILE\tLAST PREPROCESSED\tAGE")
	for _, m := range markers {
		age := now.Sub(m.RecordedAt).Round(time.Minute)
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			m.Key.Platform, m.Key.Profile, m.RecordedAt.Local().Format(time.RFC3339), age)
	}
	return tw.Flush()
}
