package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/moor/internal/pipeline"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

// printRunResult renders the stage-by-stage summary the operator sees.
func printRunResult(w io.Writer, result *pipeline.RunResult) {
	for _, o := range result.Outcomes {
		switch {
		case !o.OK:
			fmt.Fprintf(w, "%s %s: %v\n", failStyle.Render("✗"), o.Stage, o.Err)
		case o.Warn:
			fmt.Fprintf(w, "%s %s: %s\n", warnStyle.Render("⚠"), o.Stage, o.Detail)
		default:
			fmt.Fprintf(w, "%s %s: %s %s\n", okStyle.Render("✓"), o.Stage, o.Detail,
				dimStyle.Render(o.Duration.Round(time.Millisecond).String()))
		}
	}

	for _, line := range result.DryRunCommands {
		fmt.Fprintln(w, dimStyle.Render("  "+line))
	}

	switch result.Status {
	case "succeeded":
		fmt.Fprintln(w, okStyle.Render("Run succeeded."))
	case "dry-run":
		fmt.Fprintln(w, okStyle.Render("Dry run complete; no remote state was changed."))
	case "interrupted":
		fmt.Fprintln(w, warnStyle.Render("Run interrupted by operator."))
	default:
		fmt.Fprintf(w, "%s (last completed stage: %s)\n",
			failStyle.Render("Run failed."), result.LastStage)
	}

	if result.LogPath != "" {
		fmt.Fprintln(w, dimStyle.Render("Audit log: "+result.LogPath))
	}
}
