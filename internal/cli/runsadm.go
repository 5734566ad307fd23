package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lherron/lkmig/internal/cli/appctx"
	"github.com/lherron/lkmig/internal/ledger"
	"github.com/lherron/lkmig/internal/render"
)

var runsAdmCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded import runs",
}

var runsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recent import runs",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.LedgerOnly(), runRunsLs),
}

var runsShowCmd = &cobra.Command{
	Use:   "show <RUN_ID>",
	Short: "Show the recorded results of one run",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.LedgerOnly(), runRunsShow),
}

var (
	runsLimit int
	runsJSON  bool
)

func init() {
	rootAdmCmd.AddCommand(runsAdmCmd)
	runsAdmCmd.AddCommand(runsLsCmd, runsShowCmd)

	runsLsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list")
	runsAdmCmd.PersistentFlags().BoolVar(&runsJSON, "json", false, "Output as JSON")
}

func runRunsLs(app *appctx.App, cmd *cobra.Command, args []string) error {
	runs, err := app.Ledger.ListRuns(runsLimit)
	if err != nil {
		return exitError(1, err)
	}
	if runsJSON {
		if runs == nil {
			runs = []ledger.Run{}
		}
		return newRenderer(cmd, render.FormatJSON).RenderJSON(runs)
	}
	headers, rows := render.RunTable(runs)
	return newRenderer(cmd, render.FormatTable).RenderTable(headers, rows)
}

type runDetail struct {
	Run     *ledger.Run      `json:"run"`
	Counts  ledger.RunCounts `json:"counts"`
	Entries []ledger.Entry   `json:"entries"`
}

func runRunsShow(app *appctx.App, cmd *cobra.Command, args []string) error {
	run, err := app.Ledger.GetRun(args[0])
	if errors.Is(err, ledger.ErrRunNotFound) {
		return exitError(2, err)
	}
	if err != nil {
		return exitError(1, err)
	}
	entries, err := app.Ledger.Entries(run.ID)
	if err != nil {
		return exitError(1, err)
	}
	counts, err := app.Ledger.Counts(run.ID)
	if err != nil {
		return exitError(1, err)
	}

	if runsJSON {
		if entries == nil {
			entries = []ledger.Entry{}
		}
		return newRenderer(cmd, render.FormatJSON).RenderJSON(runDetail{Run: run, Counts: counts, Entries: entries})
	}

	out := cmd.OutOrStdout()
	headers, rows := render.RunTable([]ledger.Run{*run})
	if err := newRenderer(cmd, render.FormatTable).RenderTable(headers, rows); err != nil {
		return err
	}
	fmt.Fprintln(out)
	headers, rows = render.EntryTable(entries)
	if err := newRenderer(cmd, render.FormatTable).RenderTable(headers, rows); err != nil {
		return err
	}

	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	fmt.Fprintf(out, "\n%d objects:", len(entries))
	for _, s := range statuses {
		fmt.Fprintf(out, " %s %d", s, counts[s])
	}
	fmt.Fprintln(out)
	return nil
}
