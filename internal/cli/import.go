package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lherron/lkmig/internal/catalog"
	"github.com/lherron/lkmig/internal/cli/appctx"
	"github.com/lherron/lkmig/internal/ledger"
	"github.com/lherron/lkmig/internal/migrate"
	"github.com/lherron/lkmig/internal/render"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Rebuild exported looks and dashboards on the target instance",
	Long: `Import loads exported documents and creates them on the target instance.
Looks are created first. The target's looks are then listed once, and every
dashboard is rebuilt against that listing: shell, filters, elements, layouts.
A dashboard that fails after its shell was created is deleted again.

Space names are remapped with space_remap, model names with model_remap and
titles get name_prefix. Every non-empty destination space must exist.

Exit codes: 0 all imported, 5 some objects failed, 1 nothing imported.

Examples:
  lkmig import --from ./export
  lkmig import --file ./export/Ops__Tickets_look.json --dry-run
  lkmig import --parallel 4 --skip-imported`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.Options{NeedsAPI: true, NeedsLedger: true}, runImport),
}

var (
	importFrom         string
	importFile         string
	importDryRun       bool
	importParallel     int
	importSkipImported bool
	importJSON         bool
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importFrom, "from", "", "Directory of exported documents (default data_dir)")
	importCmd.Flags().StringVar(&importFile, "file", "", "Import a single look or dashboard document")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Resolve spaces and look references without creating anything")
	importCmd.Flags().IntVarP(&importParallel, "parallel", "j", 0, "Dashboards imported at once (default parallel)")
	importCmd.Flags().BoolVar(&importSkipImported, "skip-imported", false, "Skip objects a previous run created on this target")
	importCmd.Flags().BoolVar(&importJSON, "json", false, "Output results as JSON")
}

type importReport struct {
	RunID    string              `json:"run_id"`
	DryRun   bool                `json:"dry_run"`
	Results  []render.ResultView `json:"results"`
	Counts   map[string]int      `json:"counts"`
	ExitCode int                 `json:"exit_code"`
}

func runImport(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := app.Config

	source := importFile
	if source == "" {
		source = cfg.InputFile
	}
	var (
		cat *catalog.Catalog
		err error
	)
	if source != "" {
		cat, err = catalog.LoadFile(source)
	} else {
		source = importFrom
		if source == "" {
			source = cfg.DataDir
		}
		cat, err = catalog.Load(source)
	}
	if err != nil {
		return exitError(2, err)
	}
	for _, r := range cat.Rejected {
		app.Log.Error().Err(r.Err).Str("file", r.Path).Msg("skipping invalid document")
	}
	if len(cat.Looks) == 0 {
		app.Log.Warn().Msg("no looks to import")
	}
	if len(cat.Dashboards) == 0 {
		app.Log.Warn().Msg("no dashboards to import")
	}

	spaces, err := app.API.ListSpaces(ctx)
	if err != nil {
		return exitError(1, fmt.Errorf("failed to list spaces: %w", err))
	}
	spaceIDs := migrate.SpaceCatalog(spaces)
	if err := requireSpaces(spaceIDs, cfg.SpaceRemap.Values(), "destination"); err != nil {
		return exitError(2, err)
	}
	me, err := app.API.Me(ctx)
	if err != nil {
		return exitError(1, fmt.Errorf("failed to get current user: %w", err))
	}
	host := app.API.Host()
	app.Log.Info().Str("user", me.DisplayName).Str("host", host).Bool("dry_run", importDryRun).Msg("importing")

	runID, err := app.Ledger.StartRun(ledger.Run{
		Command:    "import",
		Source:     source,
		TargetHost: host,
		NamePrefix: cfg.NamePrefix,
		DryRun:     importDryRun,
	})
	if err != nil {
		return exitError(1, err)
	}

	engine := migrate.NewEngine(app.API, spaceIDs, migrate.Options{
		NamePrefix: cfg.NamePrefix,
		SpaceRemap: cfg.SpaceRemap,
		ModelRemap: cfg.ModelRemap,
		DryRun:     importDryRun,
	}, app.Log)

	parallel := importParallel
	if parallel <= 0 {
		parallel = cfg.Parallel
	}
	out := cmd.OutOrStdout()
	colored := isTerminal(out)
	batch := &migrate.Batch{
		Engine:       engine,
		AllLooks:     catalog.NewCollector(app.API, app.Log).AllLooks,
		Parallel:     parallel,
		ShowProgress: !importJSON && parallel > 1,
		Progress:     cmd.ErrOrStderr(),
		Log:          app.Log,
		OnResult: func(r *migrate.Result) {
			if err := app.Ledger.Record(runID, r); err != nil {
				app.Log.Warn().Err(err).Str("title", r.Title).Msg("cannot record result")
			}
			if !importJSON && parallel <= 1 {
				printResultLine(cmd, r, colored)
			}
		},
	}
	if importSkipImported {
		batch.Skip = func(kind migrate.Kind, targetSpace, targetTitle string) bool {
			done, err := app.Ledger.Imported(host, kind, targetSpace, targetTitle)
			if err != nil {
				app.Log.Warn().Err(err).Str("title", targetTitle).Msg("cannot check ledger")
				return false
			}
			return done
		}
	}

	sum, err := batch.Run(ctx, cat.Looks, cat.Dashboards)
	if err != nil {
		_ = app.Ledger.FinishRun(runID, 1)
		return exitError(1, err)
	}
	for _, rej := range cat.Rejected {
		r := rejectedResult(rej)
		sum.Results = append(sum.Results, r)
		batch.OnResult(r)
	}
	code := sum.ExitCode()
	if err := app.Ledger.FinishRun(runID, code); err != nil {
		app.Log.Warn().Err(err).Msg("cannot finish run")
	}

	if importJSON {
		counts := map[string]int{}
		for _, r := range sum.Results {
			counts[string(r.Status)]++
		}
		report := importReport{
			RunID:    runID,
			DryRun:   importDryRun,
			Results:  render.ResultViews(sum.Results),
			Counts:   counts,
			ExitCode: code,
		}
		if err := newRenderer(cmd, render.FormatJSON).RenderJSON(report); err != nil {
			return err
		}
	} else {
		if parallel > 1 {
			headers, rows := render.ResultTable(sum.Results)
			if err := newRenderer(cmd, render.FormatTable).RenderTable(headers, rows); err != nil {
				return err
			}
		}
		render.PrintSummary(out, sum, colored)
		fmt.Fprintf(out, "Run: %s\n", runID)
	}

	if code != 0 {
		failed := sum.Count(migrate.StatusFailed) + sum.Count(migrate.StatusRolledBack)
		return exitError(code, fmt.Errorf("%d of %d objects failed", failed, len(sum.Results)))
	}
	return nil
}

// rejectedResult reports a document that could not be loaded as a failed
// object, so it counts towards the exit code like any other failure.
func rejectedResult(rej catalog.Rejected) *migrate.Result {
	return &migrate.Result{
		Kind:       migrate.Kind(rej.Kind),
		Title:      filepath.Base(rej.Path),
		Status:     migrate.StatusFailed,
		State:      migrate.StateInit,
		FailedStep: migrate.StateInit,
		Err:        fmt.Errorf("%w: %w", migrate.ErrInvalidSource, rej.Err),
	}
}

func printResultLine(cmd *cobra.Command, r *migrate.Result, colored bool) {
	status := fmt.Sprintf("%-11s", r.Status)
	if colored {
		status = render.StatusColor(string(r.Status)).Sprint(status)
	}
	line := fmt.Sprintf("%-9s %s %s/%s", r.Kind, status, r.SourceSpace, r.Title)
	if !r.TargetID.IsZero() {
		line += fmt.Sprintf(" -> %s/%s (%s)", r.TargetSpace, r.TargetTitle, r.TargetID)
	}
	if msg := r.Message(); msg != "" {
		line += ": " + msg
	}
	fmt.Fprintln(cmd.OutOrStdout(), line)
}
