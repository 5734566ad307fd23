package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lherron/lkmig/internal/catalog"
	"github.com/lherron/lkmig/internal/cli/appctx"
	"github.com/lherron/lkmig/internal/migrate"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export looks and dashboards of the remapped spaces",
	Long: `Export collects every live look and dashboard whose space is a key of
space_remap (all spaces when the table has a "" key) and writes one JSON
document per object:

  <space>__<title>_look.json
  <space>__<title>_dash.json

Every non-empty source space must exist on the instance.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.APIOnly(), runExport),
}

var (
	exportOut  string
	exportJSON bool
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output directory (default data_dir)")
	exportCmd.Flags().BoolVar(&exportJSON, "json", false, "Output written files as JSON")
}

type exportReport struct {
	Dir        string   `json:"dir"`
	Looks      int      `json:"looks"`
	Dashboards int      `json:"dashboards"`
	Files      []string `json:"files"`
	Renamed    []string `json:"renamed,omitempty"`
}

func runExport(app *appctx.App, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := app.Config

	dir := exportOut
	if dir == "" {
		dir = cfg.DataDir
	}

	spaces, err := app.API.ListSpaces(ctx)
	if err != nil {
		return exitError(1, fmt.Errorf("failed to list spaces: %w", err))
	}
	if err := requireSpaces(migrate.SpaceCatalog(spaces), cfg.SpaceRemap.Keys(), "source"); err != nil {
		return exitError(2, err)
	}
	me, err := app.API.Me(ctx)
	if err != nil {
		return exitError(1, fmt.Errorf("failed to get current user: %w", err))
	}
	app.Log.Info().Str("user", me.DisplayName).Str("host", app.API.Host()).Msg("exporting")

	collector := catalog.NewCollector(app.API, app.Log)
	looks, err := collector.CollectLooks(ctx, cfg.SpaceRemap)
	if err != nil {
		return exitError(1, err)
	}
	dashboards, err := collector.CollectDashboards(ctx, cfg.SpaceRemap)
	if err != nil {
		return exitError(1, err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return exitError(1, fmt.Errorf("failed to create output directory: %w", err))
	}
	saved, err := catalog.Save(dir, looks, dashboards)
	if err != nil {
		return exitError(1, err)
	}

	report := exportReport{Dir: dir, Looks: len(looks), Dashboards: len(dashboards), Files: saved.Files}
	for _, r := range saved.Renamed {
		app.Log.Warn().Str(string(r.Kind), r.Title).Str("space", r.Space).Str("file", r.Path).
			Msg("file name already used by another object, written under a distinct name")
		report.Renamed = append(report.Renamed, r.Path)
	}
	if exportJSON {
		return newRenderer(cmd, outputFormat(true, false)).RenderJSON(report)
	}
	for _, f := range saved.Files {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d looks and %d dashboards to %s\n", report.Looks, report.Dashboards, dir)
	return nil
}
