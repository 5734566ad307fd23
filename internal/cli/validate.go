package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lherron/lkmig/internal/cli/appctx"
	"github.com/lherron/lkmig/internal/render"
	"github.com/lherron/lkmig/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run explore and dashboard queries to check content",
	Long: `Validate runs queries against the instance and reports those that fail.
Queries and their results are written to data_dir.`,
}

var validateExploresCmd = &cobra.Command{
	Use:   "explores",
	Short: "Query every explore with all its visible fields",
	Long: `Builds one query per explore selecting its visible dimensions and measures
(up to attribute_limit), applies default_filters and runs it. The explores
come from the explores setting, or from every model of project_name limited
to models. Hidden explores are checked unless test_hidden_explores is false.
With fast_explore_check a filter that matches nothing is added so only the
SQL is checked.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.APIOnly(), runValidateExplores),
}

var validateDashboardsCmd = &cobra.Command{
	Use:   "dashboards",
	Short: "Run every dashboard element query with default filters",
	Long: `Runs the query of every element of the selected dashboards, with the
dashboard filter default values applied through each element's listen
bindings and dashboard_default_filters on top. Dashboards come from the
dashboards setting, or from every dashboard of the selected models.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.APIOnly(), runValidateDashboards),
}

var validateJSON bool

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.AddCommand(validateExploresCmd, validateDashboardsCmd)
	validateCmd.PersistentFlags().BoolVar(&validateJSON, "json", false, "Output results as JSON")
}

func newValidator(app *appctx.App) *validate.Validator {
	cfg := app.Config
	return validate.New(app.API, validate.Options{
		ProjectName:       cfg.ProjectName,
		Models:            cfg.Models,
		Explores:          cfg.Explores,
		Dashboards:        cfg.Dashboards,
		FieldDefaults:     cfg.DefaultFilters.Fields,
		ExploreDefaults:   cfg.DefaultFilters.Explores,
		DashboardDefaults: cfg.DashboardDefaultFilters,
		AttributeLimit:    cfg.AttributeLimit,
		FastCheck:         bool(cfg.FastExploreCheck),
		IncludeHidden:     bool(cfg.TestHiddenExplores),
		ServerVersion:     cfg.ServerVersion,
		DataDir:           cfg.DataDir,
	}, app.Log)
}

func runValidateExplores(app *appctx.App, cmd *cobra.Command, args []string) error {
	checks, err := newValidator(app).Explores(cmd.Context())
	if err != nil {
		return exitError(1, err)
	}
	return reportChecks(cmd, checks)
}

func runValidateDashboards(app *appctx.App, cmd *cobra.Command, args []string) error {
	checks, err := newValidator(app).Dashboards(cmd.Context())
	if err != nil {
		return exitError(1, err)
	}
	return reportChecks(cmd, checks)
}

func reportChecks(cmd *cobra.Command, checks []*validate.Check) error {
	failed := 0
	rows := make([][]string, 0, len(checks))
	for _, c := range checks {
		status := "ok"
		if !c.OK() {
			status = "failed"
			failed++
		}
		rows = append(rows, []string{c.Kind, c.Target, strconv.Itoa(c.Rows), status, c.Error})
	}

	format := render.FormatTable
	if validateJSON {
		format = render.FormatJSON
	}
	headers := []string{"KIND", "TARGET", "ROWS", "STATUS", "ERROR"}
	if err := newRenderer(cmd, format).Render(checks, headers, rows); err != nil {
		return err
	}
	if !validateJSON {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d checked, %d failed\n", len(checks), failed)
	}

	switch {
	case failed == 0:
		return nil
	case failed < len(checks):
		return exitError(5, fmt.Errorf("%d of %d checks failed", failed, len(checks)))
	default:
		return exitError(1, fmt.Errorf("all %d checks failed", failed))
	}
}
