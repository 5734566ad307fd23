package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/lkmig/internal/cli/appctx"
	"github.com/lherron/lkmig/internal/render"
	"github.com/lherron/lkmig/internal/validate"
)

var modelsAdmCmd = &cobra.Command{
	Use:   "models",
	Short: "Housekeeping for model configurations",
}

var modelsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete model configurations that have no content",
	Long: `Cleanup deletes every model configuration the instance reports as having
no content, typically left behind after a project was removed.

Use --dry-run to list the models without deleting them.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.APIOnly(), runModelsCleanup),
}

var (
	modelsDryRun bool
	modelsJSON   bool
)

func init() {
	rootAdmCmd.AddCommand(modelsAdmCmd)
	modelsAdmCmd.AddCommand(modelsCleanupCmd)

	modelsCleanupCmd.Flags().BoolVar(&modelsDryRun, "dry-run", false, "List models without deleting them")
	modelsCleanupCmd.Flags().BoolVar(&modelsJSON, "json", false, "Output as JSON")
}

type cleanupReport struct {
	DryRun  bool     `json:"dry_run"`
	Deleted []string `json:"deleted"`
	Error   string   `json:"error,omitempty"`
}

func runModelsCleanup(app *appctx.App, cmd *cobra.Command, args []string) error {
	v := validate.New(app.API, validate.Options{}, app.Log)
	deleted, cleanupErr := v.CleanupModels(cmd.Context(), modelsDryRun)
	if deleted == nil {
		deleted = []string{}
	}

	if modelsJSON {
		report := cleanupReport{DryRun: modelsDryRun, Deleted: deleted}
		if cleanupErr != nil {
			report.Error = cleanupErr.Error()
		}
		if err := newRenderer(cmd, render.FormatJSON).RenderJSON(report); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		verb := "Deleted"
		if modelsDryRun {
			verb = "Would delete"
		}
		for _, name := range deleted {
			fmt.Fprintf(out, "%s model: %s\n", verb, name)
		}
		if len(deleted) == 0 {
			fmt.Fprintln(out, "No empty models found.")
		}
	}

	if cleanupErr != nil {
		return exitError(1, cleanupErr)
	}
	return nil
}
