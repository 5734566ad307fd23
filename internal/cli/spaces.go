package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/lkmig/internal/cli/appctx"
	"github.com/lherron/lkmig/internal/render"
)

var spacesCmd = &cobra.Command{
	Use:   "spaces",
	Short: "List the spaces of the instance",
	Long:  `Lists every space with its id, as used by space_remap.`,
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.APIOnly(), runSpaces),
}

var (
	spacesJSON bool
	spacesYAML bool
)

func init() {
	rootCmd.AddCommand(spacesCmd)
	spacesCmd.Flags().BoolVar(&spacesJSON, "json", false, "Output as JSON")
	spacesCmd.Flags().BoolVar(&spacesYAML, "yaml", false, "Output as YAML")
}

func runSpaces(app *appctx.App, cmd *cobra.Command, args []string) error {
	spaces, err := app.API.ListSpaces(cmd.Context())
	if err != nil {
		return exitError(1, fmt.Errorf("failed to list spaces: %w", err))
	}
	headers, rows := render.SpaceTable(spaces)
	return newRenderer(cmd, outputFormat(spacesJSON, spacesYAML)).Render(spaces, headers, rows)
}
