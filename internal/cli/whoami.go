package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/lkmig/internal/cli/appctx"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the API user",
	Long:  `Logs in with the configured API credentials and displays the user they belong to.`,
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.APIOnly(), runWhoami),
}

var whoamiJSON bool

func init() {
	rootCmd.AddCommand(whoamiCmd)
	whoamiCmd.Flags().BoolVar(&whoamiJSON, "json", false, "Output as JSON")
}

func runWhoami(app *appctx.App, cmd *cobra.Command, args []string) error {
	user, err := app.API.Me(cmd.Context())
	if err != nil {
		return exitError(1, fmt.Errorf("failed to get current user: %w", err))
	}

	if whoamiJSON {
		output := map[string]interface{}{
			"user":   user,
			"host":   app.API.Host(),
			"config": app.Config.Source,
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "User:    %s (%s)\n", user.DisplayName, user.ID)
	if user.Email != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Email:   %s\n", user.Email)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Host:    %s\n", app.API.Host())
	if app.Config.Source != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Config:  %s\n", app.Config.Source)
	}
	return nil
}
