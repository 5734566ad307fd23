package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lkmig",
	Short: "Move looks and dashboards between BI instances and tenants",
	Long: `lkmig exports looks and dashboards from one instance into JSON documents and
rebuilds them on a target instance, remapping spaces, model names and titles.
A dashboard that cannot be rebuilt completely is deleted again, so a target
never keeps a half-built copy.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	addGlobalFlags(rootCmd)
	rootCmd.AddCommand(newVersionCmd("lkmig"))
}

func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "", "Path to config file (overrides LKMIG_CONFIG)")
	cmd.PersistentFlags().String("ledger", "", "Path to run ledger (overrides LKMIG_LEDGER_PATH)")
	cmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
}
