package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var rootAdmCmd = &cobra.Command{
	Use:   "lkmigadm",
	Short: "Administrative CLI for the lkmig run ledger and instance housekeeping",
	Long: `lkmigadm is the administrative companion to lkmig. It maintains the run
ledger (schema migrations, run history) and removes model configurations
that have no content on an instance.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteAdmin runs the admin root command
func ExecuteAdmin(ctx context.Context) error {
	return rootAdmCmd.ExecuteContext(ctx)
}

func init() {
	addGlobalFlags(rootAdmCmd)
	rootAdmCmd.AddCommand(newVersionCmd("lkmigadm"))
}
