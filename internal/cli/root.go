package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pyscript",
		Short: "Run inline scripts against the GitHub API from a workflow step",
		Long: `pyscript executes an inline script supplied through the "script" step
input, with pre-configured github, context and core helper objects in
scope, and surfaces the script's sentinel result value as the step
output "result".`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				_ = os.Setenv("PYSCRIPT_LOG", "DEBUG")
			}
			InitLogging()
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	cmd.AddCommand(
		NewRunCmd(),
		NewDoctorCmd(),
		NewVersionCmd(),
	)

	return cmd
}
