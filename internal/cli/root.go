// Package cli implements the remora command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/coral-mesh/remora/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "remora",
	Short: "Remora - selective execution tracing for running programs",
	Long: `Remora reconstructs meaningful events from a running program's
instrumentation hook: which function was entered, which variable was
assigned what value, which callable was invoked with which arguments.

Filtering is path- and name-based and decided once per file and per
invocation, keeping the inline hook cheap enough to leave enabled.
Events go to structured logs, live WebSocket subscribers, or a DuckDB
file for post-mortem replay.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newPsCmd())
	rootCmd.AddCommand(newReplayCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("Remora version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
