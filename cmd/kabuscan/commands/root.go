package commands

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kabuscan",
	Short: "Multi-strategy stock screening engine",
	Long: `kabuscan scans the listed instrument universe in batches, scores
every instrument against the stop-high and turnaround strategies, ranks
the combined candidates, and watches user-defined alerts.

Usage:
  go run ./cmd/kabuscan [command]

Examples:
  go run ./cmd/kabuscan scan
  go run ./cmd/kabuscan scan --batch 3
  go run ./cmd/kabuscan api
  go run ./cmd/kabuscan scheduler`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}
