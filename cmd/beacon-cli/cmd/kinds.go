package cmd

import (
	"github.com/spf13/cobra"
)

// kindsCmd represents the kinds command
var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "Manage and explore registered message kinds",
	Long: `The kinds command provides tools for discovering and inspecting the
message kinds registered with the Beacon kind registry. Kinds document
the message types a process dispatches: their stable names, categories,
and payload fields.

Available subcommands:
  list  List all registered kinds with optional filtering
  get   Get detailed information about a specific kind

Examples:
  # List all kinds
  beacon-cli kinds list

  # List only broadcast kinds
  beacon-cli kinds list --category broadcast

  # Get detailed information about a kind
  beacon-cli kinds get demo.room.joined

Use "beacon-cli kinds [command] --help" for more information about a specific command.`,
}

func init() {
	rootCmd.AddCommand(kindsCmd)
}
