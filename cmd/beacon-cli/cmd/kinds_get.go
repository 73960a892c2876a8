package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwhitmore/beacon/cmd/beacon-cli/internal/demo"
	"github.com/dwhitmore/beacon/cmd/beacon-cli/internal/kinds"
	"github.com/dwhitmore/beacon/message"
)

var getOutputFormat string

// kindsGetCmd represents the kinds get command
var kindsGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Get detailed information about a specific kind",
	Long: `Get detailed information about a single registered message kind,
including its category, Go type, and payload fields.

Examples:
  beacon-cli kinds get demo.tick
  beacon-cli kinds get demo.room.joined --format json`,
	Args: cobra.ExactArgs(1),
	Run:  kindsGetHandler,
}

func kindsGetHandler(cmd *cobra.Command, args []string) {
	demo.RegisterKinds()

	name := args[0]
	k, ok := message.Kinds().Get(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: Kind '%s' not found. Use 'beacon-cli kinds list' to see registered kinds.\n", name)
		os.Exit(1)
	}

	if err := kinds.DisplayKindDetails(k, getOutputFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to display kind: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	kindsCmd.AddCommand(kindsGetCmd)

	kindsGetCmd.Flags().StringVarP(&getOutputFormat, "format", "f", "table", "Output format (table, json)")
}
