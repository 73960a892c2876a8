package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwhitmore/beacon/cmd/beacon-cli/internal/demo"
	"github.com/dwhitmore/beacon/cmd/beacon-cli/internal/kinds"
	"github.com/dwhitmore/beacon/message"
)

var (
	listOutputFormat   string
	listCategoryFilter string
)

// kindsListCmd represents the kinds list command
var kindsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered message kinds",
	Long: `List all message kinds currently registered with the kind registry.
This command helps developers discover what messages are available for
dispatch and what category each one belongs to.

Examples:
  # Basic usage
  beacon-cli kinds list                      # List all kinds in table format
  beacon-cli kinds list --format json        # List all kinds in JSON format

  # Filtering options
  beacon-cli kinds list --category targeted  # Show only targeted kinds

Output formats:
  table - Human-readable table format (default)
  json  - Machine-readable JSON format with metadata`,
	Run: kindsListHandler,
}

func kindsListHandler(cmd *cobra.Command, args []string) {
	demo.RegisterKinds()

	list := message.Kinds().List()

	if listCategoryFilter != "" {
		cat, ok := kinds.ParseCategory(listCategoryFilter)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: Invalid category '%s'. Valid categories: untargeted, targeted, broadcast\n", listCategoryFilter)
			os.Exit(1)
		}
		filtered := list[:0]
		for _, k := range list {
			if k.Category == cat {
				filtered = append(filtered, k)
			}
		}
		list = filtered
	}

	if len(list) == 0 {
		message := "No kinds found"
		if listCategoryFilter != "" {
			message += fmt.Sprintf(" matching category '%s'", listCategoryFilter)
		}
		fmt.Println(message)
		return
	}

	switch listOutputFormat {
	case "json":
		if err := kinds.DisplayKindsJSON(list); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to encode JSON: %v\n", err)
			os.Exit(1)
		}
	case "table":
		kinds.DisplayKindsTable(list)
	default:
		fmt.Fprintf(os.Stderr, "Error: Unsupported output format '%s'. Use 'table' or 'json'\n", listOutputFormat)
		os.Exit(1)
	}
}

func init() {
	kindsCmd.AddCommand(kindsListCmd)

	kindsListCmd.Flags().StringVarP(&listOutputFormat, "format", "f", "table", "Output format (table, json)")
	kindsListCmd.Flags().StringVarP(&listCategoryFilter, "category", "c", "", "Filter kinds by category (untargeted, targeted, broadcast)")
}
