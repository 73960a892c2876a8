package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dwhitmore/beacon/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "beacon-cli",
	Short: "Beacon CLI tool",
	Long: `Beacon CLI is a command-line interface for the Beacon dispatch bus.

Available commands:
  kinds    Discover and inspect registered message kinds
  demo     Run a small dispatch session and print its ledger

Use "beacon-cli [command] --help" for more information about a specific command.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env file is fine; environment variables still apply.
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			cmd.PrintErrf("Warning: could not load .env file: %v\n", err)
		}
		logging.New()
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
