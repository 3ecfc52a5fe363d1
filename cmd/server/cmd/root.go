package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "realtime",
	Short: "Realtime chat service",
	Long: `The realtime service carries the live side of the chat platform:
websocket connections, room broadcasts, and presence tracking.

Use "realtime [command] --help" for more information about a specific command.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
