package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "moonmock",
	Short: "Redis compatible server for tests",
	Long: `moonmock serves the Redis command set from memory, emulating a chosen server
version, so test suites can run against it without a real server.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help() //nolint:errcheck
	},
}

func main() {
	rootCmd.AddCommand(newServeCmd(), newVersionCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
