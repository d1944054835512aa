package main

import (
	"fmt"

	"github.com/eternalApril/moonmock/internal/config"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	var configDir string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the emulated server version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithFlags(configDir, cmd.Flags())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.Engine.Version)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configDir, "config", "c", ".", "directory holding config.yaml")
	cmd.Flags().String("redis-version", "", "emulated server version")
	return cmd
}
