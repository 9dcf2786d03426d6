package cmd

import (
	"fmt"

	"github.com/llmrelay/llmrelay/pkg/config"
	"github.com/spf13/cobra"
)

var configServerPath string

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create the default server config if missing and print its location",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrCreateServerConfig(configServerPath)
			if err != nil {
				return fmt.Errorf("load server config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config: %s\n", configServerPath)
			fmt.Fprintf(cmd.OutOrStdout(), "routes: %s\n", cfg.RoutesPath)
			return nil
		},
	}
	configCmd.Flags().StringVar(&configServerPath, "config", config.DefaultServerConfigPath(), "Server config TOML path")
	rootCmd.AddCommand(configCmd)
}
