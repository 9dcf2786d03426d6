package cmd

import (
	"fmt"

	"github.com/llmrelay/llmrelay/pkg/version"
	"github.com/spf13/cobra"
)

func init() {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the gateway version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "llmrelay %s\n", version.String())
		},
	}
	rootCmd.AddCommand(versionCmd)
}
