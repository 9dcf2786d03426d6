package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "llmrelay",
	Short: "Multi-tenant forwarding gateway for AI-completion APIs",
	Long:  "llmrelay routes inbound completion requests to upstream providers by tenant token and model, rotating credentials and relaying buffered or streamed responses.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
	rootCmd.SilenceUsage = true
}
