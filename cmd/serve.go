package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/llmrelay/llmrelay/pkg/config"
	"github.com/llmrelay/llmrelay/pkg/logutil"
	"github.com/llmrelay/llmrelay/pkg/relay"
	"github.com/spf13/cobra"
)

var (
	serveConfigPath         string
	serveRoutesPathOverride string
	serveListenAddrOverride string
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the forwarding gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Same lookup chain as the env vars themselves: a .env file in
			// the working directory seeds anything the environment lacks.
			_ = godotenv.Load()

			cfg, err := config.LoadOrCreateServerConfig(serveConfigPath)
			if err != nil {
				return fmt.Errorf("load server config: %w", err)
			}
			cfg.ApplyEnv()
			if cmd.Flags().Changed("listen-addr") {
				cfg.ListenAddr = serveListenAddrOverride
			}
			if cmd.Flags().Changed("routes") {
				cfg.RoutesPath = serveRoutesPathOverride
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := logutil.Configure(cfg.LogLevel); err != nil {
				return err
			}

			routes, err := config.LoadRouteTable(cfg.RoutesPath)
			if err != nil {
				return fmt.Errorf("load routes: %w", err)
			}

			srv, err := relay.NewServer(cfg, routes)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return srv.Run(ctx)
		},
	}
	serveCmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultServerConfigPath(), "Server config TOML path")
	serveCmd.Flags().StringVar(&serveRoutesPathOverride, "routes", "", "Override routes JSON path from config")
	serveCmd.Flags().StringVar(&serveListenAddrOverride, "listen-addr", "", "Override listen address (e.g. :3030)")
	rootCmd.AddCommand(serveCmd)
}
