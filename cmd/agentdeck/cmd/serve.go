package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/app"
	"github.com/agentdeck/agentdeck/internal/config"
)

var (
	serveHost string
	servePort int
)

// serveCmd runs the daemon: indexer, binding authority, and servers.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agentdeck daemon",
	Long: `Run the agentdeck daemon: scan every enabled provider's transcript
tree, watch for changes, and serve the session index and terminal
registration API over HTTP and WebSocket.

Example:
  agentdeck serve
  agentdeck serve --port 9000
  agentdeck serve --config /etc/agentdeck/config.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "bind address (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(cfg)

	log.Info().
		Str("version", version).
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("starting agentdeck")

	application, err := app.New(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	cancel()

	if err := application.Stop(); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	log.Info().Msg("agentdeck stopped")
	return nil
}
