package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/uriel/pkg/api"
	"github.com/lemonberrylabs/uriel/pkg/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve executions, the context and stored scripts over HTTP",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (default 8787, env PORT)")
	serveCmd.Flags().String("host", "", "Bind address (default 0.0.0.0, env HOST)")
	serveCmd.Flags().String("scripts-dir", "", "Directory of .uriel scripts to load (env URIEL_SCRIPTS_DIR)")
}

func serve(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer startProfile(cmd).Stop()

	port := envOrDefault("PORT", "8787")
	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		port = fmt.Sprintf("%d", v)
	}

	host := envOrDefault("HOST", "0.0.0.0")
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		host = v
	}

	scriptsDir := os.Getenv("URIEL_SCRIPTS_DIR")
	if v, _ := cmd.Flags().GetString("scripts-dir"); v != "" {
		scriptsDir = v
	}

	// Output of print and shell goes to the server log stream.
	engine, err := newEngine(cmd, logger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	server := api.New(engine, store.New(), logger)

	if scriptsDir != "" {
		if err := server.LoadDir(scriptsDir); err != nil {
			logger.Warn("failed to load scripts directory", slog.String("dir", scriptsDir), slog.Any("error", err))
		}
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			logger.Error("error during shutdown", slog.Any("error", err))
		}
	}()

	addr := fmt.Sprintf("%s:%s", host, port)
	logger.Info("listening", slog.String("addr", addr))
	return server.Listen(addr)
}
