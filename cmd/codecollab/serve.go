package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/codecollab/internal/executor"
	"github.com/michaelbrown/codecollab/internal/logger"
	"github.com/michaelbrown/codecollab/internal/server"
	"github.com/michaelbrown/codecollab/internal/storage/memory"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CodeCollab server",
	Long: `Start the HTTP server with the execution API and the realtime
collaboration websocket.

Endpoints:
  POST /execute, /api/execute    run or validate code
  GET  /languages                supported languages
  GET  /api/rooms                active rooms
  GET  /ws?roomId=&userId=       collaboration channel

Examples:
  codecollab serve
  codecollab serve --port 9090
  SANDBOX=docker codecollab serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.ComponentLogger("serve")

	port := cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	runner := executor.NewFromConfig(cfg.Execution)
	srv := server.New(cfg, runner, runner.Registry(), memory.New())

	log.Infow("execution configured",
		"sandbox", cfg.Execution.Sandbox,
		"timeout", cfg.Execution.Timeout.String(),
		"scratch_dir", cfg.Execution.ScratchDir,
	)

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(port)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server")
	case sig := <-sigCh:
		log.Infow("signal received", "signal", sig.String())
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		return errors.Wrap(err, "shutting down")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	return nil
}
