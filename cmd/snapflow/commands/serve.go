package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanchriswhite/snapflow/internal/api"
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the snapflow server",
	Long: `Start the snapflow HTTP server.

The server provides a REST API to run captures and inspect the desktop, a
websocket feed of capture events at /api/events and a live MJPEG stream of
captures exported to the stream destination at /stream.`,
	Example: `  # Start server on the configured port (default 8080)
  snapflow serve

  # Start server on custom port
  snapflow serve --port 9090

  # Serve the simulated desktop with debug logging
  snapflow serve --platform virtual --log-level debug`,
	RunE: runServe,
}

var servePort int

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	port := a.Config.GetPort()
	if servePort > 0 {
		port = servePort
	}

	server := api.NewServer(a)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(port)
	}()

	log.Info().
		Str("api", fmt.Sprintf("http://localhost:%d/api", port)).
		Str("stream", fmt.Sprintf("http://localhost:%d/stream", port)).
		Msg("snapflow is running, press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-sigChan:
	}

	log.Info().Msg("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
