package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audiolibrelab/wffcapture/internal/process"
	"github.com/audiolibrelab/wffcapture/internal/server"
	"github.com/audiolibrelab/wffcapture/internal/service"
	"github.com/audiolibrelab/wffcapture/internal/session"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP remote control",
	Long: `Start the wffcapture HTTP server to start, cancel and stop recordings
from another device on the same network.

Endpoints: POST /start, POST /cancel, POST /stop, GET /status,
GET /profiles, POST /profile, POST /region.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		if port == "" {
			port = cfg.Server.Port
		}

		svc := service.New(cfg, loadedFile, process.NewExecSpawner())
		srv := server.New(svc, loadedFile)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(port)
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case <-ctx.Done():
		}

		slog.Info("Shutting down web server")
		switch svc.GetRecordingStatus().State {
		case session.CountingDown:
			_ = svc.CancelCountdown()
		case session.Recording:
			if err := svc.StopRecording(context.Background()); err != nil {
				slog.Error("Failed to stop recording on shutdown", "error", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.ShutdownWithContext(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("port", "", "port for the web server (default from config, 8080)")
}
