package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/otaportal/internal/config"
	"github.com/muurk/otaportal/internal/credentials"
	"github.com/muurk/otaportal/internal/logging"
	"github.com/muurk/otaportal/internal/portal"
	"github.com/muurk/otaportal/internal/radio"
	"github.com/muurk/otaportal/internal/server"
	"github.com/muurk/otaportal/internal/storage"
	"github.com/muurk/otaportal/internal/update"
)

// Serve command and flags
var (
	configPath string
	modeName   string
	listenAddr string
	logLevel   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the portal daemon",
	Long: `Start the captive portal and OTA update daemon.

The radio comes up in the requested mode. In auto mode the device joins
its stored network when one is provisioned, and falls back to broadcasting
its own access point otherwise. Station-capable modes requested without
stored credentials are downgraded to access-point mode.`,
	Example: `  # Start with mode resolved from stored credentials
  otaportal serve

  # Force access-point mode on a custom port
  otaportal serve --mode ap --listen :8088

  # Run both roles with verbose logging
  otaportal serve --mode dual --log-level debug`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: user config dir)")
	serveCmd.Flags().StringVar(&modeName, "mode", "auto", "Radio mode (auto, ap, station, dual)")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address override (e.g. :8080)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	mode, err := radio.ParseMode(modeName)
	if err != nil {
		return err
	}

	path := configPath
	if path == "" {
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	opts, err := config.Load(path)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		opts.ListenAddr = listenAddr
	}

	level := logLevel
	if level == "" {
		level = opts.LogLevel
	}
	if err := logging.Initialize(level); err != nil {
		return err
	}
	defer logging.Sync()

	device := storage.NewFileDevice(opts.StoragePath)
	creds, err := credentials.New(device, opts.StorageSize, opts.StorageOffset)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}

	core := portal.New(opts, radio.NewSimulated(), creds, restarter())
	if err := core.ResolveAndStart(mode); err != nil {
		return err
	}

	srv := server.New(core, update.NewFileEngine(opts.StagingPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go core.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// restarter exits the process after the grace period. A supervisor (or an
// operator) brings the daemon back up, which is the process-level
// equivalent of a device reboot.
func restarter() update.Restarter {
	return func(after time.Duration) {
		go func() {
			time.Sleep(after)
			logging.Info("Restarting", zap.Duration("after", after))
			logging.Sync()
			os.Exit(0)
		}()
	}
}
