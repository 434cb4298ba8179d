package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fmuoria/interview-notes/internal/api"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  "Start the web API, the extension endpoint and, when Drive is configured, the folder poller.",
		RunE:  runServe,
	}
	cmd.Flags().String("port", "", "override listen port")
	cmd.Flags().Bool("no-poll", false, "disable the Drive poller")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := api.Options{
		ExtensionToken: cfg.ExtensionToken,
		AllowedOrigins: cfg.AllowedOrigins,
		Health:         a.store,
	}
	if a.auth != nil {
		opts.Auth = a.auth
	}
	if cfg.ExtensionToken == "" {
		slog.Warn("EXTENSION_TOKEN not set, extension ingestion is disabled")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewServer(a.agent, opts).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if noPoll, _ := cmd.Flags().GetBool("no-poll"); !noPoll && cfg.DriveEnabled() {
		go a.agent.RunPoller(ctx, cfg.PollInterval.Duration)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting Interview Notes", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
