package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kaijie-yu/google-ui/internal/config"
	"github.com/kaijie-yu/google-ui/internal/logging"
	"github.com/kaijie-yu/google-ui/internal/runner"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		headful    bool
	)
	cmd := &cobra.Command{
		Use:          "autoflow-runner",
		Short:        "Execute workflows in a real browser on behalf of the builder",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, configPath, headful)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().BoolVar(&headful, "show-browser", false, "Show the browser window instead of running headless")
	return cmd
}

func run(ctx context.Context, configPath string, headful bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	headless := cfg.Runner.Headless && !headful
	launcher := runner.NewChromeLauncher(cfg.Runner.RemoteURL, headless)
	exec := runner.NewExecutor(launcher, cfg.Runner.StepTimeout, logger.With("component", "runner"))
	e := runner.NewEcho(runner.NewHandler(exec, logger), cfg.Runner.AllowedOrigins)

	// Browser runs can be long; only the header read is bounded.
	server := &http.Server{
		Addr:              cfg.Runner.Address,
		Handler:           e,
		ReadHeaderTimeout: 15 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Runner starting", "address", server.Addr, "headless", headless, "remote_url", cfg.Runner.RemoteURL)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("runner error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Runner shutdown error", "error", err)
	}
	logger.Info("Runner stopped")
	return nil
}
