// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/almclabs/doorman/internal/auth"
	"github.com/almclabs/doorman/internal/auth/postgres"
	"github.com/almclabs/doorman/internal/config"
	"github.com/almclabs/doorman/internal/httpapi"
	"github.com/almclabs/doorman/internal/logging"
	"github.com/almclabs/doorman/internal/maintenance"
	"github.com/almclabs/doorman/internal/observability"
)

const shutdownTimeout = 5 * time.Second

// newServeCmd creates the serve subcommand with all flags configured.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the auth server",
		Long: `Start the auth server: the JSON API for credential verification,
registration, and guest admission, plus metrics and the session sweeper.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServe starts the server processes and blocks until shutdown.
func runServe(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	logging.SetDefault("doorman", version, cfg.LogFormat)
	logger := slog.Default()

	logger.Info("starting doorman",
		"listen_addr", cfg.ListenAddr,
		"metrics_addr", cfg.MetricsAddr,
		"log_format", cfg.LogFormat,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Database
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	store := postgres.NewStore(pool, cfg.QueryTimeout)

	// Observability server first so the auth stack can register collectors.
	obsServer := observability.NewServer(cfg.MetricsAddr, func() bool {
		return pool.Ping(ctx) == nil
	})

	// Auth stack
	hasher := auth.NewHasher(logger)
	manager, err := auth.NewManager(store, auth.ManagerConfig{MaxIDRedraws: cfg.MaxIDRedraws}, obsServer.Registry())
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}
	service, err := auth.NewService(store, hasher, manager, logger)
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}

	// Background sweeper for expired sessions
	sweeper, err := maintenance.NewSweeper(store, cfg.SweepInterval, logger, obsServer.Metrics().SessionsSwept)
	if err != nil {
		return fmt.Errorf("failed to create sweeper: %w", err)
	}

	obsErrCh, err := obsServer.Start()
	if err != nil {
		return fmt.Errorf("failed to start observability server: %w", err)
	}

	apiServer, err := httpapi.NewServer(cfg.ListenAddr, service, obsServer.Metrics(), logger)
	if err != nil {
		return fmt.Errorf("failed to create api server: %w", err)
	}
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		_ = obsServer.Stop(stopCtx)
		return fmt.Errorf("failed to start api server: %w", err)
	}

	if err := sweeper.Start(); err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		_ = apiServer.Stop(stopCtx)
		_ = obsServer.Stop(stopCtx)
		return fmt.Errorf("failed to start sweeper: %w", err)
	}

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Doorman started")
	logger.Info("doorman ready", "api_addr", apiServer.Addr(), "metrics_addr", obsServer.Addr())

	// Wait for shutdown signal or server failure
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case serveErr := <-apiErrCh:
		if serveErr != nil {
			logger.Error("api server failed", "error", serveErr)
		}
	case serveErr := <-obsErrCh:
		if serveErr != nil {
			logger.Error("observability server failed", "error", serveErr)
		}
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	logger.Info("shutting down...")

	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
