package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voralith-bot/internal/analytics"
	"voralith-bot/internal/bot"
	"voralith-bot/internal/config"
	"voralith-bot/internal/dispatch"
	"voralith-bot/internal/modules/audit"
	"voralith-bot/internal/server"
	"voralith-bot/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	dispatchQueueSize = 256
	effectTimeout     = 15 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "voralith",
		Short:         "Voralith community bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd(), migrateCmd())
	return root
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve the OAuth callback",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() {
				_ = logger.Sync()
			}()

			store, err := storage.New(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("storage init: %w", err)
			}
			defer store.Close()
			if err := store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			logger.Info("migrations applied")
			return nil
		},
	}
}

func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func run(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	auditLogger := audit.NewLogger(logger)
	analyticsService := analytics.New(store)

	loop := dispatch.New(logger, dispatchQueueSize, effectTimeout)
	loop.Start()
	defer loop.Stop()

	botSvc, err := bot.New(cfg, logger, loop, store, auditLogger, analyticsService)
	if err != nil {
		return fmt.Errorf("bot init: %w", err)
	}
	if err := botSvc.Start(); err != nil {
		return fmt.Errorf("bot start: %w", err)
	}
	logger.Info("bot started")

	g, gctx := errgroup.WithContext(ctx)

	var httpServer *server.Server
	if cfg.HTTP.Enabled {
		if !cfg.OAuth.Enabled() {
			logger.Warn("oauth not configured, verification callback will reject every request")
		}
		httpServer = server.New(cfg.HTTP, cfg.OAuth.OAuth2(), botSvc, logger)
		g.Go(httpServer.Start)
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if httpServer != nil {
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown failed", zap.Error(err))
			}
		}
		botSvc.Close(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
