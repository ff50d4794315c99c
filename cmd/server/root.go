package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iudanet/tokenauth/internal/logging"
	"github.com/iudanet/tokenauth/internal/server"
	"github.com/iudanet/tokenauth/internal/server/config"
)

// NewRootCmd creates the root command for the server CLI.
func NewRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "tokenauth-server",
		Short: "tokenauth - access/refresh token authentication server",
		Long: `tokenauth issues short-lived access tokens and long-lived refresh tokens
signed with separate secrets. Refresh tokens are revoked per user by
bumping a token version counter.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")
	config.RegisterFlags(cmd.PersistentFlags())

	load := func(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return config.Config{}, nil, err
		}
		logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return config.Config{}, nil, err
		}
		return cfg, logger, nil
	}

	cmd.AddCommand(newServeCmd(load))
	cmd.AddCommand(newMigrateCmd(load))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

type loadFunc func(cmd *cobra.Command) (config.Config, *slog.Logger, error)

func newServeCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := server.OpenStorage(ctx, cfg.Storage)
			if err != nil {
				return err
			}

			srv, err := server.New(cfg, logger, store, Version)
			if err != nil {
				_ = store.Close()
				return err
			}
			defer func() {
				if err := srv.Close(); err != nil {
					logger.Error("failed to close server", slog.Any("error", err))
				}
			}()

			logger.Info("starting tokenauth server",
				slog.String("version", Version),
				slog.String("addr", cfg.HTTP.Addr),
				slog.String("storage", cfg.Storage.Driver))

			return srv.Run(ctx)
		},
	}
}

func newMigrateCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Long:  `Apply all pending migrations for the configured storage driver. Redis needs no migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}

			// хранилища применяют миграции при открытии
			store, err := server.OpenStorage(context.Background(), cfg.Storage)
			if err != nil {
				return err
			}
			if err := store.Close(); err != nil {
				return fmt.Errorf("failed to close storage: %w", err)
			}

			logger.Info("migrations applied", slog.String("storage", cfg.Storage.Driver))
			cmd.Println("Migrations completed successfully")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd)
		},
	}
}

func printVersion(cmd *cobra.Command) {
	cmd.Printf("tokenauth server\n")
	cmd.Printf("Version:    %s\n", Version)
	cmd.Printf("Build Date: %s\n", BuildDate)
	cmd.Printf("Git Commit: %s\n", GitCommit)
}
