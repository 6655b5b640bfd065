// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/medvault/phivault/cmd/app/commands"
	"github.com/medvault/phivault/internal/app"
	"github.com/medvault/phivault/internal/config"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "phivault",
		Usage:   "Field encryption service with versioned keys and live rotation",
		Version: version,
		Commands: append([]*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunMigrations()
				},
			},
			{
				Name:  "verify",
				Usage: "Count residual encrypted rows per key version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runWithContainer(ctx, func(ctx context.Context, container *app.Container) error {
						keyVersionRepo, err := container.KeyVersionRepository()
						if err != nil {
							return err
						}
						recordRepo, err := container.RecordRepository()
						if err != nil {
							return err
						}
						return commands.RunVerify(ctx, keyVersionRepo, recordRepo, os.Stdout)
					})
				},
			},
		}, append(keyCommands(), rotationCommands()...)...),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// runWithContainer builds the DI container, runs fn and releases the
// container's resources afterwards.
func runWithContainer(
	ctx context.Context,
	fn func(ctx context.Context, container *app.Container) error,
) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()

	defer func() {
		if err := container.Shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown container", slog.Any("error", err))
		}
	}()

	return fn(ctx, container)
}
