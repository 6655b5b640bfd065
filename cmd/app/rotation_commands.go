package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/medvault/phivault/cmd/app/commands"
	"github.com/medvault/phivault/internal/app"
	rotationUseCase "github.com/medvault/phivault/internal/rotation/usecase"
)

// rotationAction resolves the rotation use case and runs fn with it.
func rotationAction(
	fn func(ctx context.Context, cmd *cli.Command, container *app.Container, rotationUC rotationUseCase.RotationUseCase) error,
) func(ctx context.Context, cmd *cli.Command) error {
	return func(ctx context.Context, cmd *cli.Command) error {
		return runWithContainer(ctx, func(ctx context.Context, container *app.Container) error {
			rotationUC, err := container.RotationUseCase(ctx)
			if err != nil {
				return err
			}
			return fn(ctx, cmd, container, rotationUC)
		})
	}
}

func jobIDFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "id",
		Aliases:  []string{"i"},
		Required: true,
		Usage:    "Rotation job ID (UUID)",
	}
}

// rotationCommands returns the rotation job commands.
func rotationCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "rotate-start",
			Usage: "Create a rotation job and promote the target version to write-current",
			Flags: []cli.Flag{
				&cli.UintFlag{
					Name:     "source",
					Aliases:  []string{"s"},
					Required: true,
					Usage:    "Source version label to migrate away from",
				},
				&cli.UintFlag{
					Name:     "target",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Target version label to re-encrypt under",
				},
			},
			Action: rotationAction(func(ctx context.Context, cmd *cli.Command, container *app.Container, rotationUC rotationUseCase.RotationUseCase) error {
				return commands.RunRotateStart(ctx, rotationUC, container.Logger(), uint64(cmd.Uint("source")), uint64(cmd.Uint("target")))
			}),
		},
		{
			Name:  "rotate-run",
			Usage: "Drive a rotation job until it completes, pauses or fails",
			Flags: []cli.Flag{jobIDFlag()},
			Action: rotationAction(func(ctx context.Context, cmd *cli.Command, container *app.Container, rotationUC rotationUseCase.RotationUseCase) error {
				return commands.RunRotateRun(ctx, rotationUC, container.Logger(), cmd.String("id"))
			}),
		},
		{
			Name:  "rotate-status",
			Usage: "Print a rotation job's state and counters",
			Flags: []cli.Flag{jobIDFlag()},
			Action: rotationAction(func(ctx context.Context, cmd *cli.Command, container *app.Container, rotationUC rotationUseCase.RotationUseCase) error {
				return commands.RunRotateStatus(ctx, rotationUC, os.Stdout, cmd.String("id"))
			}),
		},
		{
			Name:  "rotate-pause",
			Usage: "Ask a running rotation job to stop after its current batch",
			Flags: []cli.Flag{jobIDFlag()},
			Action: rotationAction(func(ctx context.Context, cmd *cli.Command, container *app.Container, rotationUC rotationUseCase.RotationUseCase) error {
				return commands.RunRotatePause(ctx, rotationUC, container.Logger(), cmd.String("id"))
			}),
		},
		{
			Name:  "rotate-resume",
			Usage: "Move a paused rotation job back to running",
			Flags: []cli.Flag{jobIDFlag()},
			Action: rotationAction(func(ctx context.Context, cmd *cli.Command, container *app.Container, rotationUC rotationUseCase.RotationUseCase) error {
				return commands.RunRotateResume(ctx, rotationUC, container.Logger(), cmd.String("id"))
			}),
		},
		{
			Name:  "rotate-abort",
			Usage: "Roll a rotation job back and restore the source version as write-current",
			Flags: []cli.Flag{jobIDFlag()},
			Action: rotationAction(func(ctx context.Context, cmd *cli.Command, container *app.Container, rotationUC rotationUseCase.RotationUseCase) error {
				return commands.RunRotateAbort(ctx, rotationUC, container.Logger(), cmd.String("id"))
			}),
		},
	}
}
