package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/medvault/phivault/cmd/app/commands"
	"github.com/medvault/phivault/internal/app"
)

// keyCommands returns the key version lifecycle commands.
func keyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-key",
			Usage: "Register a new key version (material must exist in the key supplier)",
			Flags: []cli.Flag{
				&cli.UintFlag{
					Name:     "label",
					Aliases:  []string{"l"},
					Required: true,
					Usage:    "Numeric version label embedded in ciphertext",
				},
				&cli.StringFlag{
					Name:    "algorithm",
					Aliases: []string{"alg"},
					Value:   "aes-gcm",
					Usage:   "Encryption algorithm to use (aes-gcm or chacha20-poly1305)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return runWithContainer(ctx, func(ctx context.Context, container *app.Container) error {
					keyUseCase, err := container.KeyUseCase()
					if err != nil {
						return err
					}
					ring, err := container.KeyRing(ctx)
					if err != nil {
						return err
					}
					supplier, err := container.KeySupplier(ctx)
					if err != nil {
						return err
					}
					return commands.RunCreateKey(
						ctx,
						keyUseCase,
						ring,
						supplier,
						container.Logger(),
						uint64(cmd.Uint("label")),
						cmd.String("algorithm"),
					)
				})
			},
		},
		{
			Name:  "list-keys",
			Usage: "List registered key versions with their roles",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return runWithContainer(ctx, func(ctx context.Context, container *app.Container) error {
					ring, err := container.KeyRing(ctx)
					if err != nil {
						return err
					}
					return commands.RunListKeys(ring, os.Stdout)
				})
			},
		},
		{
			Name:  "promote-key",
			Usage: "Make a key version the write-current one",
			Flags: []cli.Flag{
				&cli.UintFlag{
					Name:     "label",
					Aliases:  []string{"l"},
					Required: true,
					Usage:    "Version label to promote",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return runWithContainer(ctx, func(ctx context.Context, container *app.Container) error {
					keyUseCase, err := container.KeyUseCase()
					if err != nil {
						return err
					}
					ring, err := container.KeyRing(ctx)
					if err != nil {
						return err
					}
					return commands.RunPromoteKey(ctx, keyUseCase, ring, container.Logger(), uint64(cmd.Uint("label")))
				})
			},
		},
		{
			Name:  "retire-key",
			Usage: "Retire a key version with no remaining encrypted rows",
			Flags: []cli.Flag{
				&cli.UintFlag{
					Name:     "label",
					Aliases:  []string{"l"},
					Required: true,
					Usage:    "Version label to retire",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return runWithContainer(ctx, func(ctx context.Context, container *app.Container) error {
					keyUseCase, err := container.KeyUseCase()
					if err != nil {
						return err
					}
					ring, err := container.KeyRing(ctx)
					if err != nil {
						return err
					}
					return commands.RunRetireKey(ctx, keyUseCase, ring, container.Logger(), uint64(cmd.Uint("label")))
				})
			},
		},
	}
}
