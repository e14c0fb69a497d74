package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"synthgear/internal/gear"
	"synthgear/internal/gearcontext"
	"synthgear/internal/logging"
	"synthgear/internal/preflight"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the gear: pipeline, demographics and output curation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			manifest, err := gearcontext.Load(cfg.Paths.GearConfig)
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd.OutOrStdout(), manifest.Debug())
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			if !skipPreflight {
				results := preflight.RunAll(signalCtx, cfg, nil, false)
				for _, r := range results {
					if !r.Passed {
						logger.Error("preflight check failed",
							logging.String(logging.FieldEventType, "preflight_failure"),
							logging.String("check", r.Name),
							logging.String("detail", r.Detail),
						)
					}
				}
				if err := preflight.Failed(results); err != nil {
					return err
				}
			}

			_, err = gear.Run(signalCtx, gear.Options{
				Config:   cfg,
				Logger:   logger,
				Manifest: manifest,
			})
			return err
		},
	}

	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip directory and dependency checks before running")
	return cmd
}
