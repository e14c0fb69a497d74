package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"synthgear/internal/gearcontext"
	"synthgear/internal/logging"
	"synthgear/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var requirePlatform bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check directories, executables, gear config and platform access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			var apiKey string
			if manifest, err := gearcontext.Load(cfg.Paths.GearConfig); err == nil {
				apiKey = manifest.APIKey(cfg.Platform.APIKeyInput)
			}
			var pinger preflight.Pinger
			client, err := ctx.platformClient(apiKey, logging.NewNop())
			if err != nil {
				return err
			}
			if client != nil {
				pinger = client
			}

			results := preflight.RunAll(cmd.Context(), cfg, pinger, requirePlatform)
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			source := ctx.configPath
			if !ctx.configExists {
				source = "defaults (no config file)"
			}
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, source, colorize))
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if pinger == nil && !requirePlatform {
				fmt.Fprintln(out, renderStatusLine("Platform API", statusWarn, "skipped (no api key)", colorize))
			}

			if err := preflight.Failed(results); err != nil {
				var failed []string
				for _, r := range results {
					if !r.Passed {
						failed = append(failed, r.Name)
					}
				}
				return fmt.Errorf("%d check(s) failed: %s", len(failed), strings.Join(failed, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&requirePlatform, "platform", false, "Fail when the platform API cannot be reached")
	return cmd
}
