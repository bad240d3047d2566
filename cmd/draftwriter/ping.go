package main

import (
	"context"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const pingTimeout = 10 * time.Second

func newPingCmd(flags *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the inference server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*flags)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), pingTimeout)
			defer cancel()

			version, err := cfg.backend(cfg.logger(cmd.ErrOrStderr())).Ping(ctx, cfg.Host)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			color.New(color.FgGreen, color.Bold).Fprint(out, "ok ")
			color.New(color.FgHiBlack).Fprintf(out, "%s %s at %s, model %s\n", cfg.Provider, version, cfg.Host, cfg.Model)
			return nil
		},
	}
}
