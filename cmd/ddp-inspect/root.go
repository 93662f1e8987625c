package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	return newRootCommandWith(nil)
}

// newRootCommandWith builds the command tree; setup, when non-nil, can
// replace the context's filesystem or services before any command runs.
func newRootCommandWith(setup func(*commandContext)) *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)
	if setup != nil {
		setup(ctx)
	}

	rootCmd := &cobra.Command{
		Use:           "ddp-inspect",
		Short:         "Inspect DDP 2.00 masters and identify them on MusicBrainz",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			ctx.flags = cmd.Flags()
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			_, err := ctx.ensureLogger(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (console, json, auto)")
	flags.String("log-file", "", "Also write JSON logs to this file")

	rootCmd.AddCommand(newDetectCommand(ctx))
	rootCmd.AddCommand(newParseCommand(ctx))
	rootCmd.AddCommand(newDiscIDCommand(ctx))
	rootCmd.AddCommand(newLookupCommand(ctx))
	rootCmd.AddCommand(newMetadataCommand(ctx))
	rootCmd.AddCommand(newCacheCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
