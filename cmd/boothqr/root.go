package main

import (
	"github.com/spf13/cobra"

	"boothqr/internal/config"
)

type rootFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "boothqr",
		Short:         "Show a countdown QR notification for every new photo booth picture",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "./"+config.DefaultFileName, "path to config (json, yaml or toml)")

	run := newRunCmd(flags)
	root.AddCommand(run, newConfigCmd(flags), newHistoryCmd(flags), newSampleCmd(flags))
	// bare "boothqr" runs the daemon
	root.RunE = run.RunE
	return root
}
