package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"boothqr/internal/config"
	"boothqr/internal/sample"
)

func newSampleCmd(flags *rootFlags) *cobra.Command {
	var (
		chunks int
		pause  time.Duration
		grain  bool
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Drop a synthetic photo into the watch folder, written like a camera would",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewConfigManager(flags.configPath).Load()
			if err != nil {
				return err
			}
			data, err := sample.JPEG(sample.Options{Grain: grain, Seed: uint64(time.Now().UnixNano())})
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Watch.Dir, sample.Name(time.Now()))
			if err := sample.WriteChunked(cmd.Context(), path, data, chunks, pause); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes in %d chunks)\n", path, len(data), chunks)
			return nil
		},
	}
	cmd.Flags().IntVar(&chunks, "chunks", 4, "number of writes")
	cmd.Flags().DurationVar(&pause, "pause", 200*time.Millisecond, "pause between writes")
	cmd.Flags().BoolVar(&grain, "grain", true, "add noise so the file is realistically large")
	return cmd
}
