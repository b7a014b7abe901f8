package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"boothqr/internal/config"
	"boothqr/internal/storage"
	logx "boothqr/pkg/logx"
)

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent photos and notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewConfigManager(flags.configPath).Load()
			if err != nil {
				return err
			}
			st, err := storage.Open(storage.Config{
				Driver:      cfg.Storage.Driver,
				Path:        cfg.Storage.Path,
				BusyTimeout: cfg.Storage.BusyTimeoutDuration(),
			}, logx.Nop())
			if err != nil {
				return err
			}
			if st == nil {
				return errors.New("history is disabled (storage.driver is none)")
			}
			defer st.Close()

			recs, err := st.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Time", "Event", "Session", "File", "Reason", "Shown"})
			for _, r := range recs {
				t.AppendRow(table.Row{
					r.At.Local().Format(time.DateTime),
					r.Kind,
					sessionCell(r.SessionID),
					filepath.Base(r.Path),
					r.Reason,
					shownCell(r.ShownFor),
				})
			}
			t.SetCaption("%d record(s) from %s", len(recs), cfg.Storage.Path)
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "how many records to show")
	return cmd
}

func sessionCell(id int64) string {
	if id == 0 {
		return ""
	}
	return fmt.Sprintf("#%d", id)
}

func shownCell(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return d.Round(100 * time.Millisecond).String()
}
