package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/levelbgm/previewd/internal/config"
	"github.com/levelbgm/previewd/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently published preview clips",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.LedgerPath() == "" {
				return fmt.Errorf("conversion ledger is disabled; set %s", config.EnvLedgerPath)
			}

			repo, err := ledger.Open(cfg.LedgerPath(), ctx.logger())
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer repo.Close()

			entries, err := repo.List(cmd.Context(), ledger.ClampLimit(limit))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No conversions recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistory(entries))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", ledger.DefaultListLimit, "Maximum entries to show")
	return cmd
}

func renderHistory(entries []*ledger.Entry) string {
	headers := []string{"Created", "Source", "Window", "Clip", "Size"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			humanize.Time(e.CreatedAt),
			e.SourceHash,
			formatWindow(e.WindowStart, e.WindowEnd),
			e.ClipHash,
			humanize.Bytes(uint64(e.ClipBytes)),
		})
	}
	return renderTable(headers, rows, aligns)
}

func formatWindow(start, end float64) string {
	return strconv.FormatFloat(start, 'f', -1, 64) + "s-" + strconv.FormatFloat(end, 'f', -1, 64) + "s"
}
