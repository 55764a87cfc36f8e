package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"video-converter/internal/database"
	"video-converter/internal/startup"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var limit int
	var dir string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List conversions recorded by the web service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				dir = os.Getenv("DATABASE_DIR")
			}
			if dir == "" {
				dir = ".data"
			}
			path := filepath.Join(dir, startup.DatabaseFile)
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("no history database at %s", path)
			}

			db, err := database.New(cmd.Context(), path)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			list, err := db.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), list)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of conversions to show")
	cmd.Flags().StringVar(&dir, "database-dir", "", "History directory (default: DATABASE_DIR or .data)")

	return cmd
}

func printHistory(w io.Writer, list []database.Conversion) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No conversions recorded.")
		return err
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "When", "Input", "Size", "Status", "Attempts", "Output"})
	for _, c := range list {
		tw.AppendRow(table.Row{
			c.ID[:min(8, len(c.ID))],
			humanize.Time(c.CreatedAt),
			c.InputName,
			humanize.Bytes(uint64(max(c.InputBytes, 0))),
			string(c.Status),
			strconv.Itoa(c.Attempts),
			c.OutputName,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	_, err := fmt.Fprintln(w, tw.Render())
	return err
}
