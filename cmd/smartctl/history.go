package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-smartctl/internal/history"
	"github.com/nerrad567/gray-logic-smartctl/internal/infrastructure/database"
)

type historyOptions struct {
	limit  int
	format string
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	hopts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history <controller-id>",
		Short: "Show recent state transitions of a controller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(hopts.format); err != nil {
				return err
			}

			cfg, _, err := opts.load()
			if err != nil {
				return err
			}

			db, err := database.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			entries, err := history.NewSQLiteRepository(db.DB).GetHistory(cmd.Context(), args[0], hopts.limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if hopts.format == formatJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			if len(entries) == 0 {
				_, err := fmt.Fprintf(out, "no transitions recorded for %s\n", args[0])
				return err
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tFROM\tTO\tON")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", e.CreatedAt.Local().Format(time.DateTime), e.From, e.To, e.IsOn)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&hopts.limit, "limit", "n", 20, "maximum transitions to show (max 200)")
	cmd.Flags().StringVar(&hopts.format, "format", formatText, "output format (text|json)")

	return cmd
}
