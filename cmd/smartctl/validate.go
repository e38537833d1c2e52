package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-smartctl/internal/engine"
)

func newValidateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check config.yaml and list the controllers it defines",
		Long: `Load and validate the configuration, then build every controller
without connecting to anything. Exits non-zero on the first problem.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := opts.load()
			if err != nil {
				return err
			}

			unit := cfg.Unit()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tCONTROLLED\tINPUTS")
			for _, cc := range cfg.Controllers {
				def, err := engine.Build(cc, unit)
				if err != nil {
					return err
				}
				controlled := def.Config.Controlled
				if controlled == "" {
					controlled = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", cc.ID, cc.Type, controlled, len(def.Config.Tracked))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d controllers, temperature unit %s\n",
				path, len(cfg.Controllers), unit)
			return err
		},
	}
}
