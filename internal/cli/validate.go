package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [PATH...]",
		Short: "Check the descriptions without running them",
		Long: `Compiles every graph and module against the trait catalog and reports the
first error. Nothing is kept: the graphs go to an in-memory store.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := opts.config(cmd, args)
			if err != nil {
				return err
			}
			cfg.Store.Backend = "memory"

			a, err := opts.load(cfg)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			defer closeApp(a, &err)

			instances := 0
			for _, name := range a.Modules() {
				instances += len(a.Handles(name))
			}
			graphs := a.Graphs()
			warnings := 0
			for _, g := range graphs {
				warnings += len(g.Warnings())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Descriptions are valid: %d graphs, %d module instances, %d warnings ✅\n",
				len(graphs), instances, warnings)
			return nil
		},
	}
}
