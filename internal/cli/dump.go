package cli

import (
	"github.com/spf13/cobra"
)

func newDumpCommand(opts *options) *cobra.Command {
	var (
		graphs    []string
		templates bool
	)

	cmd := &cobra.Command{
		Use:   "dump [PATH...]",
		Short: "Print the layout of the compiled graphs",
		Long: `Loads the descriptions and walks every graph node by node, printing the
template, trait count and byte footprint of each. With --templates the node
template registry is printed as well.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := opts.config(cmd, args)
			if err != nil {
				return err
			}
			a, err := opts.load(cfg)
			if err != nil {
				return err
			}
			defer closeApp(a, &err)

			w := cmd.OutOrStdout()
			if err := a.DumpGraphs(w, graphs...); err != nil {
				return err
			}
			if templates {
				return a.DumpTemplates(w)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&graphs, "graph", "g", nil, "Graphs to dump. Defaults to every loaded graph.")
	cmd.Flags().BoolVar(&templates, "templates", false, "Also dump the node template registry.")
	return cmd
}
