package cli

import (
	"fmt"

	"github.com/specialistvlad/traitgraph/internal/app"
	"github.com/specialistvlad/traitgraph/internal/filestore"
	"github.com/specialistvlad/traitgraph/internal/hcl_adapter"
	"github.com/spf13/cobra"
)

func newCompileCommand(opts *options) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "compile [PATH...]",
		Short: "Compile the graphs into archive files",
		Long: `Compiles every graph description and writes one archive per graph into the
output directory. A file graph store pointed at the directory serves them.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := opts.config(cmd, args)
			if err != nil {
				return err
			}
			cfg.Store.Backend = "memory"

			a := app.NewApp(opts.outW, cfg, hcl_adapter.NewConverter())
			defer closeApp(a, &err)

			_, archives, err := a.Compile(hcl_adapter.NewLoader())
			if err != nil {
				return err
			}
			out, err := filestore.New(outDir)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			for _, ar := range archives {
				if err := out.Put(ctx, ar); err != nil {
					return fmt.Errorf("writing graph '%s': %w", ar.Name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s%s (%d bytes)\n", ar.Name, filestore.Extension, len(ar.Stream))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "graphs", "Directory the archives are written to.")
	return cmd
}
