package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/traitgraph/internal/app"
	"github.com/specialistvlad/traitgraph/internal/hcl_adapter"
	"github.com/spf13/cobra"
)

// options holds the flags shared by every command. Only flags the user
// set override the settings file.
type options struct {
	outW io.Writer

	configPath string
	logLevel   string
	logFormat  string
	workers    int
	store      string
	storeDir   string
	redisAddr  string
}

// NewRootCommand builds the traitgraph command tree.
func NewRootCommand(outW io.Writer) *cobra.Command {
	opts := &options{outW: outW}

	root := &cobra.Command{
		Use:   "traitgraph",
		Short: "Traitgraph runs node graphs composed from traits",
		Long: `Traitgraph compiles graph and module descriptions written in HCL, stores
the compiled graphs and ticks module instances frame by frame.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(outW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", app.DefaultConfigFile, "Settings file. Missing is fine unless set explicitly.")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flags.StringVar(&opts.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	flags.IntVar(&opts.workers, "workers", 4, "Number of concurrent workers for the frame executor.")
	flags.StringVar(&opts.store, "store", "memory", "Graph store backend. Options: 'memory', 'file', 'redis'.")
	flags.StringVar(&opts.storeDir, "store-dir", "", "Directory of the file graph store.")
	flags.StringVar(&opts.redisAddr, "redis-addr", "", "Address of the redis graph store.")

	root.AddCommand(
		newRunCommand(opts),
		newValidateCommand(opts),
		newCompileCommand(opts),
		newDumpCommand(opts),
	)
	return root
}

// config reads the settings file and applies the flags the user set on
// top of it. Positional arguments replace the description paths.
func (o *options) config(cmd *cobra.Command, args []string) (*app.Config, error) {
	slog.Debug("Resolving settings.", "config", o.configPath)
	cfg, err := app.LoadConfig(o.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, usageError(err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = strings.ToLower(o.logLevel)
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = strings.ToLower(o.logFormat)
	}
	if flags.Changed("workers") {
		cfg.Workers = o.workers
	}
	if flags.Changed("store") {
		cfg.Store.Backend = o.store
	}
	if flags.Changed("store-dir") {
		cfg.Store.Dir = o.storeDir
	}
	if flags.Changed("redis-addr") {
		cfg.Store.Redis.Addr = o.redisAddr
	}
	if len(args) > 0 {
		cfg.Paths = args
	}

	if err := cfg.Validate(); err != nil {
		return nil, usageError(err)
	}
	return &cfg, nil
}

// load builds the app and loads the descriptions into it.
func (o *options) load(cfg *app.Config) (*app.App, error) {
	a := app.NewApp(o.outW, cfg, hcl_adapter.NewConverter())
	if err := a.Load(hcl_adapter.NewLoader()); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func closeApp(a *app.App, err *error) {
	if cerr := a.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("shutdown: %w", cerr)
	}
}
