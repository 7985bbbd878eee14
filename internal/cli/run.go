package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newRunCommand(opts *options) *cobra.Command {
	var (
		frames        int
		deltaTime     float64
		frameInterval time.Duration
		metricsPort   int
	)

	cmd := &cobra.Command{
		Use:   "run [PATH...]",
		Short: "Load the descriptions and tick every module",
		Long: `Compiles the graphs, stores them, registers the module instances and runs
the frame loop until the frame count is reached or the process is interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := opts.config(cmd, args)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("frames") {
				cfg.Frames = frames
			}
			if flags.Changed("delta-time") {
				cfg.DeltaTime = deltaTime
			}
			if flags.Changed("frame-interval") {
				cfg.FrameInterval = frameInterval
			}
			if flags.Changed("metrics-port") {
				cfg.MetricsPort = metricsPort
			}
			if err := cfg.Validate(); err != nil {
				return usageError(err)
			}

			a, err := opts.load(cfg)
			if err != nil {
				return err
			}
			defer closeApp(a, &err)

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}

	cmd.Flags().IntVarP(&frames, "frames", "n", 0, "Frames to run. 0 runs until interrupted.")
	cmd.Flags().Float64Var(&deltaTime, "delta-time", 1.0/60, "Simulated seconds per frame.")
	cmd.Flags().DurationVar(&frameInterval, "frame-interval", 0, "Wall time between frames. 0 runs flat out.")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "Port for the diagnostics server. 0 is disabled.")
	return cmd
}
