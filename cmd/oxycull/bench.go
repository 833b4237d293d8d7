package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/Carmen-Shannon/oxy-cull/engine"
	"github.com/spf13/cobra"
)

type benchOptions struct {
	scene         sceneFlags
	frames        int
	statsInterval int
	workers       int
	async         bool
	renderMode    string
}

func newBenchCommand(root *rootOptions) *cobra.Command {
	opts := &benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Render frames headless on the software backend and report culling statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			cfg.Renderer.Backend = "software"
			opts.scene.apply(cmd, &cfg)
			flags := cmd.Flags()
			if flags.Changed("workers") {
				cfg.Renderer.Workers = opts.workers
			}
			if flags.Changed("async") {
				cfg.Renderer.AsyncCompute = opts.async
			}
			if flags.Changed("render-mode") {
				cfg.Renderer.RenderMode = opts.renderMode
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if opts.frames <= 0 {
				return fmt.Errorf("--frames must be positive, got %d", opts.frames)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := engine.NewFromConfig(cfg, engine.WithStatsInterval(opts.statsInterval))
			if err != nil {
				return err
			}
			defer e.Release()

			sum, err := e.RunFrames(ctx, opts.frames)
			perFrame := func(v uint64) float64 {
				if sum.Frames == 0 {
					return 0
				}
				return float64(v) / float64(sum.Frames)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "scene\t%s\n", e.Scene().Name())
			fmt.Fprintf(tw, "frames\t%d (%d aborted)\n", sum.Frames, sum.Aborted)
			fmt.Fprintf(tw, "elapsed\t%v\n", sum.Elapsed)
			fmt.Fprintf(tw, "fps\t%.1f\n", sum.FPS())
			fmt.Fprintf(tw, "survivors/frame\t%.1f\n", perFrame(sum.Survivors))
			fmt.Fprintf(tw, "chunks/frame\t%.1f\n", perFrame(sum.Chunks))
			fmt.Fprintf(tw, "draw slots/frame\t%.1f\n", perFrame(sum.DrawSlots))
			fmt.Fprintf(tw, "triangles/frame\t%.1f (%d frames sampled)\n", sum.MeanTriangles(), sum.Sampled)
			if ferr := tw.Flush(); ferr != nil && err == nil {
				err = ferr
			}
			return err
		},
	}
	opts.scene.register(cmd)
	cmd.Flags().IntVarP(&opts.frames, "frames", "n", 120, "number of frames to render")
	cmd.Flags().IntVar(&opts.statsInterval, "stats-interval", 1, "read back GPU counters every n frames, 0 to disable")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "software backend workers, 0 for one per CPU")
	cmd.Flags().BoolVar(&opts.async, "async", false, "record culling on the compute queue")
	cmd.Flags().StringVar(&opts.renderMode, "render-mode", "", "visibility or deferred")
	return cmd
}
