package main

import (
	"os/signal"
	"syscall"

	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine"
	"github.com/spf13/cobra"
)

type runOptions struct {
	scene      sceneFlags
	renderMode string
	async      bool
	uncapped   bool
	profile    bool
	fpsLimit   float64
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Render the configured scene in a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			opts.scene.apply(cmd, &cfg)
			flags := cmd.Flags()
			if flags.Changed("render-mode") {
				cfg.Renderer.RenderMode = opts.renderMode
			}
			if flags.Changed("async") {
				cfg.Renderer.AsyncCompute = opts.async
			}
			if opts.uncapped {
				cfg.Renderer.PresentMode = "uncapped"
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := engine.NewFromConfig(cfg,
				engine.WithProfiling(opts.profile),
				engine.WithRenderFrameLimit(opts.fpsLimit),
			)
			if err != nil {
				return err
			}
			defer e.Release()
			return e.Run(ctx)
		},
	}
	opts.scene.register(cmd)
	cmd.Flags().StringVar(&opts.renderMode, "render-mode", "", "visibility or deferred")
	cmd.Flags().BoolVar(&opts.async, "async", false, "record culling on the compute queue")
	cmd.Flags().BoolVar(&opts.uncapped, "uncapped", false, "present without vsync")
	cmd.Flags().BoolVar(&opts.profile, "profile", false, "log frame statistics every second")
	cmd.Flags().Float64Var(&opts.fpsLimit, "fps-limit", 0, "render frame rate cap, 0 for none")
	return cmd
}

// sceneFlags override the scene section of the configuration.
type sceneFlags struct {
	gltf       string
	procedural int
	lights     int
	noShadow   bool
}

func (f *sceneFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.gltf, "gltf", "", "glTF or GLB file to render instead of the procedural grid")
	cmd.Flags().IntVar(&f.procedural, "grid", 0, "procedural objects per grid axis")
	cmd.Flags().IntVar(&f.lights, "lights", 0, "number of point lights")
	cmd.Flags().BoolVar(&f.noShadow, "no-shadow", false, "disable the shadow view")
}

func (f *sceneFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("gltf") {
		cfg.Scene.GLTF = f.gltf
	}
	if flags.Changed("grid") {
		cfg.Scene.Procedural = f.procedural
	}
	if flags.Changed("lights") {
		cfg.Scene.Lights = f.lights
	}
	if f.noShadow {
		cfg.Shadow.Enabled = false
	}
}
