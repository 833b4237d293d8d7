package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-cull/engine/frame"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/shader"
	"github.com/spf13/cobra"
)

func newShadersCommand(_ *rootOptions) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "shaders",
		Short: "Validate every pipeline shader with naga",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipelines, err := frame.Pipelines()
			if err != nil {
				return err
			}
			sort.Slice(pipelines, func(i, j int) bool {
				return pipelines[i].PipelineKey() < pipelines[j].PipelineKey()
			})

			out := cmd.OutOrStdout()
			var errs []error
			for _, p := range pipelines {
				for _, st := range []shader.ShaderType{shader.ShaderTypeCompute, shader.ShaderTypeVertex, shader.ShaderTypeFragment} {
					s := p.Shader(st)
					if s == nil {
						continue
					}
					err := shader.Validate(s)
					switch {
					case err == nil:
						fmt.Fprintf(out, "ok       %s %s\n", p.PipelineKey(), st)
					case shader.Unsupported(err) && !strict:
						fmt.Fprintf(out, "skipped  %s %s: %v\n", p.PipelineKey(), st, err)
					default:
						fmt.Fprintf(out, "FAIL     %s %s: %v\n", p.PipelineKey(), st, err)
						errs = append(errs, err)
					}
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "treat unsupported naga features as failures")
	return cmd
}
