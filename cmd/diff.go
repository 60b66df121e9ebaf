package cmd

import (
	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/cli-runtime/pkg/genericiooptions"

	"github.com/hashmap-kz/katomik-flow/cmds"
	"github.com/hashmap-kz/katomik-flow/items/k8sresource"
	"github.com/hashmap-kz/katomik-flow/output"
)

// NewDiffCmd builds the "diff" subcommand: it reports, per item, the change
// a subsequent ensure would apply, computed from the last discovered states.
func NewDiffCmd(streams genericiooptions.IOStreams) *cobra.Command {
	var opts manifestOptions
	cfgFlags := genericclioptions.NewConfigFlags(true)

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show the diff between discovered current and goal states.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			writer := output.NewTerminalWriter(streams.Out, nil)

			flow, layout, err := buildFlow(streams, opts, cfgFlags)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			current, err := cmds.ReadStatesCurrent(flow, string(layout.StatesCurrentFile(stateFileExt)))
			if err != nil {
				writer.WriteErr(err)
				return err
			}
			goal, err := cmds.ReadStatesGoal(flow, string(layout.StatesGoalFile(stateFileExt)))
			if err != nil {
				writer.WriteErr(err)
				return err
			}

			res, err := cmds.SetupResources(ctx, flow)
			if err != nil {
				writer.WriteErr(err)
				return err
			}

			diffs, err := cmds.RunDiff(ctx, flow, res, current, goal)
			if err != nil {
				writer.WriteErr(err)
				return err
			}

			writer.Present(diffPresentable[k8sresource.Diff]{title: "diff", diffs: diffs})
			return nil
		},
	}

	addManifestFlags(cmd.Flags(), &opts)
	addConnectionFlags(cmd.Flags(), cfgFlags)
	return cmd
}
