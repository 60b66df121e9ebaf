package cmd

import (
	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/cli-runtime/pkg/genericiooptions"

	"github.com/hashmap-kz/katomik-flow/cmds"
	"github.com/hashmap-kz/katomik-flow/output"
)

// NewDiscoverCmd builds the "discover" subcommand: it records each item's
// live current state and its params-derived goal state to the workspace.
func NewDiscoverCmd(streams genericiooptions.IOStreams) *cobra.Command {
	var opts manifestOptions
	cfgFlags := genericclioptions.NewConfigFlags(true)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover current and goal states for the given manifests.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			writer := output.NewTerminalWriter(streams.Out, nil)

			flow, layout, err := buildFlow(streams, opts, cfgFlags)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			current, goal, err := cmds.RunStatesDiscoverCurrentAndGoal(ctx, flow,
				string(layout.StatesCurrentFile(stateFileExt)), string(layout.StatesGoalFile(stateFileExt)))
			if err != nil {
				writer.WriteErr(err)
				return err
			}

			writer.Present(storePresentable{title: "states_current", store: current})
			writer.Present(storePresentable{title: "states_goal", store: goal})
			return nil
		},
	}

	addManifestFlags(cmd.Flags(), &opts)
	addConnectionFlags(cmd.Flags(), cfgFlags)
	return cmd
}
