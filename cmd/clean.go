package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/cli-runtime/pkg/genericiooptions"

	"github.com/hashmap-kz/katomik-flow/cmds"
	"github.com/hashmap-kz/katomik-flow/output"
	"github.com/hashmap-kz/katomik-flow/state"
)

// NewCleanCmd builds the "clean" subcommand: it drives every item toward its
// clean (absent) state, in reverse dependency order, and persists the
// resulting current states.
func NewCleanCmd(streams genericiooptions.IOStreams) *cobra.Command {
	var opts manifestOptions
	var dryRun bool
	var applyStoredStateSync bool
	var timeout time.Duration
	cfgFlags := genericclioptions.NewConfigFlags(true)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean (remove) every item.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			writer := output.NewTerminalWriter(streams.Out, nil)

			flow, layout, err := buildFlow(streams, opts, cfgFlags)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			currentPath := string(layout.StatesCurrentFile(stateFileExt))
			goalPath := string(layout.StatesGoalFile(stateFileExt))

			var store *state.Store
			if dryRun {
				store, err = cmds.RunCleanDry(ctx, flow, currentPath, goalPath, applyStoredStateSync)
			} else {
				store, err = cmds.RunClean(ctx, flow, currentPath, goalPath, applyStoredStateSync)
			}
			if err != nil {
				writer.WriteErr(err)
				return err
			}

			writer.Present(storePresentable{title: "states_current", store: store})
			return nil
		},
	}

	addManifestFlags(cmd.Flags(), &opts)
	addConnectionFlags(cmd.Flags(), cfgFlags)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be cleaned, without applying it.")
	cmd.Flags().BoolVar(&applyStoredStateSync, "apply-stored-state-sync", false,
		"Abort before cleaning if the stored states_current/states_goal disagree with live discovery.")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultTimeout, "Timeout for the whole clean run.")
	return cmd
}
