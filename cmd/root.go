// Package cmd wires the core framework (graph, stream, cmdblock, cmdexec,
// cmds) together with the k8sresource item family into a cobra CLI:
// discover, diff, ensure, and clean subcommands over a flow built from
// one or more manifest files.
package cmd

import (
	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericiooptions"
)

// NewRootCmd builds the root cobra.Command exposing the standard commands
// (C11) over Kubernetes manifests: discover, diff, ensure, clean.
func NewRootCmd(streams genericiooptions.IOStreams) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "katomik",
		Short:         "Declarative lifecycle management of Kubernetes manifests: discover, diff, ensure, clean.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})
	rootCmd.AddCommand(NewDiscoverCmd(streams))
	rootCmd.AddCommand(NewDiffCmd(streams))
	rootCmd.AddCommand(NewEnsureCmd(streams))
	rootCmd.AddCommand(NewCleanCmd(streams))
	return rootCmd
}
