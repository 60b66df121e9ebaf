// Command katomik is the CLI entry point: discover, diff, ensure and clean
// states for a graph of Kubernetes manifests.
package main

import (
	"os"

	"k8s.io/cli-runtime/pkg/genericiooptions"

	"github.com/hashmap-kz/katomik-flow/cmd"
)

func main() {
	streams := genericiooptions.IOStreams{In: os.Stdin, Out: os.Stdout, ErrOut: os.Stderr}
	if err := cmd.NewRootCmd(streams).Execute(); err != nil {
		os.Exit(1)
	}
}
