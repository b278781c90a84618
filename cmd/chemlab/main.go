package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "chemlab",
		Short:         "Backend of the Arabic chemistry learning lab",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults to $CHEMLAB_CONFIG)")

	root.AddCommand(
		newServeCmd(&configPath),
		newExportCmd(&configPath),
		newClearCmd(&configPath),
		newAskCmd(&configPath),
	)
	return root
}
