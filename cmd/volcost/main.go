// volcost estimates monthly costs for tiered file volumes from retail prices,
// then optionally reconciles the estimate against actual billing data.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "volcost",
		Short:         "Cost estimation for tiered file volumes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "volcost.yaml", "Path to the config file")

	root.AddCommand(newEstimateCmd(&configPath))
	root.AddCommand(newRefreshCmd(&configPath))
	root.AddCommand(newAssumptionCmd(&configPath))
	return root
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(parsed).With().Timestamp().Logger()
}
