// Package main is the factorlens command line: price import, one-off analyses and the
// HTTP server with scheduled runs.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/factorlens/internal/config"
	"github.com/aristath/factorlens/pkg/logger"
)

const version = "v0.4.0"

// app carries state shared by the subcommands once the root command has loaded it.
type app struct {
	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "factorlens",
		Short:   "Factor PCA and residual screening for equity universes",
		Version: version,
		Long: `factorlens decomposes the log returns of a universe into principal components,
keeps the components that explain the target share of variance and ranks assets by the
rolling z-score of what the factors leave unexplained.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logger.New(logger.Config{
				Level:  cfg.LogLevel,
				Pretty: true,
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	rootCmd.AddCommand(
		newImportCmd(a),
		newAnalyzeCmd(a),
		newRunsCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
