package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aristath/factorlens/internal/config"
	"github.com/aristath/factorlens/internal/di"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import daily closing prices from a wide CSV file",
		Long: `Import a CSV with a Date column followed by one column of closing prices per symbol.
Existing prices for the same symbol and day are replaced. Cached analysis results are
invalidated afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("csv")
			source, _ := cmd.Flags().GetString("source")
			return a.runImport(cmd, path, source)
		},
	}
	cmd.Flags().String("csv", "", "Path to the price CSV file")
	cmd.Flags().String("source", "csv", "Source label stored with each price")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func (a *app) runImport(cmd *cobra.Command, path, source string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	empty, _ := config.NewUniverses()
	container, err := di.Wire(ctx, a.cfg, empty, a.log)
	if err != nil {
		return err
	}
	defer container.Close()

	summary, err := container.Importer.Import(ctx, f, source)
	if err != nil {
		return err
	}
	if err := container.AnalysisService.Invalidate(""); err != nil {
		a.log.Warn().Err(err).Msg("Failed to invalidate cached results")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d prices for %d symbols\n", summary.Prices, len(summary.Symbols))
	return nil
}
