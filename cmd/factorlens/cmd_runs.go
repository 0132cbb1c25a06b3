package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aristath/factorlens/internal/config"
	"github.com/aristath/factorlens/internal/di"
)

func newRunsCmd(a *app) *cobra.Command {
	var universe string
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent analysis runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			empty, _ := config.NewUniverses()
			container, err := di.Wire(ctx, a.cfg, empty, a.log)
			if err != nil {
				return err
			}
			defer container.Close()

			runs, err := container.RunRepo.List(ctx, universe, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tUNIVERSE\tSTATUS\tMODE\tASSETS\tPERIODS\tK\tCUM VAR\tID")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%.3f\t%s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04"), r.Universe, r.Status, r.Mode,
					r.Assets, r.Periods, r.Components, r.CumulativeVariance, r.ID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&universe, "universe", "", "Only runs of this universe")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")
	return cmd
}
