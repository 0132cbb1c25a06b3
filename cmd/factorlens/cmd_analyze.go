package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aristath/factorlens/internal/config"
	"github.com/aristath/factorlens/internal/di"
	"github.com/aristath/factorlens/internal/modules/analysis"
	"github.com/aristath/factorlens/internal/modules/artifacts"
	"github.com/aristath/factorlens/internal/modules/factors"
)

type analyzeOptions struct {
	universe   string
	mode       string
	target     float64
	window     int
	corrWindow int
	units      string
	lookback   int
	out        string
	xlsx       bool
	upload     bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the factor analysis for one universe and print the takeaways",
		Long: `Run the factor analysis for a universe given as a YAML file or as the name of a
universe in UNIVERSE_DIR. Flags override the universe settings. With --out the CSV
tables (and with --xlsx the workbook) are written below the directory; --upload copies
them to the configured S3 bucket.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd, opts)
		},
	}

	d := analysis.DefaultConfig()
	cmd.Flags().StringVar(&opts.universe, "universe", "", "Universe YAML file or universe name")
	cmd.Flags().StringVar(&opts.mode, "mode", string(d.Mode), "Preprocessing mode (demeaned|standardized)")
	cmd.Flags().Float64Var(&opts.target, "target", d.VarianceTarget, "Cumulative explained variance target in (0,1]")
	cmd.Flags().IntVar(&opts.window, "window", d.RollingWindow, "Rolling residual z-score window")
	cmd.Flags().IntVar(&opts.corrWindow, "corr-window", d.CorrelationWindow, "Rolling pair correlation window")
	cmd.Flags().StringVar(&opts.units, "units", string(d.ResidualUnits), "Residual units (returns|preprocessed)")
	cmd.Flags().IntVar(&opts.lookback, "lookback", d.LookbackDays, "Calendar days of history, 0 for all")
	cmd.Flags().StringVar(&opts.out, "out", "", "Artifact directory (default ARTIFACTS_DIR)")
	cmd.Flags().BoolVar(&opts.xlsx, "xlsx", false, "Also write factor_analysis.xlsx")
	cmd.Flags().BoolVar(&opts.upload, "upload", false, "Upload artifacts to S3")
	_ = cmd.MarkFlagRequired("universe")
	return cmd
}

// loadUniverse accepts a path to a universe file or the name of a configured universe.
func (a *app) loadUniverse(ref string) (*config.Universe, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return config.LoadUniverse(ref)
	}
	universes, err := config.LoadUniverses(a.cfg.UniverseDir)
	if err != nil {
		return nil, err
	}
	return universes.Get(ref)
}

// applyFlags overrides cfg with the flags the user actually set.
func applyFlags(cmd *cobra.Command, opts *analyzeOptions, cfg *analysis.Config) {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Mode = factors.Mode(opts.mode)
	}
	if flags.Changed("target") {
		cfg.VarianceTarget = opts.target
	}
	if flags.Changed("window") {
		cfg.RollingWindow = opts.window
	}
	if flags.Changed("corr-window") {
		cfg.CorrelationWindow = opts.corrWindow
	}
	if flags.Changed("units") {
		cfg.ResidualUnits = factors.ResidualUnits(opts.units)
	}
	if flags.Changed("lookback") {
		cfg.LookbackDays = opts.lookback
	}
}

func (a *app) runAnalyze(cmd *cobra.Command, opts *analyzeOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	u, err := a.loadUniverse(opts.universe)
	if err != nil {
		return err
	}
	universes, err := config.NewUniverses(u)
	if err != nil {
		return err
	}
	cfg, err := analysis.ConfigFromUniverse(u)
	if err != nil {
		return err
	}
	applyFlags(cmd, opts, &cfg)

	// Artifacts are exported explicitly below rather than by the service publisher.
	appCfg := *a.cfg
	outDir := opts.out
	if outDir == "" {
		outDir = appCfg.ArtifactsDir
	}
	appCfg.ArtifactsDir = ""

	container, err := di.Wire(ctx, &appCfg, universes, a.log)
	if err != nil {
		return err
	}
	defer container.Close()

	res, err := container.AnalysisService.RunWithConfig(ctx, u.Name, cfg)
	if err != nil {
		return err
	}

	primary := ""
	if len(u.Groups) > 0 {
		primary = u.Groups[0].Name
	}
	out := cmd.OutOrStdout()
	if err := analysis.WriteReport(out, res, primary); err != nil {
		return err
	}

	if outDir == "" {
		if opts.upload || opts.xlsx {
			return fmt.Errorf("--xlsx and --upload need --out or ARTIFACTS_DIR")
		}
		return nil
	}

	publisher := artifacts.NewPublisher(outDir, a.log)
	publisher.SetWorkbook(opts.xlsx)
	if opts.upload {
		if !a.cfg.S3.Enabled() {
			return fmt.Errorf("--upload needs S3_BUCKET")
		}
		client, err := artifacts.NewS3Client(ctx, a.cfg.S3, a.log)
		if err != nil {
			return err
		}
		publisher.SetUploader(client, a.cfg.S3.Prefix)
	}
	files, err := publisher.Export(ctx, res)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nArtifacts written to %s:\n", publisher.RunDir(res))
	for _, f := range files {
		fmt.Fprintf(out, "  %s\n", f)
	}
	return nil
}
