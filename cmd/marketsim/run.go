package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/marketsim/internal/market"
	"github.com/GoSim-25-26J-441/marketsim/internal/runner"
	"github.com/GoSim-25-26J-441/marketsim/pkg/config"
	"github.com/GoSim-25-26J-441/marketsim/pkg/logger"
	"github.com/GoSim-25-26J-441/marketsim/pkg/models"
	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

type runOpts struct {
	parallel bool
	workers  int
	outDir   string
	noSave   bool
}

func newRunCmd() *cobra.Command {
	var o runOpts
	cmd := &cobra.Command{
		Use:   "run [scenario.yaml ...]",
		Short: "Simulate one or more scenarios and write their datasets",
		Long: `Simulate each scenario in turn. A single scenario prints a full summary;
several print one line per scenario.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := scenarioArgs(args)
			results := make([]*runner.Result, 0, len(paths))
			for _, path := range paths {
				res, err := o.execute(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("scenario %s: %w", path, err)
				}
				results = append(results, res)
			}
			if len(results) == 1 {
				printSummary(cmd.OutOrStdout(), results[0])
				return nil
			}
			printScenarioLines(cmd.OutOrStdout(), paths, results)
			return nil
		},
	}
	cmd.Flags().BoolVar(&o.parallel, "parallel", false, "solve hours concurrently after sampling drivers in order")
	cmd.Flags().IntVarP(&o.workers, "workers", "w", 0, "parallel solve workers (implies --parallel; 0 = one per hour)")
	cmd.Flags().StringVarP(&o.outDir, "out-dir", "o", "", "output directory (overrides io.out_dir)")
	cmd.Flags().BoolVar(&o.noSave, "no-save", false, "simulate without writing any files")
	return cmd
}

func (o runOpts) execute(ctx context.Context, path string) (*runner.Result, error) {
	cfg, err := config.LoadScenario(path)
	if err != nil {
		return nil, err
	}
	return runner.Execute(ctx, cfg, runner.Options{
		Parallel: o.parallel || o.workers > 0,
		Workers:  o.workers,
		Save:     !o.noSave,
		OutDir:   o.outDir,
		Logger:   logger.Default.With("scenario", path),
	})
}

// printScenarioLines writes one headline per scenario.
func printScenarioLines(w io.Writer, paths []string, results []*runner.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "scenario\thours\tprice mean\tmin\tmax\tfloor/ceiling/fallback\tfiles")
	for i, res := range results {
		s := res.Summary
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t%d / %d / %d\t%d\n",
			paths[i], s.Hours, s.MeanPrice, s.MinPrice, s.MaxPrice,
			s.FloorHours, s.CeilingHours, s.FallbackHours, len(res.Files))
	}
}

func printSummary(w io.Writer, res *runner.Result) {
	s := res.Summary
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "hours\t%d\n", s.Hours)
	fmt.Fprintf(tw, "period\t%s .. %s\n", s.Start.Format("2006-01-02 15:04"), s.End.Format("2006-01-02 15:04"))
	fmt.Fprintf(tw, "price mean/min/max\t%.2f / %.2f / %.2f\n", s.MeanPrice, s.MinPrice, s.MaxPrice)
	fmt.Fprintf(tw, "price std\t%.2f\n", s.StdPrice)
	fmt.Fprintf(tw, "quantity mean\t%.1f\n", s.MeanQuantity)
	fmt.Fprintf(tw, "floor/ceiling/fallback hours\t%d / %d / %d\n", s.FloorHours, s.CeilingHours, s.FallbackHours)
	for _, tech := range market.Technologies {
		fmt.Fprintf(tw, "mean output %s\t%.1f\n", tech, s.MeanOutput[tech])
	}
	printRegimePrices(tw, s)
	for _, kind := range slices.Sorted(maps.Keys(res.Files)) {
		fmt.Fprintf(tw, "wrote %s\t%s\n", kind, res.Files[kind])
	}
}

func printRegimePrices(w io.Writer, s *models.RunSummary) {
	if s.RegimeVariable == "" {
		return
	}
	for _, regime := range slices.Sorted(maps.Keys(s.MeanPriceByRegime)) {
		fmt.Fprintf(w, "mean price %s=%s\t%.2f\n", s.RegimeVariable, regime, utils.Round(s.MeanPriceByRegime[regime], 2))
	}
}
