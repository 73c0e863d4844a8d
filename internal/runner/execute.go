package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoSim-25-26J-441/marketsim/internal/metrics"
	"github.com/GoSim-25-26J-441/marketsim/internal/output"
	"github.com/GoSim-25-26J-441/marketsim/internal/simulate"
	"github.com/GoSim-25-26J-441/marketsim/pkg/config"
	"github.com/GoSim-25-26J-441/marketsim/pkg/logger"
	"github.com/GoSim-25-26J-441/marketsim/pkg/models"
)

// Options tune a single execution
type Options struct {
	// Parallel clears hours concurrently after sampling drivers in order
	Parallel bool
	// Workers bounds the parallel solve; <= 0 means one goroutine per hour
	Workers int
	// Save writes the dataset artifacts selected by the scenario's io block
	Save bool
	// OutDir overrides io.out_dir when set
	OutDir string

	Progress    *models.Progress
	Instruments *metrics.Instruments
	Observers   []simulate.Observer
	Logger      *slog.Logger
	// Clock names artifacts; defaults to the wall clock
	Clock func() time.Time
}

// Result is the outcome of one execution
type Result struct {
	Records []simulate.Record
	Summary *models.RunSummary
	Files   map[string]string
}

// Execute prepares and simulates cfg. On failure or cancellation the records
// produced so far are returned alongside the error and nothing is saved.
func Execute(ctx context.Context, cfg *config.Scenario, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Default
	}

	plan, err := Prepare(cfg, log)
	if err != nil {
		return nil, err
	}
	if opts.Progress != nil {
		opts.Progress.SetTotal(plan.Hours())
	}

	sim := simulate.New(plan.Scenario, plan.Demand, plan.Supply, plan.Grid, plan.Outages)
	sim.SetLogger(log)

	collector := metrics.NewCollector(cfg.RegimeSummaryVar)
	sim.AddObserver(collector)
	if opts.Instruments != nil {
		sim.AddObserver(opts.Instruments)
	}
	if opts.Progress != nil {
		p := opts.Progress
		sim.AddObserver(simulate.ObserverFunc(func(simulate.Record) { p.Advance(1) }))
	}
	for _, o := range opts.Observers {
		sim.AddObserver(o)
	}

	var records []simulate.Record
	if opts.Parallel {
		records, err = sim.RunParallel(ctx, opts.Workers)
	} else {
		records, err = sim.Run(ctx)
	}
	res := &Result{
		Records: records,
		Summary: metrics.BuildSummary(collector, cfg.RegimeSummaryVar),
	}
	if err != nil {
		return res, fmt.Errorf("simulate: %w", err)
	}

	log.Info("Run summary",
		"hours", res.Summary.Hours,
		"mean_price", res.Summary.MeanPrice,
		"min_price", res.Summary.MinPrice,
		"max_price", res.Summary.MaxPrice,
		"floor_hours", res.Summary.FloorHours,
		"ceiling_hours", res.Summary.CeilingHours)

	if !opts.Save {
		return res, nil
	}
	outOpts := plan.Output
	if opts.OutDir != "" {
		outOpts.OutDir = opts.OutDir
	}
	w := output.NewWriter(outOpts)
	w.SetLogger(log)
	if opts.Clock != nil {
		w.SetClock(opts.Clock)
	}
	files, err := w.Save(records, output.Meta{Summary: res.Summary, Config: cfg})
	res.Files = files
	if err != nil {
		return res, fmt.Errorf("save dataset: %w", err)
	}
	return res, nil
}

// Validate prepares cfg without simulating it, surfacing every configuration
// error the run itself would hit before the first hour.
func Validate(cfg *config.Scenario) (*Plan, error) {
	return Prepare(cfg, logger.Discard())
}
