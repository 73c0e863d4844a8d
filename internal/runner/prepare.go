// Package runner turns a validated scenario document into a simulation and
// executes it end to end: build schedules, clear every hour, summarize and
// persist the dataset.
package runner

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/GoSim-25-26J-441/marketsim/internal/dist"
	"github.com/GoSim-25-26J-441/marketsim/internal/market"
	"github.com/GoSim-25-26J-441/marketsim/internal/output"
	"github.com/GoSim-25-26J-441/marketsim/internal/planner"
	"github.com/GoSim-25-26J-441/marketsim/internal/scenario"
	"github.com/GoSim-25-26J-441/marketsim/internal/series"
	"github.com/GoSim-25-26J-441/marketsim/internal/simulate"
	"github.com/GoSim-25-26J-441/marketsim/pkg/config"
	"github.com/GoSim-25-26J-441/marketsim/pkg/logger"
)

// Plan is a scenario resolved into domain objects
type Plan struct {
	Config   *config.Scenario
	Scenario *scenario.Scenario
	Demand   *market.Demand
	Supply   *market.Supply
	Grid     market.PriceGrid
	Outages  simulate.Outages
	Output   output.Options
}

// Prepare loads empirical series, parses every distribution and builds the
// regime schedules. It fails on the first configuration error.
func Prepare(cfg *config.Scenario, log *slog.Logger) (*Plan, error) {
	if log == nil {
		log = logger.Default
	}
	start, err := cfg.Start()
	if err != nil {
		return nil, fmt.Errorf("start_ts: %w", err)
	}

	loaded, err := loadSeries(cfg.EmpiricalSeries)
	if err != nil {
		return nil, err
	}

	vars, err := variables(cfg)
	if err != nil {
		return nil, err
	}

	global, err := globalSettings(cfg.Planner.GlobalSettings)
	if err != nil {
		return nil, err
	}

	b, err := scenario.NewBuilder(scenario.Config{
		Start:     start,
		Days:      cfg.Days,
		Seed:      cfg.Seed,
		Mode:      scenario.Mode(cfg.Planner.Mode),
		Global:    global,
		Variables: vars,
		Series:    loaded,
	}, log)
	if err != nil {
		return nil, err
	}
	sc, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build scenario: %w", err)
	}

	grid, err := market.NewPriceGrid(cfg.Grid())
	if err != nil {
		return nil, fmt.Errorf("price_grid: %w", err)
	}

	w := cfg.Weather
	supply := market.NewSupply(
		market.AvailabilityMode(cfg.RenewableMode),
		market.WindParams{
			BaseCapacityFactor: w.Wind.Params.BaseCapacityFactor,
			Persistence:        w.Wind.Params.Persistence,
			Volatility:         w.Wind.Params.Volatility,
		},
		market.SolarParams{
			SunriseHour:        w.Solar.Params.SunriseHour,
			SunsetHour:         w.Solar.Params.SunsetHour,
			PeakCapacityFactor: w.Solar.Params.PeakCapacityFactor,
		},
		cfg.Seed,
	)

	log.Debug("Scenario prepared",
		"variables", len(sc.Order),
		"series", len(loaded),
		"grid_points", len(grid),
		"mode", sc.Mode)

	return &Plan{
		Config:   cfg,
		Scenario: sc,
		Demand:   market.NewDemand(demandConfig(cfg.Demand)),
		Supply:   supply,
		Grid:     grid,
		Outages:  outages(cfg.PlannedOutages),
		Output:   outputOptions(cfg.IO),
	}, nil
}

func loadSeries(paths map[string]string) (map[string]*series.Series, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	out := make(map[string]*series.Series, len(paths))
	for _, name := range slices.Sorted(maps.Keys(paths)) {
		s, err := series.LoadCSV(name, paths[name])
		if err != nil {
			return nil, err
		}
		out[name] = s
	}
	return out, nil
}

func variables(cfg *config.Scenario) (map[string][]scenario.RegimeDef, error) {
	out := make(map[string][]scenario.RegimeDef, len(cfg.Variables))
	for name, v := range cfg.Variables {
		defs := make([]scenario.RegimeDef, 0, len(v.Regimes))
		for _, r := range v.Regimes {
			spec, err := dist.Parse(r.Dist)
			if err != nil {
				return nil, fmt.Errorf("variable %s regime %s: %w", name, r.Name, err)
			}
			bps, err := breakpoints(r.Breakpoints)
			if err != nil {
				return nil, fmt.Errorf("variable %s regime %s: %w", name, r.Name, err)
			}
			defs = append(defs, scenario.RegimeDef{Name: r.Name, Dist: spec, Breakpoints: bps})
		}
		out[name] = defs
	}
	return out, nil
}

func breakpoints(in []config.Breakpoint) ([]planner.Breakpoint, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]planner.Breakpoint, len(in))
	for i, bp := range in {
		d, err := config.ParseTime(bp.Date)
		if err != nil {
			return nil, fmt.Errorf("breakpoint %d: %w", i, err)
		}
		out[i] = planner.Breakpoint{Date: d, TransitionHours: bp.Hours()}
	}
	return out, nil
}

func globalSettings(g *config.GlobalSettings) (scenario.GlobalSettings, error) {
	if g == nil {
		return scenario.GlobalSettings{}, nil
	}
	out := scenario.GlobalSettings{NRegimes: g.NRegimes}

	bps, err := breakpoints(g.Breakpoints)
	if err != nil {
		return out, fmt.Errorf("global_settings: %w", err)
	}
	out.Breakpoints = bps

	if st := g.StochasticBreakpoints; st != nil && st.Enabled {
		out.Stochastic = &planner.StochasticConfig{
			NRegimes:       g.NRegimes,
			MinSegmentDays: st.MinSegmentDays,
			MaxSegmentDays: st.MaxSegmentDays,
			Transition: planner.TransitionPolicy{
				Type:  st.TransitionHours.Type,
				Value: st.TransitionHours.Value,
				Min:   st.TransitionHours.Min,
				Max:   st.TransitionHours.Max,
			},
		}
	}

	if len(g.DistributionTemplates) > 0 {
		out.Templates = make(map[string]dist.Spec, len(g.DistributionTemplates))
		for name, raw := range g.DistributionTemplates {
			spec, err := dist.Parse(raw)
			if err != nil {
				return out, fmt.Errorf("distribution template %s: %w", name, err)
			}
			out.Templates[name] = spec
		}
	}
	return out, nil
}

func demandConfig(d config.Demand) market.DemandConfig {
	return market.DemandConfig{
		BaseIntercept:     d.BaseIntercept,
		Slope:             d.Slope,
		DailySeasonality:  d.DailySeasonality,
		DayPeakHour:       d.DayPeakHour,
		DayAmp:            d.DayAmp,
		WeekendDrop:       d.WeekendDrop,
		AnnualSeasonality: d.AnnualSeasonality,
		WinterAmp:         d.WinterAmp,
		SummerAmp:         d.SummerAmp,
		Inelastic:         d.Inelastic,
	}
}

func outages(o config.PlannedOutages) simulate.Outages {
	return simulate.Outages{
		Enabled: o.Enabled,
		Months:  slices.Clone(o.Months),
		Reductions: map[string]float64{
			"nuclear": o.NuclearReduction,
			"coal":    o.CoalReduction,
			"gas":     o.GasReduction,
		},
	}
}

func outputOptions(io config.IO) output.Options {
	opts := output.Options{
		OutDir:          io.OutDir,
		DatasetName:     io.DatasetName,
		Version:         io.Version,
		AddTimestamp:    io.AddTimestamp,
		TimestampFormat: io.TimestampFmt,
		SaveCSV:         io.SaveCSV,
		SaveExcel:       io.SaveExcel,
		SaveHeadCSV:     io.SaveHeadCSV,
		SaveMeta:        io.SaveMeta,
		HeadRows:        io.HeadRows,
	}
	if opts.TimestampFormat == "" {
		opts.TimestampFormat = output.DefaultOptions().TimestampFormat
	}
	return opts
}

// Hours is the number of hourly records the plan produces
func (p *Plan) Hours() int { return p.Scenario.Days * 24 }

// Span is the first and last simulated hour
func (p *Plan) Span() (time.Time, time.Time) {
	first := p.Scenario.Start
	return first, first.Add(time.Duration(p.Hours()-1) * time.Hour)
}
