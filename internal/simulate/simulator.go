package simulate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/marketsim/internal/market"
	"github.com/GoSim-25-26J-441/marketsim/internal/scenario"
	"github.com/GoSim-25-26J-441/marketsim/pkg/logger"
	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

// ErrMissingDriver is returned when fuel.coal or fuel.gas is absent in an hour.
var ErrMissingDriver = market.ErrMissingDriver

// Record is one simulated hour.
type Record struct {
	Timestamp time.Time
	Price     float64
	Quantity  float64
	Output    market.Breakdown
	Outcome   market.Outcome
	Values    map[string]float64
	Regimes   map[string]string
}

// Observer receives every record in hour order.
type Observer interface {
	Observe(rec Record)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(rec Record)

// Observe calls f(rec).
func (f ObserverFunc) Observe(rec Record) { f(rec) }

// Simulator steps a scenario hour by hour. Schedules and the wind model carry
// sequential state, so a Simulator runs once.
type Simulator struct {
	scenario  *scenario.Scenario
	demand    *market.Demand
	supply    *market.Supply
	grid      market.PriceGrid
	outages   Outages
	observers []Observer
	logger    *slog.Logger
}

// New creates a simulator. A nil grid uses the default grid.
func New(sc *scenario.Scenario, d *market.Demand, s *market.Supply, grid market.PriceGrid, outages Outages) *Simulator {
	if grid == nil {
		grid = market.DefaultPriceGrid()
	}
	return &Simulator{
		scenario: sc,
		demand:   d,
		supply:   s,
		grid:     grid,
		outages:  outages,
		logger:   logger.Default,
	}
}

// SetLogger sets the logger for the simulator
func (s *Simulator) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// AddObserver registers an observer
func (s *Simulator) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// Hours is the number of simulated hours.
func (s *Simulator) Hours() int { return s.scenario.Days * 24 }

// Grid returns the price grid.
func (s *Simulator) Grid() market.PriceGrid { return s.grid }

// hour is an hour with its drivers sampled and its offer stack frozen.
type hour struct {
	ts      time.Time
	vals    map[string]float64
	regimes map[string]string
	stack   *market.Stack
}

// prepare samples every schedule at ts, applies outages, writes weather
// availability back and freezes the stack.
func (s *Simulator) prepare(ts time.Time) (hour, error) {
	h := hour{
		ts:      ts,
		vals:    make(map[string]float64, len(s.scenario.Order)+2),
		regimes: make(map[string]string, len(s.scenario.Order)),
	}
	for _, name := range s.scenario.Order {
		v, label, err := s.scenario.Schedules[name].ValueAt(ts)
		if err != nil {
			return hour{}, fmt.Errorf("sample %s at %s: %w", name, ts.Format(time.RFC3339), err)
		}
		h.vals[name] = v
		h.regimes[name] = label
	}

	s.outages.Apply(ts, h.vals)

	if s.supply.Mode() == market.ModeWeather {
		h.vals["avail.wind"] = s.supply.WindAvailability(ts, h.vals)
		h.vals["avail.solar"] = s.supply.SolarAvailability(ts, h.vals)
	}

	st, err := s.supply.Stack(ts, h.vals)
	if err != nil {
		return hour{}, err
	}
	h.stack = st
	return h, nil
}

func (s *Simulator) record(h hour, eq market.Equilibrium) Record {
	_, out := h.stack.At(eq.Price)
	return Record{
		Timestamp: h.ts,
		Price:     eq.Price,
		Quantity:  eq.Quantity,
		Output:    out,
		Outcome:   eq.Outcome,
		Values:    h.vals,
		Regimes:   h.regimes,
	}
}

func (s *Simulator) emit(rec Record) {
	for _, o := range s.observers {
		o.Observe(rec)
	}
}

func (s *Simulator) timestamp(i int) time.Time {
	return s.scenario.Start.Add(time.Duration(i) * time.Hour)
}

// Run clears every hour in order. ctx is checked between hours; on
// cancellation the records produced so far are returned with ctx's error.
func (s *Simulator) Run(ctx context.Context) ([]Record, error) {
	n := s.Hours()
	s.logger.Info("Starting simulation",
		"start", s.scenario.Start,
		"hours", n,
		"mode", s.scenario.Mode,
		"availability", s.supply.Mode())
	began := time.Now()

	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			s.logger.Info("Simulation cancelled", "hours_done", i)
			return records, err
		}
		h, err := s.prepare(s.timestamp(i))
		if err != nil {
			return records, err
		}
		eq := market.Solve(h.ts, s.demand, h.stack, s.grid)
		if eq.Outcome != market.Solved {
			s.logger.Debug("Equilibrium clipped",
				"timestamp", h.ts,
				"outcome", eq.Outcome.String(),
				"price", eq.Price)
		}
		rec := s.record(h, eq)
		records = append(records, rec)
		s.emit(rec)
		if (i+1)%24 == 0 {
			s.logger.Debug("Simulated day", "day", (i+1)/24, "price", rec.Price)
		}
	}

	s.logger.Info("Simulation completed",
		"hours", len(records),
		"elapsed", utils.FormatDuration(time.Since(began)))
	return records, nil
}

// RunParallel samples all drivers sequentially and then clears the hours
// concurrently on at most workers goroutines. The output equals Run's for the
// same scenario and seed. workers <= 0 means one per hour.
func (s *Simulator) RunParallel(ctx context.Context, workers int) ([]Record, error) {
	n := s.Hours()
	s.logger.Info("Starting simulation",
		"start", s.scenario.Start,
		"hours", n,
		"mode", s.scenario.Mode,
		"availability", s.supply.Mode(),
		"workers", workers)
	began := time.Now()

	hours := make([]hour, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := s.prepare(s.timestamp(i))
		if err != nil {
			return nil, err
		}
		hours[i] = h
	}

	eqs := make([]market.Equilibrium, n)
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range hours {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			eqs[i] = market.Solve(hours[i].ts, s.demand, hours[i].stack, s.grid)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]Record, n)
	for i := range hours {
		records[i] = s.record(hours[i], eqs[i])
		s.emit(records[i])
	}
	s.logger.Info("Simulation completed",
		"hours", n,
		"elapsed", utils.FormatDuration(time.Since(began)))
	return records, nil
}

// ValueNames returns the sorted union of driver names across records.
func ValueNames(records []Record) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for k := range r.Values {
			seen[k] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// RegimeNames returns the sorted union of variables that report a regime.
func RegimeNames(records []Record) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for k := range r.Regimes {
			seen[k] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
