package market

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

// ErrMissingDriver is returned when a required driver value is absent.
var ErrMissingDriver = errors.New("missing required driver")

// RequiredDrivers must be present in every hour's values.
var RequiredDrivers = []string{"fuel.coal", "fuel.gas"}

// Technologies in output order.
var Technologies = []string{"wind", "solar", "nuclear", "coal", "gas"}

const (
	defaultBidMin = -200.0
	defaultBidMax = -50.0
)

// AvailabilityMode selects where wind and solar availability come from.
type AvailabilityMode string

const (
	ModeWeather AvailabilityMode = "weather_simulation"
	ModeDirect  AvailabilityMode = "direct"
)

// Breakdown is output per technology.
type Breakdown struct {
	Wind    float64 `json:"wind"`
	Solar   float64 `json:"solar"`
	Nuclear float64 `json:"nuclear"`
	Coal    float64 `json:"coal"`
	Gas     float64 `json:"gas"`
}

// Total sums all technologies.
func (b Breakdown) Total() float64 {
	return b.Wind + b.Solar + b.Nuclear + b.Coal + b.Gas
}

// Get returns the output of the named technology.
func (b Breakdown) Get(tech string) float64 {
	switch tech {
	case "wind":
		return b.Wind
	case "solar":
		return b.Solar
	case "nuclear":
		return b.Nuclear
	case "coal":
		return b.Coal
	case "gas":
		return b.Gas
	}
	return 0
}

// Supply builds hourly offer stacks from driver values.
type Supply struct {
	mode  AvailabilityMode
	wind  *WindModel
	solar *SolarModel
}

// NewSupply creates a supply curve. Weather models exist only in
// weather_simulation mode; the wind model is seeded with seed.
func NewSupply(mode AvailabilityMode, wind WindParams, solar SolarParams, seed int64) *Supply {
	s := &Supply{mode: mode}
	if mode == ModeWeather {
		s.wind = NewWindModel(wind, seed)
		s.solar = NewSolarModel(solar)
	}
	return s
}

// Mode returns the availability mode.
func (s *Supply) Mode() AvailabilityMode { return s.mode }

// WindAvailability returns the wind capacity factor at ts.
func (s *Supply) WindAvailability(ts time.Time, vals map[string]float64) float64 {
	if s.wind != nil {
		return s.wind.AvailabilityAt(ts)
	}
	return vals["avail.wind"]
}

// SolarAvailability returns the solar capacity factor at ts.
func (s *Supply) SolarAvailability(ts time.Time, vals map[string]float64) float64 {
	if s.solar != nil {
		return s.solar.AvailabilityAt(ts)
	}
	return vals["avail.solar"]
}

// mustRun ramps from 0 at bidMin to base at bidMax.
type mustRun struct {
	base, bidMin, bidMax float64
}

func (m mustRun) at(p float64) float64 {
	if m.base <= 0 {
		return 0
	}
	return utils.LinearRamp(p, m.bidMin, m.bidMax, m.base)
}

// thermal ramps from 0 at fuel/eta_ub to available capacity at fuel/eta_lb.
type thermal struct {
	capacity, pLow, pHigh float64
}

func (t thermal) at(p float64) float64 {
	if t.capacity <= 0 {
		return 0
	}
	return utils.LinearRamp(p, t.pLow, t.pHigh, t.capacity)
}

// MarginalCostBounds returns [fuel/etaUB, fuel/etaLB], or +Inf for both
// when either efficiency is non-positive.
func MarginalCostBounds(fuel, etaLB, etaUB float64) (float64, float64) {
	if etaLB <= 0 || etaUB <= 0 {
		return math.Inf(1), math.Inf(1)
	}
	return fuel / etaUB, fuel / etaLB
}

// Stack is the merit-order offer curve for one hour. It is immutable and safe
// for concurrent use.
type Stack struct {
	Timestamp time.Time
	nuclear   mustRun
	wind      mustRun
	solar     mustRun
	coal      thermal
	gas       thermal
}

// Stack freezes the offers for ts. It consults the weather models, so calls
// must follow the simulation's hour order.
func (s *Supply) Stack(ts time.Time, vals map[string]float64) (*Stack, error) {
	for _, k := range RequiredDrivers {
		if _, ok := vals[k]; !ok {
			return nil, fmt.Errorf("%w: %s at %s", ErrMissingDriver, k, ts.Format(time.RFC3339))
		}
	}

	st := &Stack{Timestamp: ts}
	st.nuclear = newMustRun(vals, "nuclear", vals["cap.nuclear"]*vals["avail.nuclear"])

	var windBase, solarBase float64
	if c := vals["cap.wind"]; c > 0 {
		windBase = c * s.WindAvailability(ts, vals)
	}
	if c := vals["cap.solar"]; c > 0 {
		solarBase = c * s.SolarAvailability(ts, vals)
	}
	st.wind = newMustRun(vals, "wind", windBase)
	st.solar = newMustRun(vals, "solar", solarBase)
	st.coal = newThermal(vals, "coal")
	st.gas = newThermal(vals, "gas")
	return st, nil
}

func newMustRun(vals map[string]float64, tech string, base float64) mustRun {
	m := mustRun{base: base, bidMin: defaultBidMin, bidMax: defaultBidMax}
	if v, ok := vals["bid."+tech+".min"]; ok {
		m.bidMin = v
	}
	if v, ok := vals["bid."+tech+".max"]; ok {
		m.bidMax = v
	}
	return m
}

func newThermal(vals map[string]float64, tech string) thermal {
	lo, hi := MarginalCostBounds(vals["fuel."+tech], vals["eta_lb."+tech], vals["eta_ub."+tech])
	return thermal{
		capacity: vals["cap."+tech] * vals["avail."+tech],
		pLow:     lo,
		pHigh:    hi,
	}
}

// At returns total supply and its breakdown at price p.
func (st *Stack) At(p float64) (float64, Breakdown) {
	b := Breakdown{
		Wind:    st.wind.at(p),
		Solar:   st.solar.at(p),
		Nuclear: st.nuclear.at(p),
		Coal:    st.coal.at(p),
		Gas:     st.gas.at(p),
	}
	return b.Total(), b
}

// Total returns total supply at price p.
func (st *Stack) Total(p float64) float64 {
	q, _ := st.At(p)
	return q
}

// Curve sweeps the grid and returns total supply at each price.
func (st *Stack) Curve(grid PriceGrid) []float64 {
	out := make([]float64, len(grid))
	for i, p := range grid {
		out[i] = st.Total(p)
	}
	return out
}

// CurveBreakdown sweeps the grid and returns the per-technology curves.
func (st *Stack) CurveBreakdown(grid PriceGrid) []Breakdown {
	out := make([]Breakdown, len(grid))
	for i, p := range grid {
		_, out[i] = st.At(p)
	}
	return out
}

// PriceAtQuantity inverts the supply curve on the grid by linear
// interpolation between the bracketing grid points.
func (st *Stack) PriceAtQuantity(q float64, grid PriceGrid) float64 {
	return invertCurve(st.Curve(grid), q, grid)
}

func invertCurve(curve []float64, q float64, grid PriceGrid) float64 {
	idx := sort.SearchFloat64s(curve, q)
	if idx == 0 {
		return grid.Min()
	}
	if idx >= len(grid) {
		return grid.Max()
	}
	q0, q1 := curve[idx-1], curve[idx]
	p0, p1 := grid[idx-1], grid[idx]
	if q1 == q0 {
		return p1
	}
	w := (q - q0) / (q1 - q0)
	return p0*(1-w) + p1*w
}

// SupplyAt is a one-off evaluation: it builds the hour's stack and reads it at
// price p.
func (s *Supply) SupplyAt(p float64, ts time.Time, vals map[string]float64) (float64, Breakdown, error) {
	st, err := s.Stack(ts, vals)
	if err != nil {
		return 0, Breakdown{}, err
	}
	q, b := st.At(p)
	return q, b, nil
}
