package market

import (
	"math"
	"time"
)

// Outcome tells how an equilibrium was reached.
type Outcome int

const (
	// Solved means the root finder found a crossing.
	Solved Outcome = iota
	// ClippedFloor means supply covers demand even at the lowest price.
	ClippedFloor
	// ClippedCeiling means demand exceeds supply even at the highest price.
	ClippedCeiling
	// Fallback means the root finder failed and a boundary was chosen.
	Fallback
)

func (o Outcome) String() string {
	switch o {
	case Solved:
		return "solved"
	case ClippedFloor:
		return "floor"
	case ClippedCeiling:
		return "ceiling"
	case Fallback:
		return "fallback"
	}
	return "unknown"
}

const (
	floorTolerance    = 0.999
	ceilingTolerance  = 1.001
	fallbackThreshold = 0.8
	bracketLow        = 0.9
	bracketHigh       = 1.1
)

// Equilibrium is a cleared hour.
type Equilibrium struct {
	Quantity float64
	Price    float64
	Outcome  Outcome
	// AtFloor and AtCeiling mark results pinned to a grid boundary.
	AtFloor   bool
	AtCeiling bool
}

// boundary is the supply and demand picture at both ends of the grid.
type boundary struct {
	pMin, pMax   float64
	qSupplyAtMin float64
	qSupplyAtMax float64
	qDemandAtMin float64
	qDemandAtMax float64
	qDemandFixed float64
	inelastic    bool
}

func inspectBounds(ts time.Time, d *Demand, st *Stack, grid PriceGrid) boundary {
	b := boundary{
		pMin:         grid.Min(),
		pMax:         grid.Max(),
		qSupplyAtMin: st.Total(grid.Min()),
		qSupplyAtMax: st.Total(grid.Max()),
		inelastic:    d.Inelastic(),
	}
	if b.inelastic {
		b.qDemandFixed = d.FixedQuantity(ts)
		b.qDemandAtMin, b.qDemandAtMax = b.qDemandFixed, b.qDemandFixed
		return b
	}
	b.qDemandAtMin = d.QuantityAt(b.pMin, ts)
	b.qDemandAtMax = d.QuantityAt(b.pMax, ts)
	return b
}

// Solve clears one hour. It never fails: when no crossing can be found the
// result is clipped to a grid boundary. Price always lies within the grid and
// quantity is never negative.
func Solve(ts time.Time, d *Demand, st *Stack, grid PriceGrid) Equilibrium {
	b := inspectBounds(ts, d, st, grid)

	var eq Equilibrium
	if b.inelastic {
		eq = solveInelastic(st, b)
	} else {
		eq = solveElastic(ts, d, st, grid, b)
	}
	return finalize(eq, grid)
}

// FindEquilibrium builds the hour's stack from vals and clears it. The only
// error is a missing required driver.
func FindEquilibrium(ts time.Time, d *Demand, s *Supply, vals map[string]float64, grid PriceGrid) (Equilibrium, error) {
	st, err := s.Stack(ts, vals)
	if err != nil {
		return Equilibrium{}, err
	}
	return Solve(ts, d, st, grid), nil
}

// solveInelastic finds the price at which supply meets fixed demand.
func solveInelastic(st *Stack, b boundary) Equilibrium {
	if eq, ok := checkInelasticShortage(b); ok {
		return eq
	}
	f := func(p float64) float64 { return st.Total(p) - b.qDemandFixed }
	p, err := brent(f, b.pMin, b.pMax)
	if err == nil {
		return Equilibrium{Quantity: b.qDemandFixed, Price: p, Outcome: Solved}
	}
	return inelasticFallback(b)
}

// checkInelasticShortage clips at the ceiling when fixed demand exceeds all
// available supply.
func checkInelasticShortage(b boundary) (Equilibrium, bool) {
	if b.qDemandFixed > b.qSupplyAtMax {
		return Equilibrium{Quantity: b.qSupplyAtMax, Price: b.pMax, Outcome: ClippedCeiling}, true
	}
	return Equilibrium{}, false
}

// inelasticFallback serves demand at the floor when floor supply covers it,
// else clears at the ceiling with all supply.
func inelasticFallback(b boundary) Equilibrium {
	if b.qDemandFixed <= b.qSupplyAtMin {
		return Equilibrium{Quantity: b.qDemandFixed, Price: b.pMin, Outcome: ClippedFloor}
	}
	return Equilibrium{Quantity: b.qSupplyAtMax, Price: b.pMax, Outcome: ClippedCeiling}
}

// checkFloor detects surplus at the lowest price (0.1% tolerance).
func checkFloor(b boundary) (Equilibrium, bool) {
	if b.qSupplyAtMin >= b.qDemandAtMin*floorTolerance {
		return Equilibrium{Quantity: b.qDemandAtMin, Price: b.pMin, Outcome: ClippedFloor}, true
	}
	return Equilibrium{}, false
}

// checkCeiling detects scarcity at the highest price (0.1% tolerance).
func checkCeiling(b boundary) (Equilibrium, bool) {
	if b.qDemandAtMax >= b.qSupplyAtMax*ceilingTolerance {
		return Equilibrium{Quantity: b.qSupplyAtMax, Price: b.pMax, Outcome: ClippedCeiling}, true
	}
	return Equilibrium{}, false
}

// quantityBracket is [0.9*min(S,D)@floor, 1.1*min(S,D)@ceiling].
func quantityBracket(b boundary) (float64, float64) {
	lo := math.Max(0, math.Min(b.qSupplyAtMin, b.qDemandAtMin)*bracketLow)
	hi := math.Min(b.qSupplyAtMax, b.qDemandAtMax) * bracketHigh
	return lo, hi
}

// solveElastic runs the boundary checks, then root-finds the quantity where
// inverse supply meets inverse demand.
func solveElastic(ts time.Time, d *Demand, st *Stack, grid PriceGrid, b boundary) Equilibrium {
	if eq, ok := checkFloor(b); ok {
		return eq
	}
	if eq, ok := checkCeiling(b); ok {
		return eq
	}

	curve := st.Curve(grid)
	f := func(q float64) float64 {
		return invertCurve(curve, q, grid) - d.PriceAt(q, ts)
	}

	lo, hi := quantityBracket(b)
	if hi > lo {
		if q, err := brent(f, lo, hi); err == nil {
			return Equilibrium{Quantity: q, Price: d.PriceAt(q, ts), Outcome: Solved}
		}
	}
	// wider bracket: excess demand price is positive at zero quantity and
	// negative at the floor demand
	if b.qDemandAtMin > 0 {
		if q, err := brent(f, 0, b.qDemandAtMin); err == nil {
			return Equilibrium{Quantity: q, Price: d.PriceAt(q, ts), Outcome: Solved}
		}
	}
	return elasticFallback(b)
}

// elasticFallback clips toward the ceiling when demand at the top is large
// relative to supply, else toward the floor.
func elasticFallback(b boundary) Equilibrium {
	if b.qDemandAtMax > b.qSupplyAtMax*fallbackThreshold {
		return Equilibrium{Quantity: b.qSupplyAtMax, Price: b.pMax, Outcome: Fallback, AtCeiling: true}
	}
	return Equilibrium{Quantity: b.qDemandAtMin, Price: b.pMin, Outcome: Fallback, AtFloor: true}
}

// finalize enforces the grid and sign invariants.
func finalize(eq Equilibrium, grid PriceGrid) Equilibrium {
	eq.Price = grid.Clamp(eq.Price)
	if math.IsNaN(eq.Quantity) || eq.Quantity < 0 {
		eq.Quantity = 0
	}
	if math.IsInf(eq.Quantity, 1) {
		eq.Quantity = math.MaxFloat64
	}
	switch eq.Outcome {
	case ClippedFloor:
		eq.AtFloor = true
	case ClippedCeiling:
		eq.AtCeiling = true
	}
	if eq.Price == grid.Min() {
		eq.AtFloor = true
	}
	if eq.Price == grid.Max() {
		eq.AtCeiling = true
	}
	return eq
}
