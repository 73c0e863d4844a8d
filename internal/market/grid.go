package market

import (
	"errors"
	"fmt"
	"math"
)

// PriceGrid is a strictly increasing list of candidate clearing prices.
type PriceGrid []float64

// NewPriceGrid validates prices.
func NewPriceGrid(prices []float64) (PriceGrid, error) {
	if len(prices) < 2 {
		return nil, errors.New("price grid needs at least two points")
	}
	for i, p := range prices {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("price grid point %d is not finite", i)
		}
		if i > 0 && p <= prices[i-1] {
			return nil, fmt.Errorf("price grid must be strictly increasing (index %d: %g <= %g)", i, p, prices[i-1])
		}
	}
	return PriceGrid(append([]float64(nil), prices...)), nil
}

// GridRange returns min, min+step, ... up to and including max when reached.
func GridRange(min, max, step float64) (PriceGrid, error) {
	if step <= 0 {
		return nil, fmt.Errorf("price grid step must be positive, got %g", step)
	}
	var out []float64
	for i := 0; ; i++ {
		p := min + float64(i)*step
		if p > max+step*1e-9 {
			break
		}
		out = append(out, p)
	}
	return NewPriceGrid(out)
}

// DefaultPriceGrid is -100, -97, ..., 299.
func DefaultPriceGrid() PriceGrid {
	g, _ := GridRange(-100, 300, 3)
	return g
}

// Min is the price floor.
func (g PriceGrid) Min() float64 { return g[0] }

// Max is the price ceiling.
func (g PriceGrid) Max() float64 { return g[len(g)-1] }

// Clamp restricts p to [Min, Max].
func (g PriceGrid) Clamp(p float64) float64 {
	if math.IsNaN(p) {
		return g.Min()
	}
	return math.Min(g.Max(), math.Max(g.Min(), p))
}
