// Package market holds the per-hour market model: the demand curve, the
// merit-order supply stack with its weather models, and the equilibrium
// solver that clears them against a price grid.
package market

import (
	"math"
	"time"

	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

const (
	// ShortagePrice and SurplusPrice are the inelastic inverse-demand
	// sentinels for quantities below and above the fixed demand.
	ShortagePrice = 1e6
	SurplusPrice  = -1e6

	inelasticTolerance = 0.01
)

// DemandConfig parameterizes the demand curve P = intercept(t) + Slope*Q.
type DemandConfig struct {
	BaseIntercept     float64
	Slope             float64
	DailySeasonality  bool
	DayPeakHour       float64
	DayAmp            float64
	WeekendDrop       float64
	AnnualSeasonality bool
	WinterAmp         float64
	SummerAmp         float64
	Inelastic         bool
}

// DefaultDemandConfig returns the stock demand parameters.
func DefaultDemandConfig() DemandConfig {
	return DemandConfig{
		BaseIntercept:     45,
		Slope:             -7,
		DailySeasonality:  true,
		DayPeakHour:       14,
		DayAmp:            0.25,
		WeekendDrop:       0.10,
		AnnualSeasonality: true,
		WinterAmp:         0.15,
		SummerAmp:         -0.10,
	}
}

// Demand is an immutable demand curve.
type Demand struct {
	cfg DemandConfig
}

// NewDemand wraps cfg.
func NewDemand(cfg DemandConfig) *Demand {
	return &Demand{cfg: cfg}
}

// Config returns the curve parameters.
func (d *Demand) Config() DemandConfig { return d.cfg }

// Inelastic reports whether demand is a fixed quantity.
func (d *Demand) Inelastic() bool { return d.cfg.Inelastic }

// DailyMultiplier is 1 + DayAmp*cos((hour-peak)/12*pi), reduced by
// WeekendDrop on Saturday and Sunday and floored at zero.
func (d *Demand) DailyMultiplier(ts time.Time) float64 {
	if !d.cfg.DailySeasonality {
		return 1
	}
	bump := 1 + d.cfg.DayAmp*math.Cos((float64(ts.Hour())-d.cfg.DayPeakHour)/12*math.Pi)
	weekend := 1.0
	if utils.IsWeekend(ts) {
		weekend -= d.cfg.WeekendDrop
	}
	return math.Max(0, bump*weekend)
}

// AnnualMultiplier is a yearly cosine peaking mid-January: +WinterAmp at the
// peak, +SummerAmp at the trough, floored at zero.
func (d *Demand) AnnualMultiplier(ts time.Time) float64 {
	if !d.cfg.AnnualSeasonality {
		return 1
	}
	angle := 2 * math.Pi * float64(ts.YearDay()-15) / float64(utils.DaysInYear(ts.Year()))
	amp := (d.cfg.WinterAmp - d.cfg.SummerAmp) / 2
	offset := (d.cfg.WinterAmp + d.cfg.SummerAmp) / 2
	return math.Max(0, 1+offset+amp*math.Cos(angle))
}

// Intercept is the seasonal price intercept at ts.
func (d *Demand) Intercept(ts time.Time) float64 {
	return d.cfg.BaseIntercept * d.DailyMultiplier(ts) * d.AnnualMultiplier(ts)
}

// FixedQuantity is the inelastic demand level at ts.
func (d *Demand) FixedQuantity(ts time.Time) float64 {
	return math.Max(0, d.Intercept(ts))
}

// QuantityAt returns demand at price p. Inelastic demand ignores p.
func (d *Demand) QuantityAt(p float64, ts time.Time) float64 {
	if d.cfg.Inelastic {
		return d.FixedQuantity(ts)
	}
	if d.cfg.Slope == 0 {
		return 0
	}
	return math.Max(0, (p-d.Intercept(ts))/d.cfg.Slope)
}

// PriceAt is the inverse demand at quantity q. For inelastic demand it
// returns BaseIntercept on a match (within 0.01) and a sentinel otherwise.
func (d *Demand) PriceAt(q float64, ts time.Time) float64 {
	if d.cfg.Inelastic {
		fixed := d.FixedQuantity(ts)
		switch {
		case math.Abs(q-fixed) < inelasticTolerance:
			return d.cfg.BaseIntercept
		case q < fixed:
			return ShortagePrice
		default:
			return SurplusPrice
		}
	}
	return d.Intercept(ts) + d.cfg.Slope*q
}
