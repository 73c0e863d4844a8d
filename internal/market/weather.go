package market

import (
	"math"
	"time"

	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

// dailyReinitSigma is the spread of the fresh wind draw at each day start.
const dailyReinitSigma = 0.10

// WindParams configure the wind capacity-factor process.
type WindParams struct {
	BaseCapacityFactor float64
	Persistence        float64
	Volatility         float64
}

// DefaultWindParams returns the stock wind parameters.
func DefaultWindParams() WindParams {
	return WindParams{BaseCapacityFactor: 0.45, Persistence: 0.85, Volatility: 0.15}
}

// WindModel is an AR(1) capacity factor restarted every calendar day and
// cached per hour, so repeated queries for an hour agree.
type WindModel struct {
	p       WindParams
	rng     *utils.RandSource
	cache   map[time.Time]float64
	last    time.Time
	hasLast bool
}

// NewWindModel seeds its own generator.
func NewWindModel(p WindParams, seed int64) *WindModel {
	return &WindModel{
		p:     p,
		rng:   utils.NewRandSource(seed),
		cache: make(map[time.Time]float64),
	}
}

// AvailabilityAt returns the capacity factor for ts's hour, in [0, 1].
func (w *WindModel) AvailabilityAt(ts time.Time) float64 {
	key := utils.FloorHour(ts)
	if cf, ok := w.cache[key]; ok {
		return cf
	}

	var cf float64
	if !w.hasLast || !utils.SameDay(w.last, key) {
		cf = w.rng.NormFloat64(w.p.BaseCapacityFactor, dailyReinitSigma)
	} else {
		prev, ok := w.cache[w.last]
		if !ok {
			prev = w.p.BaseCapacityFactor
		}
		cf = w.p.BaseCapacityFactor + w.p.Persistence*(prev-w.p.BaseCapacityFactor) + w.p.Volatility*w.rng.NormFloat64(0, 1)
	}
	cf = utils.ClampFloat64(cf, 0, 1)

	w.cache[key] = cf
	w.last = key
	w.hasLast = true
	return cf
}

// SolarParams configure the solar day shape.
type SolarParams struct {
	SunriseHour        float64
	SunsetHour         float64
	PeakCapacityFactor float64
}

// DefaultSolarParams returns the stock solar parameters.
func DefaultSolarParams() SolarParams {
	return SolarParams{SunriseHour: 6, SunsetHour: 20, PeakCapacityFactor: 0.35}
}

// SolarModel is a deterministic half-sine between sunrise and sunset.
type SolarModel struct {
	p SolarParams
}

// NewSolarModel wraps p.
func NewSolarModel(p SolarParams) *SolarModel {
	return &SolarModel{p: p}
}

// AvailabilityAt returns PeakCapacityFactor*sin(pi*x) inside [sunrise,
// sunset), x being the fractional position of ts in that window, else 0.
func (s *SolarModel) AvailabilityAt(ts time.Time) float64 {
	h := float64(ts.Hour()) + float64(ts.Minute())/60
	if h < s.p.SunriseHour || h >= s.p.SunsetHour || s.p.SunsetHour <= s.p.SunriseHour {
		return 0
	}
	x := (h - s.p.SunriseHour) / (s.p.SunsetHour - s.p.SunriseHour)
	return s.p.PeakCapacityFactor * math.Sin(math.Pi*x)
}
