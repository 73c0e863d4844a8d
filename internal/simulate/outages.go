package simulate

import (
	"math"
	"slices"
	"time"
)

// OutageTechnologies are the technologies derated by planned outages.
var OutageTechnologies = []string{"nuclear", "coal", "gas"}

// Outages derates availability in maintenance months.
type Outages struct {
	Enabled bool
	Months  []int
	// Reductions is technology -> fractional reduction of avail.<tech>
	Reductions map[string]float64
}

// DefaultOutages is 10% off nuclear, coal and gas from May to September.
func DefaultOutages() Outages {
	return Outages{
		Enabled: true,
		Months:  []int{5, 6, 7, 8, 9},
		Reductions: map[string]float64{
			"nuclear": 0.10,
			"coal":    0.10,
			"gas":     0.10,
		},
	}
}

// Active reports whether ts falls in an outage month.
func (o Outages) Active(ts time.Time) bool {
	return o.Enabled && slices.Contains(o.Months, int(ts.Month()))
}

// Apply scales avail.<tech> in vals by 1-reduction, floored at 0. Missing
// availability drivers are left absent.
func (o Outages) Apply(ts time.Time, vals map[string]float64) {
	if !o.Active(ts) {
		return
	}
	for _, tech := range OutageTechnologies {
		key := "avail." + tech
		v, ok := vals[key]
		if !ok {
			continue
		}
		vals[key] = math.Max(0, v*(1-o.Reductions[tech]))
	}
}
