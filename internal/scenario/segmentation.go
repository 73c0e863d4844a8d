package scenario

import (
	"time"

	"github.com/GoSim-25-26J-441/marketsim/internal/planner"
	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

// Segmentation computes a plan for a horizon.
type Segmentation interface {
	Plan(start time.Time, days int, rng *utils.RandSource) (planner.Plan, error)
	String() string
}

// Explicit segments at fixed calendar breakpoints.
type Explicit struct {
	Breakpoints []planner.Breakpoint
}

func (e Explicit) Plan(start time.Time, days int, _ *utils.RandSource) (planner.Plan, error) {
	return planner.FromBreakpoints(start, days, e.Breakpoints), nil
}

func (Explicit) String() string { return "breakpoints" }

// Stochastic draws a random partition.
type Stochastic struct {
	Config planner.StochasticConfig
}

func (s Stochastic) Plan(_ time.Time, days int, rng *utils.RandSource) (planner.Plan, error) {
	return planner.Stochastic(days, s.Config, rng)
}

func (Stochastic) String() string { return "stochastic" }

// Equal splits the horizon into N near-equal segments.
type Equal struct {
	N int
}

func (e Equal) Plan(_ time.Time, days int, _ *utils.RandSource) (planner.Plan, error) {
	return planner.EqualSplits(days, e.N), nil
}

func (Equal) String() string { return "equal" }

// globalSegmentation picks breakpoints over stochastic over equal splits.
func globalSegmentation(g GlobalSettings) Segmentation {
	n := g.NRegimes
	if n <= 0 {
		n = DefaultRegimes
	}
	switch {
	case len(g.Breakpoints) > 0:
		return Explicit{Breakpoints: g.Breakpoints}
	case g.Stochastic != nil:
		cfg := *g.Stochastic
		if cfg.NRegimes <= 0 {
			cfg.NRegimes = n
		}
		return Stochastic{Config: cfg}
	}
	return Equal{N: n}
}

// localSegmentation is used by variables that own their regimes outright.
func localSegmentation(defs []RegimeDef) Segmentation {
	if bps := localBreakpoints(defs); len(bps) > 0 {
		return Explicit{Breakpoints: bps}
	}
	return Equal{N: len(defs)}
}

func localBreakpoints(defs []RegimeDef) []planner.Breakpoint {
	var out []planner.Breakpoint
	for _, d := range defs {
		out = append(out, d.Breakpoints...)
	}
	return out
}
