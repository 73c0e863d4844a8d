package planner

import (
	"fmt"

	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

// maxPartitionAttempts bounds resampling when enforcing MaxSegmentDays.
const maxPartitionAttempts = 1000

// TransitionPolicy picks transition widths for stochastic segments.
type TransitionPolicy struct {
	Type  string // fixed or range
	Value int
	Min   int
	Max   int
}

// DefaultTransitionPolicy is a fixed one-week blend.
func DefaultTransitionPolicy() TransitionPolicy {
	return TransitionPolicy{Type: "fixed", Value: 168, Min: 24, Max: 336}
}

// Draw returns n transition widths.
func (p TransitionPolicy) Draw(n int, rng *utils.RandSource) ([]int, error) {
	out := make([]int, n)
	switch p.Type {
	case "", "fixed":
		for i := range out {
			out[i] = p.Value
		}
	case "range":
		lo, hi := p.Min, p.Max
		if hi < lo {
			lo, hi = hi, lo
		}
		for i := range out {
			out[i] = rng.IntRange(lo, hi)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransitionType, p.Type)
	}
	return out, nil
}

// StochasticConfig drives random segmentation.
type StochasticConfig struct {
	NRegimes       int
	MinSegmentDays int
	MaxSegmentDays int // 0 disables the cap
	Transition     TransitionPolicy
}

// Stochastic partitions days into cfg.NRegimes random segments. A cap that
// cannot be met (NRegimes*MaxSegmentDays < days) is ignored; otherwise
// partitions are resampled until every segment fits under it, keeping the
// last draw if the attempt budget runs out.
func Stochastic(days int, cfg StochasticConfig, rng *utils.RandSource) (Plan, error) {
	capped := cfg.MaxSegmentDays > 0 && cfg.NRegimes*cfg.MaxSegmentDays >= days

	var seg []int
	for attempt := 0; attempt < maxPartitionAttempts; attempt++ {
		var err error
		seg, err = RandomPartition(days, cfg.NRegimes, cfg.MinSegmentDays, rng)
		if err != nil {
			return Plan{}, err
		}
		if !capped || maxOf(seg) <= cfg.MaxSegmentDays {
			break
		}
	}

	th, err := cfg.Transition.Draw(len(seg), rng)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Days: seg, TransitionHours: th}, nil
}

func maxOf(xs []int) int {
	m := 0
	for _, x := range xs {
		m = max(m, x)
	}
	return m
}
