// Package planner turns a simulation horizon into regime segment lengths and
// transition widths, from explicit breakpoints, stochastic partitioning or
// equal splits.
package planner

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

// DefaultTransitionHours is used by breakpoints without an explicit width and
// by equal splits.
const DefaultTransitionHours = 24

var (
	// ErrInfeasiblePartition is returned when N segments of min days cannot fit.
	ErrInfeasiblePartition = errors.New("min_segment too large for the given days and N")
	// ErrUnknownTransitionType is returned for transition policies other than fixed and range.
	ErrUnknownTransitionType = errors.New("unknown transition_hours type")
)

// Plan is the segmentation of a horizon: Days[i] whole days for segment i,
// blending into segment i+1 over TransitionHours[i] hours before its end.
type Plan struct {
	Days            []int
	TransitionHours []int
}

// Len returns the number of segments.
func (p Plan) Len() int {
	return len(p.Days)
}

// TotalDays returns the sum of segment lengths.
func (p Plan) TotalDays() int {
	total := 0
	for _, d := range p.Days {
		total += d
	}
	return total
}

// Breakpoint anchors a regime change at midnight of Date.
type Breakpoint struct {
	Date            time.Time
	TransitionHours int
}

// FromBreakpoints builds a plan from explicit dates. Dates are normalized to
// midnight, those outside [start, start+days) are dropped, and the horizon
// end closes the last segment. Rounding slack is absorbed by the last segment
// so the plan covers exactly days. Segment i carries the transition width of
// the breakpoint that starts it; the horizon start takes the width of the
// first breakpoint, or DefaultTransitionHours when there is none.
func FromBreakpoints(start time.Time, days int, bps []Breakpoint) Plan {
	begin := utils.StartOfDay(start)
	end := begin.AddDate(0, 0, days)

	kept := make([]Breakpoint, 0, len(bps))
	for _, bp := range bps {
		d := utils.StartOfDay(bp.Date.In(begin.Location()))
		if d.Before(begin) || !d.Before(end) {
			continue
		}
		kept = append(kept, Breakpoint{Date: d, TransitionHours: bp.TransitionHours})
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Date.Before(kept[j].Date) })

	startWidth := DefaultTransitionHours
	if len(kept) > 0 {
		startWidth = kept[0].TransitionHours
	}
	// collapse duplicates (later entries win) and the horizon start
	edges := []Breakpoint{{Date: begin, TransitionHours: startWidth}}
	for _, bp := range kept {
		last := &edges[len(edges)-1]
		if bp.Date.Equal(last.Date) {
			last.TransitionHours = bp.TransitionHours
			continue
		}
		edges = append(edges, bp)
	}
	edges = append(edges, Breakpoint{Date: end})

	plan := Plan{}
	for i := 0; i < len(edges)-1; i++ {
		n := int(math.Round(edges[i+1].Date.Sub(edges[i].Date).Hours() / 24))
		plan.Days = append(plan.Days, max(1, n))
		plan.TransitionHours = append(plan.TransitionHours, max(0, edges[i].TransitionHours))
	}
	if diff := days - plan.TotalDays(); diff != 0 {
		plan.Days[len(plan.Days)-1] += diff
	}
	return plan
}

// EqualSplits divides days into n near-equal segments, the first days%n
// segments one day longer, each blending over DefaultTransitionHours.
func EqualSplits(days, n int) Plan {
	if n <= 0 {
		n = 1
	}
	if n > days && days > 0 {
		n = days
	}
	plan := Plan{Days: make([]int, n), TransitionHours: make([]int, n)}
	base, rem := days/n, days%n
	for i := 0; i < n; i++ {
		plan.Days[i] = base
		if i < rem {
			plan.Days[i]++
		}
		plan.TransitionHours[i] = DefaultTransitionHours
	}
	return plan
}

// RandomPartition draws n segment lengths, each at least minSegment, summing
// to days. Cut points are sampled without replacement over the slack.
func RandomPartition(days, n, minSegment int, rng *utils.RandSource) ([]int, error) {
	if n <= 0 {
		return nil, fmt.Errorf("random partition: n must be positive, got %d", n)
	}
	if minSegment < 1 {
		minSegment = 1
	}
	if n*minSegment > days {
		return nil, fmt.Errorf("%w: %d x %d > %d", ErrInfeasiblePartition, n, minSegment, days)
	}
	remaining := days - n*minSegment
	out := make([]int, n)
	if remaining == 0 {
		for i := range out {
			out[i] = minSegment
		}
		return out, nil
	}

	slots := remaining + n - 1
	cuts := rng.SampleWithoutReplacement(slots, n-1)
	prev := -1
	for i, c := range cuts {
		out[i] = minSegment + (c - prev - 1)
		prev = c
	}
	out[n-1] = minSegment + (slots - prev - 1)
	return out, nil
}
