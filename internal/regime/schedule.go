// Package regime evaluates one exogenous variable over time as a sequence of
// regime segments with blended transitions between them.
package regime

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/marketsim/internal/dist"
	"github.com/GoSim-25-26J-441/marketsim/internal/series"
	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

// ErrEmptySchedule is returned when a schedule is built without segments.
var ErrEmptySchedule = errors.New("schedule has no segments")

// Segment is one regime: a distribution held for Days whole days, blending
// into the following segment over the last TransitionHours hours.
type Segment struct {
	Name            string
	Days            int
	Dist            dist.Spec
	TransitionHours int
}

// Schedule answers "value and regime at hour T" for a single variable. It
// carries sequential state and expects nondecreasing queries.
type Schedule struct {
	Var string

	start    time.Time
	hours    int
	segments []Segment
	offsets  []int // first hour of each segment
	rng      *utils.RandSource
	series   map[string]*series.Series

	state     dist.ProcessState
	lastTS    time.Time
	hasLast   bool
	lastValue float64
	lastSeg   int
}

// New builds a schedule covering sum(Days)*24 hours from start (floored to
// the hour). rng must not be shared with other schedules.
func New(varName string, start time.Time, segments []Segment, rng *utils.RandSource, seriesMap map[string]*series.Series) (*Schedule, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("%s: %w", varName, ErrEmptySchedule)
	}
	s := &Schedule{
		Var:      varName,
		start:    utils.FloorHour(start),
		segments: append([]Segment(nil), segments...),
		offsets:  make([]int, len(segments)),
		rng:      rng,
		series:   seriesMap,
		lastSeg:  -1,
	}
	for i, seg := range segments {
		if seg.Days <= 0 {
			return nil, fmt.Errorf("%s: segment %q has non-positive length %d days", varName, seg.Name, seg.Days)
		}
		if seg.Dist == nil {
			return nil, fmt.Errorf("%s: segment %q has no distribution", varName, seg.Name)
		}
		s.offsets[i] = s.hours
		s.hours += seg.Days * 24
	}
	return s, nil
}

// Segments returns a copy of the segment list.
func (s *Schedule) Segments() []Segment {
	return append([]Segment(nil), s.segments...)
}

// Start returns the first indexed hour.
func (s *Schedule) Start() time.Time { return s.start }

// End returns the last indexed hour.
func (s *Schedule) End() time.Time { return s.start.Add(time.Duration(s.hours-1) * time.Hour) }

// Hours returns the length of the index.
func (s *Schedule) Hours() int { return s.hours }

// SegmentAt returns the index of the segment active at ts after clamping ts
// into the schedule's index.
func (s *Schedule) SegmentAt(ts time.Time) int {
	return s.segmentOf(s.hourOf(ts))
}

func (s *Schedule) hourOf(ts time.Time) int {
	h := int(ts.Sub(s.start) / time.Hour)
	if ts.Before(s.start) {
		h = 0
	}
	return utils.ClampInt(h, 0, s.hours-1)
}

func (s *Schedule) segmentOf(h int) int {
	return sort.Search(len(s.offsets), func(i int) bool { return s.offsets[i] > h }) - 1
}

// Weights returns the blend pair for hour ts: (1, 0) outside a transition
// window, else w_next = 1 - hoursToEnd/transitionHours.
func (s *Schedule) Weights(ts time.Time) (wCurr, wNext float64) {
	h := s.hourOf(ts)
	return s.weights(h, s.segmentOf(h))
}

func (s *Schedule) weights(h, idx int) (float64, float64) {
	seg := s.segments[idx]
	th := seg.TransitionHours
	if th <= 0 || idx >= len(s.segments)-1 {
		return 1, 0
	}
	last := s.offsets[idx] + seg.Days*24 - 1
	toEnd := last - h
	if toEnd >= 0 && toEnd < th {
		wn := 1 - float64(toEnd)/float64(th)
		return 1 - wn, wn
	}
	return 1, 0
}

// ValueAt returns the variable's value and the active regime name at ts.
// ts is clamped into the index and floored to the hour. Repeated queries at
// the same hour return the cached value for ar1 and rw so a process advances
// once per distinct hour.
func (s *Schedule) ValueAt(ts time.Time) (float64, string, error) {
	h := s.hourOf(ts)
	ts = s.start.Add(time.Duration(h) * time.Hour)
	idx := s.segmentOf(h)
	curr := s.segments[idx]

	if s.hasLast && ts.Equal(s.lastTS) && idx == s.lastSeg {
		switch curr.Dist.(type) {
		case dist.AR1, dist.RandomWalk:
			return s.lastValue, curr.Name, nil
		}
	}

	steps := 1
	if s.hasLast {
		steps = max(1, int(ts.Sub(s.lastTS)/time.Hour))
	}
	if s.lastSeg >= 0 && idx != s.lastSeg {
		s.state.Reset()
	}

	wc, wn := s.weights(h, idx)
	var next dist.Spec
	if wn > 0 {
		next = s.segments[idx+1].Dist
	}

	v, err := s.evaluate(ts, h-s.offsets[idx], curr.Dist, next, wc, wn, steps)
	if err != nil {
		return 0, "", fmt.Errorf("%s at %s (regime %s): %w", s.Var, ts.Format(time.RFC3339), curr.Name, err)
	}

	s.lastTS = ts
	s.hasLast = true
	s.lastValue = v
	s.lastSeg = idx
	return v, curr.Name, nil
}

func (s *Schedule) evaluate(ts time.Time, sinceStart int, curr, next dist.Spec, wc, wn float64, steps int) (float64, error) {
	switch d := curr.(type) {
	case dist.Empirical:
		return dist.Lookup(s.series, ts, d)
	case dist.Linear:
		v := dist.LinearAt(d, float64(sinceStart))
		s.state.Prev, s.state.HasPrev, s.state.Steps = v, true, sinceStart+1
		return v, nil
	case dist.AR1, dist.RandomWalk:
		p := dist.BlendParams(curr, next, wc, wn)
		var v float64
		for i := 0; i < steps; i++ {
			var err error
			if v, err = dist.Step(s.rng, &s.state, p); err != nil {
				return 0, err
			}
		}
		return v, nil
	}

	v0, err := dist.DrawIID(s.rng, curr)
	if err != nil {
		return 0, err
	}
	if next == nil || !dist.IsIID(next) {
		return v0, nil
	}
	v1, err := dist.DrawIID(s.rng, next)
	if err != nil {
		return 0, err
	}
	return dist.Mix(v0, v1, wc, wn), nil
}
