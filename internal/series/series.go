// Package series holds externally supplied, time-indexed float series used by
// empirical distribution lookups.
package series

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

// ErrNoPriorValue is returned when a lookup falls before the first observation.
var ErrNoPriorValue = errors.New("no observation at or before timestamp")

// Series is an ordered set of (timestamp, value) observations.
type Series struct {
	Name   string
	times  []time.Time
	values []float64
}

type point struct {
	t time.Time
	v float64
}

// New builds a series, sorting observations by time. Duplicate timestamps keep
// the last value supplied.
func New(name string, times []time.Time, values []float64) (*Series, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("series %s: %d timestamps but %d values", name, len(times), len(values))
	}
	pts := make([]point, len(times))
	for i := range times {
		pts[i] = point{t: times[i], v: values[i]}
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].t.Before(pts[j].t) })

	s := &Series{Name: name}
	for _, p := range pts {
		if n := len(s.times); n > 0 && s.times[n-1].Equal(p.t) {
			s.values[n-1] = p.v
			continue
		}
		s.times = append(s.times, p.t)
		s.values = append(s.values, p.v)
	}
	return s, nil
}

// MustNew is New for literals in tests and fixtures; it panics on length mismatch.
func MustNew(name string, times []time.Time, values []float64) *Series {
	s, err := New(name, times, values)
	if err != nil {
		panic(err)
	}
	return s
}

// Hourly builds a series with evenly spaced hourly observations starting at
// start.
func Hourly(name string, start time.Time, values []float64) *Series {
	times := make([]time.Time, len(values))
	for i := range values {
		times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return MustNew(name, times, values)
}

// Len returns the number of observations.
func (s *Series) Len() int {
	return len(s.times)
}

// First returns the earliest timestamp, or the zero time for an empty series.
func (s *Series) First() time.Time {
	if len(s.times) == 0 {
		return time.Time{}
	}
	return s.times[0]
}

// Last returns the latest timestamp, or the zero time for an empty series.
func (s *Series) Last() time.Time {
	if len(s.times) == 0 {
		return time.Time{}
	}
	return s.times[len(s.times)-1]
}

// At returns the value of the latest observation at or before ts ("pad").
func (s *Series) At(ts time.Time) (float64, error) {
	// index of first observation strictly after ts
	i := sort.Search(len(s.times), func(i int) bool { return s.times[i].After(ts) })
	if i == 0 {
		return 0, fmt.Errorf("series %s at %s: %w", s.Name, ts.Format(time.RFC3339), ErrNoPriorValue)
	}
	return s.values[i-1], nil
}

// AsHourly forward-fills the series onto an hourly grid from its first to its
// last observation. A series already on that grid is returned unchanged.
func (s *Series) AsHourly() *Series {
	if len(s.times) < 2 || s.isHourly() {
		return s
	}
	start := s.times[0]
	n := utils.HoursBetween(start, s.Last()) + 1
	out := &Series{
		Name:   s.Name,
		times:  make([]time.Time, 0, n),
		values: make([]float64, 0, n),
	}
	j := 0
	for h := 0; h < n; h++ {
		ts := start.Add(time.Duration(h) * time.Hour)
		for j+1 < len(s.times) && !s.times[j+1].After(ts) {
			j++
		}
		out.times = append(out.times, ts)
		out.values = append(out.values, s.values[j])
	}
	return out
}

func (s *Series) isHourly() bool {
	for i := 1; i < len(s.times); i++ {
		if s.times[i].Sub(s.times[i-1]) != time.Hour {
			return false
		}
	}
	return true
}
