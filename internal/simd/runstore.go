package simd

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/marketsim/internal/runner"
	"github.com/GoSim-25-26J-441/marketsim/internal/simulate"
	"github.com/GoSim-25-26J-441/marketsim/pkg/config"
	"github.com/GoSim-25-26J-441/marketsim/pkg/models"
	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

// DefaultListLimit caps List when no limit is given
const DefaultListLimit = 50

type RunRecord struct {
	Run      *models.Run
	Scenario *config.Scenario
	Progress *models.Progress
	Records  []simulate.Record
	Callback Callback
}

// ListOptions filter and page List
type ListOptions struct {
	Limit  int
	Offset int
	Status models.RunStatus
}

type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord
	now  func() time.Time
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*RunRecord),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// snapshot copies the mutable run header so callers can read it without
// holding the store lock.
func (r *RunRecord) snapshot() *RunRecord {
	run := *r.Run
	run.Files = slices.Clone(r.Run.Files)
	run.Metadata = maps.Clone(r.Run.Metadata)
	return &RunRecord{
		Run:      &run,
		Scenario: r.Scenario,
		Progress: r.Progress,
		Records:  r.Records,
		Callback: r.Callback,
	}
}

func (s *RunStore) Create(runID string, scenario *config.Scenario, cb Callback) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if runID == "" {
		runID = utils.GenerateRunID()
	}
	if _, exists := s.runs[runID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRunExists, runID)
	}

	rec := &RunRecord{
		Run: &models.Run{
			ID:        runID,
			Status:    models.RunStatusPending,
			Dataset:   scenario.IO.DatasetName,
			Seed:      scenario.Seed,
			CreatedAt: s.now(),
		},
		Scenario: scenario,
		Progress: models.NewProgress(scenario.Days * 24),
		Callback: cb,
	}
	s.runs[runID] = rec
	return rec.snapshot(), nil
}

func (s *RunStore) Get(runID string) (*RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	return rec.snapshot(), true
}

// List returns runs newest first along with the number of runs matching the
// status filter before paging.
func (s *RunStore) List(opts ListOptions) ([]*RunRecord, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	matched := make([]*RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		if opts.Status != "" && rec.Run.Status != opts.Status {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i].Run, matched[j].Run
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	total := len(matched)
	if opts.Offset >= total {
		return []*RunRecord{}, total
	}
	end := min(opts.Offset+limit, total)
	out := make([]*RunRecord, 0, end-opts.Offset)
	for _, rec := range matched[max(opts.Offset, 0):end] {
		out = append(out, rec.snapshot())
	}
	return out, total
}

// SetStatus moves a run to status. A terminal run never changes again.
func (s *RunStore) SetStatus(runID string, status models.RunStatus, errMsg string) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrRunTerminal, runID, rec.Run.Status)
	}

	rec.Run.Status = status
	if errMsg != "" {
		rec.Run.Error = errMsg
	}

	now := s.now()
	switch {
	case status == models.RunStatusRunning:
		if rec.Run.StartedAt.IsZero() {
			rec.Run.StartedAt = now
		}
	case status.Terminal():
		rec.Run.EndedAt = now
		if !rec.Run.StartedAt.IsZero() {
			rec.Run.Duration = now.Sub(rec.Run.StartedAt)
		}
	}

	return rec.snapshot(), nil
}

// SetResult stores the outcome of an execution: summary, written files and
// the hourly records.
func (s *RunStore) SetResult(runID string, res *runner.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if res == nil {
		return nil
	}
	rec.Records = res.Records
	rec.Run.Summary = res.Summary
	rec.Run.Files = nil
	for _, kind := range slices.Sorted(maps.Keys(res.Files)) {
		rec.Run.Files = append(rec.Run.Files, res.Files[kind])
	}
	return nil
}
