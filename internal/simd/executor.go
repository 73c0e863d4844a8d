// Package simd is the simulation daemon: an in-memory run store, an
// asynchronous executor with per-run cancellation, and the HTTP and gRPC
// APIs in front of them.
package simd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/GoSim-25-26J-441/marketsim/internal/metrics"
	"github.com/GoSim-25-26J-441/marketsim/internal/runner"
	"github.com/GoSim-25-26J-441/marketsim/pkg/logger"
	"github.com/GoSim-25-26J-441/marketsim/pkg/models"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrRunTerminal  = errors.New("run is terminal")
	ErrRunIDMissing = errors.New("run_id is required")
	ErrRunExists    = errors.New("run already exists")
)

// ExecutorOptions configure a RunExecutor
type ExecutorOptions struct {
	// MaxConcurrent bounds simultaneously executing runs; extra runs wait as pending
	MaxConcurrent int
	// SolveWorkers > 0 clears hours in parallel with that many workers
	SolveWorkers int
	// OutputDir, when set, receives each run's dataset under <OutputDir>/<run id>
	OutputDir   string
	Instruments *metrics.Instruments
	// Notifier, when set, reports terminal runs to their callback URL
	Notifier *Notifier
	Logger   *slog.Logger
}

// RunExecutor manages asynchronous run execution and per-run cancellation.
type RunExecutor struct {
	store *RunStore
	opts  ExecutorOptions
	slots chan struct{}
	log   *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewRunExecutor(store *RunStore, opts ExecutorOptions) *RunExecutor {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default
	}
	return &RunExecutor{
		store:   store,
		opts:    opts,
		slots:   make(chan struct{}, opts.MaxConcurrent),
		log:     log,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Start begins executing a run asynchronously. The run stays pending until a
// slot frees up.
func (e *RunExecutor) Start(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	rec, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}

	e.mu.Lock()
	if _, running := e.cancels[runID]; running {
		e.mu.Unlock()
		return rec, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancels[runID] = cancel
	e.wg.Add(1)
	e.mu.Unlock()

	go e.runSimulation(ctx, runID)
	return rec, nil
}

// Stop requests cancellation for a run and marks it cancelled.
func (e *RunExecutor) Stop(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	e.mu.Lock()
	cancel, ok := e.cancels[runID]
	e.mu.Unlock()

	if ok {
		cancel()
	}

	updated, err := e.store.SetStatus(runID, models.RunStatusCancelled, "")
	if err != nil {
		return nil, err
	}
	e.notify(updated)
	return updated, nil
}

// Shutdown cancels every in-flight run and waits for them to unwind or for
// ctx to expire.
func (e *RunExecutor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	ids := make([]string, 0, len(e.cancels))
	for id := range e.cancels {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		if _, err := e.Stop(id); err != nil && !errors.Is(err, ErrRunTerminal) {
			e.log.Warn("Failed to stop run", "run_id", id, "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every started run has finished.
func (e *RunExecutor) Wait() {
	e.wg.Wait()
}

func (e *RunExecutor) cleanup(runID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}
	e.mu.Unlock()
	e.wg.Done()
}

func (e *RunExecutor) runSimulation(ctx context.Context, runID string) {
	defer e.cleanup(runID)

	select {
	case e.slots <- struct{}{}:
		defer func() { <-e.slots }()
	case <-ctx.Done():
		e.log.Info("Run cancelled before start", "run_id", runID)
		return
	}

	rec, err := e.store.SetStatus(runID, models.RunStatusRunning, "")
	if err != nil {
		// stopped while waiting for a slot
		e.log.Info("Run not started", "run_id", runID, "error", err)
		return
	}

	if e.opts.Instruments != nil {
		e.opts.Instruments.RunStarted()
	}
	status := models.RunStatusFailed
	defer func() {
		if e.opts.Instruments != nil {
			e.opts.Instruments.RunFinished(status)
		}
	}()

	opts := runner.Options{
		Parallel:    e.opts.SolveWorkers > 0,
		Workers:     e.opts.SolveWorkers,
		Progress:    rec.Progress,
		Instruments: e.opts.Instruments,
		Logger:      e.log.With("run_id", runID),
	}
	if e.opts.OutputDir != "" {
		opts.Save = true
		opts.OutDir = filepath.Join(e.opts.OutputDir, runID)
	}

	e.log.Info("Starting simulation", "run_id", runID, "days", rec.Scenario.Days, "seed", rec.Scenario.Seed)
	res, err := runner.Execute(ctx, rec.Scenario, opts)
	if setErr := e.store.SetResult(runID, res); setErr != nil {
		e.log.Error("Failed to store result", "run_id", runID, "error", setErr)
	}

	switch {
	case err != nil && ctx.Err() != nil:
		status = models.RunStatusCancelled
		e.log.Info("Simulation cancelled", "run_id", runID)
		e.finish(runID, status, "")
	case err != nil:
		e.log.Error("Simulation failed", "run_id", runID, "error", err)
		e.finish(runID, status, err.Error())
	default:
		status = models.RunStatusCompleted
		e.log.Info("Run completed", "run_id", runID,
			"hours", res.Summary.Hours,
			"mean_price", res.Summary.MeanPrice,
			"files", len(res.Files))
		e.finish(runID, status, "")
	}
}

func (e *RunExecutor) finish(runID string, status models.RunStatus, errMsg string) {
	updated, err := e.store.SetStatus(runID, status, errMsg)
	if err != nil {
		if !errors.Is(err, ErrRunTerminal) {
			e.log.Error("Failed to set final status", "run_id", runID, "status", status, "error", err)
		}
		return
	}
	e.notify(updated)
}

func (e *RunExecutor) notify(rec *RunRecord) {
	if e.opts.Notifier != nil {
		e.opts.Notifier.Notify(rec.Callback, rec)
	}
}
