package simd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GoSim-25-26J-441/marketsim/internal/output"
	"github.com/GoSim-25-26J-441/marketsim/internal/runner"
	"github.com/GoSim-25-26J-441/marketsim/pkg/config"
	"github.com/GoSim-25-26J-441/marketsim/pkg/logger"
	"github.com/GoSim-25-26J-441/marketsim/pkg/models"
)

// MaxScenarioBytes bounds a POST /v1/runs body
const MaxScenarioBytes = 4 << 20

type HTTPServer struct {
	router   chi.Router
	store    *RunStore
	Executor *RunExecutor
	log      *slog.Logger
}

// NewHTTPServer wires the run API. metricsHandler, when non-nil, is served
// at /metrics.
func NewHTTPServer(store *RunStore, executor *RunExecutor, metricsHandler http.Handler) *HTTPServer {
	s := &HTTPServer{
		router:   chi.NewRouter(),
		store:    store,
		Executor: executor,
		log:      logger.Default,
	}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}
	r.Route("/v1/runs", func(r chi.Router) {
		r.Post("/", s.handleCreateRun)
		r.Get("/", s.handleListRuns)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", s.handleGetRun)
			r.Post("/stop", s.handleStopRun)
			r.Get("/records", s.handleRecords)
		})
	})

	return s
}

// SetLogger replaces the request logger.
func (s *HTTPServer) SetLogger(l *slog.Logger) {
	if l != nil {
		s.log = l
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type createRunRequest struct {
	RunID          string `json:"run_id,omitempty"`
	ScenarioYAML   string `json:"scenario_yaml"`
	CallbackURL    string `json:"callback_url,omitempty"`
	CallbackSecret string `json:"callback_secret,omitempty"`
}

// handleCreateRun handles POST /v1/runs. The body is either the scenario
// YAML itself or a JSON envelope {run_id, scenario_yaml, callback_url,
// callback_secret}. The run starts immediately.
func (s *HTTPServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxScenarioBytes))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "scenario too large")
		return
	}

	req := createRunRequest{RunID: r.URL.Query().Get("run_id")}
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	} else {
		req.ScenarioYAML = string(body)
	}
	if req.ScenarioYAML == "" {
		s.writeError(w, http.StatusBadRequest, "scenario_yaml is required")
		return
	}

	rec, err := createAndStart(s.store, s.Executor, req.RunID, req.ScenarioYAML,
		Callback{URL: req.CallbackURL, Secret: req.CallbackSecret})
	if err != nil {
		var invalid *invalidScenarioError
		switch {
		case errors.As(err, &invalid):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrRunExists):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.log.Info("Run created", "run_id", rec.Run.ID, "dataset", rec.Run.Dataset)
	s.writeJSON(w, http.StatusCreated, map[string]any{"run": convertRunToJSON(rec)})
}

// handleListRuns handles GET /v1/runs?limit=&offset=&status=
func (s *HTTPServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), DefaultListLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		s.writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	status := models.RunStatus(q.Get("status"))
	if status != "" && !validStatus(status) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", status))
		return
	}

	recs, total := s.store.List(ListOptions{Limit: limit, Offset: offset, Status: status})
	runs := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		runs = append(runs, convertRunToJSON(rec))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"runs":   runs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// handleGetRun handles GET /v1/runs/{runID}
func (s *HTTPServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.store.Get(chi.URLParam(r, "runID"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run": convertRunToJSON(rec)})
}

// handleStopRun handles POST /v1/runs/{runID}/stop
func (s *HTTPServer) handleStopRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	rec, err := s.Executor.Stop(runID)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrRunTerminal):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.log.Info("Run cancelled", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{"run": convertRunToJSON(rec)})
}

// handleRecords handles GET /v1/runs/{runID}/records?offset=&limit=
func (s *HTTPServer) handleRecords(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.store.Get(chi.URLParam(r, "runID"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if rec.Run.Status != models.RunStatusCompleted {
		s.writeError(w, http.StatusConflict, fmt.Sprintf("records not available: run is %s", rec.Run.Status))
		return
	}

	q := r.URL.Query()
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		s.writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(q.Get("limit"), 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	table := output.NewTable(rec.Records)
	from, to := page(table.Len(), offset, limit)
	rows := make([]map[string]any, 0, to-from)
	for i := from; i < to; i++ {
		rows = append(rows, table.RowMap(i))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  rec.Run.ID,
		"columns": table.Columns,
		"records": rows,
		"total":   table.Len(),
		"offset":  from,
	})
}

// invalidScenarioError marks a rejected request body
type invalidScenarioError struct{ err error }

func (e *invalidScenarioError) Error() string { return e.err.Error() }
func (e *invalidScenarioError) Unwrap() error { return e.err }

// createAndStart parses and prepares the scenario, registers the run and
// hands it to the executor.
func createAndStart(store *RunStore, executor *RunExecutor, runID, scenarioYAML string, cb Callback) (*RunRecord, error) {
	if cb.URL != "" {
		if err := ValidateCallbackURL(cb.URL); err != nil {
			return nil, &invalidScenarioError{err}
		}
	}
	cfg, err := config.ParseScenarioYAMLString(scenarioYAML)
	if err != nil {
		return nil, &invalidScenarioError{err}
	}
	if _, err := runner.Validate(cfg); err != nil {
		return nil, &invalidScenarioError{fmt.Errorf("invalid scenario: %w", err)}
	}
	rec, err := store.Create(runID, cfg, cb)
	if err != nil {
		return nil, err
	}
	return executor.Start(rec.Run.ID)
}

func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// page clamps [offset, offset+limit) to n; limit <= 0 means the rest.
func page(n, offset, limit int) (int, int) {
	from := min(offset, n)
	to := n
	if limit > 0 {
		to = min(from+limit, n)
	}
	return from, to
}

func validStatus(s models.RunStatus) bool {
	switch s {
	case models.RunStatusPending, models.RunStatusRunning,
		models.RunStatusCompleted, models.RunStatusFailed, models.RunStatusCancelled:
		return true
	}
	return false
}

// Helper functions

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

func convertRunToJSON(rec *RunRecord) map[string]any {
	run := rec.Run
	out := map[string]any{
		"id":         run.ID,
		"status":     string(run.Status),
		"dataset":    run.Dataset,
		"seed":       run.Seed,
		"created_at": run.CreatedAt.Format(time.RFC3339),
	}
	if !run.StartedAt.IsZero() {
		out["started_at"] = run.StartedAt.Format(time.RFC3339)
	}
	if !run.EndedAt.IsZero() {
		out["ended_at"] = run.EndedAt.Format(time.RFC3339)
		out["duration_ms"] = run.Duration.Milliseconds()
	}
	if run.Error != "" {
		out["error"] = run.Error
	}
	if len(run.Files) > 0 {
		files := make([]any, len(run.Files))
		for i, f := range run.Files {
			files[i] = f
		}
		out["files"] = files
	}
	if rec.Progress != nil {
		done, total := rec.Progress.Snapshot()
		out["progress"] = map[string]any{"done": done, "total": total}
	}
	if run.Summary != nil {
		out["summary"] = convertSummaryToJSON(run.Summary)
	}
	return out
}

func convertSummaryToJSON(sum *models.RunSummary) map[string]any {
	out := map[string]any{
		"hours":          sum.Hours,
		"mean_price":     sum.MeanPrice,
		"min_price":      sum.MinPrice,
		"max_price":      sum.MaxPrice,
		"std_price":      sum.StdPrice,
		"mean_quantity":  sum.MeanQuantity,
		"floor_hours":    sum.FloorHours,
		"ceiling_hours":  sum.CeilingHours,
		"fallback_hours": sum.FallbackHours,
		"mean_output":    anyMap(sum.MeanOutput),
	}
	if sum.RegimeVariable != "" {
		out["regime_variable"] = sum.RegimeVariable
		out["mean_price_by_regime"] = anyMap(sum.MeanPriceByRegime)
	}
	return out
}

// anyMap widens a float map so the result also converts to a structpb.Struct
func anyMap(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
