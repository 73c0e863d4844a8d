package simd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/GoSim-25-26J-441/marketsim/internal/metrics"
	"github.com/GoSim-25-26J-441/marketsim/pkg/logger"
	"github.com/GoSim-25-26J-441/marketsim/pkg/models"
)

func newTestHTTPServer(t *testing.T, opts ExecutorOptions) (*HTTPServer, *RunStore) {
	t.Helper()
	store, exec := newTestExecutor(t, opts)
	var handler http.Handler
	if opts.Instruments != nil {
		handler = opts.Instruments.Handler()
	}
	srv := NewHTTPServer(store, exec, handler)
	srv.SetLogger(logger.Discard())
	return srv, store
}

func doRequest(t *testing.T, srv *HTTPServer, method, target, contentType, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	srv.Handler().ServeHTTP(rr, req)

	var out map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("invalid json: %v: %s", err, rr.Body.String())
		}
	}
	return rr, out
}

func TestHTTPServerHealthz(t *testing.T) {
	srv, _ := newTestHTTPServer(t, ExecutorOptions{})
	rr, body := doRequest(t, srv, http.MethodGet, "/healthz", "", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["timestamp"] == "" {
		t.Fatalf("expected timestamp to be set")
	}
}

func TestHTTPServerCreateRunYAMLBody(t *testing.T) {
	srv, store := newTestHTTPServer(t, ExecutorOptions{})
	rr, body := doRequest(t, srv, http.MethodPost, "/v1/runs?run_id=yaml-run", "application/yaml", testScenarioYAML)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	run, ok := body["run"].(map[string]any)
	if !ok {
		t.Fatalf("expected run in response")
	}
	if run["id"] != "yaml-run" {
		t.Fatalf("expected requested run id, got %v", run["id"])
	}
	if run["dataset"] != "daemon" {
		t.Fatalf("expected dataset daemon, got %v", run["dataset"])
	}

	waitForStatus(t, store, "yaml-run", models.RunStatusCompleted)
	rr, body = doRequest(t, srv, http.MethodGet, "/v1/runs/yaml-run", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	run = body["run"].(map[string]any)
	if run["status"] != string(models.RunStatusCompleted) {
		t.Fatalf("expected completed, got %v", run["status"])
	}
	summary, ok := run["summary"].(map[string]any)
	if !ok || summary["hours"] != float64(48) {
		t.Fatalf("expected 48 hour summary, got %v", run["summary"])
	}
	progress := run["progress"].(map[string]any)
	if progress["done"] != float64(48) {
		t.Fatalf("expected progress 48, got %v", progress)
	}
}

func TestHTTPServerCreateRunJSONEnvelope(t *testing.T) {
	var (
		mu       sync.Mutex
		notified []string
	)
	callback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p NotificationPayload
		json.NewDecoder(r.Body).Decode(&p)
		mu.Lock()
		notified = append(notified, p.RunID+":"+string(p.Status))
		mu.Unlock()
	}))
	defer callback.Close()

	notifier := NewNotifier()
	srv, store := newTestHTTPServer(t, ExecutorOptions{Notifier: notifier})
	envelope, _ := json.Marshal(map[string]any{
		"run_id":        "json-run",
		"scenario_yaml": testScenarioYAML,
		"callback_url":  callback.URL + "/runs/{run_id}",
	})
	rr, _ := doRequest(t, srv, http.MethodPost, "/v1/runs", "application/json", string(envelope))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	waitForStatus(t, store, "json-run", models.RunStatusCompleted)
	srv.Executor.Wait()
	notifier.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(notified) != 1 || notified[0] != "json-run:completed" {
		t.Fatalf("expected one completion callback, got %v", notified)
	}
}

func TestHTTPServerCreateRunRejects(t *testing.T) {
	srv, store := newTestHTTPServer(t, ExecutorOptions{})
	store.Create("taken", storeScenario(t), Callback{})

	tests := []struct {
		name        string
		target      string
		contentType string
		body        string
		wantCode    int
		wantErr     string
	}{
		{"Empty body", "/v1/runs", "", "", http.StatusBadRequest, "scenario_yaml is required"},
		{"Bad JSON", "/v1/runs", "application/json", "{", http.StatusBadRequest, "invalid JSON body"},
		{"Invalid scenario", "/v1/runs", "application/yaml", "days: 0\n", http.StatusBadRequest, "invalid scenario"},
		{
			"Unsupported distribution", "/v1/runs", "application/yaml",
			strings.Replace(testScenarioYAML, "kind: ar1", "kind: cauchy", 1),
			http.StatusBadRequest, "unsupported",
		},
		{
			"Bad callback", "/v1/runs", "application/json",
			`{"scenario_yaml": "days: 1", "callback_url": "ftp://x"}`,
			http.StatusBadRequest, "callback_url",
		},
		{"Duplicate id", "/v1/runs?run_id=taken", "application/yaml", testScenarioYAML, http.StatusConflict, "already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, body := doRequest(t, srv, http.MethodPost, tt.target, tt.contentType, tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d: %s", tt.wantCode, rr.Code, rr.Body.String())
			}
			msg, _ := body["error"].(string)
			if !strings.Contains(strings.ToLower(msg), strings.ToLower(tt.wantErr)) {
				t.Fatalf("expected error containing %q, got %q", tt.wantErr, msg)
			}
		})
	}
}

func TestHTTPServerGetRunNotFound(t *testing.T) {
	srv, _ := newTestHTTPServer(t, ExecutorOptions{})
	for _, target := range []string{"/v1/runs/nope", "/v1/runs/nope/records"} {
		rr, _ := doRequest(t, srv, http.MethodGet, target, "", "")
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", target, rr.Code)
		}
	}
	rr, _ := doRequest(t, srv, http.MethodPost, "/v1/runs/nope/stop", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("stop: expected 404, got %d", rr.Code)
	}
}

func TestHTTPServerListRuns(t *testing.T) {
	srv, store := newTestHTTPServer(t, ExecutorOptions{})
	for _, id := range []string{"a", "b", "c"} {
		store.Create(id, storeScenario(t), Callback{})
	}
	store.SetStatus("b", models.RunStatusCancelled, "")

	rr, body := doRequest(t, srv, http.MethodGet, "/v1/runs?limit=2", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["total"] != float64(3) || len(body["runs"].([]any)) != 2 {
		t.Fatalf("expected 2 of 3 runs, got %v", body)
	}

	_, body = doRequest(t, srv, http.MethodGet, "/v1/runs?status=cancelled", "", "")
	runs := body["runs"].([]any)
	if len(runs) != 1 || runs[0].(map[string]any)["id"] != "b" {
		t.Fatalf("expected only run b, got %v", runs)
	}

	for _, q := range []string{"limit=x", "offset=-1", "status=sleeping"} {
		rr, _ := doRequest(t, srv, http.MethodGet, "/v1/runs?"+q, "", "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, rr.Code)
		}
	}
}

func TestHTTPServerStopRun(t *testing.T) {
	srv, store := newTestHTTPServer(t, ExecutorOptions{})
	rr, _ := doRequest(t, srv, http.MethodPost, "/v1/runs?run_id=long", "application/yaml", longScenarioYAML)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr, body := doRequest(t, srv, http.MethodPost, "/v1/runs/long/stop", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if body["run"].(map[string]any)["status"] != string(models.RunStatusCancelled) {
		t.Fatalf("expected cancelled, got %v", body["run"])
	}

	rr, _ = doRequest(t, srv, http.MethodPost, "/v1/runs/long/stop", "", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second stop, got %d", rr.Code)
	}

	rr, _ = doRequest(t, srv, http.MethodGet, "/v1/runs/long/records", "", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for records of a cancelled run, got %d", rr.Code)
	}
	srv.Executor.Wait()
	if rec, _ := store.Get("long"); rec.Run.Status != models.RunStatusCancelled {
		t.Fatalf("expected cancelled, got %s", rec.Run.Status)
	}
}

func TestHTTPServerRecords(t *testing.T) {
	srv, store := newTestHTTPServer(t, ExecutorOptions{})
	doRequest(t, srv, http.MethodPost, "/v1/runs?run_id=r", "application/yaml", testScenarioYAML)
	waitForStatus(t, store, "r", models.RunStatusCompleted)

	rr, body := doRequest(t, srv, http.MethodGet, "/v1/runs/r/records?offset=10&limit=5", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if body["total"] != float64(48) || body["offset"] != float64(10) {
		t.Fatalf("unexpected paging %v / %v", body["total"], body["offset"])
	}
	records := body["records"].([]any)
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	first := records[0].(map[string]any)
	if first["timestamp"] != "2025-01-01 10:00:00" {
		t.Fatalf("expected hour 10, got %v", first["timestamp"])
	}
	if first["fuel.gas_regime"] != "calm" {
		t.Fatalf("expected regime column, got %v", first["fuel.gas_regime"])
	}
	columns := body["columns"].([]any)
	if columns[0] != "timestamp" || columns[1] != "price" {
		t.Fatalf("unexpected columns %v", columns)
	}

	_, body = doRequest(t, srv, http.MethodGet, "/v1/runs/r/records", "", "")
	if len(body["records"].([]any)) != 48 {
		t.Fatalf("expected every record without a limit")
	}
}

func TestHTTPServerMetrics(t *testing.T) {
	srv, store := newTestHTTPServer(t, ExecutorOptions{Instruments: metrics.NewInstruments()})
	doRequest(t, srv, http.MethodPost, "/v1/runs?run_id=m", "application/yaml", testScenarioYAML)
	waitForStatus(t, store, "m", models.RunStatusCompleted)
	srv.Executor.Wait()

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	text := rr.Body.String()
	for _, name := range []string{"marketsim_hours_cleared_total", "marketsim_runs_total", "marketsim_clearing_price"} {
		if !strings.Contains(text, name) {
			t.Fatalf("expected %s in metrics output", name)
		}
	}
}
