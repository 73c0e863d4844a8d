//go:build integration
// +build integration

package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/GoSim-25-26J-441/marketsim/internal/metrics"
	"github.com/GoSim-25-26J-441/marketsim/internal/simd"
	"github.com/GoSim-25-26J-441/marketsim/pkg/logger"
)

const daemonScenarioYAML = `
start_ts: "2025-06-01 00:00"
days: 3
seed: 5
demand: {base_intercept: 220, slope: -0.008, daily_seasonality: true, day_peak_hour: 18, day_amp: 0.2}
supply_regime_planner:
  mode: global
  global_settings:
    n_regimes: 2
    sync_regimes: true
    breakpoints: [{date: "2025-06-02 12:00", transition_hours: 6}]
io: {dataset_name: integration, version: v1, add_timestamp: false, save_csv: true}
variables:
  cap.nuclear: {regimes: [{name: fleet, dist: {kind: const, v: 1000}}]}
  avail.nuclear: {regimes: [{name: fleet, dist: {kind: const, v: 0.9}}]}
  cap.wind: {regimes: [{name: fleet, dist: {kind: const, v: 600}}]}
  cap.solar: {regimes: [{name: fleet, dist: {kind: const, v: 400}}]}
  cap.coal: {regimes: [{name: fleet, dist: {kind: const, v: 2000}}]}
  avail.coal: {regimes: [{name: fleet, dist: {kind: const, v: 0.9}}]}
  cap.gas: {regimes: [{name: fleet, dist: {kind: const, v: 2000}}]}
  avail.gas: {regimes: [{name: fleet, dist: {kind: const, v: 0.9}}]}
  fuel.coal: {regimes: [{name: normal, dist: {kind: const, v: 25}}]}
  fuel.gas:
    regimes:
      - {name: calm, dist: {kind: normal, mu: 30, sigma: 1}}
      - {name: crisis, dist: {kind: normal, mu: 90, sigma: 3}}
`

type daemon struct {
	httpURL string
	client  *simd.Client
}

func startDaemon(t *testing.T) *daemon {
	t.Helper()
	instruments := metrics.NewInstruments()
	notifier := simd.NewNotifier()
	store := simd.NewRunStore()
	exec := simd.NewRunExecutor(store, simd.ExecutorOptions{
		MaxConcurrent: 2,
		SolveWorkers:  4,
		OutputDir:     t.TempDir(),
		Instruments:   instruments,
		Notifier:      notifier,
		Logger:        logger.Discard(),
	})

	grpcServer := grpc.NewServer()
	simd.RegisterMarketSimulationServer(grpcServer, simd.NewSimulationGRPCServer(store, exec))
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go grpcServer.Serve(lis)

	httpSrv := httptest.NewServer(simd.NewHTTPServer(store, exec, instruments.Handler()).Handler())

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc client: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Close()
		if err := exec.Shutdown(ctx); err != nil {
			t.Errorf("executor shutdown: %v", err)
		}
		conn.Close()
		grpcServer.GracefulStop()
		notifier.Wait()
	})
	return &daemon{httpURL: httpSrv.URL, client: simd.NewClient(conn)}
}

func TestIntegration_DaemonHTTPAndGRPCAgree(t *testing.T) {
	d := startDaemon(t)

	var (
		mu       sync.Mutex
		payloads []simd.NotificationPayload
	)
	callback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p simd.NotificationPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode callback: %v", err)
		}
		mu.Lock()
		payloads = append(payloads, p)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer callback.Close()

	body, _ := json.Marshal(map[string]string{
		"run_id":        "integration-1",
		"scenario_yaml": daemonScenarioYAML,
		"callback_url":  callback.URL + "/runs/{run_id}",
	})
	resp, err := http.Post(d.httpURL+"/v1/runs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/runs: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var streamed []map[string]any
	lastStatus := ""
	err = d.client.StreamRecords(ctx, "integration-1", 10, func(ev map[string]any) error {
		switch ev["type"] {
		case simd.EventStatus:
			run, _ := ev["run"].(map[string]any)
			lastStatus, _ = run["status"].(string)
		case simd.EventRecord:
			rec, _ := ev["record"].(map[string]any)
			streamed = append(streamed, rec)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("StreamRecords: %v", err)
	}
	if lastStatus != "completed" {
		t.Fatalf("expected completed, got %q", lastStatus)
	}
	if len(streamed) != 72 {
		t.Fatalf("expected 72 streamed records, got %d", len(streamed))
	}

	resp, err = http.Get(fmt.Sprintf("%s/v1/runs/integration-1/records?limit=1000", d.httpURL))
	if err != nil {
		t.Fatalf("GET records: %v", err)
	}
	defer resp.Body.Close()
	var page struct {
		Total   int              `json:"total"`
		Records []map[string]any `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if page.Total != 72 || len(page.Records) != 72 {
		t.Fatalf("expected 72 records over HTTP, got total=%d len=%d", page.Total, len(page.Records))
	}
	for i := range page.Records {
		if page.Records[i]["price"] != streamed[i]["price"] {
			t.Fatalf("hour %d: HTTP price %v, gRPC price %v", i, page.Records[i]["price"], streamed[i]["price"])
		}
	}

	// the first hours sit in the calm regime, the last in the crisis regime
	first, last := page.Records[0]["fuel.gas_regime"], page.Records[71]["fuel.gas_regime"]
	if first != "calm" || last != "crisis" {
		t.Fatalf("expected calm then crisis, got %v then %v", first, last)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		mu.Lock()
		n := len(payloads)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(payloads) != 1 {
		t.Fatalf("expected one callback, got %d", len(payloads))
	}
	if payloads[0].RunID != "integration-1" || payloads[0].Status != "completed" {
		t.Fatalf("unexpected callback payload: %+v", payloads[0])
	}
	if payloads[0].Summary == nil || payloads[0].Summary.Hours != 72 {
		t.Fatalf("expected a 72 hour summary in the callback, got %+v", payloads[0].Summary)
	}
}

func TestIntegration_DaemonStopOverGRPC(t *testing.T) {
	d := startDaemon(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	long := strings.Replace(daemonScenarioYAML, "days: 3\n", "days: 3650\n", 1)
	if _, err := d.client.CreateRun(ctx, "long-run", long); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	run, err := d.client.StopRun(ctx, "long-run")
	if err != nil {
		t.Fatalf("StopRun: %v", err)
	}
	if run["status"] != "cancelled" {
		t.Fatalf("expected cancelled, got %v", run["status"])
	}

	var records int
	err = d.client.StreamRecords(ctx, "long-run", 10, func(ev map[string]any) error {
		if ev["type"] == simd.EventRecord {
			records++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("StreamRecords: %v", err)
	}
	if records != 0 {
		t.Fatalf("a cancelled run streamed %d records", records)
	}
}
