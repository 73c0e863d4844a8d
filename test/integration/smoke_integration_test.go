//go:build integration
// +build integration

package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/GoSim-25-26J-441/marketsim/internal/runner"
	"github.com/GoSim-25-26J-441/marketsim/pkg/config"
	"github.com/GoSim-25-26J-441/marketsim/pkg/logger"
)

func TestIntegration_ExampleScenarioSmoke(t *testing.T) {
	scenarioPath := filepath.Join("..", "..", "config", "scenario.yaml")
	cfg, err := config.LoadScenario(scenarioPath)
	if err != nil {
		t.Fatalf("LoadScenario(%s) failed: %v", scenarioPath, err)
	}
	cfg.IO.AddTimestamp = false
	cfg.IO.SaveExcel = true

	outDir := t.TempDir()
	res, err := runner.Execute(context.Background(), cfg, runner.Options{
		Parallel: true,
		Save:     true,
		OutDir:   outDir,
		Logger:   logger.Discard(),
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := len(res.Records); got != 8760 {
		t.Fatalf("expected 8760 hourly records, got %d", got)
	}

	s := res.Summary
	if s.RegimeVariable != "fuel.gas" {
		t.Fatalf("expected regime summary over fuel.gas, got %q", s.RegimeVariable)
	}
	calm, crisis := s.MeanPriceByRegime["calm"], s.MeanPriceByRegime["crisis"]
	if crisis <= calm {
		t.Fatalf("expected crisis prices above calm prices, got crisis=%.2f calm=%.2f", crisis, calm)
	}
	if s.MinPrice < -100 || s.MaxPrice > 300 {
		t.Fatalf("prices left the grid: min=%.2f max=%.2f", s.MinPrice, s.MaxPrice)
	}

	for _, kind := range []string{"csv", "head_csv", "excel", "meta"} {
		path, ok := res.Files[kind]
		if !ok {
			t.Fatalf("expected a %s file, got %v", kind, res.Files)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
	}
}

func TestIntegration_SeedReproducesRun(t *testing.T) {
	scenarioPath := filepath.Join("..", "..", "config", "scenario.yaml")
	run := func(parallel bool) *runner.Result {
		t.Helper()
		cfg, err := config.LoadScenario(scenarioPath)
		if err != nil {
			t.Fatalf("LoadScenario failed: %v", err)
		}
		res, err := runner.Execute(context.Background(), cfg, runner.Options{Parallel: parallel, Logger: logger.Discard()})
		if err != nil {
			t.Fatalf("Execute(parallel=%v) failed: %v", parallel, err)
		}
		return res
	}

	seq, par := run(false), run(true)
	if len(seq.Records) != len(par.Records) {
		t.Fatalf("record counts differ: %d vs %d", len(seq.Records), len(par.Records))
	}
	for i := range seq.Records {
		if seq.Records[i].Price != par.Records[i].Price {
			t.Fatalf("hour %d: sequential price %.4f, parallel price %.4f", i, seq.Records[i].Price, par.Records[i].Price)
		}
	}
}
