package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("../../config/scenario.yaml")
	if err != nil {
		t.Fatalf("Failed to load scenario: %v", err)
	}

	if s.Days != 365 {
		t.Errorf("Expected 365 days, got %d", s.Days)
	}
	if s.Planner.Mode != "hybrid" {
		t.Errorf("Expected hybrid mode, got %q", s.Planner.Mode)
	}
	g := s.Planner.GlobalSettings
	if g == nil {
		t.Fatal("GlobalSettings should not be nil")
	}
	if len(g.Breakpoints) != 2 {
		t.Fatalf("Expected 2 global breakpoints, got %d", len(g.Breakpoints))
	}
	if g.Breakpoints[1].Hours() != 336 {
		t.Errorf("Expected second breakpoint to blend over 336h, got %d", g.Breakpoints[1].Hours())
	}
	if _, ok := g.DistributionTemplates["cap.solar"]; !ok {
		t.Errorf("Expected a cap.solar template")
	}

	gas, ok := s.Variables["fuel.gas"]
	if !ok {
		t.Fatal("Expected fuel.gas variable")
	}
	if len(gas.Regimes) != 3 || gas.Regimes[1].Name != "crisis" {
		t.Errorf("Expected calm/crisis/recovery gas regimes, got %+v", gas.Regimes)
	}
	if gas.Regimes[0].Dist["kind"] != "ar1" {
		t.Errorf("Expected ar1 calm regime, got %v", gas.Regimes[0].Dist)
	}
	if s.RegimeSummaryVar != "fuel.gas" {
		t.Errorf("Expected summary on fuel.gas, got %q", s.RegimeSummaryVar)
	}
	if s.IO.DatasetName != "gas_crisis" || !s.IO.SaveMeta {
		t.Errorf("Unexpected io settings %+v", s.IO)
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario("does-not-exist.yaml")
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read scenario file") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestLoadScenarioResolvesSeriesPaths(t *testing.T) {
	dir := t.TempDir()
	body := minimalYAML + `
empirical_series:
  ttf: data/ttf.csv
  abs: /srv/abs.csv
`
	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}

	s, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario failed: %v", err)
	}
	if got := s.EmpiricalSeries["ttf"]; got != filepath.Join(dir, "data", "ttf.csv") {
		t.Errorf("Expected relative path resolved against scenario dir, got %s", got)
	}
	if got := s.EmpiricalSeries["abs"]; got != "/srv/abs.csv" {
		t.Errorf("Expected absolute path untouched, got %s", got)
	}
}

func TestLoadServiceConfigDefaults(t *testing.T) {
	cfg, err := LoadServiceConfig()
	if err != nil {
		t.Fatalf("LoadServiceConfig failed: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.GRPCAddr != ":9090" {
		t.Errorf("Unexpected addresses %s / %s", cfg.HTTPAddr, cfg.GRPCAddr)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Errorf("Unexpected logging %s / %s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.MaxConcurrentRuns != 4 {
		t.Errorf("Expected 4 concurrent runs, got %d", cfg.MaxConcurrentRuns)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected 10s shutdown timeout, got %v", cfg.ShutdownTimeout)
	}
}

func TestLoadServiceConfigFromEnv(t *testing.T) {
	t.Setenv("MARKETSIM_HTTP_ADDR", ":18080")
	t.Setenv("MARKETSIM_LOG_LEVEL", "debug")
	t.Setenv("MARKETSIM_LOG_FORMAT", "text")
	t.Setenv("MARKETSIM_MAX_CONCURRENT_RUNS", "2")
	t.Setenv("MARKETSIM_OUTPUT_DIR", "/tmp/marketsim")

	cfg, err := LoadServiceConfig()
	if err != nil {
		t.Fatalf("LoadServiceConfig failed: %v", err)
	}
	if cfg.HTTPAddr != ":18080" {
		t.Errorf("Expected :18080, got %s", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "text" {
		t.Errorf("Unexpected logging %s / %s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.MaxConcurrentRuns != 2 {
		t.Errorf("Expected 2 concurrent runs, got %d", cfg.MaxConcurrentRuns)
	}
	if cfg.OutputDir != "/tmp/marketsim" {
		t.Errorf("Expected output dir override, got %s", cfg.OutputDir)
	}
}

func TestLoadServiceConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"Bad level", "MARKETSIM_LOG_LEVEL", "verbose"},
		{"Bad format", "MARKETSIM_LOG_FORMAT", "xml"},
		{"Zero runs", "MARKETSIM_MAX_CONCURRENT_RUNS", "0"},
		{"Negative workers", "MARKETSIM_SOLVE_WORKERS", "-1"},
		{"Not a number", "MARKETSIM_MAX_CONCURRENT_RUNS", "many"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := LoadServiceConfig(); err == nil {
				t.Fatalf("Expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}
