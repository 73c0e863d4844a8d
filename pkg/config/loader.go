package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/kelseyhightower/envconfig"
)

// Drivers every scenario must declare
var requiredVariables = []string{"fuel.coal", "fuel.gas"}

// Drivers that direct renewable mode must supply
var directAvailability = []string{"avail.wind", "avail.solar"}

// LoadScenario loads and parses a scenario file. Relative empirical series
// paths are resolved against the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", path, err)
	}
	scenario, err := ParseScenarioYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scenario file %s: %w", path, err)
	}
	scenario.ResolvePaths(filepath.Dir(path))
	return scenario, nil
}

// ResolvePaths makes relative empirical series paths relative to dir
func (s *Scenario) ResolvePaths(dir string) {
	for name, p := range s.EmpiricalSeries {
		if p != "" && !filepath.IsAbs(p) {
			s.EmpiricalSeries[name] = filepath.Join(dir, p)
		}
	}
}

// LoadServiceConfig reads daemon settings from MARKETSIM_* environment variables
func LoadServiceConfig() (*ServiceConfig, error) {
	var cfg ServiceConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load service config: %w", err)
	}
	if err := validateServiceConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid service config: %w", err)
	}
	return &cfg, nil
}

// validateServiceConfig performs validation on the daemon settings
func validateServiceConfig(cfg *ServiceConfig) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return fmt.Errorf("invalid log_format: %s (must be json or text)", cfg.LogFormat)
	}
	if cfg.MaxConcurrentRuns <= 0 {
		return fmt.Errorf("max_concurrent_runs must be positive, got %d", cfg.MaxConcurrentRuns)
	}
	if cfg.SolveWorkers < 0 {
		return fmt.Errorf("solve_workers cannot be negative, got %d", cfg.SolveWorkers)
	}
	return nil
}

// ValidateScenario checks struct constraints and the cross-field rules
func ValidateScenario(s *Scenario) error {
	if err := validate.Struct(s); err != nil {
		return structErrors(err)
	}

	if err := validatePlanner(s); err != nil {
		return fmt.Errorf("supply_regime_planner: %w", err)
	}

	for _, name := range requiredVariables {
		if _, ok := s.Variables[name]; !ok {
			return fmt.Errorf("variables: %s is required", name)
		}
	}

	if s.RenewableMode == "direct" {
		for _, name := range directAvailability {
			_, declared := s.Variables[name]
			_, empirical := s.EmpiricalSeries[name]
			if !declared && !empirical {
				return fmt.Errorf("renewable_availability_mode direct requires %s in variables or empirical_series", name)
			}
		}
	}

	if err := validateGrid(s); err != nil {
		return fmt.Errorf("price_grid: %w", err)
	}

	if err := validateVariables(s); err != nil {
		return fmt.Errorf("variables: %w", err)
	}

	if s.RegimeSummaryVar != "" {
		if _, ok := s.Variables[s.RegimeSummaryVar]; !ok {
			return fmt.Errorf("summary_regime_variable %s is not a declared variable", s.RegimeSummaryVar)
		}
	}

	return nil
}

// validatePlanner enforces the composition-mode rules
func validatePlanner(s *Scenario) error {
	p := s.Planner
	switch p.Mode {
	case "local_only":
		if p.GlobalSettings != nil {
			return fmt.Errorf("global_settings must not be set in local_only mode")
		}
		return nil
	case "global", "hybrid":
		if p.GlobalSettings == nil {
			return fmt.Errorf("global_settings is required in %s mode", p.Mode)
		}
	default:
		return fmt.Errorf("unknown mode %q", p.Mode)
	}

	g := p.GlobalSettings
	if st := g.StochasticBreakpoints; st != nil && st.Enabled {
		if st.MaxSegmentDays > 0 && st.MaxSegmentDays < st.MinSegmentDays {
			return fmt.Errorf("stochastic_breakpoints: max_segment_days %d is below min_segment_days %d", st.MaxSegmentDays, st.MinSegmentDays)
		}
		if len(g.Breakpoints) == 0 && g.NRegimes*st.MinSegmentDays > s.Days {
			return fmt.Errorf("stochastic_breakpoints: %d regimes of at least %d days do not fit in %d days", g.NRegimes, st.MinSegmentDays, s.Days)
		}
		th := st.TransitionHours
		if th.Type == "range" && th.Max < th.Min {
			return fmt.Errorf("stochastic_breakpoints: transition_hours max %d is below min %d", th.Max, th.Min)
		}
	}
	for name, tmpl := range g.DistributionTemplates {
		if len(tmpl) == 0 {
			return fmt.Errorf("distribution_templates: %s is empty", name)
		}
	}
	return nil
}

// validateGrid requires a strictly increasing grid of at least two points
func validateGrid(s *Scenario) error {
	if len(s.PriceGrid) > 0 && s.PriceGridRange != nil {
		return fmt.Errorf("set either price_grid or price_grid_range, not both")
	}
	if r := s.PriceGridRange; r != nil && r.Max <= r.Min {
		return fmt.Errorf("price_grid_range max %g must exceed min %g", r.Max, r.Min)
	}
	grid := s.Grid()
	if len(grid) < 2 {
		return fmt.Errorf("need at least 2 points, got %d", len(grid))
	}
	for i := 1; i < len(grid); i++ {
		if grid[i] <= grid[i-1] {
			return fmt.Errorf("must be strictly increasing: %g follows %g", grid[i], grid[i-1])
		}
	}
	return nil
}

// validateVariables checks that every variable can be resolved to regimes
// and that empirical specs name a declared series
func validateVariables(s *Scenario) error {
	var templates map[string]map[string]any
	if s.Planner.GlobalSettings != nil {
		templates = s.Planner.GlobalSettings.DistributionTemplates
	}

	for _, name := range slices.Sorted(maps.Keys(s.Variables)) {
		v := s.Variables[name]
		if len(v.Regimes) == 0 {
			if s.Planner.Mode == "local_only" {
				return fmt.Errorf("%s: at least one regime is required in local_only mode", name)
			}
			if _, ok := templates[name]; !ok {
				return fmt.Errorf("%s: no regimes and no distribution template", name)
			}
		}
		for i, r := range v.Regimes {
			if len(r.Dist) == 0 {
				return fmt.Errorf("%s: regime %d (%s) has an empty dist", name, i, r.Name)
			}
			if err := checkEmpirical(s, r.Dist); err != nil {
				return fmt.Errorf("%s: regime %s: %w", name, r.Name, err)
			}
		}
	}
	for name, tmpl := range templates {
		if err := checkEmpirical(s, tmpl); err != nil {
			return fmt.Errorf("template %s: %w", name, err)
		}
	}
	return nil
}

func checkEmpirical(s *Scenario, d map[string]any) error {
	if kind, _ := d["kind"].(string); kind != "empirical" {
		return nil
	}
	series, _ := d["name"].(string)
	if _, ok := s.EmpiricalSeries[series]; !ok {
		declared := slices.Sorted(maps.Keys(s.EmpiricalSeries))
		return fmt.Errorf("empirical series %q is not declared in empirical_series %v", series, declared)
	}
	return nil
}
