package config

import "time"

// Scenario is a complete market simulation document
type Scenario struct {
	StartTS          string                  `yaml:"start_ts" json:"start_ts" validate:"required,timestamp"`
	Days             int                     `yaml:"days" json:"days" validate:"gte=1"`
	Freq             string                  `yaml:"freq" json:"freq" validate:"oneof=h H"`
	Seed             int64                   `yaml:"seed" json:"seed"`
	PriceGrid        []float64               `yaml:"price_grid,omitempty" json:"price_grid,omitempty"`
	PriceGridRange   *PriceGridRange         `yaml:"price_grid_range,omitempty" json:"price_grid_range,omitempty"`
	Demand           Demand                  `yaml:"demand" json:"demand"`
	Planner          RegimePlanner           `yaml:"supply_regime_planner" json:"supply_regime_planner"`
	Variables        map[string]VariableSpec `yaml:"variables" json:"variables" validate:"required,dive"`
	EmpiricalSeries  map[string]string       `yaml:"empirical_series,omitempty" json:"empirical_series,omitempty"`
	PlannedOutages   PlannedOutages          `yaml:"planned_outages" json:"planned_outages"`
	RenewableMode    string                  `yaml:"renewable_availability_mode" json:"renewable_availability_mode" validate:"oneof=weather_simulation direct"`
	Weather          WeatherSimulation       `yaml:"weather_simulation" json:"weather_simulation"`
	IO               IO                      `yaml:"io" json:"io"`
	RegimeSummaryVar string                  `yaml:"summary_regime_variable,omitempty" json:"summary_regime_variable,omitempty"`
}

// PriceGridRange is an evenly spaced grid from Min to Max inclusive
type PriceGridRange struct {
	Min  float64 `yaml:"min" json:"min"`
	Max  float64 `yaml:"max" json:"max"`
	Step float64 `yaml:"step" json:"step" validate:"gt=0"`
}

// Demand parameterizes the demand curve
type Demand struct {
	Inelastic         bool    `yaml:"inelastic" json:"inelastic"`
	BaseIntercept     float64 `yaml:"base_intercept" json:"base_intercept"`
	Slope             float64 `yaml:"slope" json:"slope"`
	DailySeasonality  bool    `yaml:"daily_seasonality" json:"daily_seasonality"`
	DayPeakHour       float64 `yaml:"day_peak_hour" json:"day_peak_hour" validate:"gte=0,lt=24"`
	DayAmp            float64 `yaml:"day_amp" json:"day_amp"`
	WeekendDrop       float64 `yaml:"weekend_drop" json:"weekend_drop" validate:"gte=0,lte=1"`
	AnnualSeasonality bool    `yaml:"annual_seasonality" json:"annual_seasonality"`
	WinterAmp         float64 `yaml:"winter_amp" json:"winter_amp"`
	SummerAmp         float64 `yaml:"summer_amp" json:"summer_amp"`
}

// RegimePlanner selects the composition mode and the shared segmentation
type RegimePlanner struct {
	Mode           string          `yaml:"mode" json:"mode" validate:"oneof=local_only global hybrid"`
	GlobalSettings *GlobalSettings `yaml:"global_settings,omitempty" json:"global_settings,omitempty"`
}

// GlobalSettings configure the segmentation shared by global and hybrid modes
type GlobalSettings struct {
	NRegimes              int                       `yaml:"n_regimes" json:"n_regimes" validate:"gte=1"`
	SyncRegimes           bool                      `yaml:"sync_regimes" json:"sync_regimes"`
	Breakpoints           []Breakpoint              `yaml:"breakpoints,omitempty" json:"breakpoints,omitempty" validate:"dive"`
	StochasticBreakpoints *StochasticBreakpoints    `yaml:"stochastic_breakpoints,omitempty" json:"stochastic_breakpoints,omitempty"`
	DistributionTemplates map[string]map[string]any `yaml:"distribution_templates,omitempty" json:"distribution_templates,omitempty"`
}

// Breakpoint starts a new regime at midnight of Date
type Breakpoint struct {
	Date            string `yaml:"date" json:"date" validate:"required,timestamp"`
	TransitionHours *int   `yaml:"transition_hours,omitempty" json:"transition_hours,omitempty" validate:"omitempty,gte=0"`
}

// Hours returns the transition width, 24 when unset
func (b Breakpoint) Hours() int {
	if b.TransitionHours == nil {
		return DefaultBreakpointTransitionHours
	}
	return *b.TransitionHours
}

// StochasticBreakpoints configure random segmentation
type StochasticBreakpoints struct {
	Enabled         bool            `yaml:"enabled" json:"enabled"`
	MinSegmentDays  int             `yaml:"min_segment_days" json:"min_segment_days" validate:"gte=1"`
	MaxSegmentDays  int             `yaml:"max_segment_days" json:"max_segment_days" validate:"gte=0"`
	TransitionHours TransitionHours `yaml:"transition_hours" json:"transition_hours"`
}

// TransitionHours is the width policy for stochastic segments
type TransitionHours struct {
	Type  string `yaml:"type" json:"type" validate:"oneof=fixed range"`
	Value int    `yaml:"value,omitempty" json:"value,omitempty" validate:"gte=0"`
	Min   int    `yaml:"min,omitempty" json:"min,omitempty" validate:"gte=0"`
	Max   int    `yaml:"max,omitempty" json:"max,omitempty" validate:"gte=0"`
}

// VariableSpec lists the regimes of one driver variable
type VariableSpec struct {
	Regimes []Regime `yaml:"regimes" json:"regimes" validate:"dive"`
}

// Regime is one named distribution with optional local breakpoints
type Regime struct {
	Name        string         `yaml:"name" json:"name" validate:"required"`
	Dist        map[string]any `yaml:"dist" json:"dist" validate:"required"`
	Breakpoints []Breakpoint   `yaml:"breakpoints,omitempty" json:"breakpoints,omitempty" validate:"dive"`
}

// PlannedOutages reduce thermal and nuclear availability in listed months
type PlannedOutages struct {
	Enabled          bool    `yaml:"enabled" json:"enabled"`
	Months           []int   `yaml:"months" json:"months" validate:"dive,gte=1,lte=12"`
	NuclearReduction float64 `yaml:"nuclear_reduction" json:"nuclear_reduction" validate:"gte=0,lte=1"`
	CoalReduction    float64 `yaml:"coal_reduction" json:"coal_reduction" validate:"gte=0,lte=1"`
	GasReduction     float64 `yaml:"gas_reduction" json:"gas_reduction" validate:"gte=0,lte=1"`
}

// WeatherSimulation configures the wind and solar availability models
type WeatherSimulation struct {
	Wind  WindModel  `yaml:"wind" json:"wind"`
	Solar SolarModel `yaml:"solar" json:"solar"`
}

// WindModel is the wind capacity-factor process
type WindModel struct {
	Model  string     `yaml:"model" json:"model" validate:"oneof=ar1"`
	Params WindParams `yaml:"params" json:"params"`
}

// WindParams are the AR(1) wind parameters
type WindParams struct {
	BaseCapacityFactor float64 `yaml:"base_capacity_factor" json:"base_capacity_factor" validate:"gte=0,lte=1"`
	Persistence        float64 `yaml:"persistence" json:"persistence" validate:"gte=0,lte=1"`
	Volatility         float64 `yaml:"volatility" json:"volatility" validate:"gte=0"`
}

// SolarModel is the solar day shape
type SolarModel struct {
	Model  string      `yaml:"model" json:"model" validate:"oneof=sinusoidal"`
	Params SolarParams `yaml:"params" json:"params"`
}

// SolarParams are the sinusoidal solar parameters
type SolarParams struct {
	SunriseHour        float64 `yaml:"sunrise_hour" json:"sunrise_hour" validate:"gte=0,lt=24"`
	SunsetHour         float64 `yaml:"sunset_hour" json:"sunset_hour" validate:"gt=0,lte=24"`
	PeakCapacityFactor float64 `yaml:"peak_capacity_factor" json:"peak_capacity_factor" validate:"gte=0,lte=1"`
}

// IO controls dataset persistence
type IO struct {
	OutDir       string `yaml:"out_dir" json:"out_dir"`
	DatasetName  string `yaml:"dataset_name" json:"dataset_name" validate:"required"`
	TimestampFmt string `yaml:"timestamp_fmt" json:"timestamp_fmt"` // Go time layout
	AddTimestamp bool   `yaml:"add_timestamp" json:"add_timestamp"`
	Version      string `yaml:"version" json:"version"`
	SaveCSV      bool   `yaml:"save_csv" json:"save_csv"`
	SaveExcel    bool   `yaml:"save_excel" json:"save_excel"`
	SaveHeadCSV  bool   `yaml:"save_head_csv" json:"save_head_csv"`
	SaveMeta     bool   `yaml:"save_meta" json:"save_meta"`
	HeadRows     int    `yaml:"head_rows" json:"head_rows" validate:"gte=0"`
}

// Start parses StartTS
func (s *Scenario) Start() (time.Time, error) {
	return ParseTime(s.StartTS)
}

// Grid returns the configured price grid points. An explicit list wins over a
// range; with neither, the default range applies.
func (s *Scenario) Grid() []float64 {
	if len(s.PriceGrid) > 0 {
		return s.PriceGrid
	}
	r := s.PriceGridRange
	if r == nil {
		r = &PriceGridRange{Min: DefaultGridMin, Max: DefaultGridMax, Step: DefaultGridStep}
	}
	if r.Step <= 0 {
		return nil
	}
	var out []float64
	for i := 0; ; i++ {
		p := r.Min + float64(i)*r.Step
		if p > r.Max+r.Step*1e-9 {
			break
		}
		out = append(out, p)
	}
	return out
}
