package config

import "time"

// Scenario defaults
const (
	DefaultStartTS                   = "2025-01-01 00:00"
	DefaultDays                      = 30
	DefaultSeed                      = 42
	DefaultGridMin                   = -100.0
	DefaultGridMax                   = 300.0
	DefaultGridStep                  = 3.0
	DefaultNRegimes                  = 3
	DefaultBreakpointTransitionHours = 24
	DefaultStochasticTransitionHours = 168
	DefaultMinSegmentDays            = 30
	DefaultMaxSegmentDays            = 180
)

// ServiceConfig holds daemon settings, read from MARKETSIM_* environment
// variables
type ServiceConfig struct {
	HTTPAddr          string        `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr          string        `envconfig:"GRPC_ADDR" default:":9090"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat         string        `envconfig:"LOG_FORMAT" default:"json"`
	MaxConcurrentRuns int           `envconfig:"MAX_CONCURRENT_RUNS" default:"4"`
	SolveWorkers      int           `envconfig:"SOLVE_WORKERS" default:"0"`
	OutputDir         string        `envconfig:"OUTPUT_DIR" default:"outputs"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// EnvPrefix is the environment namespace for ServiceConfig
const EnvPrefix = "MARKETSIM"

// DefaultScenario returns a scenario with every optional field at its
// default. Variables are left empty.
func DefaultScenario() Scenario {
	return Scenario{
		StartTS: DefaultStartTS,
		Days:    DefaultDays,
		Freq:    "h",
		Seed:    DefaultSeed,
		Demand: Demand{
			BaseIntercept:     45,
			Slope:             -7,
			DailySeasonality:  true,
			DayPeakHour:       14,
			DayAmp:            0.25,
			WeekendDrop:       0.10,
			AnnualSeasonality: true,
			WinterAmp:         0.15,
			SummerAmp:         -0.10,
		},
		Planner: RegimePlanner{Mode: "hybrid"},
		PlannedOutages: PlannedOutages{
			Enabled:          true,
			Months:           []int{5, 6, 7, 8, 9},
			NuclearReduction: 0.10,
			CoalReduction:    0.10,
			GasReduction:     0.10,
		},
		RenewableMode: "weather_simulation",
		Weather: WeatherSimulation{
			Wind: WindModel{
				Model:  "ar1",
				Params: WindParams{BaseCapacityFactor: 0.45, Persistence: 0.85, Volatility: 0.15},
			},
			Solar: SolarModel{
				Model:  "sinusoidal",
				Params: SolarParams{SunriseHour: 6, SunsetHour: 20, PeakCapacityFactor: 0.35},
			},
		},
		IO: DefaultIO(),
	}
}

// DefaultIO writes a timestamped CSV to ./outputs
func DefaultIO() IO {
	return IO{
		OutDir:       "outputs",
		DatasetName:  "synthetic_data",
		TimestampFmt: "2006_01_02_15_04",
		AddTimestamp: true,
		Version:      "v0",
		SaveCSV:      true,
		HeadRows:     200,
	}
}

// DefaultGlobalSettings returns global settings with the stock values
func DefaultGlobalSettings() GlobalSettings {
	return GlobalSettings{NRegimes: DefaultNRegimes, SyncRegimes: true}
}

// DefaultStochasticBreakpoints returns a disabled stochastic configuration
// with the stock segment bounds
func DefaultStochasticBreakpoints() StochasticBreakpoints {
	return StochasticBreakpoints{
		MinSegmentDays:  DefaultMinSegmentDays,
		MaxSegmentDays:  DefaultMaxSegmentDays,
		TransitionHours: TransitionHours{Type: "fixed", Value: DefaultStochasticTransitionHours},
	}
}
