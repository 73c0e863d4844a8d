// Package scenario composes regime schedules for every declared variable
// under the local_only, global or hybrid composition modes.
package scenario

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/marketsim/internal/dist"
	"github.com/GoSim-25-26J-441/marketsim/internal/planner"
	"github.com/GoSim-25-26J-441/marketsim/internal/regime"
	"github.com/GoSim-25-26J-441/marketsim/internal/series"
	"github.com/GoSim-25-26J-441/marketsim/pkg/logger"
	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

// DefaultRegimes is the global segment count when none is configured.
const DefaultRegimes = 3

var (
	// ErrUnknownMode is returned for modes other than local_only, global and hybrid.
	ErrUnknownMode = errors.New("unknown composition mode")
	// ErrNoRegimes is returned when a variable has neither regimes nor a template.
	ErrNoRegimes = errors.New("variable has no regimes and no distribution template")
)

// Mode selects how variables are matched against a segmentation.
type Mode string

const (
	ModeLocalOnly Mode = "local_only"
	ModeGlobal    Mode = "global"
	ModeHybrid    Mode = "hybrid"
)

// RegimeDef is one declared regime of a variable.
type RegimeDef struct {
	Name        string
	Dist        dist.Spec
	Breakpoints []planner.Breakpoint
}

// GlobalSettings configure the shared segmentation. Stochastic, when set,
// takes effect only if Breakpoints is empty.
type GlobalSettings struct {
	NRegimes    int
	Breakpoints []planner.Breakpoint
	Stochastic  *planner.StochasticConfig
	Templates   map[string]dist.Spec
}

// Config is everything the builder needs.
type Config struct {
	Start     time.Time
	Days      int
	Seed      int64
	Mode      Mode
	Global    GlobalSettings
	Variables map[string][]RegimeDef
	Series    map[string]*series.Series
}

// Scenario is the result of a build: one schedule per variable.
type Scenario struct {
	Start     time.Time
	Days      int
	Mode      Mode
	Global    *planner.Plan // nil in local_only mode
	Schedules map[string]*regime.Schedule
	Order     []string // variable names, sorted
}

// Builder resolves the global segmentation first and then each variable's
// regimes against it.
type Builder struct {
	cfg  Config
	root *utils.RandSource
	log  *slog.Logger
}

// NewBuilder validates the mode and horizon.
func NewBuilder(cfg Config, log *slog.Logger) (*Builder, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeHybrid
	}
	switch cfg.Mode {
	case ModeLocalOnly, ModeGlobal, ModeHybrid:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}
	if cfg.Days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", cfg.Days)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Builder{cfg: cfg, root: utils.NewRandSource(cfg.Seed), log: log}, nil
}

// Build constructs every schedule. Variables are processed in name order and
// each schedule gets its own generator derived from the seed.
func Build(cfg Config) (*Scenario, error) {
	b, err := NewBuilder(cfg, nil)
	if err != nil {
		return nil, err
	}
	return b.Build()
}

// Build runs the builder.
func (b *Builder) Build() (*Scenario, error) {
	sc := &Scenario{
		Start:     b.cfg.Start,
		Days:      b.cfg.Days,
		Mode:      b.cfg.Mode,
		Schedules: make(map[string]*regime.Schedule, len(b.cfg.Variables)),
	}

	if b.cfg.Mode != ModeLocalOnly {
		seg := globalSegmentation(b.cfg.Global)
		plan, err := seg.Plan(b.cfg.Start, b.cfg.Days, b.root)
		if err != nil {
			return nil, fmt.Errorf("global segmentation: %w", err)
		}
		sc.Global = &plan
		b.log.Debug("global segmentation resolved",
			"strategy", seg.String(),
			"segments", plan.Len(),
			"days", plan.Days,
			"transition_hours", plan.TransitionHours)
	}

	for name := range b.cfg.Variables {
		sc.Order = append(sc.Order, name)
	}
	sort.Strings(sc.Order)

	for _, name := range sc.Order {
		plan, defs, err := b.resolve(name, b.cfg.Variables[name], sc.Global)
		if err != nil {
			return nil, err
		}
		segs := make([]regime.Segment, plan.Len())
		for i := range segs {
			segs[i] = regime.Segment{
				Name:            defs[i].Name,
				Days:            plan.Days[i],
				Dist:            defs[i].Dist,
				TransitionHours: plan.TransitionHours[i],
			}
		}
		s, err := regime.New(name, b.cfg.Start, segs, b.root.Derive(), b.cfg.Series)
		if err != nil {
			return nil, err
		}
		sc.Schedules[name] = s
	}
	return sc, nil
}

// resolve picks the plan and aligned regime list for one variable.
func (b *Builder) resolve(name string, defs []RegimeDef, global *planner.Plan) (planner.Plan, []RegimeDef, error) {
	switch b.cfg.Mode {
	case ModeLocalOnly:
		if len(defs) == 0 {
			return planner.Plan{}, nil, fmt.Errorf("%w: %s (local_only requires regimes)", ErrNoRegimes, name)
		}
		plan, err := localSegmentation(defs).Plan(b.cfg.Start, b.cfg.Days, b.root)
		if err != nil {
			return planner.Plan{}, nil, fmt.Errorf("%s: %w", name, err)
		}
		return plan, Align(defs, plan.Len()), nil

	case ModeGlobal:
		if len(defs) == 0 {
			return b.fromTemplate(name, *global)
		}
		return *global, Align(defs, global.Len()), nil
	}

	// hybrid
	if len(defs) > 0 && len(localBreakpoints(defs)) > 0 {
		plan := planner.FromBreakpoints(b.cfg.Start, b.cfg.Days, localBreakpoints(defs))
		b.log.Debug("local breakpoints override global segmentation", "var", name, "segments", plan.Len())
		return plan, Align(defs, plan.Len()), nil
	}
	if len(defs) > 0 {
		return *global, Align(defs, global.Len()), nil
	}
	return b.fromTemplate(name, *global)
}

func (b *Builder) fromTemplate(name string, plan planner.Plan) (planner.Plan, []RegimeDef, error) {
	tmpl, ok := b.cfg.Global.Templates[name]
	if !ok || tmpl == nil {
		return planner.Plan{}, nil, fmt.Errorf("%w: %s (mode %s)", ErrNoRegimes, name, b.cfg.Mode)
	}
	defs := make([]RegimeDef, plan.Len())
	for i := range defs {
		defs[i] = RegimeDef{Name: fmt.Sprintf("%s_regime_%d", name, i+1), Dist: tmpl}
	}
	return plan, defs, nil
}

// Align repeats defs cyclically (ceiling division) and truncates to n.
func Align(defs []RegimeDef, n int) []RegimeDef {
	if len(defs) == 0 || n <= 0 {
		return nil
	}
	k := utils.CeilDiv(n, len(defs))
	out := make([]RegimeDef, 0, k*len(defs))
	for i := 0; i < k; i++ {
		out = append(out, defs...)
	}
	return out[:n]
}
