// Package dist implements the distribution specs that drive every exogenous
// variable: independent draws, stateful processes and empirical lookups.
package dist

import (
	"errors"
	"math"
)

var (
	// ErrUnsupportedKind is returned for kinds the caller cannot evaluate.
	ErrUnsupportedKind = errors.New("unsupported distribution")
	// ErrMissingSeries is returned when an empirical spec names an unknown series.
	ErrMissingSeries = errors.New("missing empirical series")
	// ErrUnknownTransform is returned for empirical transforms other than level, pct_change and diff.
	ErrUnknownTransform = errors.New("unknown empirical transform")
)

// Kind names a distribution family.
type Kind string

const (
	KindConst       Kind = "const"
	KindUniform     Kind = "uniform"
	KindNormal      Kind = "normal"
	KindLogNormal   Kind = "lognormal"
	KindBeta        Kind = "beta"
	KindTruncNormal Kind = "truncnormal"
	KindAR1         Kind = "ar1"
	KindRandomWalk  Kind = "rw"
	KindLinear      Kind = "linear"
	KindEmpirical   Kind = "empirical"
)

// Bounds clamps produced values to [Low, High]. A nil *Bounds is a no-op.
type Bounds struct {
	Low  float64
	High float64
}

// Unbounded returns bounds that accept every finite value.
func Unbounded() *Bounds {
	return &Bounds{Low: math.Inf(-1), High: math.Inf(1)}
}

// Apply clamps x.
func (b *Bounds) Apply(x float64) float64 {
	if b == nil {
		return x
	}
	if x < b.Low {
		return b.Low
	}
	if x > b.High {
		return b.High
	}
	return x
}

// Union returns the widest bounds covering a and b. A nil side counts as
// unbounded; two nil sides yield nil.
func Union(a, b *Bounds) *Bounds {
	if a == nil && b == nil {
		return nil
	}
	out := &Bounds{Low: math.Inf(1), High: math.Inf(-1)}
	for _, x := range []*Bounds{a, b} {
		if x == nil {
			x = Unbounded()
		}
		out.Low = math.Min(out.Low, x.Low)
		out.High = math.Max(out.High, x.High)
	}
	return out
}

// Spec is one distribution variant. The concrete types below are the only
// implementations.
type Spec interface {
	Kind() Kind
	Limits() *Bounds
}

// Const always yields V.
type Const struct {
	V      float64
	Bounds *Bounds
}

// Uniform draws from [Min, Max).
type Uniform struct {
	Min, Max float64
	Bounds   *Bounds
}

// Normal draws from N(Mu, Sigma).
type Normal struct {
	Mu, Sigma float64
	Bounds    *Bounds
}

// LogNormal draws exp(N(Mu, Sigma)).
type LogNormal struct {
	Mu, Sigma float64
	Bounds    *Bounds
}

// Beta rescales a Beta(Alpha, Beta) draw into [Low, High].
type Beta struct {
	Alpha, Beta float64
	Low, High   float64
	Bounds      *Bounds
}

// TruncNormal rejection-samples N(Mu, Sigma) inside [Low, High].
type TruncNormal struct {
	Mu, Sigma float64
	Low, High float64
	Bounds    *Bounds
}

// AR1 evolves x' = Mu + Phi*(x - Mu) + N(0, Sigma).
type AR1 struct {
	Mu, Sigma, Phi float64
	Bounds         *Bounds
}

// RandomWalk evolves x' = x + Drift + N(0, Sigma), starting from Start.
type RandomWalk struct {
	Drift, Sigma, Start float64
	Bounds              *Bounds
}

// Linear is the deterministic ramp Start + Slope*step.
type Linear struct {
	Start, Slope float64
	Bounds       *Bounds
}

// Empirical looks values up in a named external series.
type Empirical struct {
	Name      string
	Transform string // level, pct_change or diff
	Bounds    *Bounds
}

func (Const) Kind() Kind       { return KindConst }
func (Uniform) Kind() Kind     { return KindUniform }
func (Normal) Kind() Kind      { return KindNormal }
func (LogNormal) Kind() Kind   { return KindLogNormal }
func (Beta) Kind() Kind        { return KindBeta }
func (TruncNormal) Kind() Kind { return KindTruncNormal }
func (AR1) Kind() Kind         { return KindAR1 }
func (RandomWalk) Kind() Kind  { return KindRandomWalk }
func (Linear) Kind() Kind      { return KindLinear }
func (Empirical) Kind() Kind   { return KindEmpirical }

func (s Const) Limits() *Bounds       { return s.Bounds }
func (s Uniform) Limits() *Bounds     { return s.Bounds }
func (s Normal) Limits() *Bounds      { return s.Bounds }
func (s LogNormal) Limits() *Bounds   { return s.Bounds }
func (s Beta) Limits() *Bounds        { return s.Bounds }
func (s TruncNormal) Limits() *Bounds { return s.Bounds }
func (s AR1) Limits() *Bounds         { return s.Bounds }
func (s RandomWalk) Limits() *Bounds  { return s.Bounds }
func (s Linear) Limits() *Bounds      { return s.Bounds }
func (s Empirical) Limits() *Bounds   { return s.Bounds }

// IsIID reports whether s is an independent-draw kind.
func IsIID(s Spec) bool {
	switch s.(type) {
	case Const, Uniform, Normal, LogNormal, Beta, TruncNormal:
		return true
	}
	return false
}

// IsStateful reports whether s needs the previous value (ar1, rw, linear).
func IsStateful(s Spec) bool {
	switch s.(type) {
	case AR1, RandomWalk, Linear:
		return true
	}
	return false
}
