package dist

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/GoSim-25-26J-441/marketsim/internal/series"
	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

// truncNormalAttempts bounds rejection sampling before falling back to a clip.
const truncNormalAttempts = 1000

// DrawIID samples one value from an independent-draw spec and applies its
// bounds.
func DrawIID(rng *utils.RandSource, spec Spec) (float64, error) {
	var v float64
	switch s := spec.(type) {
	case Const:
		v = s.V
	case Uniform:
		v = distuv.Uniform{Min: s.Min, Max: s.Max, Src: rng}.Rand()
	case Normal:
		v = distuv.Normal{Mu: s.Mu, Sigma: s.Sigma, Src: rng}.Rand()
	case LogNormal:
		v = distuv.LogNormal{Mu: s.Mu, Sigma: s.Sigma, Src: rng}.Rand()
	case Beta:
		v = s.Low + (s.High-s.Low)*drawBeta(rng, s.Alpha, s.Beta)
	case TruncNormal:
		v = drawTruncNormal(rng, s)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedKind, kindOf(spec))
	}
	return spec.Limits().Apply(v), nil
}

// drawBeta samples Beta(alpha, beta) on [0, 1]. With tiny shapes both gamma
// legs can underflow to zero; the draw then lands on an endpoint with the
// limiting probability alpha/(alpha+beta) of being 1.
func drawBeta(rng *utils.RandSource, alpha, beta float64) float64 {
	x := distuv.Beta{Alpha: alpha, Beta: beta, Src: rng}.Rand()
	if !math.IsNaN(x) {
		return x
	}
	if rng.BernoulliBool(alpha / (alpha + beta)) {
		return 1
	}
	return 0
}

func drawTruncNormal(rng *utils.RandSource, s TruncNormal) float64 {
	n := distuv.Normal{Mu: s.Mu, Sigma: s.Sigma, Src: rng}
	var x float64
	for i := 0; i < truncNormalAttempts; i++ {
		x = n.Rand()
		if x >= s.Low && x <= s.High {
			return x
		}
	}
	return utils.ClampFloat64(x, s.Low, s.High)
}

// ProcessState is the memory of one stateful process. It belongs to exactly
// one schedule and is never shared between variables.
type ProcessState struct {
	Prev    float64
	HasPrev bool
	Steps   int
}

// Reset forgets the previous value and the step counter.
func (p *ProcessState) Reset() {
	*p = ProcessState{}
}

// Step advances a stateful process by one tick and returns the new value.
// ar1 seeds from Mu and rw from Start on the first call; linear returns
// Start + Slope*n where n counts prior calls.
func Step(rng *utils.RandSource, st *ProcessState, spec Spec) (float64, error) {
	var v float64
	switch s := spec.(type) {
	case AR1:
		prev := s.Mu
		if st.HasPrev {
			prev = st.Prev
		}
		v = s.Mu + s.Phi*(prev-s.Mu) + rng.NormFloat64(0, s.Sigma)
	case RandomWalk:
		prev := s.Start
		if st.HasPrev {
			prev = st.Prev
		}
		v = prev + s.Drift + rng.NormFloat64(0, s.Sigma)
	case Linear:
		v = s.Start + s.Slope*float64(st.Steps)
	default:
		return 0, fmt.Errorf("%w: %s is not a stateful process", ErrUnsupportedKind, kindOf(spec))
	}
	v = spec.Limits().Apply(v)
	st.Prev = v
	st.HasPrev = true
	st.Steps++
	return v, nil
}

// LinearAt evaluates a linear spec at an absolute step from its origin.
func LinearAt(s Linear, step float64) float64 {
	return s.Bounds.Apply(s.Start + s.Slope*step)
}

// Lookup reads an empirical spec at ts, applying its transform against the
// previous hour. Series are read as given: LoadCSV already places them on an
// hourly grid, and At forward-fills gaps in anything sparser. Unknown names
// fail with ErrMissingSeries.
func Lookup(seriesMap map[string]*series.Series, ts time.Time, spec Empirical) (float64, error) {
	s, ok := seriesMap[spec.Name]
	if !ok || s == nil {
		return 0, fmt.Errorf("%w: %q", ErrMissingSeries, spec.Name)
	}
	curr, err := s.At(ts)
	if err != nil {
		return 0, err
	}

	var v float64
	switch spec.Transform {
	case "", "level":
		v = curr
	case "pct_change", "diff":
		prev, err := s.At(ts.Add(-time.Hour))
		if err != nil {
			// first observation has no predecessor
			prev = curr
		}
		if spec.Transform == "diff" {
			v = curr - prev
		} else if prev != 0 {
			v = (curr - prev) / prev
		}
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTransform, spec.Transform)
	}
	return spec.Bounds.Apply(v), nil
}

func kindOf(spec Spec) string {
	if spec == nil {
		return "<nil>"
	}
	return string(spec.Kind())
}

// Mix combines two draws by weight. A non-finite blend falls back to a.
func Mix(a, b, wa, wb float64) float64 {
	v := wa*a + wb*b
	if !utils.IsFinite(v) {
		return a
	}
	return v
}
