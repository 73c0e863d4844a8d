package dist

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/GoSim-25-26J-441/marketsim/internal/series"
	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

func TestDrawIIDRespectsBounds(t *testing.T) {
	rng := utils.NewRandSource(7)
	b := &Bounds{Low: -1, High: 1}
	specs := []Spec{
		Const{V: 5, Bounds: b},
		Uniform{Min: -10, Max: 10, Bounds: b},
		Normal{Mu: 0, Sigma: 50, Bounds: b},
		LogNormal{Mu: 1, Sigma: 2, Bounds: b},
		Beta{Alpha: 2, Beta: 5, Low: -3, High: 3, Bounds: b},
		TruncNormal{Mu: 0, Sigma: 10, Low: -2, High: 2, Bounds: b},
	}
	for _, s := range specs {
		for i := 0; i < 500; i++ {
			v, err := DrawIID(rng, s)
			require.NoError(t, err, s.Kind())
			assert.GreaterOrEqual(t, v, -1.0, s.Kind())
			assert.LessOrEqual(t, v, 1.0, s.Kind())
		}
	}
}

func TestDrawIIDConstIsStable(t *testing.T) {
	rng := utils.NewRandSource(1)
	for i := 0; i < 20; i++ {
		v, err := DrawIID(rng, Const{V: 42})
		require.NoError(t, err)
		assert.Equal(t, 42.0, v)
	}
}

func TestDrawIIDBetaRescales(t *testing.T) {
	rng := utils.NewRandSource(3)
	for i := 0; i < 200; i++ {
		v, err := DrawIID(rng, Beta{Alpha: 2, Beta: 2, Low: 10, High: 20})
		require.NoError(t, err)
		assert.True(t, v >= 10 && v <= 20, "got %v", v)
	}
}

func TestDrawIIDBetaMatchesMoments(t *testing.T) {
	rng := utils.NewRandSource(3)
	samples := make([]float64, 4000)
	for i := range samples {
		v, err := DrawIID(rng, Beta{Alpha: 2, Beta: 5, Low: 0, High: 1})
		require.NoError(t, err)
		samples[i] = v
	}
	assert.InDelta(t, 2.0/7.0, utils.Mean(samples), 0.02)
}

func TestDrawIIDBetaSmallShapesReachEndpoints(t *testing.T) {
	rng := utils.NewRandSource(7)
	var low, high, mid int
	for i := 0; i < 10000; i++ {
		v, err := DrawIID(rng, Beta{Alpha: 0.002, Beta: 0.002, Low: 0, High: 1})
		require.NoError(t, err)
		require.False(t, math.IsNaN(v))
		switch {
		case v == 0.5:
			mid++
		case v < 0.01:
			low++
		case v > 0.99:
			high++
		}
	}
	assert.Less(t, mid, 10, "draws stuck at the midpoint")
	assert.Greater(t, low, 3000)
	assert.Greater(t, high, 3000)
}

func TestDrawIIDTruncNormalClipsLastRejectedDraw(t *testing.T) {
	spec := TruncNormal{Mu: 0, Sigma: 1, Low: -1e-12, High: 1e-12}
	replay := distuv.Normal{Mu: 0, Sigma: 1, Src: utils.NewRandSource(11)}
	var last float64
	for i := 0; i < truncNormalAttempts; i++ {
		last = replay.Rand()
	}

	v, err := DrawIID(utils.NewRandSource(11), spec)
	require.NoError(t, err)
	assert.Equal(t, utils.ClampFloat64(last, spec.Low, spec.High), v)
}

func TestMixFallsBackOnNonFinite(t *testing.T) {
	assert.InDelta(t, 7.0, Mix(3, 9, 1.0/3, 2.0/3), 1e-12)
	assert.Equal(t, 3.0, Mix(3, math.Inf(1), 0.5, 0.5))
	assert.Equal(t, 3.0, Mix(3, math.NaN(), 0.5, 0.5))
}

func TestDrawIIDTruncNormalFallsBackToClip(t *testing.T) {
	rng := utils.NewRandSource(3)
	// window far outside the mass; rejection always fails
	v, err := DrawIID(rng, TruncNormal{Mu: 0, Sigma: 1, Low: 100, High: 101})
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)
}

func TestDrawIIDRejectsStatefulKinds(t *testing.T) {
	_, err := DrawIID(utils.NewRandSource(1), AR1{Mu: 1})
	assert.True(t, errors.Is(err, ErrUnsupportedKind))
}

func TestStepAR1SeedsFromMu(t *testing.T) {
	st := &ProcessState{}
	v, err := Step(utils.NewRandSource(1), st, AR1{Mu: 50, Sigma: 0, Phi: 0.9})
	require.NoError(t, err)
	assert.Equal(t, 50.0, v)
	assert.True(t, st.HasPrev)

	st.Prev = 60
	v, err = Step(utils.NewRandSource(1), st, AR1{Mu: 50, Sigma: 0, Phi: 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 55.0, v, 1e-12)
}

func TestStepRandomWalkDrifts(t *testing.T) {
	st := &ProcessState{}
	rng := utils.NewRandSource(1)
	spec := RandomWalk{Drift: 2, Sigma: 0, Start: 10}
	var v float64
	for i := 0; i < 5; i++ {
		var err error
		v, err = Step(rng, st, spec)
		require.NoError(t, err)
	}
	assert.Equal(t, 20.0, v)
}

func TestStepLinearCountsCalls(t *testing.T) {
	st := &ProcessState{}
	rng := utils.NewRandSource(1)
	spec := Linear{Start: 3, Slope: 0.5}
	for i := 0; i < 4; i++ {
		v, err := Step(rng, st, spec)
		require.NoError(t, err)
		assert.Equal(t, 3+0.5*float64(i), v)
	}
	st.Reset()
	v, _ := Step(rng, st, spec)
	assert.Equal(t, 3.0, v)
}

func TestStepRejectsIIDKinds(t *testing.T) {
	_, err := Step(utils.NewRandSource(1), &ProcessState{}, Normal{Mu: 0, Sigma: 1})
	assert.True(t, errors.Is(err, ErrUnsupportedKind))
}

func TestLookupTransforms(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := map[string]*series.Series{
		"gas": series.Hourly("gas", t0, []float64{10, 12, 9}),
	}
	ts := t0.Add(time.Hour)

	v, err := Lookup(m, ts, Empirical{Name: "gas", Transform: "level"})
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)

	v, err = Lookup(m, ts, Empirical{Name: "gas", Transform: "diff"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	v, err = Lookup(m, ts, Empirical{Name: "gas", Transform: "pct_change"})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, v, 1e-12)

	v, err = Lookup(m, t0, Empirical{Name: "gas", Transform: "diff"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = Lookup(m, ts, Empirical{Name: "gas", Bounds: &Bounds{Low: 0, High: 11}})
	require.NoError(t, err)
	assert.Equal(t, 11.0, v)
}

func TestLookupSparseSeriesForwardFills(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sparse := series.MustNew("gas", []time.Time{t0, t0.Add(3 * time.Hour)}, []float64{10, 16})
	m := map[string]*series.Series{"gas": sparse}

	v, err := Lookup(m, t0.Add(2*time.Hour), Empirical{Name: "gas"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	v, err = Lookup(m, t0.Add(3*time.Hour), Empirical{Name: "gas", Transform: "diff"})
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)

	v, err = Lookup(m, t0.Add(5*time.Hour), Empirical{Name: "gas", Transform: "diff"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
	assert.Same(t, sparse, m["gas"])
}

func TestLookupErrors(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := map[string]*series.Series{"gas": series.Hourly("gas", t0, []float64{1})}

	_, err := Lookup(m, t0, Empirical{Name: "coal"})
	assert.True(t, errors.Is(err, ErrMissingSeries))

	_, err = Lookup(m, t0.Add(-time.Hour), Empirical{Name: "gas"})
	assert.True(t, errors.Is(err, series.ErrNoPriorValue))

	_, err = Lookup(m, t0, Empirical{Name: "gas", Transform: "log"})
	assert.True(t, errors.Is(err, ErrUnknownTransform))
}

func TestBlendParams(t *testing.T) {
	curr := AR1{Mu: 20, Sigma: 2, Phi: 0.8, Bounds: &Bounds{Low: 0, High: 50}}
	next := AR1{Mu: 40, Sigma: 4, Phi: 0.6, Bounds: &Bounds{Low: 10, High: 100}}

	got := BlendParams(curr, next, 0.75, 0.25).(AR1)
	assert.InDelta(t, 25.0, got.Mu, 1e-12)
	assert.InDelta(t, 2.5, got.Sigma, 1e-12)
	assert.InDelta(t, 0.75, got.Phi, 1e-12)
	assert.Equal(t, &Bounds{Low: 0, High: 100}, got.Bounds)

	assert.Equal(t, curr, BlendParams(curr, next, 1, 0))
}

func TestBlendParamsMissingKeysCountAsZero(t *testing.T) {
	curr := RandomWalk{Drift: 1, Sigma: 1, Start: 10}
	next := AR1{Mu: 30, Sigma: 3, Phi: 0.9}

	got := BlendParams(curr, next, 0.5, 0.5).(RandomWalk)
	assert.InDelta(t, 0.5, got.Drift, 1e-12)
	assert.InDelta(t, 2.0, got.Sigma, 1e-12)
	assert.InDelta(t, 5.0, got.Start, 1e-12)
	assert.Nil(t, got.Bounds)
}

func TestParse(t *testing.T) {
	s, err := Parse(map[string]any{"kind": "AR1", "mu": 30, "bounds": map[string]any{"low": 0}})
	require.NoError(t, err)
	ar, ok := s.(AR1)
	require.True(t, ok)
	assert.Equal(t, 30.0, ar.Mu)
	assert.Equal(t, 1.0, ar.Sigma)
	assert.Equal(t, 0.9, ar.Phi)
	assert.Equal(t, 0.0, ar.Bounds.Low)
	assert.True(t, math.IsInf(ar.Bounds.High, 1))

	s, err = Parse(map[string]any{"kind": "empirical", "name": "gas_hist"})
	require.NoError(t, err)
	assert.Equal(t, Empirical{Name: "gas_hist", Transform: "level"}, s)

	s, err = Parse(map[string]any{"kind": "uniform"})
	require.NoError(t, err)
	assert.Equal(t, Uniform{Min: 0, Max: 1}, s)
}

func TestParseErrors(t *testing.T) {
	cases := []map[string]any{
		{"kind": "cauchy"},
		{"kind": "const"},
		{"kind": "normal", "mu": 1},
		{"kind": "truncnormal", "mu": 0, "sigma": 1, "low": 0},
		{"kind": "const", "v": 1, "bounds": map[string]any{"low": 2, "high": 1}},
		{"kind": "empirical"},
		{"kind": "empirical", "name": "x", "transform": "log"},
	}
	for _, c := range cases {
		_, err := Parse(c)
		assert.Error(t, err, "%v", c)
	}

	_, err := Parse(map[string]any{"kind": "cauchy"})
	assert.True(t, errors.Is(err, ErrUnsupportedKind))
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, IsIID(Normal{}))
	assert.False(t, IsIID(AR1{}))
	assert.True(t, IsStateful(Linear{}))
	assert.False(t, IsStateful(Empirical{}))
}
