package dist

import (
	"fmt"
	"math"
	"strings"
)

// Parse converts a decoded parameter bag such as
// {kind: ar1, mu: 30, sigma: 2, bounds: {low: 0}} into a Spec.
// Missing optional parameters take the documented defaults.
func Parse(raw map[string]any) (Spec, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty spec", ErrUnsupportedKind)
	}
	kindStr, _ := raw["kind"].(string)
	kind := Kind(strings.ToLower(strings.TrimSpace(kindStr)))

	p := params(raw)
	bounds, err := parseBounds(raw["bounds"])
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindConst:
		v, err := p.required("v")
		if err != nil {
			return nil, err
		}
		return Const{V: v, Bounds: bounds}, nil
	case KindUniform:
		return Uniform{Min: p.get("min", 0), Max: p.get("max", 1), Bounds: bounds}, nil
	case KindNormal, KindLogNormal:
		mu, err := p.required("mu")
		if err != nil {
			return nil, err
		}
		sigma, err := p.required("sigma")
		if err != nil {
			return nil, err
		}
		if kind == KindNormal {
			return Normal{Mu: mu, Sigma: sigma, Bounds: bounds}, nil
		}
		return LogNormal{Mu: mu, Sigma: sigma, Bounds: bounds}, nil
	case KindBeta:
		a, err := p.required("alpha")
		if err != nil {
			return nil, err
		}
		b, err := p.required("beta")
		if err != nil {
			return nil, err
		}
		return Beta{Alpha: a, Beta: b, Low: p.get("low", 0), High: p.get("high", 1), Bounds: bounds}, nil
	case KindTruncNormal:
		s := TruncNormal{Bounds: bounds}
		for key, dst := range map[string]*float64{"mu": &s.Mu, "sigma": &s.Sigma, "low": &s.Low, "high": &s.High} {
			v, err := p.required(key)
			if err != nil {
				return nil, err
			}
			*dst = v
		}
		return s, nil
	case KindAR1:
		mu, err := p.required("mu")
		if err != nil {
			return nil, err
		}
		return AR1{Mu: mu, Sigma: p.get("sigma", 1), Phi: p.get("phi", 0.9), Bounds: bounds}, nil
	case KindRandomWalk:
		return RandomWalk{Drift: p.get("drift", 0), Sigma: p.get("sigma", 1), Start: p.get("start", 0), Bounds: bounds}, nil
	case KindLinear:
		return Linear{Start: p.get("start", 0), Slope: p.get("slope", 0), Bounds: bounds}, nil
	case KindEmpirical:
		name, _ := raw["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("empirical spec requires a series name")
		}
		transform, _ := raw["transform"].(string)
		if transform == "" {
			transform = "level"
		}
		switch transform {
		case "level", "pct_change", "diff":
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, transform)
		}
		return Empirical{Name: name, Transform: transform, Bounds: bounds}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kindStr)
}

// MustParse is Parse for fixtures; it panics on error.
func MustParse(raw map[string]any) Spec {
	s, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return s
}

type params map[string]any

func (p params) get(key string, def float64) float64 {
	if v, ok := toFloat(p[key]); ok {
		return v
	}
	return def
}

func (p params) required(key string) (float64, error) {
	v, ok := toFloat(p[key])
	if !ok {
		return 0, fmt.Errorf("distribution %v: missing or non-numeric %q", p["kind"], key)
	}
	return v, nil
}

func parseBounds(raw any) (*Bounds, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("bounds must be a mapping, got %T", raw)
	}
	b := Unbounded()
	if v, ok := toFloat(m["low"]); ok {
		b.Low = v
	}
	if v, ok := toFloat(m["high"]); ok {
		b.High = v
	}
	if b.Low > b.High {
		return nil, fmt.Errorf("bounds low %g exceeds high %g", b.Low, b.High)
	}
	return b, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
