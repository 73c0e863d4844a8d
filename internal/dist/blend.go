package dist

// blendKeys are the only parameters mixed across a regime transition.
var blendKeys = []string{"mu", "sigma", "phi", "drift", "start", "slope"}

// Params exposes the blendable parameters a spec defines.
func Params(spec Spec) map[string]float64 {
	switch s := spec.(type) {
	case AR1:
		return map[string]float64{"mu": s.Mu, "sigma": s.Sigma, "phi": s.Phi}
	case RandomWalk:
		return map[string]float64{"drift": s.Drift, "sigma": s.Sigma, "start": s.Start}
	case Linear:
		return map[string]float64{"start": s.Start, "slope": s.Slope}
	case Normal:
		return map[string]float64{"mu": s.Mu, "sigma": s.Sigma}
	case LogNormal:
		return map[string]float64{"mu": s.Mu, "sigma": s.Sigma}
	case TruncNormal:
		return map[string]float64{"mu": s.Mu, "sigma": s.Sigma}
	}
	return map[string]float64{}
}

// BlendParams mixes the blendable parameters of curr and next with weights
// wc and wn. A key missing on one side counts as zero. The result keeps the
// kind of curr and the union of both bounds; other parameters of curr pass
// through unchanged.
func BlendParams(curr, next Spec, wc, wn float64) Spec {
	if next == nil || wn <= 0 {
		return curr
	}
	pc, pn := Params(curr), Params(next)
	mixed := make(map[string]float64, len(blendKeys))
	for _, k := range blendKeys {
		a, okA := pc[k]
		b, okB := pn[k]
		if okA || okB {
			mixed[k] = wc*a + wn*b
		}
	}
	bounds := Union(curr.Limits(), next.Limits())

	switch s := curr.(type) {
	case AR1:
		s.Mu, s.Sigma, s.Phi = mixed["mu"], mixed["sigma"], mixed["phi"]
		s.Bounds = bounds
		return s
	case RandomWalk:
		s.Drift, s.Sigma, s.Start = mixed["drift"], mixed["sigma"], mixed["start"]
		s.Bounds = bounds
		return s
	case Linear:
		s.Start, s.Slope = mixed["start"], mixed["slope"]
		s.Bounds = bounds
		return s
	}
	return curr
}
