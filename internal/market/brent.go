package market

import (
	"errors"
	"math"

	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

var (
	errNotBracketed   = errors.New("root not bracketed")
	errNoConvergence  = errors.New("root finder did not converge")
	errNonFiniteValue = errors.New("objective returned a non-finite value")
)

const (
	brentMaxIter = 300
	brentXTol    = 2e-12
	brentRTol    = 4 * 2.220446049250313e-16
)

// brent finds x in [a, b] with f(x) = 0 by Brent's method (bisection,
// secant and inverse quadratic interpolation). f(a) and f(b) must differ in
// sign.
func brent(f func(float64) float64, a, b float64) (float64, error) {
	fa, fb := f(a), f(b)
	if !utils.IsFinite(fa) || !utils.IsFinite(fb) {
		return 0, errNonFiniteValue
	}
	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if math.Signbit(fa) == math.Signbit(fb) {
		return 0, errNotBracketed
	}

	c, fc := a, fa
	d := b - a
	e := d
	for i := 0; i < brentMaxIter; i++ {
		if math.Signbit(fb) == math.Signbit(fc) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}

		tol := 2*brentRTol*math.Abs(b) + 0.5*brentXTol
		m := 0.5 * (c - b)
		if math.Abs(m) <= tol || fb == 0 {
			return b, nil
		}

		if math.Abs(e) >= tol && math.Abs(fa) > math.Abs(fb) {
			var p, q float64
			s := fb / fa
			if a == c {
				// secant
				p = 2 * m * s
				q = 1 - s
			} else {
				// inverse quadratic interpolation
				qq := fa / fc
				r := fb / fc
				p = s * (2*m*qq*(qq-r) - (b-a)*(r-1))
				q = (qq - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			} else {
				p = -p
			}
			if 2*p < math.Min(3*m*q-math.Abs(tol*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = m
				e = m
			}
		} else {
			d = m
			e = m
		}

		a, fa = b, fb
		if math.Abs(d) > tol {
			b += d
		} else if m > 0 {
			b += tol
		} else {
			b -= tol
		}
		fb = f(b)
		if !utils.IsFinite(fb) {
			return 0, errNonFiniteValue
		}
	}
	return 0, errNoConvergence
}
