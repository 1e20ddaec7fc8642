package zone

import (
	"math"
	"math/cmplx"
	"time"

	"gonum.org/v1/gonum/mat"
)

// StabilityLimit returns the longest step for which forward Euler stays
// stable on the linear part of the model: |1 + dt·λ| < 1 for every
// eigenvalue λ of the thermal system matrix and of the CO2 decay. It returns
// 0 with ok false when the eigen decomposition fails, and math.MaxInt64 when
// no mode decays (nothing constrains the step).
func StabilityLimit(p Params) (limit time.Duration, ok bool) {
	kAir := p.CAir * kilojoulesPerMegajoule
	kWall := p.CWall * kilojoulesPerMegajoule

	// State order: air, wall.
	a := mat.NewDense(2, 2, []float64{
		-(1/p.R2 + 1/p.R3) / kAir, 1 / p.R2 / kAir,
		1 / p.R2 / kWall, -(1/p.R1 + 1/p.R2) / kWall,
	})
	var eig mat.Eigen
	if !eig.Factorize(a, mat.EigenNone) {
		return 0, false
	}
	values := eig.Values(nil)
	if p.ZoneVolume > 0 {
		values = append(values, complex(-p.InfiltrationRate/secondsPerHour, 0))
	}

	best := math.Inf(1)
	for _, l := range values {
		if real(l) >= 0 {
			continue
		}
		abs := cmplx.Abs(l)
		if dt := -2 * real(l) / (abs * abs); dt < best {
			best = dt
		}
	}
	if math.IsInf(best, 1) || best*float64(time.Second) > math.MaxInt64 {
		return time.Duration(math.MaxInt64), true
	}
	return time.Duration(best * float64(time.Second)), true
}

// TimeConstants returns the R·C products of the network in seconds, the
// quantities the step must stay small against.
func TimeConstants(p Params) (wallOutdoor, wallAir, airWall, airOutdoor time.Duration) {
	sec := func(r, c float64) time.Duration {
		return time.Duration(r * c * kilojoulesPerMegajoule * float64(time.Second))
	}
	return sec(p.R1, p.CWall), sec(p.R2, p.CWall), sec(p.R2, p.CAir), sec(p.R3, p.CAir)
}
