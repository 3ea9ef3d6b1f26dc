package limiter

import (
	"math"
)

// ConstraintModel extends the physics collaborator with the nonlinear
// entropy constraint evaluation used by the root find.
type ConstraintModel interface {
	EntropyModel
	// EntropyConstraint evaluates eta(t) and d eta/d t for the constraint
	// s(U + t*P) >= sMin written in product form (no division).
	EntropyConstraint(U, P []float64, sMin, t float64) (eta, dEta float64)
}

const (
	newtonMaxIter   = 4
	newtonTolerance = 1.0e-10

	// Relative slack on the node's own entropy for the dissipation-rate
	// inequality of the EntropyInequality variant.
	entropyInequalitySlack = 1.0e-11
)

// Limit computes the maximal t in [tMin, tMax] such that U + t*P satisfies
// every bound active under the given variant. It is a pure function: no
// accumulator state is read or written, which makes it directly unit
// testable.
//
// The density bounds are linear in t and solved in closed form. The
// entropy constraints are nonlinear and solved by a safeguarded Newton
// iteration with a bisection fallback; the best bracketed feasible value
// is returned after a fixed iteration cap.
func Limit(gas ConstraintModel, variant Variant, bounds Bounds, U, P []float64, tMin, tMax float64) (t float64) {
	t = tMax
	if variant == None {
		return
	}

	var (
		rho    = U[0]
		rhoP   = P[0]
		degEps = math.Nextafter(1., 2.) - 1. // machine epsilon
	)

	// Density minimum principle: rho + t*rhoP in [RhoMin, RhoMax]. Each
	// one-sided inequality is linear in t with a closed-form root. A
	// degenerate increment direction leaves t untouched.
	if math.Abs(rhoP) > degEps*bounds.RhoMax {
		if rho+t*rhoP < bounds.RhoMin {
			t = math.Min(t, math.Max(tMin, (bounds.RhoMin-rho)/rhoP))
		}
		if rho+t*rhoP > bounds.RhoMax {
			t = math.Min(t, math.Max(tMin, (bounds.RhoMax-rho)/rhoP))
		}
	}

	if variant == Density {
		return
	}

	// Specific entropy floor, seeded at the density-constrained t
	t = limitEntropyFloor(gas, U, P, bounds.SMin, tMin, t)

	if variant == EntropyInequality {
		// Strict dissipation-rate admissibility: the update must not
		// decrease the node's own specific entropy (up to slack). Taking
		// the smaller t keeps the result monotone in the number of
		// active constraints.
		sI := gas.SpecificEntropy(U)
		t = limitEntropyFloor(gas, U, P, sI*(1.-entropyInequalitySlack), tMin, t)
	}
	return
}

// limitEntropyFloor returns the largest admissible t in [tMin, tCandidate]
// for the constraint s(U + t*P) >= sMin, assuming t = tMin is feasible
// (precondition of the upstream explicit update).
//
// eta is concave along the line U + t*P, so the bracket is tightened from
// both ends: the secant step from the feasible end lands feasible and
// advances tL, the Newton step from the infeasible end lands infeasible
// and pulls tR down. Both are safeguarded by bisection.
func limitEntropyFloor(gas ConstraintModel, U, P []float64, sMin, tMin, tCandidate float64) float64 {
	etaR, dEtaR := gas.EntropyConstraint(U, P, sMin, tCandidate)
	if etaR >= 0. {
		return tCandidate
	}
	etaL, _ := gas.EntropyConstraint(U, P, sMin, tMin)
	if etaL < 0. {
		// The anchor itself is outside the bounds; report the most
		// diffusive admissible candidate and let the caller's postcheck
		// flag the violation
		return tMin
	}

	tL, tR := tMin, tCandidate
	step := func(tN float64) {
		if tN <= tL || tN >= tR {
			tN = 0.5 * (tL + tR)
		}
		eta, dEta := gas.EntropyConstraint(U, P, sMin, tN)
		if eta >= 0. {
			tL, etaL = tN, eta
		} else {
			tR, etaR, dEtaR = tN, eta, dEta
		}
	}
	for k := 0; k < newtonMaxIter; k++ {
		if tR-tL < newtonTolerance {
			break
		}
		step(tL - etaL*(tR-tL)/(etaR-etaL))
		if tR-tL < newtonTolerance {
			break
		}
		if dEtaR < 0. {
			step(tR - etaR/dEtaR)
		} else {
			step(0.5 * (tL + tR))
		}
	}
	return tL
}
