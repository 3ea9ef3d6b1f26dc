package linsolve

import (
	"gonum.org/v1/gonum/floats"
)

type jacobi struct {
	dInv []float64
}

func newJacobi(op Operator) (pc *jacobi) {
	n := op.Dims()
	pc = &jacobi{dInv: make([]float64, n)}
	op.Diagonal(pc.dInv)
	for i, d := range pc.dInv {
		if d == 0. {
			// Constrained identity rows can report a zero through a
			// careless operator; map them to the identity
			pc.dInv[i] = 1.
		} else {
			pc.dInv[i] = 1. / d
		}
	}
	return
}

func (pc *jacobi) apply(dst, r []float64) {
	for i := range dst {
		dst[i] = pc.dInv[i] * r[i]
	}
}

// chebyshev applies a fixed-degree Chebyshev polynomial of the
// Jacobi-scaled operator, the same smoother a multigrid hierarchy would
// run. Being a fixed polynomial it is a linear, symmetric preconditioner
// and therefore safe inside CG.
type chebyshev struct {
	op     Operator
	dInv   []float64
	degree int

	theta, delta, sigma float64

	z, d, work []float64
}

func newChebyshev(op Operator, opt Options) (pc *chebyshev) {
	var (
		n = op.Dims()
	)
	pc = &chebyshev{
		op:     op,
		dInv:   make([]float64, n),
		degree: opt.ChebyshevDegree,
		z:      make([]float64, n),
		d:      make([]float64, n),
		work:   make([]float64, n),
	}
	if pc.degree < 1 {
		pc.degree = 1
	}
	op.Diagonal(pc.dInv)
	for i, d := range pc.dInv {
		if d == 0. {
			pc.dInv[i] = 1.
		} else {
			pc.dInv[i] = 1. / d
		}
	}

	lMax := pc.estimateMaxEigenvalue(12)
	smootherRange := opt.SmootherRange
	if smootherRange <= 1. {
		smootherRange = 15.
	}
	var (
		upper = 1.2 * lMax
		lower = lMax / smootherRange
	)
	pc.theta = 0.5 * (upper + lower)
	pc.delta = 0.5 * (upper - lower)
	pc.sigma = pc.theta / pc.delta
	return
}

// estimateMaxEigenvalue runs a deterministic power iteration on the
// Jacobi-scaled operator.
func (pc *chebyshev) estimateMaxEigenvalue(iters int) (lMax float64) {
	var (
		n = pc.op.Dims()
		v = make([]float64, n)
		w = make([]float64, n)
	)
	for i := range v {
		v[i] = 1. + 0.1*float64(i%7) // deterministic, not an eigenvector of typical stencils
	}
	lMax = 1.
	for k := 0; k < iters; k++ {
		pc.op.Apply(w, v)
		for i := range w {
			w[i] *= pc.dInv[i]
		}
		norm := floats.Norm(w, 2)
		if norm == 0. {
			return 1.
		}
		lMax = norm / floats.Norm(v, 2)
		floats.Scale(1./norm, w)
		copy(v, w)
	}
	return
}

func (pc *chebyshev) apply(dst, r []float64) {
	var (
		rho = 1. / pc.sigma
	)
	// First term: z = D^{-1} r / theta
	for i := range pc.z {
		pc.d[i] = pc.dInv[i] * r[i] / pc.theta
		pc.z[i] = pc.d[i]
	}
	for k := 1; k < pc.degree; k++ {
		// Residual of the current iterate: work = r - A z
		pc.op.Apply(pc.work, pc.z)
		for i := range pc.work {
			pc.work[i] = r[i] - pc.work[i]
		}
		rhoNew := 1. / (2.*pc.sigma - rho)
		for i := range pc.d {
			pc.d[i] = rhoNew*rho*pc.d[i] + 2.*rhoNew/pc.delta*pc.dInv[i]*pc.work[i]
			pc.z[i] += pc.d[i]
		}
		rho = rhoNew
	}
	copy(dst, pc.z)
}
