// Package linsolve provides the preconditioned iterative linear-solve
// collaborator: symmetric positive definite systems are solved with
// conjugate gradients, preconditioned either with the operator diagonal
// (Jacobi) or with a Chebyshev polynomial of the Jacobi-scaled operator.
package linsolve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Operator is the narrow matrix interface the solver consumes. Apply must
// represent a symmetric positive definite map.
type Operator interface {
	Dims() int
	Apply(dst, src []float64)
	Diagonal(dst []float64)
}

// PreconditionerKind selects the preconditioner. The choice affects
// iteration counts only, never the converged solution.
type PreconditionerKind uint8

const (
	PreconditionJacobi PreconditionerKind = iota
	PreconditionChebyshev
)

// ParsePreconditioner maps a configuration string to a kind.
func ParsePreconditioner(s string) (pk PreconditionerKind, ok bool) {
	switch s {
	case "", "jacobi", "diagonal":
		return PreconditionJacobi, true
	case "chebyshev", "multigrid":
		return PreconditionChebyshev, true
	}
	return PreconditionJacobi, false
}

// Options configures one solve. A Tolerance interpreted with
// RelativeMaxNorm is measured as |r|_inf / |b|_inf.
type Options struct {
	Tolerance       float64
	RelativeMaxNorm bool
	MaxIterations   int
	Preconditioner  PreconditionerKind

	// Chebyshev smoother tuning, mirroring the usual multigrid smoother
	// parameters: polynomial degree and the fraction of the largest
	// eigenvalue that delimits the smoothing range.
	ChebyshevDegree int
	SmootherRange   float64
}

func DefaultOptions() Options {
	return Options{
		Tolerance:       1.0e-12,
		RelativeMaxNorm: true,
		MaxIterations:   1000,
		Preconditioner:  PreconditionJacobi,
		ChebyshevDegree: 3,
		SmootherRange:   15.,
	}
}

// Result carries per-solve diagnostics. Non-convergence is reported
// through the error return together with the final residual; the solution
// vector still holds the best iterate.
type Result struct {
	Iterations int
	Residual   float64
	Converged  bool
}

// ErrNotConverged reports an iteration-cap exceeded solve.
type ErrNotConverged struct {
	Iterations int
	Residual   float64
	Tolerance  float64
}

func (e *ErrNotConverged) Error() string {
	return fmt.Sprintf("linear solve did not converge in %d iterations: residual %g, tolerance %g",
		e.Iterations, e.Residual, e.Tolerance)
}

type preconditioner interface {
	apply(dst, r []float64)
}

// CG solves op*x = b in place, starting from the provided x.
func CG(op Operator, x, b []float64, opt Options) (res Result, err error) {
	var (
		n = op.Dims()
		r = make([]float64, n)
		z = make([]float64, n)
		p = make([]float64, n)
		q = make([]float64, n)
	)
	if len(x) != n || len(b) != n {
		panic("vector length does not match operator dimension")
	}

	threshold := opt.Tolerance
	if opt.RelativeMaxNorm {
		bNorm := floats.Norm(b, math.Inf(1))
		if bNorm == 0. {
			// Homogeneous system: the solution is identically zero
			for i := range x {
				x[i] = 0.
			}
			res.Converged = true
			return
		}
		threshold *= bNorm
	}

	pc := newPreconditioner(op, opt)

	// r = b - A x
	op.Apply(r, x)
	for i := range r {
		r[i] = b[i] - r[i]
	}

	res.Residual = floats.Norm(r, math.Inf(1))
	if res.Residual <= threshold {
		res.Converged = true
		return
	}

	pc.apply(z, r)
	copy(p, z)
	rz := floats.Dot(r, z)

	for k := 0; k < opt.MaxIterations; k++ {
		op.Apply(q, p)
		pq := floats.Dot(p, q)
		if pq <= 0. {
			// Loss of positive definiteness, typically round-off on a
			// nearly singular constrained system
			break
		}
		alpha := rz / pq
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, q)
		res.Iterations = k + 1

		res.Residual = floats.Norm(r, math.Inf(1))
		if res.Residual <= threshold {
			res.Converged = true
			return
		}

		pc.apply(z, r)
		rzNew := floats.Dot(r, z)
		beta := rzNew / rz
		rz = rzNew
		floats.AddScaledTo(p, z, beta, p)
	}

	err = &ErrNotConverged{
		Iterations: res.Iterations,
		Residual:   res.Residual,
		Tolerance:  threshold,
	}
	return
}

func newPreconditioner(op Operator, opt Options) preconditioner {
	switch opt.Preconditioner {
	case PreconditionChebyshev:
		return newChebyshev(op, opt)
	default:
		return newJacobi(op)
	}
}
