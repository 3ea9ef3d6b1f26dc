// Package hyperbolic implements the explicit invariant-domain-preserving
// update for the compressible Euler system on the operator graph: a
// first-order graph-viscosity step whose per-edge bar states feed the
// limiter bounds, blended with the high-order Galerkin update by the
// maximal admissible convex limiting factor.
package hyperbolic

import (
	"math"
	"sync"

	"github.com/cfdlabs/idpflow/euler"
	"github.com/cfdlabs/idpflow/graph"
	"github.com/cfdlabs/idpflow/limiter"
	"github.com/cfdlabs/idpflow/utils"
)

// boundTolerance absorbs round-off when verifying the post-limit state
// against its bounds. Violations beyond it are contract failures, not
// something to renormalize.
const boundTolerance = 1.0e-10

type GraphEuler struct {
	gas       *euler.Gas
	g         *graph.Graph
	limParams limiter.Parameters
	CFL       float64

	pm   *utils.PartitionMap
	accs []*limiter.Accumulator

	// Per-edge working data, edge-major
	dij  []float64
	bar  []float64
	flux []float64

	// Per-node working data
	entropy    []float64
	variations []float64
	bounds     []limiter.Bounds
	lowOrder   *euler.Field
	increment  *euler.Field
}

func NewGraphEuler(gas *euler.Gas, g *graph.Graph, limParams limiter.Parameters,
	parallelDegree int, CFL float64) (h *GraphEuler) {
	if gas.Dim != g.Dim {
		panic("gas model and graph disagree on the space dimension")
	}
	if parallelDegree < 1 {
		parallelDegree = 1
	}
	var (
		nComp = gas.ProblemDimension()
	)
	h = &GraphEuler{
		gas:        gas,
		g:          g,
		limParams:  limParams,
		CFL:        CFL,
		pm:         utils.NewPartitionMap(parallelDegree, g.N),
		accs:       make([]*limiter.Accumulator, parallelDegree),
		dij:        make([]float64, g.NumEdges()),
		bar:        make([]float64, g.NumEdges()*nComp),
		flux:       make([]float64, g.N*nComp*gas.Dim),
		entropy:    make([]float64, g.N),
		variations: make([]float64, g.N),
		bounds:     make([]limiter.Bounds, g.N),
		lowOrder:   euler.NewField(gas.Dim, g.N),
		increment:  euler.NewField(gas.Dim, g.N),
	}
	for np := range h.accs {
		h.accs[np] = limiter.NewAccumulator(gas, limParams, nComp)
	}
	return
}

// parallelNodes runs fn over every bucket of the partition map and blocks
// until all shards complete. Each shard returns at most one error; the
// first non-nil one wins.
func (h *GraphEuler) parallelNodes(fn func(np, iMin, iMax int) error) (err error) {
	var (
		wg   = sync.WaitGroup{}
		errs = make([]error, h.pm.ParallelDegree)
	)
	for np := 0; np < h.pm.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			iMin, iMax := h.pm.GetBucketRange(np)
			errs[np] = fn(np, iMin, iMax)
		}(np)
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return
}

// Step advances U in place by one limited forward-Euler step and returns
// the time step taken: the CFL-maximal step, capped by tau when tau is
// positive (used to land exactly on the final time).
func (h *GraphEuler) Step(U *euler.Field, t, tau float64) (tauUsed float64, err error) {
	var (
		g     = h.g
		gas   = h.gas
		dim   = gas.Dim
		nComp = gas.ProblemDimension()
	)

	// Pointwise quantities: physical flux, specific entropy and the
	// density-roughness indicator driving bound relaxation
	_ = h.parallelNodes(func(np, iMin, iMax int) error {
		Ui := make([]float64, nComp)
		for i := iMin; i < iMax; i++ {
			U.State(i, Ui)
			h.entropy[i] = gas.SpecificEntropy(Ui)
			gas.Flux(Ui, h.flux[i*nComp*dim:(i+1)*nComp*dim])
			var rough float64
			for e := g.RowPtr[i]; e < g.RowPtr[i+1]; e++ {
				if j := g.Col[e]; j != i {
					rough = math.Max(rough, math.Abs(U.Q[0][j]-U.Q[0][i]))
				}
			}
			h.variations[i] = rough
		}
		return nil
	})

	// Graph viscosity d_ij from the guaranteed wave-speed bound, then
	// symmetrized over the transposed edge
	_ = h.parallelNodes(func(np, iMin, iMax int) error {
		var (
			Ui = make([]float64, nComp)
			Uj = make([]float64, nComp)
			n  = make([]float64, dim)
		)
		for i := iMin; i < iMax; i++ {
			U.State(i, Ui)
			for e := g.RowPtr[i]; e < g.RowPtr[i+1]; e++ {
				j := g.Col[e]
				if j == i {
					h.dij[e] = 0.
					continue
				}
				var cNorm float64
				for d := 0; d < dim; d++ {
					cNorm += g.C[e*dim+d] * g.C[e*dim+d]
				}
				cNorm = math.Sqrt(cNorm)
				if cNorm == 0. {
					// Zero-weight edge: no coupling, no viscosity
					h.dij[e] = 0.
					continue
				}
				for d := 0; d < dim; d++ {
					n[d] = g.C[e*dim+d] / cNorm
				}
				U.State(j, Uj)
				h.dij[e] = gas.MaxWaveSpeed(Ui, Uj, n) * cNorm
			}
		}
		return nil
	})
	for e := range h.dij {
		h.dij[e] = math.Max(h.dij[e], h.dij[g.TransposeIdx[e]])
	}

	// CFL bound tau_max = CFL * min_i m_i / (2 sum_j d_ij)
	tauMax := math.MaxFloat64
	for i := 0; i < g.N; i++ {
		var dSum float64
		for e := g.RowPtr[i]; e < g.RowPtr[i+1]; e++ {
			dSum += h.dij[e]
		}
		if dSum > 0. {
			tauMax = math.Min(tauMax, g.LumpedMass[i]/(2.*dSum))
		}
	}
	tauMax *= h.CFL
	tauUsed = tauMax
	if tau > 0. && tau < tauUsed {
		tauUsed = tau
	}

	// Bar states, low-order update and high-order increment
	_ = h.parallelNodes(func(np, iMin, iMax int) error {
		var (
			Ui = make([]float64, nComp)
			Uj = make([]float64, nComp)
		)
		for i := iMin; i < iMax; i++ {
			U.State(i, Ui)
			oom := 1. / g.LumpedMass[i]
			for c := 0; c < nComp; c++ {
				h.lowOrder.Q[c][i] = Ui[c]
				h.increment.Q[c][i] = 0.
			}
			for e := g.RowPtr[i]; e < g.RowPtr[i+1]; e++ {
				j := g.Col[e]
				U.State(j, Uj)
				var (
					fluxJ = h.flux[j*nComp*dim : (j+1)*nComp*dim]
					fluxI = h.flux[i*nComp*dim : (i+1)*nComp*dim]
					barE  = h.bar[e*nComp : (e+1)*nComp]
				)
				// Galerkin part of the high-order update
				for c := 0; c < nComp; c++ {
					var fc float64
					for d := 0; d < dim; d++ {
						fc += fluxJ[c*dim+d] * g.C[e*dim+d]
					}
					h.increment.Q[c][i] -= tauUsed * oom * fc
				}
				if j == i {
					copy(barE, Ui)
					continue
				}
				// Bar state and the graph-viscosity low-order update
				for c := 0; c < nComp; c++ {
					barE[c] = 0.5 * (Ui[c] + Uj[c])
					if h.dij[e] > 0. {
						var fc float64
						for d := 0; d < dim; d++ {
							fc += (fluxJ[c*dim+d] - fluxI[c*dim+d]) * g.C[e*dim+d]
						}
						barE[c] -= 0.5 * fc / h.dij[e]
					}
					h.lowOrder.Q[c][i] += 2. * tauUsed * oom * h.dij[e] * (barE[c] - Ui[c])
				}
			}
			// High-order state minus low-order state is the proposed
			// antidiffusive increment handed to the limiter
			for c := 0; c < nComp; c++ {
				highOrder := Ui[c] + h.increment.Q[c][i]
				h.increment.Q[c][i] = highOrder - h.lowOrder.Q[c][i]
			}
		}
		return nil
	})

	// Bounds pass: fold bar states and variations through the
	// accumulator, widen by relaxation, store the finalized triple. Each
	// node's fold is complete within its owning shard; remote (ghost)
	// contributions would be merged with Bounds.Merge before
	// ApplyRelaxation.
	_ = h.parallelNodes(func(np, iMin, iMax int) error {
		var (
			acc = h.accs[np]
			Ui  = make([]float64, nComp)
			Uj  = make([]float64, nComp)
		)
		for i := iMin; i < iMax; i++ {
			U.State(i, Ui)
			acc.Reset()
			acc.ResetVariations(h.variations[i])
			for e := g.RowPtr[i]; e < g.RowPtr[i+1]; e++ {
				j := g.Col[e]
				U.State(j, Uj)
				acc.Accumulate(Ui, Uj, h.bar[e*nComp:(e+1)*nComp], h.entropy[j], j == i)
				if j != i {
					acc.AccumulateVariations(h.variations[j], g.Beta[e])
				}
			}
			acc.ApplyRelaxation(g.Hd[i])
			h.bounds[i] = acc.Bounds()
		}
		return nil
	})

	// Convex limiting and the final update
	err = h.parallelNodes(func(np, iMin, iMax int) error {
		var (
			UL = make([]float64, nComp)
			P  = make([]float64, nComp)
		)
		for i := iMin; i < iMax; i++ {
			h.lowOrder.State(i, UL)
			h.increment.State(i, P)
			tStar := limiter.Limit(h.gas, h.limParams.Variant, h.bounds[i], UL, P, 0., 1.)
			for c := 0; c < nComp; c++ {
				U.Q[c][i] = UL[c] + tStar*P[c]
			}
		}
		return nil
	})
	if err != nil {
		return
	}

	h.applyBoundaryConditions(U)
	err = h.verifyInvariantDomain(U)
	return
}

// applyBoundaryConditions removes the normal momentum component at slip
// nodes and zeroes the momentum at no-slip nodes.
func (h *GraphEuler) applyBoundaryConditions(U *euler.Field) {
	var (
		dim = h.g.Dim
	)
	for i, entries := range h.g.Boundary {
		for _, bp := range entries {
			switch bp.Kind {
			case graph.NoSlip:
				for c := 0; c < dim; c++ {
					U.Q[1+c][i] = 0.
				}
			case graph.Slip:
				var mn float64
				for c := 0; c < dim; c++ {
					mn += U.Q[1+c][i] * bp.Normal[c]
				}
				for c := 0; c < dim; c++ {
					U.Q[1+c][i] -= mn * bp.Normal[c]
				}
			}
		}
	}
}

// verifyInvariantDomain checks the completed step against the bounds used
// to limit it. A violation is a precondition failure of the explicit
// update, reported with the offending node and constraint.
func (h *GraphEuler) verifyInvariantDomain(U *euler.Field) error {
	if h.limParams.Variant == limiter.None {
		return nil
	}
	var (
		nComp = h.gas.ProblemDimension()
		Ui    = make([]float64, nComp)
	)
	for i := 0; i < h.g.N; i++ {
		if rho := U.Q[0][i]; rho < 0. {
			return &limiter.BoundViolationError{
				Node:       i,
				Constraint: limiter.ConstraintDensityMin,
				Value:      rho,
				Bound:      0.,
			}
		}
		if h.limParams.Variant == limiter.SpecificEntropy ||
			h.limParams.Variant == limiter.EntropyInequality {
			U.State(i, Ui)
			s := h.gas.SpecificEntropy(Ui)
			if s < h.bounds[i].SMin-boundTolerance*math.Abs(h.bounds[i].SMin) {
				return &limiter.BoundViolationError{
					Node:       i,
					Constraint: limiter.ConstraintEntropyMin,
					Value:      s,
					Bound:      h.bounds[i].SMin,
				}
			}
		}
	}
	return nil
}
