// Package dissipation implements the implicit parabolic (viscous and heat
// diffusion) correction applied after the explicit hyperbolic update. One
// step performs two nested Crank-Nicolson half-steps: a velocity solve
// followed by an internal-energy solve, then reconstructs the conserved
// state. Density is unchanged; the viscous operator conserves mass
// exactly.
package dissipation

import (
	"fmt"

	"github.com/cfdlabs/idpflow/euler"
	"github.com/cfdlabs/idpflow/graph"
	"github.com/cfdlabs/idpflow/linsolve"
)

// Stage tracks the orchestrator lifecycle: working storage must be
// allocated by Prepare before the first Step, and concurrent Step calls on
// one instance are a caller error.
type Stage uint8

const (
	Idle Stage = iota
	Prepared
	Stepping
)

// Parameters configures the dissipative step. Mu is the shear viscosity
// scaling the velocity coupling, Kappa the thermal diffusivity scaling the
// internal-energy coupling.
type Parameters struct {
	Mu    float64
	Kappa float64

	Tolerance       float64
	RelativeMaxNorm bool
	MaxIterations   int

	VelocityPreconditioner linsolve.PreconditionerKind
	EnergyPreconditioner   linsolve.PreconditionerKind
	ChebyshevDegree        int
	SmootherRange          float64
}

func DefaultParameters() Parameters {
	return Parameters{
		Mu:              1.0e-3,
		Kappa:           1.0e-3,
		Tolerance:       1.0e-12,
		RelativeMaxNorm: true,
		MaxIterations:   1000,
		ChebyshevDegree: 3,
		SmootherRange:   15.,
	}
}

// Orchestrator owns the working vectors of the two implicit solves. The
// graph and gas collaborators are injected at construction and never owned.
type Orchestrator struct {
	gas    *euler.Gas
	g      *graph.Graph
	params Parameters

	// Optional explicit sources, evaluated at the midpoint time. Both
	// receive the node position.
	ForceField func(t float64, x []float64, f []float64)
	HeatSource func(t float64, x []float64) float64

	stage Stage

	velocity          [][]float64
	velocityRHS       []float64
	internalEnergy    []float64
	internalEnergyRHS []float64
	density           []float64
	work              []float64
	constrained       []bool

	tauMax float64

	nIterVelocity float64
	nIterEnergy   float64
}

func NewOrchestrator(gas *euler.Gas, g *graph.Graph, params Parameters) (d *Orchestrator) {
	if gas.Dim != g.Dim {
		panic("gas model and graph disagree on the space dimension")
	}
	if params.Mu < 0. || params.Kappa < 0. {
		panic("negative transport coefficients")
	}
	d = &Orchestrator{
		gas:    gas,
		g:      g,
		params: params,
	}
	return
}

// Prepare allocates all working vectors sized to the graph. It must run
// after the graph topology is finalized and before the first Step;
// repeated calls reallocate idempotently.
func (d *Orchestrator) Prepare() {
	var (
		n   = d.g.N
		dim = d.g.Dim
	)
	d.velocity = make([][]float64, dim)
	for c := range d.velocity {
		d.velocity[c] = make([]float64, n)
	}
	d.velocityRHS = make([]float64, n)
	d.internalEnergy = make([]float64, n)
	d.internalEnergyRHS = make([]float64, n)
	d.density = make([]float64, n)
	d.work = make([]float64, n)

	d.constrained = make([]bool, n)
	for i := 0; i < n; i++ {
		d.constrained[i] = d.g.BoundaryKindOf(i) == graph.NoSlip
	}

	d.stage = Prepared
}

// SetMaxTimeStep records the externally computed maximal admissible step,
// used when Step is called with tau == 0. CFL limits are owned by the
// explicit hyperbolic step, never computed here.
func (d *Orchestrator) SetMaxTimeStep(tauMax float64) {
	d.tauMax = tauMax
}

// IterationsVelocity reports the iteration count of the last velocity
// solve, averaged over components. Diagnostics only.
func (d *Orchestrator) IterationsVelocity() float64 { return d.nIterVelocity }

// IterationsEnergy reports the iteration count of the last internal-energy
// solve. Diagnostics only.
func (d *Orchestrator) IterationsEnergy() float64 { return d.nIterEnergy }

// Step performs one implicit dissipative update of U in place and returns
// the time step actually taken: tau if nonzero, the recorded maximal step
// otherwise.
func (d *Orchestrator) Step(U *euler.Field, t, tau float64, cycle int) (tauUsed float64, err error) {
	if d.stage != Prepared {
		err = fmt.Errorf("dissipation step in stage %d: call Prepare() first and serialize Step() calls", d.stage)
		return
	}
	d.stage = Stepping
	defer func() { d.stage = Prepared }()

	tauUsed = tau
	if tauUsed == 0. {
		tauUsed = d.tauMax
	}
	if tauUsed <= 0. {
		err = fmt.Errorf("non-positive time step %g in cycle %d", tauUsed, cycle)
		return
	}

	var (
		n       = d.g.N
		dim     = d.g.Dim
		m       = d.g.LumpedMass
		tMid    = t + 0.5*tauUsed
		force   = make([]float64, dim)
		solverO = d.solverOptions()
	)

	// Snapshot density and the primitive fields
	for i := 0; i < n; i++ {
		rho := U.Q[0][i]
		d.density[i] = rho
		var q float64
		for c := 0; c < dim; c++ {
			v := U.Q[1+c][i] / rho
			d.velocity[c][i] = v
			q += v * v
		}
		d.internalEnergy[i] = U.Q[1+dim][i]/rho - 0.5*q
	}

	// Velocity half-step: (rho_i m_i + tau/2 mu beta) v = m_i (m_i^mom + tau/2 F)
	velOp := &parabolicOperator{
		g:           d.g,
		diag:        make([]float64, n),
		coupling:    0.5 * tauUsed * d.params.Mu,
		constrained: d.constrained,
	}
	for i := 0; i < n; i++ {
		velOp.diag[i] = d.density[i] * m[i]
	}
	solverO.Preconditioner = d.params.VelocityPreconditioner

	d.nIterVelocity = 0.
	for c := 0; c < dim; c++ {
		for i := 0; i < n; i++ {
			if d.constrained[i] {
				d.velocityRHS[i] = 0.
				d.velocity[c][i] = 0.
				continue
			}
			rhs := m[i] * U.Q[1+c][i]
			if d.ForceField != nil {
				d.ForceField(tMid, d.g.Coords[i], force)
				rhs += 0.5 * tauUsed * m[i] * force[c]
			}
			d.velocityRHS[i] = rhs
		}
		res, solveErr := linsolve.CG(velOp, d.velocity[c], d.velocityRHS, solverO)
		d.nIterVelocity += float64(res.Iterations) / float64(dim)
		if solveErr != nil {
			err = fmt.Errorf("velocity solve, component %d: %w", c, solveErr)
			return
		}
	}

	// Internal-energy half-step: (m_i rho_i + tau/2 kappa beta) e = rhs,
	// where the right-hand side collects the old internal energy, the
	// kinetic-energy dissipation of the half-step velocity and any heat
	// source.
	enOp := &parabolicOperator{
		g:        d.g,
		diag:     make([]float64, n),
		coupling: 0.5 * tauUsed * d.params.Kappa,
	}
	for i := 0; i < n; i++ {
		enOp.diag[i] = d.density[i] * m[i]
	}
	solverO.Preconditioner = d.params.EnergyPreconditioner

	for i := 0; i < n; i++ {
		d.internalEnergyRHS[i] = d.density[i] * m[i] * d.internalEnergy[i]
	}
	for c := 0; c < dim; c++ {
		d.g.BetaMatVec(d.work, d.velocity[c])
		for i := 0; i < n; i++ {
			d.internalEnergyRHS[i] += 0.5 * tauUsed * d.params.Mu * d.velocity[c][i] * d.work[i]
		}
	}
	if d.HeatSource != nil {
		for i := 0; i < n; i++ {
			d.internalEnergyRHS[i] += 0.5 * tauUsed * m[i] * d.HeatSource(tMid, d.g.Coords[i])
		}
	}

	res, solveErr := linsolve.CG(enOp, d.internalEnergy, d.internalEnergyRHS, solverO)
	d.nIterEnergy = float64(res.Iterations)
	if solveErr != nil {
		err = fmt.Errorf("internal energy solve: %w", solveErr)
		return
	}
	for i := 0; i < n; i++ {
		if d.internalEnergy[i] <= 0. {
			err = fmt.Errorf("non-positive internal energy %g at node %d after implicit solve",
				d.internalEnergy[i], i)
			return
		}
	}

	// Reconstruction: density untouched, momentum from the half-step
	// velocity, total energy from internal plus kinetic energy
	for i := 0; i < n; i++ {
		rho := d.density[i]
		var q float64
		for c := 0; c < dim; c++ {
			v := d.velocity[c][i]
			U.Q[1+c][i] = rho * v
			q += v * v
		}
		U.Q[1+dim][i] = rho*d.internalEnergy[i] + 0.5*rho*q
	}

	// Guard the reconstructed momentum against solver round-off at
	// slip and no-slip nodes
	d.applyBoundaryConditions(U)
	return
}

func (d *Orchestrator) applyBoundaryConditions(U *euler.Field) {
	var (
		dim = d.g.Dim
	)
	for i, entries := range d.g.Boundary {
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

func (d *Orchestrator) solverOptions() linsolve.Options {
	o := linsolve.DefaultOptions()
	o.Tolerance = d.params.Tolerance
	o.RelativeMaxNorm = d.params.RelativeMaxNorm
	if d.params.MaxIterations > 0 {
		o.MaxIterations = d.params.MaxIterations
	}
	if d.params.ChebyshevDegree > 0 {
		o.ChebyshevDegree = d.params.ChebyshevDegree
	}
	if d.params.SmootherRange > 1. {
		o.SmootherRange = d.params.SmootherRange
	}
	return o
}

// parabolicOperator is the symmetric map diag(rho_i m_i) + coupling*beta
// with no-slip rows and columns eliminated to the identity, which keeps
// the operator positive definite for CG.
type parabolicOperator struct {
	g           *graph.Graph
	diag        []float64
	coupling    float64
	constrained []bool
}

func (op *parabolicOperator) Dims() int { return op.g.N }

func (op *parabolicOperator) Apply(dst, src []float64) {
	var (
		g = op.g
	)
	for i := 0; i < g.N; i++ {
		if op.constrained != nil && op.constrained[i] {
			dst[i] = src[i]
			continue
		}
		sum := op.diag[i] * src[i]
		for e := g.RowPtr[i]; e < g.RowPtr[i+1]; e++ {
			j := g.Col[e]
			if op.constrained != nil && op.constrained[j] {
				continue
			}
			sum += op.coupling * g.Beta[e] * src[j]
		}
		dst[i] = sum
	}
}

func (op *parabolicOperator) Diagonal(dst []float64) {
	var (
		g = op.g
	)
	for i := 0; i < g.N; i++ {
		if op.constrained != nil && op.constrained[i] {
			dst[i] = 1.
			continue
		}
		dst[i] = op.diag[i]
		for e := g.RowPtr[i]; e < g.RowPtr[i+1]; e++ {
			if g.Col[e] == i {
				dst[i] += op.coupling * g.Beta[e]
				break
			}
		}
	}
}
