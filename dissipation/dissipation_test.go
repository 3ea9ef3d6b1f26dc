package dissipation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cfdlabs/idpflow/euler"
	"github.com/cfdlabs/idpflow/graph"
)

// sineField builds a 1D state with uniform density and pressure and a
// sinusoidal velocity profile vanishing at both ends.
func sineField(gas *euler.Gas, g *graph.Graph, amp float64) (U *euler.Field) {
	U = euler.NewField(1, g.N)
	L := g.MeasureOfOmega
	for i := 0; i < g.N; i++ {
		var (
			rho = 1.
			u   = amp * math.Sin(math.Pi*g.Coords[i][0]/L)
			p   = 1.
		)
		U.Q[0][i] = rho
		U.Q[1][i] = rho * u
		U.Q[2][i] = p/(gas.Gamma-1.) + 0.5*rho*u*u
	}
	return
}

func TestStepRequiresPrepare(t *testing.T) {
	var (
		gas = euler.NewGas(1.4, 1)
		g   = graph.NewCartesian1D(9, 1., graph.Slip, graph.Slip)
		d   = NewOrchestrator(gas, g, DefaultParameters())
		U   = sineField(gas, g, 0.1)
	)
	_, err := d.Step(U, 0., 1.e-3, 0)
	assert.Error(t, err)

	d.Prepare()
	_, err = d.Step(U, 0., 1.e-3, 0)
	assert.NoError(t, err)
}

func TestZeroTimeStepRejected(t *testing.T) {
	var (
		gas = euler.NewGas(1.4, 1)
		g   = graph.NewCartesian1D(9, 1., graph.Slip, graph.Slip)
		d   = NewOrchestrator(gas, g, DefaultParameters())
		U   = sineField(gas, g, 0.1)
	)
	d.Prepare()
	_, err := d.Step(U, 0., 0., 0)
	assert.Error(t, err)

	// A recorded maximal step stands in for tau == 0
	d.SetMaxTimeStep(1.e-3)
	tauUsed, err := d.Step(U, 0., 0., 0)
	assert.NoError(t, err)
	assert.InDelta(t, 1.e-3, tauUsed, 1.e-18)
}

func TestZeroCoefficientsAreIdentity(t *testing.T) {
	var (
		gas = euler.NewGas(1.4, 1)
		g   = graph.NewCartesian1D(17, 1., graph.Slip, graph.Slip)
		p   = DefaultParameters()
	)
	p.Mu, p.Kappa = 0., 0.
	d := NewOrchestrator(gas, g, p)
	d.Prepare()

	U := sineField(gas, g, 0.1)
	before := U.Copy()
	_, err := d.Step(U, 0., 1.e-3, 0)
	assert.NoError(t, err)
	for i := 1; i < g.N-1; i++ {
		assert.InDelta(t, before.Q[0][i], U.Q[0][i], 1.e-13, "node %d", i)
		assert.InDelta(t, before.Q[1][i], U.Q[1][i], 1.e-10, "node %d", i)
		assert.InDelta(t, before.Q[2][i], U.Q[2][i], 1.e-10, "node %d", i)
	}
}

func TestZeroCouplingIsIdentity(t *testing.T) {
	var (
		gas = euler.NewGas(1.4, 1)
		g   = graph.NewCartesian1D(17, 1., graph.Slip, graph.Slip)
	)
	// Trivial viscous operator: wipe every beta weight
	for e := range g.Beta {
		g.Beta[e] = 0.
	}
	d := NewOrchestrator(gas, g, DefaultParameters())
	d.Prepare()

	U := sineField(gas, g, 0.1)
	before := U.Copy()
	_, err := d.Step(U, 0., 1.e-3, 0)
	assert.NoError(t, err)
	for i := 1; i < g.N-1; i++ {
		assert.InDelta(t, before.Q[1][i], U.Q[1][i], 1.e-12, "node %d", i)
		assert.InDelta(t, before.Q[2][i], U.Q[2][i], 1.e-12, "node %d", i)
	}
}

func TestViscousDampingDissipatesKineticEnergy(t *testing.T) {
	var (
		gas = euler.NewGas(1.4, 1)
		g   = graph.NewCartesian1D(33, 1., graph.Slip, graph.Slip)
		p   = DefaultParameters()
	)
	p.Mu, p.Kappa = 1.e-2, 0.
	d := NewOrchestrator(gas, g, p)
	d.Prepare()

	U := sineField(gas, g, 0.2)
	kinetic := func(U *euler.Field) (k float64) {
		buf := make([]float64, 3)
		for i := 0; i < g.N; i++ {
			k += g.LumpedMass[i] * gas.KineticEnergy(U.State(i, buf))
		}
		return
	}
	k0 := kinetic(U)
	_, err := d.Step(U, 0., 1.e-3, 0)
	assert.NoError(t, err)
	assert.Less(t, kinetic(U), k0)

	// Density is never touched by the dissipative step
	for i := 0; i < g.N; i++ {
		assert.InDelta(t, 1., U.Q[0][i], 1.e-14)
	}
	// Internal energy stays positive
	buf := make([]float64, 3)
	for i := 0; i < g.N; i++ {
		assert.Greater(t, gas.InternalEnergy(U.State(i, buf)), 0.)
	}
	assert.Greater(t, d.IterationsVelocity(), 0.)
}

func TestNoSlipMomentumIsZero(t *testing.T) {
	var (
		gas = euler.NewGas(1.4, 1)
		g   = graph.NewCartesian1D(17, 1., graph.NoSlip, graph.NoSlip)
		p   = DefaultParameters()
	)
	p.Mu, p.Kappa = 1.e-2, 1.e-3
	d := NewOrchestrator(gas, g, p)
	d.Prepare()

	U := sineField(gas, g, 0.2)
	// Seed nonzero wall momentum to confirm the constraint wipes it
	U.Q[1][0] = 0.05
	_, err := d.Step(U, 0., 1.e-3, 0)
	assert.NoError(t, err)
	assert.Zero(t, U.Q[1][0])
	assert.Zero(t, U.Q[1][g.N-1])
}

func TestHeatSourceRaisesInternalEnergy(t *testing.T) {
	var (
		gas = euler.NewGas(1.4, 1)
		g   = graph.NewCartesian1D(17, 1., graph.Slip, graph.Slip)
		p   = DefaultParameters()
	)
	p.Mu, p.Kappa = 0., 1.e-3
	d := NewOrchestrator(gas, g, p)
	d.Prepare()
	d.HeatSource = func(t float64, x []float64) float64 { return 1. }

	U := sineField(gas, g, 0.)
	buf := make([]float64, 3)
	e0 := gas.InternalEnergy(U.State(8, buf))
	_, err := d.Step(U, 0., 1.e-3, 0)
	assert.NoError(t, err)
	assert.Greater(t, gas.InternalEnergy(U.State(8, buf)), e0)
}
