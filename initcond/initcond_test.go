package initcond

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cfdlabs/idpflow/euler"
	"github.com/cfdlabs/idpflow/graph"
)

func TestZeroDirectionRejected(t *testing.T) {
	gas := euler.NewGas(1.4, 2)
	cfg := DefaultConfig(2)
	cfg.Direction = []float64{0., 0.}
	_, err := New(gas, cfg, rand.New(rand.NewSource(1)))
	assert.Error(t, err)

	cfg.Direction = []float64{3., 4.}
	iv, err := New(gas, cfg, rand.New(rand.NewSource(1)))
	assert.NoError(t, err)
	// The direction is normalized on construction
	assert.InDelta(t, 0.6, iv.cfg.Direction[0], 1.e-14)
	assert.InDelta(t, 0.8, iv.cfg.Direction[1], 1.e-14)
}

func TestUnknownConfigurationRejected(t *testing.T) {
	gas := euler.NewGas(1.4, 1)
	cfg := DefaultConfig(1)
	cfg.Configuration = "vortex-street"
	_, err := New(gas, cfg, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestUniform(t *testing.T) {
	var (
		gas = euler.NewGas(1.4, 1)
		g   = graph.NewCartesian1D(9, 1., graph.Periodic, graph.Periodic)
		cfg = DefaultConfig(1)
	)
	cfg.RhoLeft, cfg.ULeft, cfg.PLeft = 1.4, 0.5, 1.
	iv, err := New(gas, cfg, rand.New(rand.NewSource(1)))
	assert.NoError(t, err)
	U := iv.Interpolate(g, 0.)
	for i := 0; i < g.N; i++ {
		assert.InDelta(t, 1.4, U.Q[0][i], 1.e-14)
		assert.InDelta(t, 1.4*0.5, U.Q[1][i], 1.e-14)
		assert.InDelta(t, 1./(1.4-1.)+0.5*1.4*0.25, U.Q[2][i], 1.e-14)
	}
}

func TestContrastSplitsAtPosition(t *testing.T) {
	var (
		gas = euler.NewGas(1.4, 1)
		g   = graph.NewCartesian1D(11, 1., graph.Slip, graph.Slip)
		cfg = DefaultConfig(1)
	)
	cfg.Configuration = "contrast"
	cfg.Position = []float64{0.5}
	iv, err := New(gas, cfg, rand.New(rand.NewSource(1)))
	assert.NoError(t, err)
	U := iv.Interpolate(g, 0.)
	assert.InDelta(t, cfg.RhoLeft, U.Q[0][1], 1.e-14)
	assert.InDelta(t, cfg.RhoRight, U.Q[0][9], 1.e-14)
}

func TestShockFrontRankineHugoniot(t *testing.T) {
	var (
		gamma      = 1.4
		mach       = 2.
		rho0, u0   = 1., 0.
		p0         = 1.
		rho, u, p, speed = shockState(gamma, mach, rho0, u0, p0)
	)
	// Jump conditions in the shock frame: mass and momentum flux match
	var (
		v0 = u0 - speed
		v1 = u - speed
	)
	assert.InDelta(t, rho0*v0, rho*v1, 1.e-10)
	assert.InDelta(t, rho0*v0*v0+p0, rho*v1*v1+p, 1.e-10)
	assert.Greater(t, rho, rho0)
	assert.Greater(t, p, p0)

	// The front is advected with the shock speed
	var (
		gas = euler.NewGas(gamma, 1)
		g   = graph.NewCartesian1D(101, 1., graph.Slip, graph.Slip)
		cfg = DefaultConfig(1)
	)
	cfg.Configuration = "shockfront"
	cfg.Position = []float64{0.3}
	iv, err := New(gas, cfg, rand.New(rand.NewSource(1)))
	assert.NoError(t, err)
	U0 := iv.Interpolate(g, 0.)
	Ut := iv.Interpolate(g, 0.1)
	assert.InDelta(t, rho, U0.Q[0][20], 1.e-12)  // x=0.2 behind the front
	assert.InDelta(t, rho0, U0.Q[0][50], 1.e-12) // x=0.5 ahead of it
	// After t=0.1 the front has moved by speed*0.1
	xFront := 0.3 + speed*0.1
	iAhead := int(math.Ceil(xFront*100.)) + 2
	assert.InDelta(t, rho0, Ut.Q[0][iAhead], 1.e-12)
	assert.InDelta(t, rho, Ut.Q[0][iAhead-5], 1.e-12)
}

func TestPerturbationIsSeeded(t *testing.T) {
	var (
		gas = euler.NewGas(1.4, 1)
		g   = graph.NewCartesian1D(9, 1., graph.Slip, graph.Slip)
		cfg = DefaultConfig(1)
	)
	cfg.Perturbation = 0.01
	build := func(seed int64) *euler.Field {
		iv, err := New(gas, cfg, rand.New(rand.NewSource(seed)))
		assert.NoError(t, err)
		return iv.Interpolate(g, 0.)
	}
	a, b := build(42), build(42)
	c := build(7)
	var differs bool
	for i := 0; i < g.N; i++ {
		assert.InDelta(t, a.Q[0][i], b.Q[0][i], 0., "node %d", i)
		if a.Q[0][i] != c.Q[0][i] {
			differs = true
		}
	}
	assert.True(t, differs)
}

func TestNoSlipFixup(t *testing.T) {
	var (
		gas = euler.NewGas(1.4, 1)
		g   = graph.NewCartesian1D(9, 1., graph.NoSlip, graph.NoSlip)
		cfg = DefaultConfig(1)
	)
	cfg.ULeft = 2.
	iv, err := New(gas, cfg, rand.New(rand.NewSource(1)))
	assert.NoError(t, err)
	U := iv.Interpolate(g, 0.)
	assert.Zero(t, U.Q[1][0])
	assert.Zero(t, U.Q[1][g.N-1])
	assert.InDelta(t, cfg.RhoLeft*2., U.Q[1][4], 1.e-14)
}
