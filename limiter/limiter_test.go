package limiter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cfdlabs/idpflow/euler"
)

func state1D(gas *euler.Gas, rho, u, p float64) []float64 {
	return []float64{rho, rho * u, p/(gas.Gamma-1.) + 0.5*rho*u*u}
}

func TestParseVariant(t *testing.T) {
	for s, want := range map[string]Variant{
		"none":              None,
		"density":           Density,
		"rho":               Density,
		"SpecificEntropy":   SpecificEntropy,
		"specific-entropy":  SpecificEntropy,
		"EntropyInequality": EntropyInequality,
	} {
		v, ok := ParseVariant(s)
		assert.True(t, ok, s)
		assert.Equal(t, want, v, s)
	}
	_, ok := ParseVariant("harten")
	assert.False(t, ok)
}

func TestSingleEdgeFold(t *testing.T) {
	var (
		gas = euler.NewGas(1.4, 1)
		lim = NewAccumulator(gas, DefaultParameters(), gas.ProblemDimension())
		Ui  = state1D(gas, 1., 0., 1.)
		Uj  = state1D(gas, 2., 0., 1.)
		bar = state1D(gas, 1.4, 0., 1.)
	)
	lim.Reset()
	lim.Accumulate(Ui, Uj, bar, gas.SpecificEntropy(Uj), false)
	b := lim.RawBounds()
	assert.InDelta(t, 1.4, b.RhoMin, 1.e-14)
	assert.InDelta(t, 1.4, b.RhoMax, 1.e-14)
	assert.InDelta(t, gas.SpecificEntropy(Uj), b.SMin, 1.e-14)
}

func TestVariationRelaxation(t *testing.T) {
	var (
		gas = euler.NewGas(1.4, 1)
		p   = DefaultParameters()
	)
	// Calibration constant 4.0: one edge with variations 0.1 and 0.3 and
	// beta weight 2.0 gives numerator 4*2*(0.1+0.3) = 3.2, denominator 2.0,
	// so the density envelope is 1.6
	assert.InDelta(t, 4.0, p.VariationCalibration, 1.e-14)
	lim := NewAccumulator(gas, p, gas.ProblemDimension())
	lim.Reset()
	lim.ResetVariations(0.1)
	lim.AccumulateVariations(0.3, 2.0)
	assert.InDelta(t, 3.2, lim.relaxNumerator, 1.e-14)
	assert.InDelta(t, 2.0, lim.relaxDenom, 1.e-14)
}

func TestBoundsFoldOrderIndependent(t *testing.T) {
	var (
		gas  = euler.NewGas(1.4, 1)
		Ui   = state1D(gas, 1.0, 0.2, 1.)
		Ua   = state1D(gas, 0.6, -0.1, 0.7)
		Ub   = state1D(gas, 1.8, 0.4, 1.5)
		barA = state1D(gas, 0.8, 0., 0.9)
		barB = state1D(gas, 1.4, 0.3, 1.2)
	)
	fold := func(order []int) Bounds {
		lim := NewAccumulator(gas, DefaultParameters(), gas.ProblemDimension())
		lim.Reset()
		lim.ResetVariations(0.)
		for _, k := range order {
			switch k {
			case 0:
				lim.Accumulate(Ui, Ui, Ui, gas.SpecificEntropy(Ui), true)
			case 1:
				lim.Accumulate(Ui, Ua, barA, gas.SpecificEntropy(Ua), false)
			case 2:
				lim.Accumulate(Ui, Ub, barB, gas.SpecificEntropy(Ub), false)
			}
		}
		lim.ApplyRelaxation(0.01)
		return lim.Bounds()
	}
	b1 := fold([]int{0, 1, 2})
	b2 := fold([]int{2, 0, 1})
	assert.InDelta(t, b1.RhoMin, b2.RhoMin, 1.e-14)
	assert.InDelta(t, b1.RhoMax, b2.RhoMax, 1.e-14)
	assert.InDelta(t, b1.SMin, b2.SMin, 1.e-14)
	assert.LessOrEqual(t, b1.RhoMin, b1.RhoMax)
}

func TestRelaxationWidensBounds(t *testing.T) {
	var (
		gas = euler.NewGas(1.4, 1)
		Ui  = state1D(gas, 1.0, 0., 1.)
		Ua  = state1D(gas, 0.9, 0., 0.9)
	)
	raw := func(relax bool) (rawB, finalB Bounds) {
		p := DefaultParameters()
		p.RelaxBounds = relax
		lim := NewAccumulator(gas, p, gas.ProblemDimension())
		lim.Reset()
		lim.ResetVariations(0.1)
		lim.Accumulate(Ui, Ui, Ui, gas.SpecificEntropy(Ui), true)
		lim.Accumulate(Ui, Ua, state1D(gas, 0.95, 0., 0.95), gas.SpecificEntropy(Ua), false)
		lim.AccumulateVariations(0.1, 1.)
		rawB = lim.RawBounds()
		lim.ApplyRelaxation(0.01)
		finalB = lim.Bounds()
		return
	}
	rawB, relaxed := raw(true)
	_, unrelaxed := raw(false)
	assert.LessOrEqual(t, relaxed.RhoMin, rawB.RhoMin)
	assert.GreaterOrEqual(t, relaxed.RhoMax, rawB.RhoMax)
	assert.LessOrEqual(t, relaxed.SMin, rawB.SMin)
	assert.InDelta(t, rawB.RhoMin, unrelaxed.RhoMin, 1.e-14)
	assert.InDelta(t, rawB.SMin, unrelaxed.SMin, 1.e-14)
}

func TestBoundsBeforeRelaxationPanics(t *testing.T) {
	gas := euler.NewGas(1.4, 1)
	lim := NewAccumulator(gas, DefaultParameters(), gas.ProblemDimension())
	lim.Reset()
	assert.Panics(t, func() { lim.Bounds() })
}

func TestMerge(t *testing.T) {
	b := Bounds{RhoMin: 0.5, RhoMax: 1.5, SMin: 1.0}
	b.Merge(Bounds{RhoMin: 0.4, RhoMax: 1.2, SMin: 1.1})
	assert.InDelta(t, 0.4, b.RhoMin, 1.e-15)
	assert.InDelta(t, 1.5, b.RhoMax, 1.e-15)
	assert.InDelta(t, 1.0, b.SMin, 1.e-15)
}

func TestLimitDensityClosedForm(t *testing.T) {
	var (
		gas    = euler.NewGas(1.4, 1)
		U      = state1D(gas, 1.0, 0., 1.)
		P      = []float64{-0.5, 0., 0.}
		bounds = Bounds{RhoMin: 0.8, RhoMax: 1.2, SMin: 0.}
	)
	// rho + t*(-0.5) hits RhoMin=0.8 at t = 0.4
	tStar := Limit(gas, Density, bounds, U, P, 0., 1.)
	assert.InDelta(t, 0.4, tStar, 1.e-12)

	// Increasing density hits the upper bound
	P[0] = 0.5
	tStar = Limit(gas, Density, bounds, U, P, 0., 1.)
	assert.InDelta(t, 0.4, tStar, 1.e-12)

	// Feasible full increment is left alone
	P[0] = 0.1
	tStar = Limit(gas, Density, bounds, U, P, 0., 1.)
	assert.InDelta(t, 1.0, tStar, 1.e-14)

	// Variant None performs no limiting at all
	P[0] = -5.
	tStar = Limit(gas, None, bounds, U, P, 0., 1.)
	assert.InDelta(t, 1.0, tStar, 1.e-14)
}

func TestLimitEntropyFloor(t *testing.T) {
	var (
		gas = euler.NewGas(1.4, 1)
		U   = state1D(gas, 1.0, 0., 1.)
		// Increment draining internal energy, driving entropy down
		P      = []float64{0., 0.5, -1.5}
		bounds = Bounds{RhoMin: 0., RhoMax: 2., SMin: 0.9 * gas.SpecificEntropy(U)}
	)
	tStar := Limit(gas, SpecificEntropy, bounds, U, P, 0., 1.)
	assert.Greater(t, tStar, 0.)
	assert.Less(t, tStar, 1.)

	// The limited state satisfies the floor
	var limited [3]float64
	for c := range limited {
		limited[c] = U[c] + tStar*P[c]
	}
	assert.GreaterOrEqual(t, gas.SpecificEntropy(limited[:]), bounds.SMin-1.e-9)

	// Idempotence: re-limiting with tMax = tStar is a fixed point
	again := Limit(gas, SpecificEntropy, bounds, U, P, 0., tStar)
	assert.InDelta(t, tStar, again, 1.e-9)
}

func TestLimitEntropyInequalityIsStricter(t *testing.T) {
	var (
		gas    = euler.NewGas(1.4, 1)
		U      = state1D(gas, 1.0, 0., 1.)
		P      = []float64{0., 0.5, -1.5}
		bounds = Bounds{RhoMin: 0., RhoMax: 2., SMin: 0.5 * gas.SpecificEntropy(U)}
	)
	tFloor := Limit(gas, SpecificEntropy, bounds, U, P, 0., 1.)
	tIneq := Limit(gas, EntropyInequality, bounds, U, P, 0., 1.)
	assert.LessOrEqual(t, tIneq, tFloor+1.e-14)
}

func TestBoundViolationError(t *testing.T) {
	err := &BoundViolationError{Node: 7, Constraint: ConstraintDensityMin, Value: -0.1, Bound: 0.}
	assert.Contains(t, err.Error(), "node 7")
	assert.False(t, math.IsNaN(err.Value))
}
