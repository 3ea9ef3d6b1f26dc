// Package initcond builds initial conserved states on the operator graph
// from a named configuration, an orientation (direction and position of
// the feature), and an optional multiplicative random perturbation drawn
// from an explicitly seeded generator.
package initcond

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cfdlabs/idpflow/euler"
	"github.com/cfdlabs/idpflow/graph"
)

// Config selects and orients the initial state.
type Config struct {
	Configuration string
	Direction     []float64
	Position      []float64
	Perturbation  float64

	// Primitive parameters of the catalog states. Uniform uses the
	// left triple only; Contrast uses both sides; ShockFront uses the
	// left triple as the unshocked state and MachNumber for the jump.
	RhoLeft, ULeft, PLeft    float64
	RhoRight, URight, PRight float64
	MachNumber               float64
}

func DefaultConfig(dim int) Config {
	c := Config{
		Configuration: "uniform",
		Direction:     make([]float64, dim),
		Position:      make([]float64, dim),
		RhoLeft:       1.4,
		ULeft:         0.,
		PLeft:         1.,
		RhoRight:      0.125,
		URight:        0.,
		PRight:        0.1,
		MachNumber:    2.,
	}
	c.Direction[0] = 1.
	return c
}

// stateFunc evaluates the oriented primitive state at a transformed
// coordinate (distance along the configured direction).
type stateFunc func(xi float64, t float64) (rho, u, p float64)

// InitialValues evaluates the configured state at node positions. The
// generator is caller-seeded; no process-wide randomness is consulted.
type InitialValues struct {
	gas *euler.Gas
	cfg Config
	rng *rand.Rand

	state stateFunc
}

// New validates the configuration. A zero direction or an unknown
// configuration name is a fatal setup error.
func New(gas *euler.Gas, cfg Config, rng *rand.Rand) (iv *InitialValues, err error) {
	var norm float64
	for _, v := range cfg.Direction {
		norm += v * v
	}
	if norm == 0. {
		err = fmt.Errorf("initial direction is set to the zero vector")
		return
	}
	norm = math.Sqrt(norm)
	dir := make([]float64, len(cfg.Direction))
	for d := range dir {
		dir[d] = cfg.Direction[d] / norm
	}
	cfg.Direction = dir

	iv = &InitialValues{
		gas: gas,
		cfg: cfg,
		rng: rng,
	}

	switch cfg.Configuration {
	case "uniform":
		iv.state = func(xi, t float64) (float64, float64, float64) {
			return cfg.RhoLeft, cfg.ULeft, cfg.PLeft
		}
	case "contrast":
		iv.state = func(xi, t float64) (float64, float64, float64) {
			if xi < 0. {
				return cfg.RhoLeft, cfg.ULeft, cfg.PLeft
			}
			return cfg.RhoRight, cfg.URight, cfg.PRight
		}
	case "shockfront":
		rhoR, uR, pR, speed := shockState(gas.Gamma, cfg.MachNumber,
			cfg.RhoLeft, cfg.ULeft, cfg.PLeft)
		iv.state = func(xi, t float64) (float64, float64, float64) {
			if xi > speed*t {
				return cfg.RhoLeft, cfg.ULeft, cfg.PLeft
			}
			return rhoR, uR, pR
		}
	default:
		iv = nil
		err = fmt.Errorf("unknown initial state configuration %q", cfg.Configuration)
	}
	return
}

// shockState computes the shocked state behind a Mach-number shock moving
// into (rho0, u0, p0) via the Rankine-Hugoniot relations, returning also
// the shock speed.
func shockState(gamma, mach, rho0, u0, p0 float64) (rho, u, p, speed float64) {
	var (
		c0 = math.Sqrt(gamma * p0 / rho0)
		m2 = mach * mach
	)
	speed = u0 + mach*c0
	rho = rho0 * (gamma + 1.) * m2 / ((gamma-1.)*m2 + 2.)
	p = p0 * (2.*gamma*m2 - (gamma - 1.)) / (gamma + 1.)
	u = speed - c0*((gamma-1.)*m2+2.)/((gamma+1.)*mach)
	return
}

// Interpolate evaluates the configured state at every node of the graph
// and fixes up slip/no-slip boundary nodes so that nothing is transported
// out of a wall even when the configuration is oriented carelessly.
func (iv *InitialValues) Interpolate(g *graph.Graph, t float64) (U *euler.Field) {
	var (
		gas = iv.gas
		dim = gas.Dim
		cfg = iv.cfg
	)
	U = euler.NewField(dim, g.N)
	Ui := make([]float64, gas.ProblemDimension())
	for i := 0; i < g.N; i++ {
		// Signed distance of the node along the configured direction
		var xi float64
		for d := 0; d < dim; d++ {
			xi += (g.Coords[i][d] - cfg.Position[d]) * cfg.Direction[d]
		}
		rho, u, p := iv.state(xi, t)

		Ui[0] = rho
		var q float64
		for d := 0; d < dim; d++ {
			// Momentum rolled back onto the configured direction
			m := rho * u * cfg.Direction[d]
			Ui[1+d] = m
			q += m * m
		}
		Ui[1+dim] = p/(gas.Gamma-1.) + 0.5*q/rho

		if iv.cfg.Perturbation != 0. {
			for c := range Ui {
				Ui[c] *= 1. + iv.cfg.Perturbation*(2.*iv.rng.Float64()-1.)
			}
		}
		U.SetState(i, Ui)
	}

	// Compatibility fix-up at wall boundaries
	for i, entries := range g.Boundary {
		for _, bp := range entries {
			switch bp.Kind {
			case graph.Slip:
				var mn float64
				for d := 0; d < dim; d++ {
					mn += U.Q[1+d][i] * bp.Normal[d]
				}
				for d := 0; d < dim; d++ {
					U.Q[1+d][i] -= mn * bp.Normal[d]
				}
			case graph.NoSlip:
				for d := 0; d < dim; d++ {
					U.Q[1+d][i] = 0.
				}
			}
		}
	}
	return
}
