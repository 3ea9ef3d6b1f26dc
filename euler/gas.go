package euler

import (
	"math"
)

// Gas is an ideal, polytropic equation of state. All thermodynamic
// evaluations consume a conserved state slice U of length Dim+2 laid out as
// [rho, m_1..m_Dim, E].
type Gas struct {
	Gamma float64
	Dim   int
}

func NewGas(Gamma float64, Dim int) (gas *Gas) {
	if Dim < 1 || Dim > 3 {
		panic("space dimension must be 1, 2 or 3")
	}
	if Gamma <= 1. {
		panic("gamma must be greater than one")
	}
	gas = &Gas{
		Gamma: Gamma,
		Dim:   Dim,
	}
	return
}

// ProblemDimension is the number of conserved components, Dim+2.
func (gas *Gas) ProblemDimension() int {
	return gas.Dim + 2
}

func (gas *Gas) Density(U []float64) float64 {
	return U[0]
}

// Momentum returns a view into the momentum components of U.
func (gas *Gas) Momentum(U []float64) []float64 {
	return U[1 : 1+gas.Dim]
}

func (gas *Gas) TotalEnergy(U []float64) float64 {
	return U[1+gas.Dim]
}

func (gas *Gas) KineticEnergy(U []float64) (q float64) {
	var (
		oorho = 1. / U[0]
	)
	for d := 0; d < gas.Dim; d++ {
		q += U[1+d] * U[1+d]
	}
	q *= 0.5 * oorho
	return
}

// InternalEnergy returns rho*e, the volumetric internal energy E - |m|^2/(2 rho).
func (gas *Gas) InternalEnergy(U []float64) float64 {
	return gas.TotalEnergy(U) - gas.KineticEnergy(U)
}

func (gas *Gas) Pressure(U []float64) float64 {
	return (gas.Gamma - 1.) * gas.InternalEnergy(U)
}

func (gas *Gas) SoundSpeed(U []float64) float64 {
	return math.Sqrt(math.Abs(gas.Gamma * gas.Pressure(U) / U[0]))
}

// SpecificEntropy evaluates s(U) = (E - |m|^2/(2 rho)) / rho^gamma, the
// entropy surrogate whose local minimum principle the limiter enforces.
func (gas *Gas) SpecificEntropy(U []float64) float64 {
	return gas.InternalEnergy(U) / math.Pow(U[0], gas.Gamma)
}

// EntropyConstraint evaluates eta(t) = rho*e(U+t*P) - sMin*rho(U+t*P)^gamma
// and its derivative in t. The constraint eta >= 0 is equivalent to
// s(U+t*P) >= sMin but avoids the division by rho^gamma, which keeps the
// Newton iteration well conditioned near vacuum.
func (gas *Gas) EntropyConstraint(U, P []float64, sMin, t float64) (eta, dEta float64) {
	var (
		rho, dRho = U[0] + t*P[0], P[0]
		E, dE     = U[1+gas.Dim] + t*P[1+gas.Dim], P[1+gas.Dim]
		q, dQ     float64
	)
	for d := 0; d < gas.Dim; d++ {
		m := U[1+d] + t*P[1+d]
		q += m * m
		dQ += m * P[1+d]
	}
	// rho*e = E - |m|^2 / (2 rho)
	rhoE := E - 0.5*q/rho
	dRhoE := dE - dQ/rho + 0.5*q*dRho/(rho*rho)

	pow := math.Pow(rho, gas.Gamma)
	eta = rhoE - sMin*pow
	dEta = dRhoE - sMin*gas.Gamma*pow/rho*dRho
	return
}

// Flux fills F with the Euler flux f(U), component-major: F[c*Dim+d] is the
// d-directional flux of conserved component c. F must have length
// (Dim+2)*Dim.
func (gas *Gas) Flux(U, F []float64) {
	var (
		dim   = gas.Dim
		oorho = 1. / U[0]
		p     = gas.Pressure(U)
		E     = U[1+dim]
	)
	for d := 0; d < dim; d++ {
		u := U[1+d] * oorho
		F[d] = U[1+d] // density flux = momentum
		for c := 0; c < dim; c++ {
			F[(1+c)*dim+d] = U[1+c] * u
		}
		F[(1+d)*dim+d] += p
		F[(1+dim)*dim+d] = (E + p) * u
	}
}

// MaxWaveSpeed is a guaranteed upper bound on the fastest signal speed
// across the edge with unit normal n, using the Davis estimate
// max(|u_i.n| + c_i, |u_j.n| + c_j).
func (gas *Gas) MaxWaveSpeed(Ui, Uj, n []float64) float64 {
	speed := func(U []float64) (s float64) {
		var un float64
		oorho := 1. / U[0]
		for d := 0; d < gas.Dim; d++ {
			un += U[1+d] * oorho * n[d]
		}
		s = math.Abs(un) + gas.SoundSpeed(U)
		return
	}
	return math.Max(speed(Ui), speed(Uj))
}
