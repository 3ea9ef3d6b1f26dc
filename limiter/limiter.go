package limiter

import (
	"math"
	"strings"
)

// Variant selects which invariant-domain criteria the limiter enforces.
// The choice is fixed once at configuration time; every per-node call
// dispatches on it without reconfiguring.
type Variant uint8

const (
	None Variant = iota
	Density
	SpecificEntropy
	EntropyInequality
)

func (v Variant) String() string {
	strings := []string{
		"None",
		"Density",
		"SpecificEntropy",
		"EntropyInequality",
	}
	return strings[int(v)]
}

// ParseVariant maps a configuration string to a Variant. Matching is
// case insensitive and ignores separators, so "SpecificEntropy" and
// "specific-entropy" name the same variant.
func ParseVariant(s string) (v Variant, ok bool) {
	folded := strings.ToLower(s)
	folded = strings.ReplaceAll(folded, "-", "")
	folded = strings.ReplaceAll(folded, "_", "")
	switch folded {
	case "none":
		return None, true
	case "density", "rho":
		return Density, true
	case "specificentropy":
		return SpecificEntropy, true
	case "entropyinequality":
		return EntropyInequality, true
	}
	return None, false
}

// tracksEntropy reports whether the variant maintains an entropy floor.
func (v Variant) tracksEntropy() bool {
	return v == SpecificEntropy || v == EntropyInequality
}

// Parameters collects the limiter configuration. VariationCalibration is
// the empirically tuned constant in the variation relaxation formula
// (8*0.5); it is kept configurable rather than re-derived.
type Parameters struct {
	Variant              Variant
	RelaxBounds          bool
	RelaxationOrder      int
	VariationCalibration float64
}

func DefaultParameters() Parameters {
	return Parameters{
		Variant:              SpecificEntropy,
		RelaxBounds:          true,
		RelaxationOrder:      3,
		VariationCalibration: 8.0 * 0.5,
	}
}

// Bounds is the per-node admissible range (rho_min, rho_max, s_min)
// finalized by ApplyRelaxation.
type Bounds struct {
	RhoMin float64
	RhoMax float64
	SMin   float64
}

// Merge folds bounds accumulated on another partition into b. Remote
// (ghost) contributions must be fully merged before ApplyRelaxation.
func (b *Bounds) Merge(o Bounds) {
	b.RhoMin = math.Min(b.RhoMin, o.RhoMin)
	b.RhoMax = math.Max(b.RhoMax, o.RhoMax)
	b.SMin = math.Min(b.SMin, o.SMin)
}

// EntropyModel is the narrow slice of the physics collaborator the
// accumulator needs: specific entropy of a state, for the midpoint
// interpolant fold.
type EntropyModel interface {
	SpecificEntropy(U []float64) float64
}

// Accumulator builds the per-node bounds by folding over incident edges.
// All folds are commutative min/max/sum, so edges may be visited in any
// order; results differ only by floating-point associativity.
type Accumulator struct {
	params Parameters
	gas    EntropyModel

	bounds     Bounds
	sInterpMax float64

	variations     float64
	relaxNumerator float64
	relaxDenom     float64

	scratch []float64
	relaxed bool
}

func NewAccumulator(gas EntropyModel, params Parameters, problemDimension int) (l *Accumulator) {
	l = &Accumulator{
		params:  params,
		gas:     gas,
		scratch: make([]float64, problemDimension),
	}
	return
}

func (l *Accumulator) Reset() {
	if l.params.Variant == None {
		return
	}
	l.bounds.RhoMin = math.MaxFloat64
	l.bounds.RhoMax = 0.

	l.relaxNumerator = 0.
	l.relaxDenom = 0.
	l.relaxed = false

	if l.params.Variant.tracksEntropy() {
		l.bounds.SMin = math.MaxFloat64
		l.sInterpMax = 0.
	}
}

// Accumulate folds one incident edge (i,j) with its bar state into the
// running bounds. entropyJ is the specific entropy of U_j. The midpoint
// entropy maximum is only tracked for off-diagonal edges; it later softens
// the entropy floor near genuine extrema.
func (l *Accumulator) Accumulate(Ui, Uj, Ubar []float64, entropyJ float64, isDiagonal bool) {
	if l.params.Variant == None {
		return
	}
	rhoBar := Ubar[0]
	l.bounds.RhoMin = math.Min(l.bounds.RhoMin, rhoBar)
	l.bounds.RhoMax = math.Max(l.bounds.RhoMax, rhoBar)

	if l.params.Variant.tracksEntropy() {
		l.bounds.SMin = math.Min(l.bounds.SMin, entropyJ)

		if !isDiagonal {
			for c := range l.scratch {
				l.scratch[c] = 0.5 * (Ui[c] + Uj[c])
			}
			sInterp := l.gas.SpecificEntropy(l.scratch)
			l.sInterpMax = math.Max(l.sInterpMax, sInterp)
		}
	}
}

func (l *Accumulator) ResetVariations(variationsI float64) {
	l.variations = variationsI
}

// AccumulateVariations builds the beta-weighted neighborhood average of
// the smoothness indicator. What "variations" measures is up to the
// caller.
func (l *Accumulator) AccumulateVariations(variationsJ, betaIJ float64) {
	l.relaxNumerator += l.params.VariationCalibration * betaIJ * (l.variations + variationsJ)
	l.relaxDenom += betaIJ
}

// ApplyRelaxation widens the raw bounds by a mesh-size-scaled envelope.
// hdI is the local mesh size proxy. The two-sided clamp keeps the widening
// bounded even when the variation indicator is noisy.
func (l *Accumulator) ApplyRelaxation(hdI float64) {
	defer func() { l.relaxed = true }()
	if !l.params.RelaxBounds || l.params.Variant == None {
		return
	}

	rI := 2.
	factor := math.Sqrt(math.Sqrt(hdI))
	for p := 0; p < l.params.RelaxationOrder; p++ {
		rI *= factor
	}

	rhoRelaxation := math.Abs(l.relaxNumerator) /
		(math.Abs(l.relaxDenom) + math.SmallestNonzeroFloat64)

	l.bounds.RhoMin = math.Max((1.-rI)*l.bounds.RhoMin, l.bounds.RhoMin-rhoRelaxation)
	l.bounds.RhoMax = math.Min((1.+rI)*l.bounds.RhoMax, l.bounds.RhoMax+rhoRelaxation)

	if l.params.Variant.tracksEntropy() {
		l.bounds.SMin = math.Max((1.-rI)*l.bounds.SMin, 2.*l.bounds.SMin-l.sInterpMax)
	}
}

// Bounds returns the finalized triple. Calling it before ApplyRelaxation
// is a programming error.
func (l *Accumulator) Bounds() Bounds {
	if !l.relaxed && l.params.Variant != None {
		panic("Bounds() called before ApplyRelaxation()")
	}
	return l.bounds
}

// RawBounds exposes the pre-relaxation triple for ghost merging across
// partitions: merge remote contributions with Bounds.Merge, write the
// result back with SetRawBounds, then finalize.
func (l *Accumulator) RawBounds() Bounds {
	return l.bounds
}

func (l *Accumulator) SetRawBounds(b Bounds) {
	l.bounds = b
}
