package limiter

import "fmt"

// ConstraintKind names the violated bound in a BoundViolationError.
type ConstraintKind uint8

const (
	ConstraintDensityMin ConstraintKind = iota
	ConstraintDensityMax
	ConstraintEntropyMin
)

func (ck ConstraintKind) String() string {
	strings := []string{
		"density minimum",
		"density maximum",
		"entropy minimum",
	}
	return strings[int(ck)]
}

// BoundViolationError reports a state outside its admissible bounds after
// limiting. It signals a precondition failure of the upstream explicit
// update, not something the limiter renormalizes away.
type BoundViolationError struct {
	Node       int
	Constraint ConstraintKind
	Value      float64
	Bound      float64
}

func (e *BoundViolationError) Error() string {
	return fmt.Sprintf("bound violation at node %d: %s constraint, value %g vs bound %g",
		e.Node, e.Constraint, e.Value, e.Bound)
}
