package euler

// Field stores the conserved state of all mesh nodes in component-major
// (struct of arrays) layout: Q[c][i] is component c of node i. The layout
// matches how the update loops sweep nodes, one component at a time.
type Field struct {
	Dim int
	N   int
	Q   [][]float64
}

func NewField(dim, n int) (f *Field) {
	f = &Field{
		Dim: dim,
		N:   n,
		Q:   make([][]float64, dim+2),
	}
	for c := range f.Q {
		f.Q[c] = make([]float64, n)
	}
	return
}

// State gathers node i into buf, which must have length Dim+2.
func (f *Field) State(i int, buf []float64) []float64 {
	for c := range f.Q {
		buf[c] = f.Q[c][i]
	}
	return buf
}

func (f *Field) SetState(i int, U []float64) {
	for c := range f.Q {
		f.Q[c][i] = U[c]
	}
}

// Copy produces a deep copy, used for snapshotting the prior state.
func (f *Field) Copy() (o *Field) {
	o = NewField(f.Dim, f.N)
	for c := range f.Q {
		copy(o.Q[c], f.Q[c])
	}
	return
}
