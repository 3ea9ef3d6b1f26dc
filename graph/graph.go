package graph

import (
	"math"

	"github.com/james-bowman/sparse"
)

// BoundaryKind classifies a boundary node. Interior nodes carry no entry in
// the boundary map.
type BoundaryKind uint8

const (
	Interior BoundaryKind = iota
	Slip
	NoSlip
	Periodic
)

func (bk BoundaryKind) String() string {
	strings := []string{
		"Interior",
		"Slip",
		"NoSlip",
		"Periodic",
	}
	return strings[int(bk)]
}

// BoundaryPoint is one merged normal contribution at a boundary node. A
// corner node sitting on two walls whose normals describe more than an
// acute angle keeps one entry per wall.
type BoundaryPoint struct {
	Kind   BoundaryKind
	Normal []float64
}

// Graph holds the precomputed geometric operators consumed by the limiter
// and the dissipation step: the diffusive coupling weights beta_ij, the
// geometric flux coefficients c_ij (one sparse matrix per space dimension),
// the lumped mass per node and a mesh-size proxy. All fields are read-only
// after construction.
type Graph struct {
	Dim int
	N   int

	LumpedMass     []float64
	MeasureOfOmega float64
	Hd             []float64 // mesh size proxy m_i/|Omega|
	Coords         [][]float64

	Betaij *sparse.CSR
	Cij    []*sparse.CSR

	// Flattened stencil in CSR layout. Every consumer hot loop sweeps
	// these arrays instead of doing per-entry matrix lookups. The stencil
	// includes the diagonal entry (i,i).
	RowPtr       []int
	Col          []int
	Beta         []float64
	C            []float64 // edge-major: C[e*Dim+d]
	TransposeIdx []int     // index of edge (j,i) for edge e=(i,j)

	Boundary map[int][]BoundaryPoint
}

// NumEdges is the total stencil size including diagonal entries.
func (g *Graph) NumEdges() int {
	return len(g.Col)
}

// BetaRowSum returns sum_j beta_ij over the off-diagonal stencil of node i.
func (g *Graph) BetaRowSum(i int) (sum float64) {
	for e := g.RowPtr[i]; e < g.RowPtr[i+1]; e++ {
		if g.Col[e] != i {
			sum += g.Beta[e]
		}
	}
	return
}

// BetaMatVec computes dst = Betaij * src using the flattened stencil.
func (g *Graph) BetaMatVec(dst, src []float64) {
	for i := 0; i < g.N; i++ {
		var sum float64
		for e := g.RowPtr[i]; e < g.RowPtr[i+1]; e++ {
			sum += g.Beta[e] * src[g.Col[e]]
		}
		dst[i] = sum
	}
}

// BoundaryKindOf returns the classification of node i. Nodes with multiple
// boundary entries of different kinds report the most restrictive one
// (no-slip beats slip).
func (g *Graph) BoundaryKindOf(i int) (kind BoundaryKind) {
	kind = Interior
	for _, bp := range g.Boundary[i] {
		if bp.Kind > kind {
			kind = bp.Kind
		}
	}
	return
}

// finalize builds the flattened stencil from the assembled sparse matrices
// and computes the mesh size proxy. structure is the symmetric sparsity
// pattern (the mass matrix), betaij and cij supply the edge values.
func (g *Graph) finalize(structure *sparse.CSR) {
	g.RowPtr = make([]int, g.N+1)
	structure.DoNonZero(func(i, j int, v float64) {
		g.RowPtr[i+1]++
	})
	for i := 0; i < g.N; i++ {
		g.RowPtr[i+1] += g.RowPtr[i]
	}
	nnz := g.RowPtr[g.N]
	g.Col = make([]int, nnz)
	g.Beta = make([]float64, nnz)
	g.C = make([]float64, nnz*g.Dim)
	g.TransposeIdx = make([]int, nnz)

	fill := make([]int, g.N)
	structure.DoNonZero(func(i, j int, v float64) {
		e := g.RowPtr[i] + fill[i]
		fill[i]++
		g.Col[e] = j
		g.Beta[e] = g.Betaij.At(i, j)
		for d := 0; d < g.Dim; d++ {
			g.C[e*g.Dim+d] = g.Cij[d].At(i, j)
		}
	})

	// The stencil is structurally symmetric, so the transpose edge always
	// exists
	for i := 0; i < g.N; i++ {
		for e := g.RowPtr[i]; e < g.RowPtr[i+1]; e++ {
			j := g.Col[e]
			g.TransposeIdx[e] = -1
			for et := g.RowPtr[j]; et < g.RowPtr[j+1]; et++ {
				if g.Col[et] == i {
					g.TransposeIdx[e] = et
					break
				}
			}
			if g.TransposeIdx[e] == -1 {
				panic("sparsity pattern is not structurally symmetric")
			}
		}
	}

	g.Hd = make([]float64, g.N)
	for i := 0; i < g.N; i++ {
		g.Hd[i] = g.LumpedMass[i] / g.MeasureOfOmega
	}
}

// normalMergeCosine is the cosine threshold below which two facet normals
// at the same node are kept as separate boundary entries. 0.08 corresponds
// to an angle of roughly 85 degrees.
const normalMergeCosine = 0.08

// mergeBoundaryNormal folds one facet normal contribution into the
// boundary map. Contributions of the same kind whose normals describe an
// acute angle are summed; otherwise a new entry is created.
func mergeBoundaryNormal(bmap map[int][]BoundaryPoint, i int, kind BoundaryKind, normal []float64) {
	for _, bp := range bmap[i] {
		if bp.Kind != kind {
			continue
		}
		var dot, na, nb float64
		for d := range normal {
			dot += bp.Normal[d] * normal[d]
			na += bp.Normal[d] * bp.Normal[d]
			nb += normal[d] * normal[d]
		}
		if dot/(math.Sqrt(na)*math.Sqrt(nb)) > normalMergeCosine {
			for d := range normal {
				bp.Normal[d] += normal[d]
			}
			return
		}
	}
	entry := BoundaryPoint{Kind: kind, Normal: make([]float64, len(normal))}
	copy(entry.Normal, normal)
	bmap[i] = append(bmap[i], entry)
}

// normalizeBoundaryNormals rescales every accumulated normal to unit
// length. The epsilon guards degenerate zero-length accumulations.
func normalizeBoundaryNormals(bmap map[int][]BoundaryPoint) {
	for _, entries := range bmap {
		for _, bp := range entries {
			var norm float64
			for _, v := range bp.Normal {
				norm += v * v
			}
			norm = math.Sqrt(norm) + math.SmallestNonzeroFloat64
			for d := range bp.Normal {
				bp.Normal[d] /= norm
			}
		}
	}
}
