package graph

import (
	"fmt"
	"math"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// gauss2 holds the two-point Gauss-Legendre rule on [-1,1], exact for the
// cubic integrands of the bilinear cell matrices.
var gauss2 = struct {
	points  [2]float64
	weights [2]float64
}{
	points:  [2]float64{-1. / math.Sqrt(3.), 1. / math.Sqrt(3.)},
	weights: [2]float64{1., 1.},
}

// NewCartesian1D assembles the graph operators for a uniform 1D grid of nx
// nodes over [0, length] with linear elements. If both boundary kinds are
// Periodic the grid wraps around and has no boundary nodes.
func NewCartesian1D(nx int, length float64, left, right BoundaryKind) (g *Graph) {
	if nx < 3 {
		panic("need at least 3 nodes")
	}
	if (left == Periodic) != (right == Periodic) {
		panic("periodic boundaries must be set on both ends")
	}
	periodic := left == Periodic

	g = &Graph{
		Dim: 1,
		N:   nx,
	}

	var h float64
	var nCells int
	if periodic {
		h = length / float64(nx)
		nCells = nx
	} else {
		h = length / float64(nx-1)
		nCells = nx - 1
	}

	// Local element matrices via quadrature on the reference cell [-1,1]
	var (
		cellMass = mat.NewDense(2, 2, nil)
		cellBeta = mat.NewDense(2, 2, nil)
		cellC    = mat.NewDense(2, 2, nil)
		jac      = h / 2.
	)
	for q := 0; q < 2; q++ {
		xi, w := gauss2.points[q], gauss2.weights[q]
		N := [2]float64{0.5 * (1. - xi), 0.5 * (1. + xi)}
		dN := [2]float64{-1. / h, 1. / h}
		for a := 0; a < 2; a++ {
			for b := 0; b < 2; b++ {
				cellMass.Set(a, b, cellMass.At(a, b)+N[a]*N[b]*jac*w)
				cellBeta.Set(a, b, cellBeta.At(a, b)+dN[a]*dN[b]*jac*w)
				cellC.Set(a, b, cellC.At(a, b)+N[a]*dN[b]*jac*w)
			}
		}
	}

	var (
		massDOK = sparse.NewDOK(nx, nx)
		betaDOK = sparse.NewDOK(nx, nx)
		cDOK    = sparse.NewDOK(nx, nx)
	)
	for k := 0; k < nCells; k++ {
		nodes := [2]int{k, (k + 1) % nx}
		for a := 0; a < 2; a++ {
			for b := 0; b < 2; b++ {
				i, j := nodes[a], nodes[b]
				massDOK.Set(i, j, massDOK.At(i, j)+cellMass.At(a, b))
				betaDOK.Set(i, j, betaDOK.At(i, j)+cellBeta.At(a, b))
				cDOK.Set(i, j, cDOK.At(i, j)+cellC.At(a, b))
			}
		}
	}

	g.Coords = make([][]float64, nx)
	for i := 0; i < nx; i++ {
		g.Coords[i] = []float64{float64(i) * h}
	}

	g.Boundary = make(map[int][]BoundaryPoint)
	if !periodic {
		mergeBoundaryNormal(g.Boundary, 0, left, []float64{-1.})
		mergeBoundaryNormal(g.Boundary, nx-1, right, []float64{1.})
	} else {
		// Mark the seam nodes so distributed folds know they wrap
		g.Boundary[0] = append(g.Boundary[0], BoundaryPoint{Kind: Periodic, Normal: []float64{0.}})
	}
	normalizeBoundaryNormals(g.Boundary)

	g.lumpAndFinalize(massDOK, betaDOK, []*sparse.DOK{cDOK}, length)
	return
}

// NewCartesian2D assembles the graph operators for a uniform 2D grid of
// nx*ny nodes over [0,lx]x[0,ly] with bilinear elements. kinds orders the
// sides as xmin, xmax, ymin, ymax. Periodic sides are not supported by the
// 2D builder.
func NewCartesian2D(nx, ny int, lx, ly float64, kinds [4]BoundaryKind) (g *Graph) {
	if nx < 3 || ny < 3 {
		panic("need at least 3 nodes per direction")
	}
	for _, k := range kinds {
		if k == Periodic {
			panic(fmt.Sprintf("periodic sides are not supported in 2D: %v", kinds))
		}
	}

	var (
		n  = nx * ny
		hx = lx / float64(nx-1)
		hy = ly / float64(ny-1)
	)
	g = &Graph{
		Dim: 2,
		N:   n,
	}
	node := func(ix, iy int) int { return ix + iy*nx }

	// Bilinear shape functions on the reference cell [-1,1]^2, corner
	// ordering (-,-), (+,-), (+,+), (-,+)
	var (
		xiA  = [4]float64{-1., 1., 1., -1.}
		etaA = [4]float64{-1., -1., 1., 1.}
	)
	var (
		cellMass = mat.NewDense(4, 4, nil)
		cellBeta = mat.NewDense(4, 4, nil)
		cellCx   = mat.NewDense(4, 4, nil)
		cellCy   = mat.NewDense(4, 4, nil)
		jac      = hx * hy / 4.
	)
	for qx := 0; qx < 2; qx++ {
		for qy := 0; qy < 2; qy++ {
			var (
				xi, wx  = gauss2.points[qx], gauss2.weights[qx]
				eta, wy = gauss2.points[qy], gauss2.weights[qy]
				w       = wx * wy * jac
			)
			var N, dNx, dNy [4]float64
			for a := 0; a < 4; a++ {
				N[a] = 0.25 * (1. + xiA[a]*xi) * (1. + etaA[a]*eta)
				dNx[a] = 0.25 * xiA[a] * (1. + etaA[a]*eta) * 2. / hx
				dNy[a] = 0.25 * etaA[a] * (1. + xiA[a]*xi) * 2. / hy
			}
			for a := 0; a < 4; a++ {
				for b := 0; b < 4; b++ {
					cellMass.Set(a, b, cellMass.At(a, b)+N[a]*N[b]*w)
					cellBeta.Set(a, b, cellBeta.At(a, b)+(dNx[a]*dNx[b]+dNy[a]*dNy[b])*w)
					cellCx.Set(a, b, cellCx.At(a, b)+N[a]*dNx[b]*w)
					cellCy.Set(a, b, cellCy.At(a, b)+N[a]*dNy[b]*w)
				}
			}
		}
	}

	var (
		massDOK = sparse.NewDOK(n, n)
		betaDOK = sparse.NewDOK(n, n)
		cxDOK   = sparse.NewDOK(n, n)
		cyDOK   = sparse.NewDOK(n, n)
	)
	for ky := 0; ky < ny-1; ky++ {
		for kx := 0; kx < nx-1; kx++ {
			nodes := [4]int{
				node(kx, ky), node(kx+1, ky), node(kx+1, ky+1), node(kx, ky+1),
			}
			for a := 0; a < 4; a++ {
				for b := 0; b < 4; b++ {
					i, j := nodes[a], nodes[b]
					massDOK.Set(i, j, massDOK.At(i, j)+cellMass.At(a, b))
					betaDOK.Set(i, j, betaDOK.At(i, j)+cellBeta.At(a, b))
					cxDOK.Set(i, j, cxDOK.At(i, j)+cellCx.At(a, b))
					cyDOK.Set(i, j, cyDOK.At(i, j)+cellCy.At(a, b))
				}
			}
		}
	}

	g.Coords = make([][]float64, n)
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			g.Coords[node(ix, iy)] = []float64{float64(ix) * hx, float64(iy) * hy}
		}
	}

	// Boundary map: every boundary facet contributes its outward normal
	// weighted by half the facet length to both facet nodes. Corner nodes
	// collect perpendicular normals from two walls, which the acute-angle
	// merge keeps as separate entries.
	g.Boundary = make(map[int][]BoundaryPoint)
	for iy := 0; iy < ny-1; iy++ {
		for _, side := range []struct {
			ix   int
			kind BoundaryKind
			nrm  []float64
		}{
			{0, kinds[0], []float64{-1., 0.}},
			{nx - 1, kinds[1], []float64{1., 0.}},
		} {
			w := hy / 2.
			contribution := []float64{side.nrm[0] * w, side.nrm[1] * w}
			mergeBoundaryNormal(g.Boundary, node(side.ix, iy), side.kind, contribution)
			mergeBoundaryNormal(g.Boundary, node(side.ix, iy+1), side.kind, contribution)
		}
	}
	for ix := 0; ix < nx-1; ix++ {
		for _, side := range []struct {
			iy   int
			kind BoundaryKind
			nrm  []float64
		}{
			{0, kinds[2], []float64{0., -1.}},
			{ny - 1, kinds[3], []float64{0., 1.}},
		} {
			w := hx / 2.
			contribution := []float64{side.nrm[0] * w, side.nrm[1] * w}
			mergeBoundaryNormal(g.Boundary, node(ix, side.iy), side.kind, contribution)
			mergeBoundaryNormal(g.Boundary, node(ix+1, side.iy), side.kind, contribution)
		}
	}
	normalizeBoundaryNormals(g.Boundary)

	g.lumpAndFinalize(massDOK, betaDOK, []*sparse.DOK{cxDOK, cyDOK}, lx*ly)
	return
}

// lumpAndFinalize converts the assembled DOK matrices to CSR, lumps the
// mass matrix by row sums and builds the flattened stencil.
func (g *Graph) lumpAndFinalize(massDOK, betaDOK *sparse.DOK, cDOKs []*sparse.DOK, measure float64) {
	massCSR := massDOK.ToCSR()
	g.Betaij = betaDOK.ToCSR()
	g.Cij = make([]*sparse.CSR, len(cDOKs))
	for d, cd := range cDOKs {
		g.Cij[d] = cd.ToCSR()
	}

	g.LumpedMass = make([]float64, g.N)
	massCSR.DoNonZero(func(i, j int, v float64) {
		g.LumpedMass[i] += v
	})
	g.MeasureOfOmega = measure

	g.finalize(massCSR)
}
