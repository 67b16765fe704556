// Package geom attaches corner-vertex coordinates to coarse mesh trees
// and derives elementary geometric quantities from them. The topology
// core itself is coordinate free; the store exists for consumers that
// embed the mesh in physical space.
package geom

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/treemesh/eclass"
)

// ErrGeometry marks invalid coordinate data.
var ErrGeometry = errors.New("geom: error")

type treeGeometry struct {
	class    eclass.EClass
	vertices *mat.Dense // NumVertices x 3
}

// Store maps global tree ids to corner coordinates.
type Store struct {
	trees map[int64]treeGeometry
}

// NewStore returns an empty vertex store.
func NewStore() *Store {
	return &Store{trees: make(map[int64]treeGeometry)}
}

// Set records the corner coordinates of one tree. coords holds
// x, y, z triples in corner order, so its length must be three times
// the vertex count of the class.
func (s *Store) Set(treeID int64, class eclass.EClass, coords []float64) error {
	if !class.Valid() {
		return fmt.Errorf("%w: invalid class for tree %d", ErrGeometry, treeID)
	}
	nv := class.NumVertices()
	if len(coords) != 3*nv {
		return fmt.Errorf("%w: tree %d (%s) needs %d coordinates, got %d",
			ErrGeometry, treeID, class, 3*nv, len(coords))
	}
	s.trees[treeID] = treeGeometry{
		class:    class,
		vertices: mat.NewDense(nv, 3, append([]float64(nil), coords...)),
	}
	return nil
}

// Vertices returns the corner coordinate matrix of the tree, one row
// per corner. The matrix is shared with the store.
func (s *Store) Vertices(treeID int64) (*mat.Dense, bool) {
	tg, ok := s.trees[treeID]
	if !ok {
		return nil, false
	}
	return tg.vertices, true
}

// Centroid returns the mean of the tree's corner coordinates.
func (s *Store) Centroid(treeID int64) ([3]float64, error) {
	tg, ok := s.trees[treeID]
	if !ok {
		return [3]float64{}, fmt.Errorf("%w: no vertices for tree %d", ErrGeometry, treeID)
	}
	var c [3]float64
	nv, _ := tg.vertices.Dims()
	for i := 0; i < nv; i++ {
		for d := 0; d < 3; d++ {
			c[d] += tg.vertices.At(i, d)
		}
	}
	for d := 0; d < 3; d++ {
		c[d] /= float64(nv)
	}
	return c, nil
}

// tetDecomposition[c] lists the corner quadruples whose tetrahedra tile
// a 3D tree of class c.
var tetDecomposition = map[eclass.EClass][][4]int{
	eclass.Tet: {{0, 1, 2, 3}},
	eclass.Hex: {
		{0, 1, 2, 6}, {0, 2, 3, 6}, {0, 3, 7, 6},
		{0, 7, 4, 6}, {0, 4, 5, 6}, {0, 5, 1, 6},
	},
	eclass.Prism:   {{0, 1, 2, 5}, {0, 1, 4, 5}, {0, 3, 4, 5}},
	eclass.Pyramid: {{0, 1, 2, 4}, {0, 2, 3, 4}},
}

// Measure returns the d-dimensional measure of the tree: length of a
// line, area of a triangle or quad, volume of a 3D tree via its
// tetrahedral decomposition. A vertex tree measures zero.
func (s *Store) Measure(treeID int64) (float64, error) {
	tg, ok := s.trees[treeID]
	if !ok {
		return 0, fmt.Errorf("%w: no vertices for tree %d", ErrGeometry, treeID)
	}
	v := tg.vertices

	switch tg.class {
	case eclass.Vertex:
		return 0, nil
	case eclass.Line:
		return mat.Norm(edge(v, 0, 1), 2), nil
	case eclass.Triangle:
		return triangleArea(v, 0, 1, 2), nil
	case eclass.Quad:
		return triangleArea(v, 0, 1, 2) + triangleArea(v, 0, 2, 3), nil
	default:
		var vol float64
		for _, tet := range tetDecomposition[tg.class] {
			vol += tetVolume(v, tet)
		}
		return vol, nil
	}
}

// edge returns the vector from corner a to corner b as a row vector.
func edge(v *mat.Dense, a, b int) *mat.Dense {
	e := mat.NewDense(1, 3, nil)
	for d := 0; d < 3; d++ {
		e.Set(0, d, v.At(b, d)-v.At(a, d))
	}
	return e
}

func triangleArea(v *mat.Dense, a, b, c int) float64 {
	ab := edge(v, a, b)
	ac := edge(v, a, c)
	cx := ab.At(0, 1)*ac.At(0, 2) - ab.At(0, 2)*ac.At(0, 1)
	cy := ab.At(0, 2)*ac.At(0, 0) - ab.At(0, 0)*ac.At(0, 2)
	cz := ab.At(0, 0)*ac.At(0, 1) - ab.At(0, 1)*ac.At(0, 0)
	return 0.5 * mat.Norm(mat.NewDense(1, 3, []float64{cx, cy, cz}), 2)
}

func tetVolume(v *mat.Dense, corners [4]int) float64 {
	m := mat.NewDense(3, 3, nil)
	for r, c := range corners[1:] {
		for d := 0; d < 3; d++ {
			m.Set(r, d, v.At(c, d)-v.At(corners[0], d))
		}
	}
	det := mat.Det(m)
	if det < 0 {
		det = -det
	}
	return det / 6
}
