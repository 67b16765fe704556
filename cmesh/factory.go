package cmesh

import (
	"fmt"

	"github.com/notargets/treemesh/comm"
	"github.com/notargets/treemesh/eclass"
)

// NewHypercube builds and commits a replicated cmesh tiling the unit
// hypercube of the class's dimension with trees of that class. The
// trees carry no face joins; the tiling is topological only.
func NewHypercube(class eclass.EClass, cm comm.Comm, doDup bool) (*Cmesh, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("%w: unknown element class %d", ErrConfiguration, class)
	}
	n := int64(eclass.NumTreesForHypercube[class])

	c := New()
	c.SetComm(cm, doDup)
	if err := c.SetNumTrees(n); err != nil {
		c.Unref()
		return nil, err
	}
	for i := int64(0); i < n; i++ {
		c.SetTree(i, class)
	}
	if err := c.Commit(); err != nil {
		c.Unref()
		return nil, err
	}
	return c, nil
}

// NewTriangle builds a committed cmesh of a single triangle tree.
func NewTriangle(cm comm.Comm, doDup bool) (*Cmesh, error) {
	return newSingleTree(eclass.Triangle, cm, doDup)
}

// NewQuad builds a committed cmesh of a single quad tree.
func NewQuad(cm comm.Comm, doDup bool) (*Cmesh, error) {
	return newSingleTree(eclass.Quad, cm, doDup)
}

// NewTet builds a committed cmesh of a single tetrahedron tree.
func NewTet(cm comm.Comm, doDup bool) (*Cmesh, error) {
	return newSingleTree(eclass.Tet, cm, doDup)
}

// NewHex builds a committed cmesh of a single hexahedron tree.
func NewHex(cm comm.Comm, doDup bool) (*Cmesh, error) {
	return newSingleTree(eclass.Hex, cm, doDup)
}

func newSingleTree(class eclass.EClass, cm comm.Comm, doDup bool) (*Cmesh, error) {
	c := New()
	c.SetComm(cm, doDup)
	if err := c.SetNumTrees(1); err != nil {
		c.Unref()
		return nil, err
	}
	c.SetTree(0, class)
	if err := c.Commit(); err != nil {
		c.Unref()
		return nil, err
	}
	return c, nil
}
