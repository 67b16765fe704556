// Package readers builds committed coarse meshes from external mesh
// descriptions: unstructured mesh files via the gocfd readers, and
// declarative TOML tree/join lists for fixtures and small meshes.
package readers

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/notargets/gocfd/DG3D/mesh"
	gcreaders "github.com/notargets/gocfd/DG3D/mesh/readers"
	"github.com/notargets/gocfd/utils"
	"github.com/rs/zerolog/log"

	"github.com/notargets/treemesh/cmesh"
	"github.com/notargets/treemesh/comm"
	"github.com/notargets/treemesh/eclass"
	"github.com/notargets/treemesh/geom"
)

// ErrImport marks mesh data the importer cannot express as a cmesh.
var ErrImport = errors.New("readers: import error")

// classOf maps the linear gocfd element types onto element classes.
// Higher-order types have no coarse-tree equivalent.
func classOf(et utils.ElementType) (eclass.EClass, error) {
	switch et {
	case utils.Point:
		return eclass.Vertex, nil
	case utils.Line:
		return eclass.Line, nil
	case utils.Triangle:
		return eclass.Triangle, nil
	case utils.Quad:
		return eclass.Quad, nil
	case utils.Tet:
		return eclass.Tet, nil
	case utils.Hex:
		return eclass.Hex, nil
	case utils.Prism:
		return eclass.Prism, nil
	case utils.Pyramid:
		return eclass.Pyramid, nil
	default:
		return eclass.Last, fmt.Errorf("%w: element type %s has no coarse tree class",
			ErrImport, et)
	}
}

// ReadMeshFile reads an unstructured mesh file (any format the gocfd
// readers recognize) and converts it into a committed replicated cmesh
// plus the vertex store of its trees.
func ReadMeshFile(path string, cm comm.Comm, doDup bool) (*cmesh.Cmesh, *geom.Store, error) {
	msh, err := gcreaders.ReadMeshFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrImport, err)
	}
	return FromMesh(msh, cm, doDup)
}

// FromMesh converts a gocfd mesh into a committed replicated cmesh.
// Every element becomes one tree; interior faces are matched by their
// sorted corner vertices and joined with the orientation derived from
// the corner permutation.
func FromMesh(msh *mesh.Mesh, cm comm.Comm, doDup bool) (*cmesh.Cmesh, *geom.Store, error) {
	if msh == nil {
		panic("readers: FromMesh with nil mesh")
	}
	n := len(msh.EtoV)
	if n == 0 {
		return nil, nil, fmt.Errorf("%w: mesh has no elements", ErrImport)
	}
	if len(msh.ElementTypes) != n {
		return nil, nil, fmt.Errorf("%w: %d element types for %d elements",
			ErrImport, len(msh.ElementTypes), n)
	}

	classes := make([]eclass.EClass, n)
	for i, et := range msh.ElementTypes {
		class, err := classOf(et)
		if err != nil {
			return nil, nil, err
		}
		if i > 0 && class.Dimension() != classes[0].Dimension() {
			return nil, nil, fmt.Errorf("%w: element %d is %dD in a %dD mesh",
				ErrImport, i, class.Dimension(), classes[0].Dimension())
		}
		classes[i] = class
	}

	c := cmesh.New()
	c.SetComm(cm, doDup)
	if err := c.SetNumTrees(int64(n)); err != nil {
		c.Unref()
		return nil, nil, err
	}
	store := geom.NewStore()
	for i, class := range classes {
		c.SetTree(int64(i), class)
		if len(msh.EtoV[i]) < class.NumVertices() {
			c.Unref()
			return nil, nil, fmt.Errorf("%w: element %d (%s) has %d vertices",
				ErrImport, i, class, len(msh.EtoV[i]))
		}
		if err := store.Set(int64(i), class, cornerCoords(msh, i, class)); err != nil {
			c.Unref()
			return nil, nil, err
		}
	}

	if err := joinSharedFaces(c, msh, classes); err != nil {
		c.Unref()
		return nil, nil, err
	}
	if err := c.Commit(); err != nil {
		c.Unref()
		return nil, nil, err
	}
	log.Debug().Int("trees", n).Msg("cmesh imported from mesh")
	return c, store, nil
}

func cornerCoords(msh *mesh.Mesh, elem int, class eclass.EClass) []float64 {
	coords := make([]float64, 0, 3*class.NumVertices())
	for _, v := range msh.EtoV[elem][:class.NumVertices()] {
		vert := msh.Vertices[v]
		for d := 0; d < 3; d++ {
			if d < len(vert) {
				coords = append(coords, vert[d])
			} else {
				coords = append(coords, 0)
			}
		}
	}
	return coords
}

// faceKey is the canonical signature of a face: its sorted corner
// vertices.
func faceKey(verts []int) string {
	sorted := append([]int(nil), verts...)
	sort.Ints(sorted)
	var sb strings.Builder
	for i, v := range sorted {
		if i > 0 {
			sb.WriteByte('-')
		}
		sb.WriteString(strconv.Itoa(v))
	}
	return sb.String()
}

// faceVerts returns the global corner vertices of one face of one
// element, in the class's face corner order.
func faceVerts(msh *mesh.Mesh, elem int, class eclass.EClass, face int) []int {
	corners := class.FaceCorners(face)
	verts := make([]int, len(corners))
	for i, corner := range corners {
		verts[i] = msh.EtoV[elem][corner]
	}
	return verts
}

type faceRef struct {
	elem  int
	face  int
	verts []int
}

// joinSharedFaces matches faces by signature and joins every interior
// face pair. The orientation records where the already-registered
// face's first corner sits in the newly found face's corner order.
func joinSharedFaces(c *cmesh.Cmesh, msh *mesh.Mesh, classes []eclass.EClass) error {
	seen := make(map[string]faceRef)
	for elem, class := range classes {
		for face := 0; face < class.NumFaces(); face++ {
			verts := faceVerts(msh, elem, class, face)
			key := faceKey(verts)

			other, found := seen[key]
			if !found {
				seen[key] = faceRef{elem: elem, face: face, verts: verts}
				continue
			}
			delete(seen, key)

			orientation := 0
			for j, v := range verts {
				if v == other.verts[0] {
					orientation = j
					break
				}
			}
			if err := c.JoinFaces(int64(other.elem), int64(elem),
				other.face, face, orientation); err != nil {
				return err
			}
		}
	}
	return nil
}
