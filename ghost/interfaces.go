package ghost

import (
	"github.com/notargets/treemesh/cmesh"
	"github.com/notargets/treemesh/eclass"
)

// Element is an opaque fine element value. Elements are allocated,
// copied, and destroyed exclusively through the Scheme that owns their
// class; the ghost layer never inspects them.
type Element any

// Scheme is the per-eclass element capability the ghost layer consumes.
// One scheme serves all elements of one class.
type Scheme interface {
	// ElementSize returns the storage size of one element in bytes.
	ElementSize() int
	// Level returns the refinement level of the element.
	Level(e Element) int
	// LinearID returns the deterministic ordering index of the element
	// at the given level.
	LinearID(e Element, level int) uint64
	// NumFaces returns the number of faces of the element.
	NumFaces(e Element) int
	// NumFaceChildren returns the number of refined neighbor elements
	// sharing the given face at one level finer.
	NumFaceChildren(e Element, face int) int
	// Copy copies the value of src into dst.
	Copy(src, dst Element)
	// New allocates count elements.
	New(count int) []Element
	// Destroy releases elements allocated by New.
	Destroy(elems []Element)
}

// Forest is the capability surface of a committed, locally partitioned
// forest of fine elements. The ghost builder borrows it for the
// duration of one Build call.
type Forest interface {
	// Cmesh returns the committed coarse mesh the forest refines.
	Cmesh() *cmesh.Cmesh
	// FirstLocalTree returns the global id of the first tree holding
	// locally owned elements.
	FirstLocalTree() int64
	// NumLocalTrees returns the number of trees holding locally owned
	// elements.
	NumLocalTrees() int
	// FirstTreeShared reports whether the first local tree also holds
	// elements owned by a lower rank.
	FirstTreeShared() bool
	// LastTreeShared reports whether the last local tree also holds
	// elements owned by a higher rank.
	LastTreeShared() bool
	// TreeClass returns the element class of forest-local tree itree.
	TreeClass(itree int) eclass.EClass
	// TreeElementCount returns the number of locally owned elements of
	// forest-local tree itree.
	TreeElementCount(itree int) int
	// TreeElement returns element ielem of forest-local tree itree, in
	// forest storage order.
	TreeElement(itree, ielem int) Element
	// Scheme returns the element scheme serving the given class.
	Scheme(class eclass.EClass) Scheme
	// CoarseFaceNeighbors returns the coarse face-neighbor slots of
	// forest-local tree itree.
	CoarseFaceNeighbors(itree int) []cmesh.FaceNeighbor
	// ForestTree maps a global tree id to the forest-local id, or -1
	// if the tree holds no locally owned elements.
	ForestTree(gtree int64) int
	// NeighborClass returns the element class of the tree on the far
	// side of the given face of e.
	NeighborClass(itree int, e Element, face int) eclass.EClass
	// HalfFaceNeighbors constructs the half-size face neighbors of e
	// across the given face into out and returns the global id of the
	// neighbor tree, or -1 at a domain boundary.
	HalfFaceNeighbors(itree int, e Element, out []Element, face int) int64
	// FindOwner returns the rank owning the given element of the given
	// global tree.
	FindOwner(gtree int64, e Element, class eclass.EClass) int
	// Rank returns this process's rank.
	Rank() int
	// Size returns the number of processes.
	Size() int
}
