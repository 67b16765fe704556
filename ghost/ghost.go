// Package ghost derives the one-layer ghost structure of a locally
// partitioned forest: the remote-owned trees whose fine elements touch
// this process's domain across faces, and the reciprocal per-rank
// bundles of locally owned elements other processes need, grouped by
// owner rank and by tree, ready for exchange. The construction follows
// the p4est one-ghost-layer algorithm; the wire transfer itself is the
// caller's business.
package ghost

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/notargets/treemesh/eclass"
	"github.com/notargets/treemesh/refcount"
)

// ErrBuild marks a fatal failure during ghost construction, such as an
// owner lookup outside the communicator size.
var ErrBuild = errors.New("ghost: build error")

// GhostTree is one remote tree adjacent to the local domain. Elements
// holds the ghost elements of that tree once the exchange has run;
// the builder leaves it empty.
type GhostTree struct {
	GlobalID int64
	Class    eclass.EClass
	Elements []Element

	scheme Scheme // owns Elements, nil when the class is unknown
}

// RemoteTree groups the locally owned elements of one tree that a
// single remote rank needs.
type RemoteTree struct {
	GlobalID int64
	Class    eclass.EClass
	Elements []Element

	scheme Scheme
}

// RemoteBundle is the full shipment for one remote rank. Trees appear
// in ascending local-tree order; within a tree, elements appear in
// ascending linear order without consecutive duplicates.
type RemoteBundle struct {
	Rank  int
	Trees []*RemoteTree
}

// ProcessOffset addresses one rank's chunk of the ghost layer: the
// index of the first ghost tree covering that rank's shipment and the
// first element index within that tree.
type ProcessOffset struct {
	Rank         int
	TreeIndex    int
	FirstElement int
}

// Ghost is the assembled ghost layer. Read-only after Build.
type Ghost struct {
	trees     []*GhostTree
	treeIndex map[int64]int // global id -> position in trees

	remotes     map[int]*RemoteBundle
	remoteRanks []int // first-seen order

	offsets      map[int]ProcessOffset
	offsetsBuilt bool

	rc *refcount.RefCount
}

func newGhost() *Ghost {
	return &Ghost{
		treeIndex: make(map[int64]int),
		remotes:   make(map[int]*RemoteBundle),
		rc:        refcount.New(),
	}
}

// Build constructs the ghost layer for a committed forest. Phase A
// assembles the ghost tree skeleton, phase B scans every face of every
// locally owned element, derives its half-size face neighbors, resolves
// their owners, and records remote copies. Any subcall failure is fatal
// and propagated.
func Build(f Forest) (*Ghost, error) {
	if f == nil {
		panic("ghost: Build with nil forest")
	}
	g := newGhost()
	g.fillGhostTrees(f)
	if err := g.scanElements(f); err != nil {
		g.teardown()
		return nil, err
	}

	log.Debug().
		Int("ghost_trees", len(g.trees)).
		Int("remote_ranks", len(g.remoteRanks)).
		Int("rank", f.Rank()).
		Msg("ghost layer built")
	return g, nil
}

// addTree inserts one global tree into the skeleton unless present.
func (g *Ghost) addTree(f Forest, globalID int64, class eclass.EClass) {
	if _, ok := g.treeIndex[globalID]; ok {
		return
	}
	gt := &GhostTree{GlobalID: globalID, Class: class}
	if class.Valid() {
		gt.scheme = f.Scheme(class)
	}
	g.trees = append(g.trees, gt)
	g.treeIndex[globalID] = len(g.trees) - 1
}

// fillGhostTrees runs phase A: the shared first and last local trees
// and every non-local coarse face neighbor enter the skeleton, which is
// then sorted by global id and reindexed.
func (g *Ghost) fillGhostTrees(f Forest) {
	numLocal := f.NumLocalTrees()

	// A first or last tree shared with another rank must contain ghost
	// elements of that rank.
	if f.FirstTreeShared() {
		g.addTree(f, f.FirstLocalTree(), f.TreeClass(0))
	}
	if f.LastTreeShared() && numLocal > 0 {
		g.addTree(f, f.FirstLocalTree()+int64(numLocal)-1, f.TreeClass(numLocal-1))
	}

	for itree := 0; itree < numLocal; itree++ {
		for _, fn := range f.CoarseFaceNeighbors(itree) {
			if fn.TreeID < 0 {
				continue // domain boundary
			}
			if f.ForestTree(fn.TreeID) == -1 {
				g.addTree(f, fn.TreeID, fn.Class)
			}
		}
	}

	sort.Slice(g.trees, func(i, j int) bool {
		return g.trees[i].GlobalID < g.trees[j].GlobalID
	})
	// Sorting moved the entries; the index must map each global id to
	// its new position.
	for i, gt := range g.trees {
		g.treeIndex[gt.GlobalID] = i
	}
}

// scanElements runs phase B over all local elements and faces.
func (g *Ghost) scanElements(f Forest) error {
	var halfNeighbors []Element
	var bufScheme Scheme // scheme that allocated halfNeighbors
	maxFaceChildren := 0

	defer func() {
		if maxFaceChildren > 0 {
			bufScheme.Destroy(halfNeighbors)
		}
	}()

	for itree := 0; itree < f.NumLocalTrees(); itree++ {
		treeClass := f.TreeClass(itree)
		ts := f.Scheme(treeClass)
		numElems := f.TreeElementCount(itree)

		for ielem := 0; ielem < numElems; ielem++ {
			elem := f.TreeElement(itree, ielem)
			numFaces := ts.NumFaces(elem)

			for face := 0; face < numFaces; face++ {
				neighClass := f.NeighborClass(itree, elem, face)
				neighScheme := f.Scheme(neighClass)
				numChildren := ts.NumFaceChildren(elem, face)
				if numChildren == 0 {
					// No refined children share this face; nothing can
					// neighbor it.
					continue
				}
				if maxFaceChildren < numChildren {
					if maxFaceChildren > 0 {
						bufScheme.Destroy(halfNeighbors)
					}
					halfNeighbors = neighScheme.New(numChildren)
					bufScheme = neighScheme
					maxFaceChildren = numChildren
				}

				neighTree := f.HalfFaceNeighbors(itree, elem, halfNeighbors[:numChildren], face)
				if neighTree < 0 {
					continue // domain boundary
				}
				for child := 0; child < numChildren; child++ {
					owner := f.FindOwner(neighTree, halfNeighbors[child], neighClass)
					if owner < 0 || owner >= f.Size() {
						return fmt.Errorf("%w: owner %d of tree %d out of range [0, %d)",
							ErrBuild, owner, neighTree, f.Size())
					}
					if owner != f.Rank() {
						g.addRemote(f, owner, itree, elem)
					}
				}
			}
		}
	}
	return nil
}

func newRemoteTree(globalID int64, class eclass.EClass, ts Scheme) *RemoteTree {
	return &RemoteTree{GlobalID: globalID, Class: class, scheme: ts}
}

// addRemote records elem of forest-local tree itree as needed by the
// given remote rank. The caller iterates trees in ascending local order
// and elements in linear order, so the current tree is always the last
// bundle entry or a new one, and a duplicate element is always the last
// element of that tree.
func (g *Ghost) addRemote(f Forest, rank, itree int, elem Element) {
	treeClass := f.TreeClass(itree)
	ts := f.Scheme(treeClass)
	globalID := f.FirstLocalTree() + int64(itree)

	bundle, ok := g.remotes[rank]
	if !ok {
		bundle = &RemoteBundle{Rank: rank}
		bundle.Trees = append(bundle.Trees, newRemoteTree(globalID, treeClass, ts))
		g.remotes[rank] = bundle
		g.remoteRanks = append(g.remoteRanks, rank)
	}

	tree := bundle.Trees[len(bundle.Trees)-1]
	if tree.GlobalID != globalID {
		tree = newRemoteTree(globalID, treeClass, ts)
		bundle.Trees = append(bundle.Trees, tree)
	}

	// Dedup against the last element only: the linear iteration order
	// guarantees duplicates appear consecutively.
	level := ts.Level(elem)
	if n := len(tree.Elements); n > 0 {
		last := tree.Elements[n-1]
		lastLevel := ts.Level(last)
		if lastLevel == level && ts.LinearID(last, lastLevel) == ts.LinearID(elem, level) {
			return
		}
	}
	cp := ts.New(1)[0]
	ts.Copy(elem, cp)
	tree.Elements = append(tree.Elements, cp)
}

// NumGhostTrees returns the number of trees in the ghost skeleton.
func (g *Ghost) NumGhostTrees() int {
	g.mustLive("NumGhostTrees")
	return len(g.trees)
}

// GhostTree returns the ghost tree at position i in ascending global-id
// order.
func (g *Ghost) GhostTree(i int) *GhostTree {
	g.mustLive("GhostTree")
	return g.trees[i]
}

// GhostTreeIndex returns the position of the ghost tree with the given
// global id.
func (g *Ghost) GhostTreeIndex(globalID int64) (int, bool) {
	g.mustLive("GhostTreeIndex")
	i, ok := g.treeIndex[globalID]
	return i, ok
}

// RemoteRanks returns the remote ranks in first-seen order. The slice
// is a copy.
func (g *Ghost) RemoteRanks() []int {
	g.mustLive("RemoteRanks")
	return append([]int(nil), g.remoteRanks...)
}

// Remote returns the bundle destined for the given rank.
func (g *Ghost) Remote(rank int) (*RemoteBundle, bool) {
	g.mustLive("Remote")
	b, ok := g.remotes[rank]
	return b, ok
}

// ProcessOffset returns the offset entry for the given remote rank,
// building the offset table on first use.
func (g *Ghost) ProcessOffset(rank int) (ProcessOffset, bool) {
	g.mustLive("ProcessOffset")
	if !g.offsetsBuilt {
		g.buildProcessOffsets()
	}
	po, ok := g.offsets[rank]
	return po, ok
}

// buildProcessOffsets constructs the rank index in one monotone pass
// over the remote ranks in ascending order and the sorted ghost trees.
// When two consecutive ranks start in the same ghost tree, the later
// rank's first element follows the earlier rank's share of that tree.
func (g *Ghost) buildProcessOffsets() {
	g.offsets = make(map[int]ProcessOffset, len(g.remoteRanks))
	g.offsetsBuilt = true

	ranks := append([]int(nil), g.remoteRanks...)
	sort.Ints(ranks)

	prevTree := int64(-1)
	elemCursor := 0
	for _, rank := range ranks {
		bundle := g.remotes[rank]
		first := bundle.Trees[0]

		// Lower bound of the first shipped tree in the sorted skeleton.
		treeIdx := sort.Search(len(g.trees), func(i int) bool {
			return g.trees[i].GlobalID >= first.GlobalID
		})
		if first.GlobalID != prevTree {
			elemCursor = 0
		}
		g.offsets[rank] = ProcessOffset{
			Rank:         rank,
			TreeIndex:    treeIdx,
			FirstElement: elemCursor,
		}

		lastTree := bundle.Trees[len(bundle.Trees)-1]
		elemCursor += len(lastTree.Elements)
		prevTree = lastTree.GlobalID
	}
}

func (g *Ghost) mustLive(op string) {
	if g == nil {
		panic("ghost: " + op + " on nil ghost")
	}
	if !g.rc.IsActive() {
		panic("ghost: " + op + " on destroyed ghost")
	}
}

// Ref adds a reference.
func (g *Ghost) Ref() {
	g.mustLive("Ref")
	g.rc.Ref()
}

// Unref drops a reference and tears the structure down when the count
// reaches zero, destroying every scheme-owned element. Reports whether
// teardown ran.
func (g *Ghost) Unref() bool {
	g.mustLive("Unref")
	if !g.rc.Unref() {
		return false
	}
	g.teardown()
	return true
}

func (g *Ghost) teardown() {
	for _, gt := range g.trees {
		if gt.scheme != nil && len(gt.Elements) > 0 {
			gt.scheme.Destroy(gt.Elements)
		}
		gt.Elements = nil
	}
	for _, bundle := range g.remotes {
		for _, rt := range bundle.Trees {
			if rt.scheme != nil && len(rt.Elements) > 0 {
				rt.scheme.Destroy(rt.Elements)
			}
			rt.Elements = nil
		}
	}
	g.trees = nil
	g.treeIndex = nil
	g.remotes = nil
	g.remoteRanks = nil
	g.offsets = nil
}
