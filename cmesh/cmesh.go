// Package cmesh implements the coarse, unstructured topological
// description of a computational domain: a collection of trees, each an
// instance of a fixed element class, glued together along faces. The
// cmesh is assembled through a staged-commit builder and becomes an
// immutable, queryable topology store after Commit.
package cmesh

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/notargets/treemesh/comm"
	"github.com/notargets/treemesh/eclass"
	"github.com/notargets/treemesh/refcount"
)

// Error kinds. Contract violations (wrong phase, invalid ids, mismatched
// dimensions) panic instead; they are programming errors.
var (
	// ErrConfiguration marks an invalid builder configuration detected
	// at commit or by a factory.
	ErrConfiguration = errors.New("cmesh: configuration error")
	// ErrUnsupported marks an operation the current revision does not
	// support, such as uniform partition of pyramid meshes.
	ErrUnsupported = errors.New("cmesh: unsupported")
	// ErrCommunicator wraps failures from the communicator handle.
	ErrCommunicator = errors.New("cmesh: communicator error")
)

// State tracks the builder lifecycle.
type State uint8

const (
	// Configuring accepts setters and rejects committed-phase queries.
	Configuring State = iota
	// Committed is immutable and answers topology queries.
	Committed
)

// FaceNeighbor is one face-neighbor slot of a tree. A slot is valid iff
// all three fields are set; the defaults mark a boundary or an unset
// connection.
type FaceNeighbor struct {
	TreeID     int64        // global id of the neighbor, -1 if none
	Class      eclass.EClass // eclass.Last if unknown
	TreeToFace int8         // packed neighbor face and orientation, -1 if unset
}

// IsSet reports whether the slot references a neighbor tree.
func (fn FaceNeighbor) IsSet() bool {
	return fn.TreeID >= 0 && fn.TreeToFace != -1
}

// PackTreeToFace encodes a neighbor face index and orientation into the
// tree-to-face byte. The low nibble holds the face index, the high
// nibble the orientation. The layout is an external contract of the
// mesh; peer codes that read or write mesh files rely on it.
func PackTreeToFace(face, orientation int) int8 {
	if face < 0 || face > 0x0f || orientation < 0 || orientation > 0x0f {
		panic(fmt.Sprintf("cmesh: cannot pack face %d orientation %d", face, orientation))
	}
	return int8(orientation<<4 | face)
}

// UnpackTreeToFace decodes a tree-to-face byte into the neighbor face
// index and the orientation.
func UnpackTreeToFace(ttf int8) (face, orientation int) {
	return int(ttf) & 0x0f, int(ttf) >> 4 & 0x0f
}

// Tree is one coarse topological cell.
type Tree struct {
	ID            int64
	Class         eclass.EClass
	FaceNeighbors []FaceNeighbor
}

// Cmesh is the coarse mesh. Create with New, configure through the
// setters, freeze with Commit. All committed-phase queries are pure
// functions of the frozen state.
type Cmesh struct {
	state State
	dim   int // -1 until the first tree fixes it

	comm     comm.Comm
	doDup    bool
	commSet  bool // a non-default communicator was installed
	ownsComm bool // Commit duplicated the communicator
	rank     int  // -1 until Commit
	size     int  // -1 until Commit

	partitioned   bool
	partitionSet  bool // SetPartitioned was called
	localTreesSet bool // SetNumTrees was called

	numTrees      int64
	numLocalTrees int64
	numGhosts     int64
	firstTree     int64

	perClass [eclass.Count]int64
	trees    []Tree

	// treeOffsets[r] is the global id of the first tree of rank r;
	// treeOffsets[size] == numTrees. Optional.
	treeOffsets []int64

	rc *refcount.RefCount
}

// New returns an empty cmesh in the Configuring state holding one
// reference. The communicator defaults to the single-process world.
func New() *Cmesh {
	return &Cmesh{
		state: Configuring,
		dim:   -1,
		comm:  comm.World(),
		rank:  -1,
		size:  -1,
		rc:    refcount.New(),
	}
}

func (c *Cmesh) mustLive(op string) {
	if c == nil {
		panic("cmesh: " + op + " on nil cmesh")
	}
	if !c.rc.IsActive() {
		panic("cmesh: " + op + " on destroyed cmesh")
	}
}

func (c *Cmesh) mustConfiguring(op string) {
	c.mustLive(op)
	if c.state != Configuring {
		panic("cmesh: " + op + " after commit")
	}
}

func (c *Cmesh) mustCommitted(op string) {
	c.mustLive(op)
	if c.state != Committed {
		panic("cmesh: " + op + " before commit")
	}
}

// SetComm replaces the default world communicator. It must be called at
// most once, before Commit, with a non-nil communicator. When doDup is
// set, Commit duplicates the handle and teardown frees the duplicate.
func (c *Cmesh) SetComm(cm comm.Comm, doDup bool) {
	c.mustConfiguring("SetComm")
	if cm == nil {
		panic("cmesh: SetComm with nil communicator")
	}
	if c.commSet {
		panic("cmesh: communicator already set")
	}
	c.comm = cm
	c.doDup = doDup
	c.commSet = true
}

// SetPartitioned selects replicated or partitioned mode. In replicated
// mode firstLocalTree and numGhosts are ignored and the call is
// equivalent to SetNumTrees(numGlobalTrees). It must be called before
// any tree is inserted and at most once.
func (c *Cmesh) SetPartitioned(partitioned bool, numGlobalTrees, firstLocalTree, numGhosts int64) error {
	c.mustConfiguring("SetPartitioned")
	if c.partitionSet {
		panic("cmesh: partition mode already set")
	}
	if c.trees != nil {
		panic("cmesh: SetPartitioned after trees were inserted")
	}
	c.partitionSet = true

	if !partitioned {
		// Replicated: this call is just SetNumTrees. The original
		// branch would trip over zero trees below anyway; make it a
		// reported error instead.
		if numGlobalTrees <= 0 {
			return fmt.Errorf("%w: replicated cmesh needs a positive tree count, got %d",
				ErrConfiguration, numGlobalTrees)
		}
		return c.SetNumTrees(numGlobalTrees)
	}

	if numGlobalTrees <= 0 {
		return fmt.Errorf("%w: partitioned cmesh needs a positive global tree count, got %d",
			ErrConfiguration, numGlobalTrees)
	}
	if firstLocalTree < 0 || numGhosts < 0 {
		return fmt.Errorf("%w: negative partition metadata (first=%d, ghosts=%d)",
			ErrConfiguration, firstLocalTree, numGhosts)
	}
	c.partitioned = true
	c.numTrees = numGlobalTrees
	c.firstTree = firstLocalTree
	c.numGhosts = numGhosts
	return nil
}

// SetNumTrees sets the tree count and allocates the tree array. In
// replicated mode n is the global and local count and must be positive.
// In partitioned mode n is the local count, zero allowed (an empty
// rank), and the global count must already have been set.
func (c *Cmesh) SetNumTrees(n int64) error {
	c.mustConfiguring("SetNumTrees")
	if c.localTreesSet {
		panic("cmesh: tree count already set")
	}

	if c.partitioned {
		if n < 0 {
			return fmt.Errorf("%w: negative local tree count %d", ErrConfiguration, n)
		}
		if c.numTrees <= 0 {
			panic("cmesh: SetNumTrees on a partitioned cmesh before SetPartitioned")
		}
		c.numLocalTrees = n
	} else {
		if n <= 0 {
			return fmt.Errorf("%w: tree count must be positive, got %d", ErrConfiguration, n)
		}
		c.numTrees = n
		c.numLocalTrees = n
	}
	c.localTreesSet = true
	c.trees = make([]Tree, c.numLocalTrees)
	for i := range c.trees {
		c.trees[i].Class = eclass.Last // unset until SetTree
	}
	return nil
}

// treeIDValid reports whether id names a local tree. Under partition
// only local trees are addressable.
func (c *Cmesh) treeIDValid(id int64) bool {
	if c.partitioned {
		return c.firstTree <= id && id < c.firstTree+c.numLocalTrees
	}
	return 0 <= id && id < c.numTrees
}

// treeIndex maps a global tree id to its index in the tree array.
func (c *Cmesh) treeIndex(id int64) int64 {
	if c.partitioned {
		return id - c.firstTree
	}
	return id
}

// SetTree populates one tree. The first insertion fixes the cmesh
// dimension; every later insertion must match it. Face-neighbor slots
// are allocated and filled with boundary sentinels.
func (c *Cmesh) SetTree(treeID int64, class eclass.EClass) {
	c.mustConfiguring("SetTree")
	if !class.Valid() {
		panic(fmt.Sprintf("cmesh: SetTree with invalid class %d", class))
	}
	if !c.treeIDValid(treeID) {
		panic(fmt.Sprintf("cmesh: tree id %d out of local range", treeID))
	}

	if c.dim == -1 {
		c.dim = class.Dimension()
	} else if class.Dimension() != c.dim {
		panic(fmt.Sprintf("cmesh: tree %d has dimension %d, cmesh has %d",
			treeID, class.Dimension(), c.dim))
	}
	c.perClass[class]++

	tree := &c.trees[c.treeIndex(treeID)]
	tree.ID = treeID
	tree.Class = class
	tree.FaceNeighbors = make([]FaceNeighbor, class.NumFaces())
	for i := range tree.FaceNeighbors {
		tree.FaceNeighbors[i] = FaceNeighbor{TreeID: -1, Class: eclass.Last, TreeToFace: -1}
	}
}

// JoinFaces connects two trees at the given faces. At least one of the
// trees must be local; each local side's slot is updated. When both
// trees are local the face shapes must match (triangle to triangle,
// quad to quad); with a remote neighbor the remote class is unknown
// until partition metadata is exchanged, so the slot records the
// sentinel class.
func (c *Cmesh) JoinFaces(tree1, tree2 int64, face1, face2, orientation int) error {
	c.mustConfiguring("JoinFaces")

	local1 := c.treeIDValid(tree1)
	local2 := c.treeIDValid(tree2)
	if !local1 && !local2 {
		panic(fmt.Sprintf("cmesh: JoinFaces(%d, %d): neither tree is local", tree1, tree2))
	}
	if orientation < 0 || orientation > 0x0f {
		return fmt.Errorf("%w: orientation %d out of range", ErrConfiguration, orientation)
	}

	var t1, t2 *Tree
	if local1 {
		t1 = &c.trees[c.treeIndex(tree1)]
		if !t1.Class.Valid() {
			panic(fmt.Sprintf("cmesh: JoinFaces before SetTree(%d)", tree1))
		}
		if face1 < 0 || face1 >= t1.Class.NumFaces() {
			panic(fmt.Sprintf("cmesh: face %d out of range for tree %d (%s)", face1, tree1, t1.Class))
		}
	}
	if local2 {
		t2 = &c.trees[c.treeIndex(tree2)]
		if !t2.Class.Valid() {
			panic(fmt.Sprintf("cmesh: JoinFaces before SetTree(%d)", tree2))
		}
		if face2 < 0 || face2 >= t2.Class.NumFaces() {
			panic(fmt.Sprintf("cmesh: face %d out of range for tree %d (%s)", face2, tree2, t2.Class))
		}
	}

	if local1 && local2 {
		fc1 := t1.Class.FaceClass(face1)
		fc2 := t2.Class.FaceClass(face2)
		if fc1 != fc2 {
			return fmt.Errorf("%w: cannot join a %s face to a %s face", ErrConfiguration, fc1, fc2)
		}
	}

	if local1 {
		class2 := eclass.Last
		if local2 {
			class2 = t2.Class
		}
		t1.FaceNeighbors[face1] = FaceNeighbor{
			TreeID:     tree2,
			Class:      class2,
			TreeToFace: PackTreeToFace(face2, orientation),
		}
	}
	if local2 {
		class1 := eclass.Last
		if local1 {
			class1 = t1.Class
		}
		t2.FaceNeighbors[face2] = FaceNeighbor{
			TreeID:     tree1,
			Class:      class1,
			TreeToFace: PackTreeToFace(face1, orientation),
		}
	}
	return nil
}

// SetTreeOffsets installs the per-rank partition table: offsets[r] is
// the global id of the first tree of rank r, offsets[len-1] the global
// tree count. Validated against rank and size at Commit.
func (c *Cmesh) SetTreeOffsets(offsets []int64) {
	c.mustConfiguring("SetTreeOffsets")
	if offsets == nil {
		panic("cmesh: SetTreeOffsets with nil offsets")
	}
	c.treeOffsets = append([]int64(nil), offsets...)
}

// Commit freezes the cmesh. The communicator is duplicated if requested
// and rank and size are read from the final handle. Fails with
// ErrConfiguration if no trees were configured or a tree slot was never
// populated, and with ErrCommunicator if duplication fails.
func (c *Cmesh) Commit() error {
	c.mustConfiguring("Commit")
	if c.comm == nil {
		return fmt.Errorf("%w: no communicator set", ErrConfiguration)
	}
	if c.numTrees <= 0 {
		return fmt.Errorf("%w: commit with zero trees", ErrConfiguration)
	}
	if !c.localTreesSet {
		return fmt.Errorf("%w: local tree count was never set", ErrConfiguration)
	}
	for i := range c.trees {
		if !c.trees[i].Class.Valid() {
			return fmt.Errorf("%w: tree slot %d was never populated", ErrConfiguration, i)
		}
	}

	if c.doDup {
		dup, err := c.comm.Dup()
		if err != nil {
			return fmt.Errorf("%w: dup: %v", ErrCommunicator, err)
		}
		c.comm = dup
		c.ownsComm = true
	}
	c.rank = c.comm.Rank()
	c.size = c.comm.Size()

	if c.treeOffsets != nil {
		if err := c.validateTreeOffsets(); err != nil {
			return err
		}
	}

	c.state = Committed
	log.Debug().
		Int64("trees", c.numTrees).
		Int64("local_trees", c.numLocalTrees).
		Int("dimension", c.dim).
		Bool("partitioned", c.partitioned).
		Int("rank", c.rank).
		Int("size", c.size).
		Msg("cmesh committed")
	return nil
}

func (c *Cmesh) validateTreeOffsets() error {
	if len(c.treeOffsets) != c.size+1 {
		return fmt.Errorf("%w: tree offsets have %d entries for %d ranks",
			ErrConfiguration, len(c.treeOffsets), c.size)
	}
	if c.treeOffsets[0] != 0 || c.treeOffsets[c.size] != c.numTrees {
		return fmt.Errorf("%w: tree offsets must span [0, %d]", ErrConfiguration, c.numTrees)
	}
	for r := 0; r < c.size; r++ {
		if c.treeOffsets[r] > c.treeOffsets[r+1] {
			return fmt.Errorf("%w: tree offsets decrease at rank %d", ErrConfiguration, r)
		}
	}
	if c.partitioned {
		if c.treeOffsets[c.rank] != c.firstTree {
			return fmt.Errorf("%w: offset %d of rank %d disagrees with first tree %d",
				ErrConfiguration, c.treeOffsets[c.rank], c.rank, c.firstTree)
		}
		if c.treeOffsets[c.rank+1]-c.treeOffsets[c.rank] != c.numLocalTrees {
			return fmt.Errorf("%w: offset range of rank %d disagrees with %d local trees",
				ErrConfiguration, c.rank, c.numLocalTrees)
		}
	}
	return nil
}

// Committed-phase queries.

// NumTrees returns the global number of trees.
func (c *Cmesh) NumTrees() int64 {
	c.mustCommitted("NumTrees")
	return c.numTrees
}

// NumLocalTrees returns the number of trees stored on this process,
// which equals NumTrees when the cmesh is replicated.
func (c *Cmesh) NumLocalTrees() int64 {
	c.mustCommitted("NumLocalTrees")
	if c.partitioned {
		return c.numLocalTrees
	}
	return c.numTrees
}

// NumGhosts returns the number of neighbor trees owned by other
// processes. Zero when replicated.
func (c *Cmesh) NumGhosts() int64 {
	c.mustCommitted("NumGhosts")
	return c.numGhosts
}

// FirstTree returns the global id of the first local tree. Zero when
// replicated.
func (c *Cmesh) FirstTree() int64 {
	c.mustCommitted("FirstTree")
	return c.firstTree
}

// Dimension returns the topological dimension of the cmesh.
func (c *Cmesh) Dimension() int {
	c.mustCommitted("Dimension")
	return c.dim
}

// Partitioned reports whether the cmesh is partitioned across ranks.
func (c *Cmesh) Partitioned() bool {
	c.mustCommitted("Partitioned")
	return c.partitioned
}

// Rank returns the process rank read from the communicator at commit.
func (c *Cmesh) Rank() int {
	c.mustCommitted("Rank")
	return c.rank
}

// Size returns the process count read from the communicator at commit.
func (c *Cmesh) Size() int {
	c.mustCommitted("Size")
	return c.size
}

// TreeClass returns the element class of the given local tree.
func (c *Cmesh) TreeClass(treeID int64) eclass.EClass {
	c.mustCommitted("TreeClass")
	if !c.treeIDValid(treeID) {
		panic(fmt.Sprintf("cmesh: tree id %d out of local range", treeID))
	}
	return c.trees[c.treeIndex(treeID)].Class
}

// Tree returns the record of the given local tree. The returned tree is
// shared with the cmesh and must not be mutated.
func (c *Cmesh) Tree(treeID int64) *Tree {
	c.mustCommitted("Tree")
	if !c.treeIDValid(treeID) {
		panic(fmt.Sprintf("cmesh: tree id %d out of local range", treeID))
	}
	return &c.trees[c.treeIndex(treeID)]
}

// NumTreesOfClass returns the number of local trees of the given class.
func (c *Cmesh) NumTreesOfClass(class eclass.EClass) int64 {
	c.mustCommitted("NumTreesOfClass")
	if !class.Valid() {
		panic("cmesh: NumTreesOfClass with invalid class")
	}
	return c.perClass[class]
}

// Comm returns the communicator handle and whether it was duplicated at
// commit. Available in both phases; the handle identity changes at
// commit when duplication was requested.
func (c *Cmesh) Comm() (comm.Comm, bool) {
	c.mustLive("Comm")
	return c.comm, c.doDup
}

// TreeOffsets returns a copy of the per-rank partition table, or nil if
// none was configured.
func (c *Cmesh) TreeOffsets() []int64 {
	c.mustCommitted("TreeOffsets")
	if c.treeOffsets == nil {
		return nil
	}
	return append([]int64(nil), c.treeOffsets...)
}

// Ref adds a reference.
func (c *Cmesh) Ref() {
	c.mustLive("Ref")
	c.rc.Ref()
}

// Unref drops a reference. When the count reaches zero the cmesh is
// torn down: tree storage is released and, if Commit duplicated the
// communicator, the duplicate is freed. Reports whether teardown ran.
func (c *Cmesh) Unref() bool {
	c.mustLive("Unref")
	if !c.rc.Unref() {
		return false
	}
	if c.ownsComm {
		if err := c.comm.Free(); err != nil {
			log.Warn().Err(err).Msg("cmesh: freeing duplicated communicator")
		}
	}
	c.trees = nil
	c.treeOffsets = nil
	c.comm = nil
	return true
}
