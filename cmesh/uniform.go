package cmesh

import (
	"fmt"
	"math/bits"

	"github.com/notargets/treemesh/eclass"
)

// UniformBounds describes the slice of a uniform refinement owned by one
// rank: the inclusive local tree range and the child offsets within the
// two boundary trees.
type UniformBounds struct {
	FirstLocalTree   int64
	ChildInTreeBegin int64
	LastLocalTree    int64
	ChildInTreeEnd   int64
}

// Empty reports whether the slice holds no children.
func (b UniformBounds) Empty() bool {
	return b.FirstLocalTree == b.LastLocalTree &&
		b.ChildInTreeBegin == b.ChildInTreeEnd
}

// fairShare computes floor(total * num / den) without overflowing 64
// bits, using a full 128-bit product. Requires 0 <= num <= den.
func fairShare(total int64, num, den int) int64 {
	hi, lo := bits.Mul64(uint64(total), uint64(num))
	q, _ := bits.Div64(hi, lo, uint64(den))
	return int64(q)
}

// UniformBounds computes, for a uniform refinement that splits every
// tree into 2^(dimension*level) children ordered by tree then child,
// the child range assigned to this rank. Adjacent ranks receive exactly
// adjoining ranges. Fails with ErrUnsupported on meshes containing
// pyramids, whose children per tree are not uniform.
func (c *Cmesh) UniformBounds(level int) (UniformBounds, error) {
	c.mustCommitted("UniformBounds")
	if level < 0 {
		panic(fmt.Sprintf("cmesh: negative refinement level %d", level))
	}
	if c.perClass[eclass.Pyramid] > 0 {
		return UniformBounds{}, fmt.Errorf(
			"%w: uniform partition of meshes with pyramid trees", ErrUnsupported)
	}

	childrenPerTree := int64(1) << (c.dim * level)
	globalNumChildren := c.numTrees * childrenPerTree

	var firstChild, lastChild int64
	if c.rank == 0 {
		firstChild = 0
	} else {
		firstChild = fairShare(globalNumChildren, c.rank, c.size)
	}
	if c.rank == c.size-1 {
		lastChild = globalNumChildren
	} else {
		lastChild = fairShare(globalNumChildren, c.rank+1, c.size)
	}

	var b UniformBounds
	b.FirstLocalTree = firstChild / childrenPerTree
	b.ChildInTreeBegin = firstChild - b.FirstLocalTree*childrenPerTree
	if firstChild < lastChild {
		b.LastLocalTree = (lastChild - 1) / childrenPerTree
	} else {
		// Empty rank: collapse onto the first tree.
		b.LastLocalTree = b.FirstLocalTree
	}
	if b.LastLocalTree > 0 {
		b.ChildInTreeEnd = lastChild - b.LastLocalTree*childrenPerTree
	} else {
		b.ChildInTreeEnd = lastChild
	}
	return b, nil
}
