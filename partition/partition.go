// Package partition computes per-rank tree ownership tables for a
// coarse mesh: uniform fair-share offsets, and connectivity-aware
// assignments obtained by partitioning the dual graph of the tree
// face-adjacency with METIS. The offsets feed the partitioned cmesh
// build sequence on each rank.
package partition

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/notargets/treemesh/cmesh"
)

// ErrPartition marks an invalid partitioning request or result.
var ErrPartition = errors.New("partition: error")

// UniformOffsets splits numTrees trees over size ranks into monotone
// fair shares: offsets[r] is the first global tree of rank r and
// offsets[size] equals numTrees. Adjacent ranks adjoin exactly.
func UniformOffsets(numTrees int64, size int) ([]int64, error) {
	if numTrees < 0 || size <= 0 {
		return nil, fmt.Errorf("%w: %d trees over %d ranks", ErrPartition, numTrees, size)
	}
	offsets := make([]int64, size+1)
	for r := 1; r < size; r++ {
		hi, lo := bits.Mul64(uint64(numTrees), uint64(r))
		q, _ := bits.Div64(hi, lo, uint64(size))
		offsets[r] = int64(q)
	}
	offsets[size] = numTrees
	return offsets, nil
}

// DualGraph builds the tree adjacency of a committed replicated cmesh
// in CSR form: xadj[v] is the first adjacency entry of tree v, adjncy
// lists the neighbor tree ids. Boundary faces contribute no entry.
func DualGraph(c *cmesh.Cmesh) (xadj, adjncy []int32, err error) {
	if c.Partitioned() {
		return nil, nil, fmt.Errorf("%w: dual graph needs the whole mesh, cmesh is partitioned",
			ErrPartition)
	}
	n := c.NumTrees()
	xadj = make([]int32, n+1)
	for id := int64(0); id < n; id++ {
		xadj[id] = int32(len(adjncy))
		for _, fn := range c.Tree(id).FaceNeighbors {
			if fn.IsSet() {
				adjncy = append(adjncy, int32(fn.TreeID))
			}
		}
	}
	xadj[n] = int32(len(adjncy))
	return xadj, adjncy, nil
}

// Offsets converts a tree-to-part assignment into contiguous rank
// offsets plus the renumbering that groups trees by part. perm[newID]
// is the original tree id; trees keep their relative order within each
// part, the way local element orderings are derived from an element-to-
// partition map.
func Offsets(parts []int32, nparts int) (offsets []int64, perm []int64, err error) {
	if nparts <= 0 {
		return nil, nil, fmt.Errorf("%w: %d parts", ErrPartition, nparts)
	}
	counts := make([]int64, nparts)
	for i, p := range parts {
		if p < 0 || int(p) >= nparts {
			return nil, nil, fmt.Errorf("%w: tree %d assigned to part %d of %d",
				ErrPartition, i, p, nparts)
		}
		counts[p]++
	}

	offsets = make([]int64, nparts+1)
	for r := 0; r < nparts; r++ {
		offsets[r+1] = offsets[r] + counts[r]
	}

	perm = make([]int64, len(parts))
	cursor := append([]int64(nil), offsets[:nparts]...)
	for old, p := range parts {
		perm[cursor[p]] = int64(old)
		cursor[p]++
	}
	return offsets, perm, nil
}
