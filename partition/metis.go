package partition

import (
	"fmt"

	metis "github.com/notargets/go-metis"

	"github.com/notargets/treemesh/cmesh"
)

// PartGraph assigns each tree of a committed replicated cmesh to one of
// nparts parts, minimizing the number of cut faces via METIS k-way
// partitioning of the dual graph. With one part the assignment is
// trivially zero.
func PartGraph(c *cmesh.Cmesh, nparts int) ([]int32, error) {
	if nparts <= 0 {
		return nil, fmt.Errorf("%w: %d parts", ErrPartition, nparts)
	}
	n := c.NumTrees()
	if nparts == 1 {
		return make([]int32, n), nil
	}
	if int64(nparts) > n {
		return nil, fmt.Errorf("%w: %d parts for %d trees", ErrPartition, nparts, n)
	}

	xadj, adjncy, err := DualGraph(c)
	if err != nil {
		return nil, err
	}
	parts, err := metis.PartGraphKway(xadj, adjncy, int32(nparts))
	if err != nil {
		return nil, fmt.Errorf("%w: metis: %v", ErrPartition, err)
	}
	return parts, nil
}
