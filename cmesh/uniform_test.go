package cmesh

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/treemesh/comm"
	"github.com/notargets/treemesh/eclass"
)

// buildReplicated commits a replicated cmesh of n trees of one class on
// a synthetic rank/size pair.
func buildReplicated(t *testing.T, n int64, class eclass.EClass, rank, size int) *Cmesh {
	t.Helper()
	g, err := comm.NewGroup(rank, size)
	require.NoError(t, err)

	c := New()
	c.SetComm(g, false)
	require.NoError(t, c.SetNumTrees(n))
	for i := int64(0); i < n; i++ {
		c.SetTree(i, class)
	}
	require.NoError(t, c.Commit())
	return c
}

func TestUniformBoundsSingleHexLevelZero(t *testing.T) {
	c, err := NewHex(comm.World(), false)
	require.NoError(t, err)
	defer c.Unref()

	assert.Equal(t, 3, c.Dimension())
	b, err := c.UniformBounds(0)
	require.NoError(t, err)
	assert.Equal(t, UniformBounds{0, 0, 0, 1}, b)
	assert.False(t, b.Empty())
}

func TestUniformBoundsSixTetsLevelOne(t *testing.T) {
	c, err := NewHypercube(eclass.Tet, comm.World(), false)
	require.NoError(t, err)
	defer c.Unref()

	require.Equal(t, int64(6), c.NumTrees())
	b, err := c.UniformBounds(1)
	require.NoError(t, err)
	assert.Equal(t, UniformBounds{0, 0, 5, 8}, b)
}

// Three triangles at level 2 split across four ranks: C = 16, G = 48,
// intervals [0,12), [12,24), [24,36), [36,48).
func TestUniformBoundsTrianglesAcrossRanks(t *testing.T) {
	expected := []UniformBounds{
		{0, 0, 0, 12},
		{0, 12, 1, 8},
		{1, 8, 2, 4},
		{2, 4, 2, 16},
	}
	for rank := 0; rank < 4; rank++ {
		t.Run(fmt.Sprintf("Rank%d", rank), func(t *testing.T) {
			c := buildReplicated(t, 3, eclass.Triangle, rank, 4)
			defer c.Unref()
			b, err := c.UniformBounds(2)
			require.NoError(t, err)
			assert.Equal(t, expected[rank], b)
		})
	}
}

func TestUniformBoundsEmptyRank(t *testing.T) {
	// Two children over four ranks: ranks 0 and 2 receive nothing.
	c := buildReplicated(t, 2, eclass.Line, 2, 4)
	defer c.Unref()

	b, err := c.UniformBounds(0)
	require.NoError(t, err)
	assert.True(t, b.Empty())
	assert.Equal(t, b.FirstLocalTree, b.LastLocalTree)
	assert.Equal(t, b.ChildInTreeBegin, b.ChildInTreeEnd)
}

func TestUniformBoundsPyramidUnsupported(t *testing.T) {
	c, err := NewHypercube(eclass.Pyramid, comm.World(), false)
	require.NoError(t, err)
	defer c.Unref()

	_, err = c.UniformBounds(1)
	assert.ErrorIs(t, err, ErrUnsupported)
}

// The per-rank child intervals tile [0, G) exactly: adjacent ranks
// adjoin and the union has no gap or overlap.
func TestUniformBoundsCoverAndAdjoin(t *testing.T) {
	const size = 7
	for _, tc := range []struct {
		trees int64
		class eclass.EClass
		level int
	}{
		{5, eclass.Quad, 0},
		{5, eclass.Quad, 3},
		{3, eclass.Tet, 2},
		{11, eclass.Line, 4},
	} {
		name := fmt.Sprintf("%dx%s@L%d", tc.trees, tc.class, tc.level)
		t.Run(name, func(t *testing.T) {
			children := int64(1) << (tc.class.Dimension() * tc.level)
			total := tc.trees * children

			var prevLast int64
			for rank := 0; rank < size; rank++ {
				c := buildReplicated(t, tc.trees, tc.class, rank, size)
				b, err := c.UniformBounds(tc.level)
				require.NoError(t, err)

				firstChild := b.FirstLocalTree*children + b.ChildInTreeBegin
				lastChild := b.LastLocalTree*children + b.ChildInTreeEnd
				if b.Empty() {
					lastChild = firstChild
				}

				require.LessOrEqual(t, firstChild, lastChild)
				assert.Equal(t, prevLast, firstChild,
					"rank %d does not adjoin its predecessor", rank)
				prevLast = lastChild
				c.Unref()
			}
			assert.Equal(t, total, prevLast, "union must cover all children")
		})
	}
}

// fairShare must agree with exact integer arithmetic near the 64-bit
// overflow boundary.
func TestFairShareWideMultiply(t *testing.T) {
	const total = int64(1) << 62
	assert.Equal(t, total/2, fairShare(total, 1, 2))
	assert.Equal(t, total, fairShare(total, 7, 7))
	assert.Equal(t, int64(0), fairShare(total, 0, 5))
	// 3*total overflows int64; the 128-bit product must not.
	assert.Equal(t, total/7*3+(total%7*3)/7, fairShare(total, 3, 7))
}
