package eclass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensionsAndFaces(t *testing.T) {
	cases := []struct {
		class    EClass
		dim      int
		faces    int
		vertices int
	}{
		{Vertex, 0, 0, 1},
		{Line, 1, 2, 2},
		{Triangle, 2, 3, 3},
		{Quad, 2, 4, 4},
		{Tet, 3, 4, 4},
		{Hex, 3, 6, 8},
		{Prism, 3, 5, 6},
		{Pyramid, 3, 5, 5},
	}

	for _, tc := range cases {
		t.Run(tc.class.String(), func(t *testing.T) {
			assert.Equal(t, tc.dim, tc.class.Dimension())
			assert.Equal(t, tc.faces, tc.class.NumFaces())
			assert.Equal(t, tc.vertices, tc.class.NumVertices())
		})
	}
}

func TestFaceClassesAreConsistent(t *testing.T) {
	// Every face of a d-dimensional class is a (d-1)-dimensional class,
	// and its corner count matches the face class's vertex count.
	for c := Vertex; c < Last; c++ {
		for f := 0; f < c.NumFaces(); f++ {
			fc := c.FaceClass(f)
			require.True(t, fc.Valid())
			assert.Equal(t, c.Dimension()-1, fc.Dimension(),
				"class %s face %d", c, f)
			assert.Equal(t, fc.NumVertices(), len(c.FaceCorners(f)),
				"class %s face %d", c, f)
		}
	}
}

func TestFaceCornersInRange(t *testing.T) {
	for c := Vertex; c < Last; c++ {
		for f := 0; f < c.NumFaces(); f++ {
			for _, v := range c.FaceCorners(f) {
				assert.Less(t, v, c.NumVertices())
				assert.GreaterOrEqual(t, v, 0)
			}
		}
	}
}

func TestHypercubeTable(t *testing.T) {
	assert.Equal(t, 6, NumTreesForHypercube[Tet])
	assert.Equal(t, 1, NumTreesForHypercube[Hex])
	assert.Equal(t, 2, NumTreesForHypercube[Triangle])
	assert.Equal(t, 3, NumTreesForHypercube[Pyramid])
}

func TestSentinel(t *testing.T) {
	assert.False(t, Last.Valid())
	assert.Equal(t, "Invalid", Last.String())
}
