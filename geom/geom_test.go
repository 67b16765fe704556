package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/treemesh/eclass"
)

func TestSetValidatesCoordinateCount(t *testing.T) {
	s := NewStore()
	assert.ErrorIs(t, s.Set(0, eclass.Tet, make([]float64, 9)), ErrGeometry)
	assert.ErrorIs(t, s.Set(0, eclass.Last, make([]float64, 12)), ErrGeometry)
	assert.NoError(t, s.Set(0, eclass.Tet, make([]float64, 12)))
}

func TestVerticesAndCentroid(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set(3, eclass.Triangle, []float64{
		0, 0, 0,
		3, 0, 0,
		0, 3, 0,
	}))

	v, ok := s.Vertices(3)
	require.True(t, ok)
	r, c := v.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 3.0, v.At(1, 0))

	centroid, err := s.Centroid(3)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, centroid[0], 1e-12)
	assert.InDelta(t, 1.0, centroid[1], 1e-12)
	assert.InDelta(t, 0.0, centroid[2], 1e-12)

	_, ok = s.Vertices(99)
	assert.False(t, ok)
	_, err = s.Centroid(99)
	assert.ErrorIs(t, err, ErrGeometry)
}

func TestMeasure(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Set(0, eclass.Line, []float64{
		0, 0, 0,
		0, 3, 4,
	}))
	require.NoError(t, s.Set(1, eclass.Triangle, []float64{
		0, 0, 0,
		2, 0, 0,
		0, 2, 0,
	}))
	require.NoError(t, s.Set(2, eclass.Quad, []float64{
		0, 0, 0,
		2, 0, 0,
		2, 1, 0,
		0, 1, 0,
	}))
	require.NoError(t, s.Set(3, eclass.Tet, []float64{
		0, 0, 0,
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}))
	// Unit cube.
	require.NoError(t, s.Set(4, eclass.Hex, []float64{
		0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0,
		0, 0, 1, 1, 0, 1, 1, 1, 1, 0, 1, 1,
	}))
	// Unit-triangle prism of height 2.
	require.NoError(t, s.Set(5, eclass.Prism, []float64{
		0, 0, 0, 1, 0, 0, 0, 1, 0,
		0, 0, 2, 1, 0, 2, 0, 1, 2,
	}))
	// Unit-square pyramid of height 3.
	require.NoError(t, s.Set(6, eclass.Pyramid, []float64{
		0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0,
		0.5, 0.5, 3,
	}))

	cases := []struct {
		treeID int64
		want   float64
	}{
		{0, 5.0},       // 3-4-5 segment
		{1, 2.0},       // right triangle, legs 2
		{2, 2.0},       // 2 x 1 rectangle
		{3, 1.0 / 6.0}, // unit corner tet
		{4, 1.0},       // unit cube
		{5, 1.0},       // triangle area 1/2, height 2
		{6, 1.0},       // base 1, height 3, V = bh/3
	}
	for _, tc := range cases {
		got, err := s.Measure(tc.treeID)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, got, 1e-12, "tree %d", tc.treeID)
	}
}
