// Package eclass defines the element classes a coarse mesh tree can take
// and the static topological tables associated with each class.
package eclass

import "fmt"

// EClass identifies the topological shape of a coarse mesh tree.
type EClass uint8

const (
	Vertex EClass = iota
	Line
	Triangle
	Quad
	Tet
	Hex
	Prism
	Pyramid

	// Last is the sentinel marking an unset class.
	Last
)

// Count is the number of valid element classes.
const Count = int(Last)

var names = [Count]string{
	"Vertex", "Line", "Triangle", "Quad", "Tet", "Hex", "Prism", "Pyramid",
}

func (c EClass) String() string {
	if c >= Last {
		return "Invalid"
	}
	return names[c]
}

// Valid reports whether c is a concrete element class (not the sentinel).
func (c EClass) Valid() bool {
	return c < Last
}

var dimensions = [Count]int{0, 1, 2, 2, 3, 3, 3, 3}

// Dimension returns the topological dimension of the class, 0 through 3.
func (c EClass) Dimension() int {
	return dimensions[c]
}

var numFaces = [Count]int{0, 2, 3, 4, 4, 6, 5, 5}

// NumFaces returns the number of codimension-1 faces of the class.
func (c EClass) NumFaces() int {
	return numFaces[c]
}

var numVertices = [Count]int{1, 2, 3, 4, 4, 8, 6, 5}

// NumVertices returns the number of corner vertices of the class.
func (c EClass) NumVertices() int {
	return numVertices[c]
}

// faceClasses[c][f] is the element class of face f of class c.
var faceClasses = [Count][]EClass{
	Vertex:   {},
	Line:     {Vertex, Vertex},
	Triangle: {Line, Line, Line},
	Quad:     {Line, Line, Line, Line},
	Tet:      {Triangle, Triangle, Triangle, Triangle},
	Hex:      {Quad, Quad, Quad, Quad, Quad, Quad},
	Prism:    {Quad, Quad, Quad, Triangle, Triangle},
	Pyramid:  {Triangle, Triangle, Triangle, Triangle, Quad},
}

// FaceClass returns the element class of face f of class c.
func (c EClass) FaceClass(f int) EClass {
	if !c.Valid() || f < 0 || f >= numFaces[c] {
		panic(fmt.Sprintf("eclass: face %d out of range for %s", f, c))
	}
	return faceClasses[c][f]
}

// faceCorners[c][f] lists the corner vertices spanning face f of class c.
// Corner numbering follows the standard unstructured mesh convention so
// that faces can be matched against EtoV connectivity read from mesh files.
var faceCorners = [Count][][]int{
	Vertex:   {},
	Line:     {{0}, {1}},
	Triangle: {{0, 1}, {1, 2}, {2, 0}},
	Quad:     {{0, 1}, {1, 2}, {2, 3}, {3, 0}},
	Tet:      {{0, 1, 2}, {0, 1, 3}, {1, 2, 3}, {0, 2, 3}},
	Hex: {
		{0, 1, 2, 3}, {4, 5, 6, 7},
		{0, 1, 5, 4}, {1, 2, 6, 5}, {2, 3, 7, 6}, {3, 0, 4, 7},
	},
	Prism: {
		{0, 1, 4, 3}, {1, 2, 5, 4}, {2, 0, 3, 5},
		{0, 1, 2}, {3, 4, 5},
	},
	Pyramid: {
		{0, 1, 4}, {1, 2, 4}, {2, 3, 4}, {3, 0, 4},
		{0, 1, 2, 3},
	},
}

// FaceCorners returns the corner vertex indices of face f of class c.
func (c EClass) FaceCorners(f int) []int {
	if !c.Valid() || f < 0 || f >= numFaces[c] {
		panic(fmt.Sprintf("eclass: face %d out of range for %s", f, c))
	}
	return faceCorners[c][f]
}

// NumTreesForHypercube gives the number of trees of each class needed to
// tile the unit hypercube of that class's dimension.
var NumTreesForHypercube = [Count]int{
	Vertex:   1,
	Line:     1,
	Triangle: 2,
	Quad:     1,
	Tet:      6,
	Hex:      1,
	Prism:    2,
	Pyramid:  3,
}
