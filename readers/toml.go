package readers

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"

	"github.com/notargets/treemesh/cmesh"
	"github.com/notargets/treemesh/comm"
	"github.com/notargets/treemesh/eclass"
	"github.com/notargets/treemesh/geom"
)

// meshSpec is the TOML mesh description:
//
//	[[trees]]
//	id = 0
//	class = "Quad"
//	vertices = [0,0,0, 1,0,0, 1,1,0, 0,1,0]  # optional
//
//	[[joins]]
//	trees = [0, 1]
//	faces = [1, 3]
//	orientation = 0
type meshSpec struct {
	Trees []treeSpec `toml:"trees"`
	Joins []joinSpec `toml:"joins"`
}

type treeSpec struct {
	ID       int64     `toml:"id"`
	Class    string    `toml:"class"`
	Vertices []float64 `toml:"vertices"`
}

type joinSpec struct {
	Trees       []int64 `toml:"trees"`
	Faces       []int   `toml:"faces"`
	Orientation int     `toml:"orientation"`
}

var classNames = map[string]eclass.EClass{
	"Vertex":   eclass.Vertex,
	"Line":     eclass.Line,
	"Triangle": eclass.Triangle,
	"Quad":     eclass.Quad,
	"Tet":      eclass.Tet,
	"Hex":      eclass.Hex,
	"Prism":    eclass.Prism,
	"Pyramid":  eclass.Pyramid,
}

// LoadTOML reads a TOML mesh description file and builds a committed
// replicated cmesh plus the vertex store of the trees that carry
// coordinates.
func LoadTOML(path string, cm comm.Comm, doDup bool) (*cmesh.Cmesh, *geom.Store, error) {
	var spec meshSpec
	if _, err := toml.DecodeFile(path, &spec); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrImport, err)
	}
	return buildFromSpec(&spec, cm, doDup)
}

// DecodeTOML builds a cmesh from an in-memory TOML mesh description.
func DecodeTOML(data string, cm comm.Comm, doDup bool) (*cmesh.Cmesh, *geom.Store, error) {
	var spec meshSpec
	if _, err := toml.Decode(data, &spec); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrImport, err)
	}
	return buildFromSpec(&spec, cm, doDup)
}

func buildFromSpec(spec *meshSpec, cm comm.Comm, doDup bool) (*cmesh.Cmesh, *geom.Store, error) {
	if len(spec.Trees) == 0 {
		return nil, nil, fmt.Errorf("%w: description has no trees", ErrImport)
	}

	c := cmesh.New()
	c.SetComm(cm, doDup)
	if err := c.SetNumTrees(int64(len(spec.Trees))); err != nil {
		c.Unref()
		return nil, nil, err
	}

	store := geom.NewStore()
	for _, ts := range spec.Trees {
		class, ok := classNames[ts.Class]
		if !ok {
			c.Unref()
			return nil, nil, fmt.Errorf("%w: tree %d has unknown class %q",
				ErrImport, ts.ID, ts.Class)
		}
		if ts.ID < 0 || ts.ID >= int64(len(spec.Trees)) {
			c.Unref()
			return nil, nil, fmt.Errorf("%w: tree id %d out of range", ErrImport, ts.ID)
		}
		c.SetTree(ts.ID, class)
		if ts.Vertices != nil {
			if err := store.Set(ts.ID, class, ts.Vertices); err != nil {
				c.Unref()
				return nil, nil, err
			}
		}
	}

	for i, js := range spec.Joins {
		if len(js.Trees) != 2 || len(js.Faces) != 2 {
			c.Unref()
			return nil, nil, fmt.Errorf("%w: join %d needs two trees and two faces",
				ErrImport, i)
		}
		if err := c.JoinFaces(js.Trees[0], js.Trees[1],
			js.Faces[0], js.Faces[1], js.Orientation); err != nil {
			c.Unref()
			return nil, nil, err
		}
	}

	if err := c.Commit(); err != nil {
		c.Unref()
		return nil, nil, err
	}
	log.Debug().Int("trees", len(spec.Trees)).Int("joins", len(spec.Joins)).
		Msg("cmesh built from TOML description")
	return c, store, nil
}
