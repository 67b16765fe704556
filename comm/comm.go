// Package comm models the process-group communicator the coarse mesh
// borrows from its caller. The core never sends messages; it only reads
// rank and size at commit time and optionally duplicates the handle so
// the library holds an independent reference for the cmesh lifetime.
package comm

import (
	"errors"
	"fmt"
)

// ErrFreed is returned when a communicator is used after Free.
var ErrFreed = errors.New("comm: communicator has been freed")

// Comm is an opaque process-group handle. Identity is what the caller
// passed unless a duplicate was requested at commit.
type Comm interface {
	// Rank returns the index of the calling process within the group.
	Rank() int
	// Size returns the number of processes in the group.
	Size() int
	// Dup returns an independently owned handle to the same group.
	Dup() (Comm, error)
	// Free releases a handle obtained from Dup. Freeing a borrowed
	// handle is the caller's business, not the library's.
	Free() error
}

// Self is the single-process world communicator, the default for a
// freshly initialized cmesh.
type Self struct {
	freed bool
}

// World returns the default communicator: one process, rank zero.
func World() *Self {
	return &Self{}
}

func (s *Self) Rank() int { return 0 }
func (s *Self) Size() int { return 1 }

func (s *Self) Dup() (Comm, error) {
	if s.freed {
		return nil, ErrFreed
	}
	return &Self{}, nil
}

func (s *Self) Free() error {
	if s.freed {
		return ErrFreed
	}
	s.freed = true
	return nil
}

func (s *Self) String() string { return "comm.Self" }

// Group is a synthetic fixed-size communicator. It stands in for an MPI
// process group when simulating a multi-rank layout inside one process,
// which is how the partition and ghost algorithms are exercised in tests.
type Group struct {
	rank  int
	size  int
	freed bool
}

// NewGroup returns a communicator reporting the given rank and size.
func NewGroup(rank, size int) (*Group, error) {
	if size <= 0 || rank < 0 || rank >= size {
		return nil, fmt.Errorf("comm: invalid rank %d for size %d", rank, size)
	}
	return &Group{rank: rank, size: size}, nil
}

func (g *Group) Rank() int { return g.rank }
func (g *Group) Size() int { return g.size }

func (g *Group) Dup() (Comm, error) {
	if g.freed {
		return nil, ErrFreed
	}
	return &Group{rank: g.rank, size: g.size}, nil
}

func (g *Group) Free() error {
	if g.freed {
		return ErrFreed
	}
	g.freed = true
	return nil
}

func (g *Group) String() string {
	return fmt.Sprintf("comm.Group(%d/%d)", g.rank, g.size)
}
