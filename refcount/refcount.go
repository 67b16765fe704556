// Package refcount provides the shared-ownership counter used by the
// coarse mesh and ghost aggregates. Ownership is cycle free (cmesh owns
// trees, ghost owns bundles, no back edges), so reaching zero always
// permits teardown.
package refcount

import "fmt"

// RefCount coordinates shared ownership of an aggregate. The zero value
// is dead; use Init or New before first use. Counters are confined to a
// single goroutine per the process-parallel execution model, so the count
// is a plain integer.
type RefCount struct {
	count int
}

// New returns a counter holding one reference.
func New() *RefCount {
	rc := &RefCount{}
	rc.Init()
	return rc
}

// Init activates the counter with one reference.
func (rc *RefCount) Init() {
	if rc == nil {
		panic("refcount: Init on nil counter")
	}
	rc.count = 1
}

// Ref adds a reference. The counter must be live.
func (rc *RefCount) Ref() {
	if rc == nil || rc.count <= 0 {
		panic("refcount: Ref on dead counter")
	}
	rc.count++
}

// Unref drops a reference and reports whether the count reached zero, in
// which case the caller must tear the aggregate down.
func (rc *RefCount) Unref() bool {
	if rc == nil || rc.count <= 0 {
		panic("refcount: Unref on dead counter")
	}
	rc.count--
	return rc.count == 0
}

// IsActive reports whether the counter holds at least one reference.
func (rc *RefCount) IsActive() bool {
	return rc != nil && rc.count > 0
}

// IsLast reports whether exactly one reference remains.
func (rc *RefCount) IsLast() bool {
	return rc != nil && rc.count == 1
}

func (rc *RefCount) String() string {
	return fmt.Sprintf("refcount(%d)", rc.count)
}
