// Package mmap provides read-only views of file content with
// reference-counted release.
//
// On unix builds the view is a memory mapping of the file; elsewhere it
// falls back to a heap copy with the same lifetime semantics. A Region
// starts with one reference; Retain adds references for additional owners
// and the backing storage is released when the last reference is closed.
package mmap

import (
	"errors"
	"sync/atomic"
)

// ErrReleased is returned when closing a region whose references have
// already all been released.
var ErrReleased = errors.New("mmap: region already released")

// Region is a read-only view of file content.
//
// The backing bytes must not be modified. Each owner must call Close
// exactly once; the view is invalid after the last Close returns.
type Region struct {
	refs  atomic.Int64
	data  []byte
	unmap func([]byte) error // nil for heap-backed regions
}

func newRegion(data []byte, unmap func([]byte) error) *Region {
	r := &Region{data: data, unmap: unmap}
	r.refs.Store(1)
	return r
}

// Bytes returns the mapped content.
func (r *Region) Bytes() []byte {
	return r.data
}

// Len returns the length of the mapped content in bytes.
func (r *Region) Len() int {
	return len(r.data)
}

// Retain adds a reference for an additional owner.
func (r *Region) Retain() {
	r.refs.Add(1)
}

// Close releases one reference. The backing storage is unmapped when the
// last reference is released.
func (r *Region) Close() error {
	n := r.refs.Add(-1)
	if n > 0 {
		return nil
	}
	if n < 0 {
		return ErrReleased
	}
	data := r.data
	r.data = nil
	if r.unmap == nil || data == nil {
		return nil
	}
	return r.unmap(data)
}
