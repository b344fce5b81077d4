// Package memory provides reference-counted byte buffers and zero-copy
// slice views shared between the chunked stream readers and the decode
// workers of the data reader pipeline.
package memory

import (
	"sync/atomic"
)

// Allocator hands out the buffers that stream chunks are read into. Decoders
// allocate tensor backing storage on the Go heap, not through an Allocator.
// Implementations must be safe for concurrent use.
type Allocator interface {
	Allocate(size int) *Buffer
}

// HeapAllocator is the default allocator backed by the Go heap.
type HeapAllocator struct{}

func (HeapAllocator) Allocate(size int) *Buffer {
	return NewBuffer(make([]byte, size))
}

// Buffer is a reference-counted contiguous block of bytes. A buffer starts
// with a reference count of one; the last Release drops the backing data.
type Buffer struct {
	data []byte
	refs atomic.Int64
}

// NewBuffer wraps data in a buffer with a single reference. The caller must
// not mutate data afterwards.
func NewBuffer(data []byte) *Buffer {
	b := &Buffer{data: data}
	b.refs.Store(1)
	return b
}

// Retain increments the reference count and returns the buffer.
func (b *Buffer) Retain() *Buffer {
	b.refs.Add(1)
	return b
}

// Release decrements the reference count. When the count reaches zero the
// backing data is detached so it can be collected even if the Buffer value
// itself is still referenced somewhere.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	if b.refs.Add(-1) == 0 {
		b.data = nil
	}
}

func (b *Buffer) Len() int {
	return len(b.data)
}

// Data returns the full backing byte slice. Callers must treat it as
// immutable once the buffer has been published to the pipeline.
func (b *Buffer) Data() []byte {
	return b.data
}

// AsSlice returns a view over the whole buffer without changing the
// reference count.
func (b *Buffer) AsSlice() Slice {
	return Slice{buf: b, off: 0, n: len(b.data)}
}

// Slice is an immutable view over a contiguous range of a Buffer. The zero
// value is an empty slice with no backing buffer. Slices are values and can
// be copied freely; reference counting happens on the underlying buffer via
// Retain and Release.
type Slice struct {
	buf *Buffer
	off int
	n   int
}

// Len returns the number of bytes in the view.
func (s Slice) Len() int {
	return s.n
}

// IsEmpty reports whether the view has no bytes.
func (s Slice) IsEmpty() bool {
	return s.n == 0
}

// Bytes returns the viewed bytes. The result must not be mutated and is
// only valid while the underlying buffer is retained.
func (s Slice) Bytes() []byte {
	if s.buf == nil {
		return nil
	}
	return s.buf.data[s.off : s.off+s.n]
}

// SubSlice returns a narrower view over the same buffer. The reference
// count is unchanged; the sub-slice shares the parent's reference.
func (s Slice) SubSlice(off, n int) Slice {
	if off < 0 || n < 0 || off+n > s.n {
		panic("memory: sub-slice out of range")
	}
	return Slice{buf: s.buf, off: s.off + off, n: n}
}

// Retain adds a reference to the underlying buffer and returns the slice.
func (s Slice) Retain() Slice {
	if s.buf != nil {
		s.buf.Retain()
	}
	return s
}

// Release drops a reference to the underlying buffer.
func (s Slice) Release() {
	if s.buf != nil {
		s.buf.Release()
	}
}

// Copy returns a detached copy of the viewed bytes.
func (s Slice) Copy() []byte {
	out := make([]byte, s.n)
	copy(out, s.Bytes())
	return out
}
