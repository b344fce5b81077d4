package recordReaders

import (
	"io"

	"github.com/knights-analytics/mldata/memory"
	"github.com/knights-analytics/mldata/util/safeconv"
)

// DefaultChunkSize is the size of the buffers pulled from the allocator by
// the chunked stream readers.
const DefaultChunkSize = 1 << 20

// chunkedStream buffers an input stream into allocator-owned chunks and
// hands out zero-copy views over them. When a record straddles a chunk
// boundary the unread tail is consolidated into the next chunk so that
// every record stays contiguous in a single buffer.
type chunkedStream struct {
	stream    io.Reader
	alloc     memory.Allocator
	chunkSize int
	buf       *memory.Buffer
	start     int
	end       int
	pos       uint64
	bytesRead uint64
	eof       bool
}

func newChunkedStream(stream io.Reader, alloc memory.Allocator, chunkSize int) *chunkedStream {
	if alloc == nil {
		alloc = memory.HeapAllocator{}
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &chunkedStream{stream: stream, alloc: alloc, chunkSize: chunkSize}
}

func (cs *chunkedStream) avail() int {
	return cs.end - cs.start
}

// offset is the absolute stream position of the next unread byte.
func (cs *chunkedStream) offset() uint64 {
	return cs.pos
}

func (cs *chunkedStream) numBytesRead() uint64 {
	return cs.bytesRead
}

// fill performs one read into the spare capacity of the current buffer.
func (cs *chunkedStream) fill() error {
	if cs.eof {
		return nil
	}
	n, err := cs.stream.Read(cs.buf.Data()[cs.end:])
	if n > 0 {
		cs.end += n
		cs.bytesRead += safeconv.IntToU64(n)
	}
	if err == io.EOF {
		cs.eof = true
		return nil
	}
	return err
}

// ensure makes at least n contiguous unread bytes available, growing or
// consolidating the buffer as needed. Returns io.ErrUnexpectedEOF if the
// stream ends first; the remaining tail stays readable via avail.
func (cs *chunkedStream) ensure(n int) error {
	for cs.avail() < n {
		if cs.eof {
			return io.ErrUnexpectedEOF
		}
		if cs.buf == nil || cs.end == cs.buf.Len() {
			cs.consolidate(n)
		}
		if err := cs.fill(); err != nil {
			return err
		}
	}
	return nil
}

// consolidate moves the unread tail into a fresh buffer with room for at
// least n unread bytes.
func (cs *chunkedStream) consolidate(n int) {
	size := cs.chunkSize
	if n > size {
		size = n
	}
	next := cs.alloc.Allocate(size)
	tail := cs.avail()
	if tail > 0 {
		copy(next.Data(), cs.buf.Data()[cs.start:cs.end])
	}
	if cs.buf != nil {
		cs.buf.Release()
	}
	cs.buf = next
	cs.start = 0
	cs.end = tail
}

// bytes returns the next n unread bytes without consuming them. Valid only
// after a successful ensure(n); the view is invalidated by the next ensure.
func (cs *chunkedStream) bytes(n int) []byte {
	return cs.buf.Data()[cs.start : cs.start+n]
}

// take consumes n bytes and returns a retained zero-copy view over them.
func (cs *chunkedStream) take(n int) memory.Slice {
	s := cs.buf.AsSlice().SubSlice(cs.start, n).Retain()
	cs.start += n
	cs.pos += safeconv.IntToU64(n)
	return s
}

// skip consumes n bytes without returning them.
func (cs *chunkedStream) skip(n int) {
	cs.start += n
	cs.pos += safeconv.IntToU64(n)
}

// release drops the stream's own reference on the current chunk. Records
// taken from the chunk keep it alive through their own references.
func (cs *chunkedStream) release() {
	if cs.buf != nil {
		cs.buf.Release()
		cs.buf = nil
	}
}
