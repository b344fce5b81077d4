package recordReaders

import (
	"io"

	"github.com/knights-analytics/mldata/memory"
	"github.com/knights-analytics/mldata/util/safeconv"
)

// Blob reads a whole store as a single data record. It is the strategy for
// self-framed formats such as one image per store.
type Blob struct {
	stream    io.Reader
	alloc     memory.Allocator
	chunkSize int
	bytesRead uint64
	done      bool
}

// NewBlob creates a whole-store record reader.
func NewBlob(stream io.Reader, alloc memory.Allocator, chunkSize int) *Blob {
	if alloc == nil {
		alloc = memory.HeapAllocator{}
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Blob{stream: stream, alloc: alloc, chunkSize: chunkSize}
}

func (b *Blob) Next() (Record, error) {
	if b.done {
		return Record{}, io.EOF
	}
	b.done = true

	buf := b.alloc.Allocate(b.chunkSize)
	size := 0
	for {
		if size == buf.Len() {
			grown := b.alloc.Allocate(buf.Len() * 2)
			copy(grown.Data(), buf.Data()[:size])
			buf.Release()
			buf = grown
		}
		n, err := b.stream.Read(buf.Data()[size:])
		size += n
		b.bytesRead += safeconv.IntToU64(n)
		if err == io.EOF {
			break
		}
		if err != nil {
			buf.Release()
			return Record{}, err
		}
	}
	if size == 0 {
		buf.Release()
		return Record{}, io.EOF
	}
	payload := buf.AsSlice().SubSlice(0, size)
	return Record{Payload: payload, Kind: KindData}, nil
}

func (b *Blob) NumBytesRead() uint64 {
	return b.bytesRead
}
