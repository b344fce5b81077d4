package dataStores

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"
)

var inMemoryCounter atomic.Uint64

// InMemory is a data store over a byte slice already resident in memory.
// Reopening it is free, which makes it the store of choice for tests and
// for datasets staged by an upstream system.
type InMemory struct {
	id          string
	data        []byte
	compression Compression
}

// NewInMemory creates an in-memory store. If id is empty a unique one is
// generated.
func NewInMemory(id string, data []byte) *InMemory {
	if id == "" {
		id = fmt.Sprintf("mem-%d", inMemoryCounter.Add(1))
	}
	return &InMemory{id: id, data: data}
}

// NewInMemoryCompressed creates an in-memory store whose payload is
// decompressed on read.
func NewInMemoryCompressed(id string, data []byte, compression Compression) *InMemory {
	s := NewInMemory(id, data)
	s.compression = compression
	return s
}

func (s *InMemory) ID() string {
	return s.id
}

func (s *InMemory) OpenRead() (InputStream, error) {
	rc := io.NopCloser(bytes.NewReader(s.data))
	rc, err := wrapCompression(rc, s.compression)
	if err != nil {
		return nil, fmt.Errorf("failed to open data store %q: %w", s.id, err)
	}
	return newAbortableStream(rc), nil
}

func (s *InMemory) Len() int {
	return len(s.data)
}

func (s *InMemory) String() string {
	return fmt.Sprintf("in-memory store %q (%d bytes)", s.id, len(s.data))
}
