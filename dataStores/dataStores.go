// Package dataStores defines the byte-source boundary of the data reader:
// opaque, append-only stores identified by a stable id that can be reopened
// for every epoch. Stores are backed by the afs virtual file system, plain
// memory, or named pipes.
package dataStores

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

// ErrAborted is returned from reads on a stream whose Abort hook has fired.
var ErrAborted = errors.New("read aborted: input stream was cancelled")

// InputStream is a sequential byte stream over a data store. Abort forces
// pending and future reads to fail promptly; it is the cancellation hook
// used by the reader's reset path and may be called from any goroutine.
type InputStream interface {
	io.ReadCloser
	Abort()
}

// DataStore is an opaque byte-stream source. OpenRead returns a fresh
// stream positioned at the start of the store; the reader reopens stores on
// every reset rather than seeking.
type DataStore interface {
	// ID returns a stable identifier used in diagnostics and faults.
	ID() string
	OpenRead() (InputStream, error)
	fmt.Stringer
}

// Compression selects the decompression applied on top of a store's raw
// bytes.
type Compression int

const (
	// CompressionNone reads the raw bytes.
	CompressionNone Compression = iota
	// CompressionGzip always wraps the stream in a gzip reader.
	CompressionGzip
	// CompressionAuto sniffs the gzip magic number and decompresses only
	// when it is present.
	CompressionAuto
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionAuto:
		return "auto"
	}
	return fmt.Sprintf("compression(%d)", int(c))
}

// abortableStream adapts a plain ReadCloser into an InputStream. Abort
// closes the underlying reader, which unblocks reads stuck on slow sources.
type abortableStream struct {
	rc      io.ReadCloser
	aborted atomic.Bool
}

func newAbortableStream(rc io.ReadCloser) *abortableStream {
	return &abortableStream{rc: rc}
}

func (s *abortableStream) Read(p []byte) (int, error) {
	if s.aborted.Load() {
		return 0, ErrAborted
	}
	n, err := s.rc.Read(p)
	if err != nil && s.aborted.Load() {
		return n, ErrAborted
	}
	return n, err
}

func (s *abortableStream) Close() error {
	if s.aborted.Swap(true) {
		return nil
	}
	return s.rc.Close()
}

func (s *abortableStream) Abort() {
	if s.aborted.Swap(true) {
		return
	}
	_ = s.rc.Close()
}

// wrapCompression applies the requested decompression to rc. With
// CompressionAuto the first two bytes are sniffed for the gzip magic.
func wrapCompression(rc io.ReadCloser, compression Compression) (io.ReadCloser, error) {
	switch compression {
	case CompressionNone:
		return rc, nil
	case CompressionGzip:
		zr, err := gzip.NewReader(rc)
		if err != nil {
			return nil, errors.Join(err, rc.Close())
		}
		return &decompressedStream{r: zr, close: []io.Closer{zr, rc}}, nil
	case CompressionAuto:
		br := bufio.NewReader(rc)
		magic, err := br.Peek(2)
		if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
			zr, zerr := gzip.NewReader(br)
			if zerr != nil {
				return nil, errors.Join(zerr, rc.Close())
			}
			return &decompressedStream{r: zr, close: []io.Closer{zr, rc}}, nil
		}
		return &decompressedStream{r: br, close: []io.Closer{rc}}, nil
	}
	return nil, fmt.Errorf("invalid compression mode %v", compression)
}

type decompressedStream struct {
	r     io.Reader
	close []io.Closer
}

func (d *decompressedStream) Read(p []byte) (int, error) {
	return d.r.Read(p)
}

func (d *decompressedStream) Close() error {
	var err error
	for _, c := range d.close {
		err = errors.Join(err, c.Close())
	}
	return err
}
