// Package recordReaders segments the byte stream of a data store into
// framed records. Three strategies are provided: Blob yields the whole store
// as a single record, RecordIO parses the aligned frame format, and
// TextLine frames on newlines for text formats.
package recordReaders

import (
	"fmt"

	"github.com/knights-analytics/mldata/memory"
)

// RecordKind tags a record with its role in the stream. Only data records
// are promoted into instances; the other kinds are counted and discarded.
type RecordKind uint8

const (
	KindData RecordKind = iota
	KindHeader
	KindFooter
	KindPadding

	numRecordKinds = iota
)

func (k RecordKind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindHeader:
		return "header"
	case KindFooter:
		return "footer"
	case KindPadding:
		return "padding"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Record is one framed unit of a store's stream. The payload is a zero-copy
// view into the reader's chunk buffer and stays valid as long as the record
// holds its reference; callers release it once decoded.
type Record struct {
	Payload memory.Slice
	Kind    RecordKind
}

// Release drops the record's reference on its chunk buffer.
func (r Record) Release() {
	r.Payload.Release()
}

// RecordReader yields successive records from a single store stream. Next
// returns io.EOF after the last record. Readers are not safe for concurrent
// use; the ingest task owns them exclusively.
type RecordReader interface {
	Next() (Record, error)
	// NumBytesRead returns the bytes consumed from the underlying stream
	// so far, including framing overhead.
	NumBytesRead() uint64
}

// FramingError reports a malformed frame at a byte offset within the
// store's stream.
type FramingError struct {
	Offset uint64
	Msg    string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("invalid record at byte %d: %s", e.Offset, e.Msg)
}
