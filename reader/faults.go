package reader

import (
	"errors"
	"fmt"

	"github.com/knights-analytics/mldata/schema"
)

// ErrReset is delivered to a ReadExample or PeekExample call that was pending
// while Reset or Close ran on another goroutine.
var ErrReset = errors.New("reader was reset")

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("reader is closed")

// StreamFault is a fatal read or framing failure on a store's stream. The
// reader is poisoned and keeps returning the fault until Reset.
type StreamFault struct {
	StoreID string
	Err     error
}

func (f *StreamFault) Error() string {
	return fmt.Sprintf("store %s: %v", f.StoreID, f.Err)
}

func (f *StreamFault) Unwrap() error {
	return f.Err
}

// BadBatchFault reports a batch the decoder rejected. Under the error policy
// it poisons the reader; under skip and warn the batch is dropped and the
// fault is not surfaced (warn logs the decode error with the batch index).
type BadBatchFault struct {
	BatchIndex uint64
	Err        error
}

func (f *BadBatchFault) Error() string {
	return fmt.Sprintf("batch %d could not be decoded: %v", f.BatchIndex, f.Err)
}

func (f *BadBatchFault) Unwrap() error {
	return f.Err
}

// SchemaFault reports a decoded example whose attributes disagree with the
// reader's schema. Always fatal.
type SchemaFault struct {
	BatchIndex uint64
	Want       *schema.Schema
	Got        []schema.Attribute
}

func (f *SchemaFault) Error() string {
	return fmt.Sprintf("batch %d does not conform to the schema: got %v, want %v",
		f.BatchIndex, schema.New(f.Got...), f.Want)
}
