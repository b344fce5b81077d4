package reader

import (
	"io"

	"gorgonia.org/tensor"

	"github.com/knights-analytics/mldata/dataStores"
	"github.com/knights-analytics/mldata/memory"
	"github.com/knights-analytics/mldata/recordReaders"
	"github.com/knights-analytics/mldata/schema"
)

// Instance is one data record promoted into the batching stream. Bits is a
// zero-copy view into a stream chunk and stays valid until the instance is
// released; decoders release it once the example is built.
type Instance struct {
	StoreID string
	Ordinal uint64
	Bits    memory.Slice
}

// Release drops the instance's reference on its chunk buffer.
func (i Instance) Release() {
	i.Bits.Release()
}

// InstanceBatch is the unit of work handed to a decode worker. When PadTo
// exceeds the instance count the decoder extends the example with
// PadTo-len(Instances) synthetic zero rows.
type InstanceBatch struct {
	Index     uint64
	Instances []Instance
	PadTo     int
}

func (b InstanceBatch) Size() int {
	return len(b.Instances)
}

// Release drops every instance of the batch.
func (b InstanceBatch) Release() {
	for _, inst := range b.Instances {
		inst.Release()
	}
}

// NamedTensor is one attribute of a decoded example.
type NamedTensor struct {
	Name  string
	Dense *tensor.Dense
}

// Example is a decoded batch: one dense tensor per schema attribute, all
// sharing the batch dimension. Padding counts the trailing synthetic zero
// rows added under the pad last-batch policy.
type Example struct {
	BatchIndex uint64
	Tensors    []NamedTensor
	Padding    int
}

// Attributes describes the example's tensors in schema terms.
func (e *Example) Attributes() []schema.Attribute {
	attrs := make([]schema.Attribute, len(e.Tensors))
	for i, nt := range e.Tensors {
		attrs[i] = schema.Attribute{
			Name:  nt.Name,
			Dtype: nt.Dense.Dtype(),
			Shape: nt.Dense.Shape(),
		}
	}
	return attrs
}

// Tensor returns the named tensor, or nil when the example has no attribute
// with that name.
func (e *Example) Tensor(name string) *tensor.Dense {
	for _, nt := range e.Tensors {
		if nt.Name == name {
			return nt.Dense
		}
	}
	return nil
}

// Decoder is the format-specific capability set plugged into the pipeline.
// Implementations must be safe for concurrent Decode calls.
type Decoder interface {
	// MakeRecordReader chooses the segmentation strategy for one store's
	// stream: whole-store, framed or line-based.
	MakeRecordReader(store dataStores.DataStore, stream io.Reader, alloc memory.Allocator, chunkSize int) recordReaders.RecordReader

	// InferSchema derives the reader schema from the first instance the
	// pipeline observes. It is called at most once per reader.
	InferSchema(instance Instance) (*schema.Schema, error)

	// Decode turns a batch of raw instances into an example, releasing the
	// instances it consumed. A non-nil error marks the batch bad; the
	// reader applies its bad-batch policy.
	Decode(batch InstanceBatch) (*Example, error)
}
