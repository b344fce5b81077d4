package readers

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"gorgonia.org/tensor"

	"github.com/knights-analytics/mldata/dataStores"
	"github.com/knights-analytics/mldata/memory"
	"github.com/knights-analytics/mldata/options"
	"github.com/knights-analytics/mldata/reader"
	"github.com/knights-analytics/mldata/recordReaders"
	"github.com/knights-analytics/mldata/schema"
)

// RecordIOVectorParams configures the framed vector reader.
type RecordIOVectorParams struct {
	// AttributeName names the single tensor attribute. "" selects
	// "features".
	AttributeName string
}

// recordIOVectorDecoder decodes framed records whose payload is a flat
// little-endian float32 vector. The vector width is fixed by the first
// record; every subsequent record must match it.
type recordIOVectorDecoder struct {
	name      string
	batchSize int
	width     int
}

// NewRecordIOVectorReader creates a parallel reader over RecordIO-framed
// stores of fixed-width float32 vectors. Examples carry one (batch, width)
// tensor.
func NewRecordIOVectorReader(stores []dataStores.DataStore, vectorParams RecordIOVectorParams, params reader.ReaderParams, opts ...options.WithOption) (*reader.ParallelReader, error) {
	name := vectorParams.AttributeName
	if name == "" {
		name = "features"
	}
	d := &recordIOVectorDecoder{name: name, batchSize: params.BatchSize}
	return reader.NewParallelReader(stores, d, params, opts...)
}

func (d *recordIOVectorDecoder) MakeRecordReader(_ dataStores.DataStore, stream io.Reader, alloc memory.Allocator, chunkSize int) recordReaders.RecordReader {
	return recordReaders.NewRecordIO(stream, alloc, chunkSize)
}

func (d *recordIOVectorDecoder) InferSchema(inst reader.Instance) (*schema.Schema, error) {
	size := inst.Bits.Len()
	if size == 0 || size%4 != 0 {
		return nil, fmt.Errorf("payload of %d bytes is not a float32 vector", size)
	}
	d.width = size / 4
	return schema.New(schema.Attribute{
		Name:  d.name,
		Dtype: tensor.Float32,
		Shape: tensor.Shape{d.batchSize, d.width},
	}), nil
}

func (d *recordIOVectorDecoder) Decode(batch reader.InstanceBatch) (*reader.Example, error) {
	defer batch.Release()
	rows := batch.PadTo
	if rows == 0 {
		rows = len(batch.Instances)
	}
	data := make([]float32, rows*d.width)
	for row, inst := range batch.Instances {
		payload := inst.Bits.Bytes()
		if len(payload) != d.width*4 {
			return nil, fmt.Errorf("record %d has %d bytes, want %d", inst.Ordinal, len(payload), d.width*4)
		}
		base := row * d.width
		for i := 0; i < d.width; i++ {
			bits := binary.LittleEndian.Uint32(payload[i*4:])
			data[base+i] = math.Float32frombits(bits)
		}
	}
	return &reader.Example{
		Tensors: []reader.NamedTensor{{
			Name:  d.name,
			Dense: tensor.New(tensor.WithShape(rows, d.width), tensor.WithBacking(data)),
		}},
		Padding: rows - len(batch.Instances),
	}, nil
}
