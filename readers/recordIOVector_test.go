package readers

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/knights-analytics/mldata/dataStores"
	"github.com/knights-analytics/mldata/reader"
	"github.com/knights-analytics/mldata/recordReaders"
)

func floatsLE(values ...float32) []byte {
	out := make([]byte, 0, len(values)*4)
	for _, v := range values {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

func vectorStore(id string, vectors ...[]float32) dataStores.DataStore {
	var wire []byte
	for _, v := range vectors {
		wire = recordReaders.AppendFrame(wire, recordReaders.KindData, floatsLE(v...))
	}
	return dataStores.NewInMemory(id, wire)
}

func TestRecordIOVectorReader(t *testing.T) {
	store := vectorStore("vectors",
		[]float32{1, 2, 3},
		[]float32{4, 5, 6},
		[]float32{7, 8, 9},
		[]float32{10, 11, 12},
	)
	r, err := NewRecordIOVectorReader(
		[]dataStores.DataStore{store},
		RecordIOVectorParams{},
		reader.ReaderParams{BatchSize: 2},
	)
	require.NoError(t, err)

	examples := drainReader(t, r)
	require.Len(t, examples, 2)

	s := r.Schema()
	require.NotNil(t, s)
	require.Len(t, s.Attributes, 1)
	assert.Equal(t, "features", s.Attributes[0].Name)
	assert.Equal(t, tensor.Shape{2, 3}, s.Attributes[0].Shape)

	first := examples[0].Tensor("features")
	assert.Equal(t, tensor.Shape{2, 3}, first.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, first.Data().([]float32))
	assert.Equal(t, []float32{7, 8, 9, 10, 11, 12}, examples[1].Tensor("features").Data().([]float32))
}

func TestRecordIOVectorReaderWidthMismatch(t *testing.T) {
	store := vectorStore("ragged",
		[]float32{1, 2, 3},
		[]float32{4, 5},
	)
	r, err := NewRecordIOVectorReader(
		[]dataStores.DataStore{store},
		RecordIOVectorParams{AttributeName: "embedding"},
		reader.ReaderParams{BatchSize: 2},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	_, readErr := r.ReadExample()
	var fault *reader.BadBatchFault
	require.ErrorAs(t, readErr, &fault)
}

func TestRecordIOVectorReaderPad(t *testing.T) {
	store := vectorStore("pad",
		[]float32{1, 2},
		[]float32{3, 4},
		[]float32{5, 6},
	)
	r, err := NewRecordIOVectorReader(
		[]dataStores.DataStore{store},
		RecordIOVectorParams{},
		reader.ReaderParams{BatchSize: 2, LastBatchHandling: reader.LastBatchPad},
	)
	require.NoError(t, err)

	examples := drainReader(t, r)
	require.Len(t, examples, 2)
	last := examples[1]
	assert.Equal(t, 1, last.Padding)
	assert.Equal(t, []float32{5, 6, 0, 0}, last.Tensor("features").Data().([]float32))
}
