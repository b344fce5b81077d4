package main

import (
	"bytes"
	"context"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knights-analytics/mldata/dataStores"
	"github.com/knights-analytics/mldata/reader"
)

func TestBuildReaderParams(t *testing.T) {
	batchSize = 4
	lastBatchName = "pad"
	badBatchName = "warn"
	shuffleSeed = 99
	skipInstances = 2
	t.Cleanup(func() {
		lastBatchName = "none"
		badBatchName = "error"
		shuffleSeed = -1
		skipInstances = 0
	})

	params, err := buildReaderParams()
	require.NoError(t, err)
	assert.Equal(t, 4, params.BatchSize)
	assert.Equal(t, reader.LastBatchPad, params.LastBatchHandling)
	assert.Equal(t, reader.BadBatchWarn, params.BadBatchHandling)
	assert.Equal(t, uint64(2), params.NumInstancesToSkip)
	require.NotNil(t, params.ShuffleSeed)
	assert.Equal(t, uint64(99), *params.ShuffleSeed)
}

func TestBuildReaderParamsRejectsUnknownHandling(t *testing.T) {
	lastBatchName = "truncate"
	badBatchName = "error"
	t.Cleanup(func() { lastBatchName = "none" })

	_, err := buildReaderParams()
	assert.ErrorContains(t, err, "last batch")
}

func TestWriteExamplesJSONL(t *testing.T) {
	format = "csv"
	csvHeader = true
	csvDelimiter = ","
	t.Cleanup(func() { csvHeader = false })

	stores := []dataStores.DataStore{
		dataStores.NewInMemory("t.csv", []byte("v\n1\n2\n")),
	}
	r, err := newFormatReader(stores, reader.ReaderParams{BatchSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	var out bytes.Buffer
	require.NoError(t, writeExamples(context.Background(), r, &out))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var decoded outputBatch
	require.NoError(t, jsoniter.Unmarshal(lines[0], &decoded))
	assert.Equal(t, uint64(0), decoded.Batch)
	tensor, ok := decoded.Tensors["v"]
	require.True(t, ok)
	assert.Equal(t, []int{2}, tensor.Shape)
}

func TestNewFormatReaderUnknownFormat(t *testing.T) {
	format = "parquet"
	t.Cleanup(func() { format = "" })
	_, err := newFormatReader(nil, reader.ReaderParams{BatchSize: 1})
	assert.ErrorContains(t, err, "unknown format")
}
