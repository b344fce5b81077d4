package readers

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/knights-analytics/mldata/dataStores"
	"github.com/knights-analytics/mldata/reader"
)

func drainReader(t *testing.T, r *reader.ParallelReader) []*reader.Example {
	t.Helper()
	t.Cleanup(func() { _ = r.Close() })
	var out []*reader.Example
	for {
		ex, err := r.ReadExample()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, ex)
	}
}

func TestCSVReaderWithHeader(t *testing.T) {
	store := dataStores.NewInMemory("table.csv", []byte(
		"age,name,score\n"+
			"31,ada,0.5\n"+
			"45,grace,0.25\n"+
			"28,edsger,1\n"+
			"52,barbara,0.75\n"))
	r, err := NewCSVReader(
		[]dataStores.DataStore{store},
		CSVParams{HasHeader: true},
		reader.ReaderParams{BatchSize: 2},
	)
	require.NoError(t, err)

	examples := drainReader(t, r)
	require.Len(t, examples, 2)

	s := r.Schema()
	require.NotNil(t, s)
	require.Len(t, s.Attributes, 3)
	assert.Equal(t, "age", s.Attributes[0].Name)
	assert.Equal(t, tensor.Float32, s.Attributes[0].Dtype)
	assert.Equal(t, "name", s.Attributes[1].Name)
	assert.Equal(t, tensor.String, s.Attributes[1].Dtype)
	assert.Equal(t, "score", s.Attributes[2].Name)

	first := examples[0]
	assert.Equal(t, []float32{31, 45}, first.Tensor("age").Data().([]float32))
	assert.Equal(t, []string{"ada", "grace"}, first.Tensor("name").Data().([]string))
	assert.Equal(t, []float32{0.5, 0.25}, first.Tensor("score").Data().([]float32))

	second := examples[1]
	assert.Equal(t, []string{"edsger", "barbara"}, second.Tensor("name").Data().([]string))
}

func TestCSVReaderGeneratedColumnNames(t *testing.T) {
	store := dataStores.NewInMemory("raw.csv", []byte("1,2\n3,4\n"))
	r, err := NewCSVReader(
		[]dataStores.DataStore{store},
		CSVParams{},
		reader.ReaderParams{BatchSize: 2},
	)
	require.NoError(t, err)

	examples := drainReader(t, r)
	require.Len(t, examples, 1)
	assert.Equal(t, []float32{1, 3}, examples[0].Tensor("column_0").Data().([]float32))
	assert.Equal(t, []float32{2, 4}, examples[0].Tensor("column_1").Data().([]float32))
}

func TestCSVReaderHeaderPerStore(t *testing.T) {
	stores := []dataStores.DataStore{
		dataStores.NewInMemory("a.csv", []byte("x\n1\n2\n")),
		dataStores.NewInMemory("b.csv", []byte("x\n3\n4\n")),
	}
	r, err := NewCSVReader(stores, CSVParams{HasHeader: true}, reader.ReaderParams{BatchSize: 4})
	require.NoError(t, err)

	examples := drainReader(t, r)
	require.Len(t, examples, 1)
	assert.Equal(t, []float32{1, 2, 3, 4}, examples[0].Tensor("x").Data().([]float32))
}

func TestCSVReaderPadsFinalBatch(t *testing.T) {
	store := dataStores.NewInMemory("pad.csv", []byte("v,tag\n1,a\n2,b\n3,c\n"))
	r, err := NewCSVReader(
		[]dataStores.DataStore{store},
		CSVParams{HasHeader: true},
		reader.ReaderParams{BatchSize: 2, LastBatchHandling: reader.LastBatchPad},
	)
	require.NoError(t, err)

	examples := drainReader(t, r)
	require.Len(t, examples, 2)
	last := examples[1]
	assert.Equal(t, 1, last.Padding)
	assert.Equal(t, []float32{3, 0}, last.Tensor("v").Data().([]float32))
	assert.Equal(t, []string{"c", ""}, last.Tensor("tag").Data().([]string))
}

func TestCSVReaderRaggedRowIsBadBatch(t *testing.T) {
	store := dataStores.NewInMemory("ragged.csv", []byte("1,2\n3\n"))
	r, err := NewCSVReader(
		[]dataStores.DataStore{store},
		CSVParams{},
		reader.ReaderParams{BatchSize: 2},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	_, readErr := r.ReadExample()
	var fault *reader.BadBatchFault
	require.ErrorAs(t, readErr, &fault)
	assert.Equal(t, uint64(0), fault.BatchIndex)
}

func TestSplitFields(t *testing.T) {
	cases := []struct {
		line string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{"", []string{""}},
		{",", []string{"", ""}},
		{`"a,b",c`, []string{"a,b", "c"}},
		{`"say ""hi""",x`, []string{`say "hi"`, "x"}},
		{`plain,"quoted"`, []string{"plain", "quoted"}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, splitFields([]byte(c.line), ','), "line %q", c.line)
	}
}
