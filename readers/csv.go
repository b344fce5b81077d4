// Package readers provides the concrete dataset readers built on the
// parallel batching pipeline: CSV tables, RecordIO-framed float vectors and
// compressed images. Each reader contributes a decoder capability set and a
// constructor wiring it into a ParallelReader.
package readers

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"gorgonia.org/tensor"

	"github.com/knights-analytics/mldata/dataStores"
	"github.com/knights-analytics/mldata/memory"
	"github.com/knights-analytics/mldata/options"
	"github.com/knights-analytics/mldata/reader"
	"github.com/knights-analytics/mldata/recordReaders"
	"github.com/knights-analytics/mldata/schema"
)

// CSVParams configures the CSV reader.
type CSVParams struct {
	// Delimiter separates fields. 0 selects ','.
	Delimiter byte

	// HasHeader marks the first line of every store as a header row. The
	// header of the first store names the columns.
	HasHeader bool

	// ColumnNames overrides the column names from the header. Required
	// when HasHeader is false and generated names are not wanted.
	ColumnNames []string
}

type columnKind uint8

const (
	columnFloat columnKind = iota
	columnString
)

// csvDecoder decodes newline-framed delimiter-separated rows into one
// tensor per column: float32 for numeric columns, string otherwise. Column
// kinds are fixed when the schema is inferred from the first data row.
type csvDecoder struct {
	delim     byte
	hasHeader bool
	batchSize int
	names     []string
	kinds     []columnKind
}

// NewCSVReader creates a parallel reader over delimiter-separated text
// stores. When the stores carry a header row, the first store is opened
// once, eagerly, to name the columns.
func NewCSVReader(stores []dataStores.DataStore, csvParams CSVParams, params reader.ReaderParams, opts ...options.WithOption) (*reader.ParallelReader, error) {
	d := &csvDecoder{
		delim:     csvParams.Delimiter,
		hasHeader: csvParams.HasHeader,
		batchSize: params.BatchSize,
		names:     csvParams.ColumnNames,
	}
	if d.delim == 0 {
		d.delim = ','
	}
	if d.names == nil && csvParams.HasHeader && len(stores) > 0 {
		names, err := readHeader(stores[0], d.delim)
		if err != nil {
			return nil, fmt.Errorf("reading header of store %s: %w", stores[0].ID(), err)
		}
		d.names = names
	}
	return reader.NewParallelReader(stores, d, params, opts...)
}

// readHeader pulls the first line of the store to name the columns.
func readHeader(store dataStores.DataStore, delim byte) ([]string, error) {
	stream, err := store.OpenRead()
	if err != nil {
		return nil, err
	}
	defer func() { _ = stream.Close() }()

	lines := recordReaders.NewTextLine(stream, nil, 0, 0)
	rec, err := lines.Next()
	if err == io.EOF {
		return nil, errors.New("store is empty")
	}
	if err != nil {
		return nil, err
	}
	defer rec.Release()
	return splitFields(rec.Payload.Bytes(), delim), nil
}

func (d *csvDecoder) MakeRecordReader(_ dataStores.DataStore, stream io.Reader, alloc memory.Allocator, chunkSize int) recordReaders.RecordReader {
	skip := 0
	if d.hasHeader {
		skip = 1
	}
	return recordReaders.NewTextLine(stream, alloc, chunkSize, skip)
}

func (d *csvDecoder) InferSchema(inst reader.Instance) (*schema.Schema, error) {
	fields := splitFields(inst.Bits.Bytes(), d.delim)
	if d.names == nil {
		d.names = make([]string, len(fields))
		for i := range d.names {
			d.names[i] = fmt.Sprintf("column_%d", i)
		}
	}
	if len(d.names) != len(fields) {
		return nil, fmt.Errorf("first row has %d fields but %d columns are named", len(fields), len(d.names))
	}
	d.kinds = make([]columnKind, len(fields))
	attrs := make([]schema.Attribute, len(fields))
	for i, field := range fields {
		dtype := tensor.Float32
		if _, err := strconv.ParseFloat(field, 32); err != nil {
			d.kinds[i] = columnString
			dtype = tensor.String
		}
		attrs[i] = schema.Attribute{
			Name:  d.names[i],
			Dtype: dtype,
			Shape: tensor.Shape{d.batchSize},
		}
	}
	return schema.New(attrs...), nil
}

func (d *csvDecoder) Decode(batch reader.InstanceBatch) (*reader.Example, error) {
	defer batch.Release()
	rows := batch.PadTo
	if rows == 0 {
		rows = len(batch.Instances)
	}
	backings := make([]any, len(d.kinds))
	for c, kind := range d.kinds {
		if kind == columnFloat {
			backings[c] = make([]float32, rows)
		} else {
			backings[c] = make([]string, rows)
		}
	}
	for row, inst := range batch.Instances {
		fields := splitFields(inst.Bits.Bytes(), d.delim)
		if len(fields) != len(d.kinds) {
			return nil, fmt.Errorf("row %d has %d fields, want %d", inst.Ordinal, len(fields), len(d.kinds))
		}
		for c, field := range fields {
			switch backing := backings[c].(type) {
			case []float32:
				v, err := strconv.ParseFloat(field, 32)
				if err != nil {
					return nil, fmt.Errorf("row %d column %s: %w", inst.Ordinal, d.names[c], err)
				}
				backing[row] = float32(v)
			case []string:
				backing[row] = field
			}
		}
	}
	tensors := make([]reader.NamedTensor, len(d.kinds))
	for c := range d.kinds {
		tensors[c] = reader.NamedTensor{
			Name:  d.names[c],
			Dense: tensor.New(tensor.WithShape(rows), tensor.WithBacking(backings[c])),
		}
	}
	return &reader.Example{Tensors: tensors, Padding: rows - len(batch.Instances)}, nil
}

// splitFields breaks one line into fields. Fields may be double-quoted to
// carry the delimiter; a doubled quote inside a quoted field escapes it.
func splitFields(line []byte, delim byte) []string {
	var fields []string
	var field []byte
	inQuotes := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuotes:
			if c != '"' {
				field = append(field, c)
			} else if i+1 < len(line) && line[i+1] == '"' {
				field = append(field, '"')
				i++
			} else {
				inQuotes = false
			}
		case c == '"' && len(field) == 0:
			inQuotes = true
		case c == delim:
			fields = append(fields, string(field))
			field = field[:0]
		default:
			field = append(field, c)
		}
	}
	return append(fields, string(field))
}
