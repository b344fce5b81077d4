package readers

import (
	"bytes"
	"fmt"
	"image"
	"io"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"gorgonia.org/tensor"

	"github.com/knights-analytics/mldata/dataStores"
	"github.com/knights-analytics/mldata/memory"
	"github.com/knights-analytics/mldata/options"
	"github.com/knights-analytics/mldata/reader"
	"github.com/knights-analytics/mldata/recordReaders"
	"github.com/knights-analytics/mldata/schema"
	"github.com/knights-analytics/mldata/util/imageutil"
)

// ImageFraming selects how image payloads are delimited in a store.
type ImageFraming uint8

const (
	// ImageFramingBlob reads each store as a single image.
	ImageFramingBlob ImageFraming = iota
	// ImageFramingRecordIO reads RecordIO frames carrying one compressed
	// image each.
	ImageFramingRecordIO
)

// ImageParams configures the image reader.
type ImageParams struct {
	// Width and Height fix the output dimensions. Images are scaled to
	// cover them and center-cropped.
	Width  int
	Height int

	Framing ImageFraming

	// AttributeName names the pixel tensor attribute. "" selects "pixels".
	AttributeName string
}

// imageDecoder decompresses PNG, JPEG or GIF payloads and emits a
// (batch, height, width, 3) uint8 tensor in row-major RGB order.
type imageDecoder struct {
	params    ImageParams
	batchSize int
}

// NewImageReader creates a parallel reader over image stores.
func NewImageReader(stores []dataStores.DataStore, imageParams ImageParams, params reader.ReaderParams, opts ...options.WithOption) (*reader.ParallelReader, error) {
	if imageParams.Width <= 0 || imageParams.Height <= 0 {
		return nil, fmt.Errorf("image dimensions must be positive, got %dx%d", imageParams.Width, imageParams.Height)
	}
	if imageParams.AttributeName == "" {
		imageParams.AttributeName = "pixels"
	}
	d := &imageDecoder{params: imageParams, batchSize: params.BatchSize}
	return reader.NewParallelReader(stores, d, params, opts...)
}

func (d *imageDecoder) MakeRecordReader(_ dataStores.DataStore, stream io.Reader, alloc memory.Allocator, chunkSize int) recordReaders.RecordReader {
	if d.params.Framing == ImageFramingRecordIO {
		return recordReaders.NewRecordIO(stream, alloc, chunkSize)
	}
	return recordReaders.NewBlob(stream, alloc, chunkSize)
}

func (d *imageDecoder) InferSchema(reader.Instance) (*schema.Schema, error) {
	return schema.New(schema.Attribute{
		Name:  d.params.AttributeName,
		Dtype: tensor.Uint8,
		Shape: tensor.Shape{d.batchSize, d.params.Height, d.params.Width, 3},
	}), nil
}

func (d *imageDecoder) Decode(batch reader.InstanceBatch) (*reader.Example, error) {
	defer batch.Release()
	rows := batch.PadTo
	if rows == 0 {
		rows = len(batch.Instances)
	}
	stride := d.params.Height * d.params.Width * 3
	data := make([]uint8, rows*stride)
	for row, inst := range batch.Instances {
		img, _, err := image.Decode(bytes.NewReader(inst.Bits.Bytes()))
		if err != nil {
			return nil, fmt.Errorf("decoding image %d from store %s: %w", inst.Ordinal, inst.StoreID, err)
		}
		fitted := imageutil.Fit(img, d.params.Width, d.params.Height)
		copy(data[row*stride:], imageutil.RGB8(fitted))
	}
	return &reader.Example{
		Tensors: []reader.NamedTensor{{
			Name: d.params.AttributeName,
			Dense: tensor.New(
				tensor.WithShape(rows, d.params.Height, d.params.Width, 3),
				tensor.WithBacking(data),
			),
		}},
		Padding: rows - len(batch.Instances),
	}, nil
}
