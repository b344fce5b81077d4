package readers

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/knights-analytics/mldata/dataStores"
	"github.com/knights-analytics/mldata/reader"
	"github.com/knights-analytics/mldata/recordReaders"
)

func solidPNG(t *testing.T, width, height int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageReaderBlobFraming(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	stores := []dataStores.DataStore{
		dataStores.NewInMemory("red.png", solidPNG(t, 8, 8, red)),
		dataStores.NewInMemory("blue.png", solidPNG(t, 16, 4, blue)),
	}
	r, err := NewImageReader(
		stores,
		ImageParams{Width: 4, Height: 4},
		reader.ReaderParams{BatchSize: 2},
	)
	require.NoError(t, err)

	examples := drainReader(t, r)
	require.Len(t, examples, 1)

	pixels := examples[0].Tensor("pixels")
	require.NotNil(t, pixels)
	assert.Equal(t, tensor.Shape{2, 4, 4, 3}, pixels.Shape())
	data := pixels.Data().([]uint8)

	stride := 4 * 4 * 3
	assert.Equal(t, []uint8{255, 0, 0}, data[:3])
	assert.Equal(t, []uint8{0, 0, 255}, data[stride:stride+3])
}

func TestImageReaderRecordIOFraming(t *testing.T) {
	green := color.RGBA{G: 255, A: 255}
	var wire []byte
	wire = recordReaders.AppendFrame(wire, recordReaders.KindData, solidPNG(t, 5, 9, green))
	wire = recordReaders.AppendFrame(wire, recordReaders.KindData, solidPNG(t, 9, 5, green))
	store := dataStores.NewInMemory("frames", wire)

	r, err := NewImageReader(
		[]dataStores.DataStore{store},
		ImageParams{Width: 3, Height: 3, Framing: ImageFramingRecordIO, AttributeName: "img"},
		reader.ReaderParams{BatchSize: 2},
	)
	require.NoError(t, err)

	examples := drainReader(t, r)
	require.Len(t, examples, 1)
	pixels := examples[0].Tensor("img")
	assert.Equal(t, tensor.Shape{2, 3, 3, 3}, pixels.Shape())
	data := pixels.Data().([]uint8)
	assert.Equal(t, []uint8{0, 255, 0}, data[:3])
}

func TestImageReaderRejectsGarbage(t *testing.T) {
	store := dataStores.NewInMemory("junk", []byte("not an image at all"))
	r, err := NewImageReader(
		[]dataStores.DataStore{store},
		ImageParams{Width: 2, Height: 2},
		reader.ReaderParams{BatchSize: 1},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	_, readErr := r.ReadExample()
	var fault *reader.BadBatchFault
	require.ErrorAs(t, readErr, &fault)
}

func TestImageReaderInvalidDimensions(t *testing.T) {
	store := dataStores.NewInMemory("x", nil)
	_, err := NewImageReader(
		[]dataStores.DataStore{store},
		ImageParams{Width: 0, Height: 2},
		reader.ReaderParams{BatchSize: 1},
	)
	assert.ErrorContains(t, err, "dimensions")
}
