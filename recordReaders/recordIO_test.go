package recordReaders

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knights-analytics/mldata/memory"
)

func nextPayload(t *testing.T, r RecordReader) (string, RecordKind) {
	t.Helper()
	rec, err := r.Next()
	require.NoError(t, err)
	defer rec.Release()
	return string(rec.Payload.Bytes()), rec.Kind
}

func TestRecordIORoundTrip(t *testing.T) {
	var wire []byte
	wire = AppendFrame(wire, KindHeader, []byte("hdr"))
	wire = AppendFrame(wire, KindData, []byte("hello"))
	wire = AppendFrame(wire, KindData, nil)
	wire = AppendFrame(wire, KindPadding, []byte{0, 0, 0, 0})
	wire = AppendFrame(wire, KindFooter, []byte("bye"))

	r := NewRecordIO(bytes.NewReader(wire), nil, 0)

	payload, kind := nextPayload(t, r)
	assert.Equal(t, KindHeader, kind)
	assert.Equal(t, "hdr", payload)

	payload, kind = nextPayload(t, r)
	assert.Equal(t, KindData, kind)
	assert.Equal(t, "hello", payload)

	payload, kind = nextPayload(t, r)
	assert.Equal(t, KindData, kind)
	assert.Empty(t, payload)

	_, kind = nextPayload(t, r)
	assert.Equal(t, KindPadding, kind)

	payload, kind = nextPayload(t, r)
	assert.Equal(t, KindFooter, kind)
	assert.Equal(t, "bye", payload)

	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, uint64(len(wire)), r.NumBytesRead())
}

func TestRecordIOAlignment(t *testing.T) {
	for _, size := range []int{0, 1, 2, 3, 4, 5, 7, 8} {
		wire := AppendFrame(nil, KindData, bytes.Repeat([]byte{'x'}, size))
		assert.Zero(t, len(wire)%recordIOAlignment)

		r := NewRecordIO(bytes.NewReader(wire), nil, 0)
		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, size, rec.Payload.Len())
		rec.Release()

		_, err = r.Next()
		assert.Equal(t, io.EOF, err)
	}
}

func TestRecordIOBadMagic(t *testing.T) {
	wire := AppendFrame(nil, KindData, []byte("ok"))
	wire[0] ^= 0xff

	r := NewRecordIO(bytes.NewReader(wire), nil, 0)
	_, err := r.Next()
	var fe *FramingError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, uint64(0), fe.Offset)
	assert.Contains(t, fe.Error(), "magic")
}

func TestRecordIOReservedKind(t *testing.T) {
	word := uint32(5)<<29 | 2
	wire := binary.LittleEndian.AppendUint32(nil, recordIOMagic)
	wire = binary.LittleEndian.AppendUint32(wire, word)
	wire = append(wire, 'h', 'i', 0, 0)

	r := NewRecordIO(bytes.NewReader(wire), nil, 0)
	_, err := r.Next()
	var fe *FramingError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Error(), "reserved")
}

func TestRecordIOTruncation(t *testing.T) {
	wire := AppendFrame(nil, KindData, []byte("first"))
	wire = AppendFrame(wire, KindData, []byte("second record"))

	t.Run("header", func(t *testing.T) {
		r := NewRecordIO(bytes.NewReader(wire[:len(wire)-20]), nil, 0)
		rec, err := r.Next()
		require.NoError(t, err)
		rec.Release()

		_, err = r.Next()
		var fe *FramingError
		require.ErrorAs(t, err, &fe)
		assert.Contains(t, fe.Msg, "header")
		assert.Equal(t, uint64(16), fe.Offset)
	})

	t.Run("payload", func(t *testing.T) {
		r := NewRecordIO(bytes.NewReader(wire[:len(wire)-4]), nil, 0)
		rec, err := r.Next()
		require.NoError(t, err)
		rec.Release()

		_, err = r.Next()
		var fe *FramingError
		require.ErrorAs(t, err, &fe)
		assert.Contains(t, fe.Msg, "payload")
	})
}

func TestRecordIOEmptyStream(t *testing.T) {
	r := NewRecordIO(bytes.NewReader(nil), nil, 0)
	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
	assert.Zero(t, r.NumBytesRead())
}

func TestRecordIOSmallChunks(t *testing.T) {
	var wire []byte
	var want []string
	for i := 0; i < 50; i++ {
		payload := bytes.Repeat([]byte{byte('a' + i%26)}, i)
		want = append(want, string(payload))
		wire = AppendFrame(wire, KindData, payload)
	}

	alloc := memory.HeapAllocator{}
	r := NewRecordIO(bytes.NewReader(wire), alloc, 16)
	for _, w := range want {
		payload, kind := nextPayload(t, r)
		assert.Equal(t, KindData, kind)
		assert.Equal(t, w, payload)
	}
	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
}
