package recordReaders

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/knights-analytics/mldata/memory"
	"github.com/knights-analytics/mldata/util/safeconv"
)

const (
	// recordIOMagic precedes every frame header on the wire.
	recordIOMagic uint32 = 0xced7230a

	// recordIOAlignment is the unit payloads are zero-padded to.
	recordIOAlignment = 4

	recordIOHeaderSize = 8
)

// RecordIO reads the aligned frame format: a 32-bit little-endian magic
// word, a 32-bit header word laid out as kind(3 bits, MSB) and
// payload-length(29 bits), then the payload zero-padded to a 4-byte
// boundary. Payloads are zero-copy views into the stream's chunk buffers.
type RecordIO struct {
	cs *chunkedStream
}

// NewRecordIO creates a framed record reader over the stream.
func NewRecordIO(stream io.Reader, alloc memory.Allocator, chunkSize int) *RecordIO {
	return &RecordIO{cs: newChunkedStream(stream, alloc, chunkSize)}
}

func (r *RecordIO) Next() (Record, error) {
	frameOffset := r.cs.offset()

	if err := r.cs.ensure(recordIOHeaderSize); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			if r.cs.avail() == 0 {
				r.cs.release()
				return Record{}, io.EOF
			}
			return Record{}, &FramingError{Offset: frameOffset, Msg: "truncated record header"}
		}
		return Record{}, err
	}

	header := r.cs.bytes(recordIOHeaderSize)
	magic := binary.LittleEndian.Uint32(header[:4])
	if magic != recordIOMagic {
		return Record{}, &FramingError{Offset: frameOffset, Msg: "bad magic number"}
	}
	word := binary.LittleEndian.Uint32(header[4:])
	kind := RecordKind(word >> 29)
	if kind >= numRecordKinds {
		return Record{}, &FramingError{Offset: frameOffset, Msg: "reserved record kind"}
	}
	payloadSize := safeconv.U32ToInt(word & (1<<29 - 1))
	paddedSize := (payloadSize + recordIOAlignment - 1) &^ (recordIOAlignment - 1)

	r.cs.skip(recordIOHeaderSize)
	if err := r.cs.ensure(paddedSize); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, &FramingError{Offset: frameOffset, Msg: "truncated record payload"}
		}
		return Record{}, err
	}

	payload := r.cs.take(payloadSize)
	r.cs.skip(paddedSize - payloadSize)
	return Record{Payload: payload, Kind: kind}, nil
}

func (r *RecordIO) NumBytesRead() uint64 {
	return r.cs.numBytesRead()
}

// AppendFrame encodes one frame onto dst and returns the extended slice.
// It is the writing counterpart of RecordIO, used by tooling and tests.
func AppendFrame(dst []byte, kind RecordKind, payload []byte) []byte {
	word := uint32(kind)<<29 | safeconv.IntToU32(len(payload))&(1<<29-1)
	dst = binary.LittleEndian.AppendUint32(dst, recordIOMagic)
	dst = binary.LittleEndian.AppendUint32(dst, word)
	dst = append(dst, payload...)
	for len(dst)%recordIOAlignment != 0 {
		dst = append(dst, 0)
	}
	return dst
}
