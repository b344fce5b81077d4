package recordReaders

import (
	"bytes"
	"errors"
	"io"

	"github.com/knights-analytics/mldata/memory"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// TextLine frames a store's stream on newlines. Records are lines without
// their terminator; a trailing line without a newline is still a record.
// A leading UTF-8 byte order mark is skipped.
type TextLine struct {
	cs      *chunkedStream
	first   bool
	skipped int
}

// NewTextLine creates a newline-framed record reader. skipLines leading
// lines (e.g. a CSV header already consumed by the decoder) are reported
// with KindHeader instead of KindData.
func NewTextLine(stream io.Reader, alloc memory.Allocator, chunkSize int, skipLines int) *TextLine {
	return &TextLine{
		cs:      newChunkedStream(stream, alloc, chunkSize),
		first:   true,
		skipped: skipLines,
	}
}

func (t *TextLine) Next() (Record, error) {
	if t.first {
		t.first = false
		if err := t.skipBOM(); err != nil {
			return Record{}, err
		}
	}

	searchFrom := 0
	for {
		avail := t.cs.avail()
		if avail > searchFrom {
			if i := bytes.IndexByte(t.cs.bytes(avail)[searchFrom:], '\n'); i >= 0 {
				return t.emit(searchFrom + i + 1, true)
			}
			searchFrom = avail
		}
		if err := t.cs.ensure(avail + 1); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				if t.cs.avail() == 0 {
					t.cs.release()
					return Record{}, io.EOF
				}
				return t.emit(t.cs.avail(), false)
			}
			return Record{}, err
		}
	}
}

// emit consumes size bytes and returns them as a record, trimming the line
// terminator when present.
func (t *TextLine) emit(size int, terminated bool) (Record, error) {
	line := t.cs.take(size)
	content := size
	if terminated {
		content--
	}
	if content > 0 && line.Bytes()[content-1] == '\r' {
		content--
	}
	rec := Record{Payload: line.SubSlice(0, content), Kind: KindData}
	if t.skipped > 0 {
		t.skipped--
		rec.Kind = KindHeader
	}
	return rec, nil
}

func (t *TextLine) skipBOM() error {
	err := t.cs.ensure(len(utf8BOM))
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	if t.cs.avail() >= len(utf8BOM) && bytes.Equal(t.cs.bytes(len(utf8BOM)), utf8BOM) {
		t.cs.skip(len(utf8BOM))
	}
	return nil
}

func (t *TextLine) NumBytesRead() uint64 {
	return t.cs.numBytesRead()
}

var _ RecordReader = (*TextLine)(nil)
var _ RecordReader = (*RecordIO)(nil)
var _ RecordReader = (*Blob)(nil)
