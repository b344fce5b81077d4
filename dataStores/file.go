package dataStores

import (
	"fmt"

	"github.com/knights-analytics/mldata/util/fileutil"
)

// File is a data store backed by an afs URL: a plain path, file://, s3://
// or mem://. The URL doubles as the store id.
type File struct {
	url         string
	compression Compression
}

// NewFile creates a file store for the given URL.
func NewFile(url string, compression Compression) *File {
	return &File{url: url, compression: compression}
}

func (f *File) ID() string {
	return f.url
}

func (f *File) OpenRead() (InputStream, error) {
	rc, err := fileutil.OpenFile(f.url)
	if err != nil {
		return nil, fmt.Errorf("failed to open data store %q: %w", f.url, err)
	}
	rc, err = wrapCompression(rc, f.compression)
	if err != nil {
		return nil, fmt.Errorf("failed to open data store %q: %w", f.url, err)
	}
	return newAbortableStream(rc), nil
}

func (f *File) String() string {
	return fmt.Sprintf("file store %q", f.url)
}
