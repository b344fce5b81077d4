// Package fileutil wraps the afs virtual file system used for all store
// access. Paths are URLs: plain paths and file:// map to the local file
// system, s3:// to S3, mem:// to the in-process file system.
package fileutil

import (
	"bufio"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	_ "github.com/viant/afsc/s3"
)

var fileSystem = afs.New()

// OpenFile opens the object at the given URL for sequential reading.
func OpenFile(url string) (io.ReadCloser, error) {
	return fileSystem.OpenURL(context.Background(), url)
}

// ReadFileBytes reads the whole object at the given URL.
func ReadFileBytes(url string) ([]byte, error) {
	file, err := fileSystem.OpenURL(context.Background(), url)
	if err != nil {
		return nil, err
	}
	defer func(file io.Closer) {
		err = errors.Join(err, file.Close())
	}(file)

	outBytes, readErr := io.ReadAll(file)
	if readErr != nil {
		return nil, readErr
	}
	return outBytes, err
}

// FileExists reports whether the object at the given URL exists.
func FileExists(url string) (bool, error) {
	return fileSystem.Exists(context.Background(), url)
}

// Walk visits every object under the given URL.
func Walk(ctx context.Context, url string, handler storage.OnVisit) error {
	return fileSystem.Walk(ctx, url, handler)
}

// PathJoinSafe joins path components without collapsing the double slash
// of a URL scheme. Plain OS paths go through filepath.Join.
func PathJoinSafe(elem ...string) string {
	if len(elem) == 0 {
		return ""
	}
	scheme, rest, found := strings.Cut(elem[0], "://")
	if !found {
		return filepath.Join(elem...)
	}
	parts := append([]string{rest}, elem[1:]...)
	return scheme + "://" + filepath.Join(parts...)
}

// ReadLine returns a single line (without the ending \n) from the input
// buffered reader. This function is needed to avoid the 65K char line limit.
func ReadLine(r *bufio.Reader) ([]byte, error) {
	var (
		isPrefix = true
		err      error
		line, ln []byte
	)
	for isPrefix && err == nil {
		line, isPrefix, err = r.ReadLine()
		ln = append(ln, line...)
	}
	return ln, err
}
