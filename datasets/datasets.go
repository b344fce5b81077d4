// Package datasets assembles data stores for the parallel readers. A
// dataset here is just an ordered list of stores: helpers build that list
// from explicit paths, a recursive walk, in-memory payloads, or a JSONL
// manifest.
package datasets

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/knights-analytics/mldata/dataStores"
	"github.com/knights-analytics/mldata/util/fileutil"
)

// FromPaths creates one file store per URL, in the given order.
func FromPaths(urls []string, compression dataStores.Compression) []dataStores.DataStore {
	stores := make([]dataStores.DataStore, 0, len(urls))
	for _, url := range urls {
		stores = append(stores, dataStores.NewFile(url, compression))
	}
	return stores
}

// FromGlob walks baseURL recursively and creates a file store for every
// object whose name matches pattern. Pattern syntax is path.Match. Stores
// are returned in lexical URL order so epoch order is stable across runs.
func FromGlob(ctx context.Context, baseURL, pattern string, compression dataStores.Compression) ([]dataStores.DataStore, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	var urls []string
	walker := func(_ context.Context, walkURL, parent string, info os.FileInfo, _ io.Reader) (bool, error) {
		if info.IsDir() {
			return true, nil
		}
		matched, err := path.Match(pattern, info.Name())
		if err != nil {
			return false, err
		}
		if matched {
			urls = append(urls, fileutil.PathJoinSafe(walkURL, parent, info.Name()))
		}
		return true, nil
	}
	if err := fileutil.Walk(ctx, baseURL, walker); err != nil {
		return nil, fmt.Errorf("walking %s: %w", baseURL, err)
	}
	sort.Strings(urls)
	return FromPaths(urls, compression), nil
}

// FromInMemory creates one in-memory store per payload, keyed by id.
// Stores are returned in lexical id order.
func FromInMemory(payloads map[string][]byte) []dataStores.DataStore {
	ids := make([]string, 0, len(payloads))
	for id := range payloads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	stores := make([]dataStores.DataStore, 0, len(ids))
	for _, id := range ids {
		stores = append(stores, dataStores.NewInMemory(id, payloads[id]))
	}
	return stores
}

// ManifestEntry is one line of a JSONL dataset manifest.
type ManifestEntry struct {
	URL         string `json:"url"`
	Compression string `json:"compression"`
}

// FromManifest reads a JSONL manifest where each line names a store URL
// and an optional compression ("none", "gzip" or "auto"). Stores are
// created in manifest order.
func FromManifest(manifestURL string) ([]dataStores.DataStore, error) {
	file, err := fileutil.OpenFile(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("opening manifest %s: %w", manifestURL, err)
	}
	defer func() { _ = file.Close() }()

	var stores []dataStores.DataStore
	reader := bufio.NewReader(file)
	line := 0
	for {
		lineBytes, readErr := fileutil.ReadLine(reader)
		if len(lineBytes) > 0 {
			line++
			var entry ManifestEntry
			if err := jsoniter.Unmarshal(lineBytes, &entry); err != nil {
				return nil, fmt.Errorf("manifest %s line %d: %w", manifestURL, line, err)
			}
			if entry.URL == "" {
				return nil, fmt.Errorf("manifest %s line %d: missing url", manifestURL, line)
			}
			compression, err := ParseCompression(entry.Compression)
			if err != nil {
				return nil, fmt.Errorf("manifest %s line %d: %w", manifestURL, line, err)
			}
			stores = append(stores, dataStores.NewFile(entry.URL, compression))
		}
		if readErr == io.EOF {
			return stores, nil
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading manifest %s: %w", manifestURL, readErr)
		}
	}
}

// ParseCompression maps a manifest compression name to the store setting.
// The empty string means none.
func ParseCompression(name string) (dataStores.Compression, error) {
	switch name {
	case "", "none":
		return dataStores.CompressionNone, nil
	case "gzip":
		return dataStores.CompressionGzip, nil
	case "auto":
		return dataStores.CompressionAuto, nil
	default:
		return dataStores.CompressionNone, fmt.Errorf("unknown compression %q", name)
	}
}
