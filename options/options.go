// Package options carries the ambient, format-independent settings shared by
// every reader: the logger, the buffer allocator and the chunk size used when
// pulling bytes from data stores.
package options

import (
	"fmt"

	"github.com/phuslu/log"

	"github.com/knights-analytics/mldata/memory"
)

type Options struct {
	Logger    *log.Logger
	Allocator memory.Allocator
	ChunkSize int
}

func Defaults() *Options {
	return &Options{
		Logger:    &log.Logger{Level: log.WarnLevel},
		Allocator: memory.HeapAllocator{},
	}
}

// Apply folds the given option functions into a fresh default Options.
func Apply(opts ...WithOption) (*Options, error) {
	o := Defaults()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithOption is the interface for all option functions.
type WithOption func(o *Options) error

// WithLogger sets the logger used for warn-path diagnostics and discarded
// record accounting.
func WithLogger(logger *log.Logger) WithOption {
	return func(o *Options) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		o.Logger = logger
		return nil
	}
}

// WithAllocator sets the allocator backing the stream chunk buffers.
func WithAllocator(allocator memory.Allocator) WithOption {
	return func(o *Options) error {
		if allocator == nil {
			return fmt.Errorf("allocator cannot be nil")
		}
		o.Allocator = allocator
		return nil
	}
}

// WithChunkSize sets the size of the chunks pulled from data store streams.
func WithChunkSize(size int) WithOption {
	return func(o *Options) error {
		if size <= 0 {
			return fmt.Errorf("chunk size must be positive, got %d", size)
		}
		o.ChunkSize = size
		return nil
	}
}
