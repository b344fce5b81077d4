// Package reader implements the parallel batching pipeline at the heart of
// the module. A single ingest goroutine concatenates the data stores,
// segments their streams into records, filters and batches the resulting
// instances; a pool of workers decodes batches into tensor examples; a
// reorder queue serves them to the consumer in batch order with a bounded
// prefetch depth.
package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/rand"

	"github.com/knights-analytics/mldata/dataStores"
	"github.com/knights-analytics/mldata/options"
	"github.com/knights-analytics/mldata/schema"
)

type readerState uint8

const (
	stateIdle readerState = iota
	stateRunning
	stateEnded
	statePoisoned
	stateClosed
)

// ParallelReader reads a dataset as an ordered stream of decoded batch
// examples. ReadExample and PeekExample may be called from one consumer
// goroutine at a time; Reset and Close are safe to call concurrently with a
// pending read, which then fails with ErrReset.
type ParallelReader struct {
	stores  []dataStores.DataStore
	decoder Decoder
	params  ReaderParams
	opts    *options.Options

	schema atomic.Pointer[schema.Schema]

	// consumerMu serializes consumers so that a peeked example is returned
	// again by the next peek and consumed by the next read.
	consumerMu sync.Mutex

	mu       sync.Mutex
	state    readerState
	ep       *epoch
	peeked   *Example
	poison   error
	baseSeed uint64
	epochNum uint64
}

// NewParallelReader validates the configuration and returns an idle reader.
// The background pipeline starts on the first ReadExample or PeekExample.
func NewParallelReader(stores []dataStores.DataStore, decoder Decoder, params ReaderParams, opts ...options.WithOption) (*ParallelReader, error) {
	if len(stores) == 0 {
		return nil, errors.New("at least one data store is required")
	}
	if decoder == nil {
		return nil, errors.New("a decoder is required")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reader parameters: %w", err)
	}
	o, err := options.Apply(opts...)
	if err != nil {
		return nil, err
	}
	r := &ParallelReader{
		stores:  stores,
		decoder: decoder,
		params:  params.withDefaults(),
		opts:    o,
	}
	if params.ShuffleSeed != nil {
		r.baseSeed = *params.ShuffleSeed
	} else {
		r.baseSeed = rand.Uint64()
	}
	return r, nil
}

// start spins up the epoch tasks. Caller holds r.mu.
func (r *ParallelReader) start() {
	ctx, cancel := context.WithCancel(context.Background())
	slots := make(chan struct{}, r.params.NumPrefetchedBatches)
	ep := &epoch{
		ctx:    ctx,
		cancel: cancel,
		workCh: make(chan InstanceBatch, r.params.NumPrefetchedBatches),
		slots:  slots,
		queue:  newReorderQueue(slots),
	}
	seed := r.baseSeed
	if r.params.ReshuffleEachEpoch {
		seed += r.epochNum
	}
	ep.wg.Add(1 + r.params.NumParallelReads)
	go r.ingest(ep, seed)
	for i := 0; i < r.params.NumParallelReads; i++ {
		go r.worker(ep)
	}
	r.ep = ep
	r.state = stateRunning
}

// ReadExample returns the next example in batch order, blocking until it is
// decoded. It returns io.EOF at the end of the epoch and the poisoning fault
// after a fatal error, until Reset.
func (r *ParallelReader) ReadExample() (*Example, error) {
	r.consumerMu.Lock()
	defer r.consumerMu.Unlock()
	return r.next(true)
}

// PeekExample returns the next example without consuming it; the following
// ReadExample returns the same example.
func (r *ParallelReader) PeekExample() (*Example, error) {
	r.consumerMu.Lock()
	defer r.consumerMu.Unlock()
	return r.next(false)
}

func (r *ParallelReader) next(consume bool) (*Example, error) {
	r.mu.Lock()
	switch r.state {
	case stateClosed:
		r.mu.Unlock()
		return nil, ErrClosed
	case statePoisoned:
		err := r.poison
		r.mu.Unlock()
		return nil, err
	case stateEnded:
		r.mu.Unlock()
		return nil, io.EOF
	case stateIdle:
		r.start()
	}
	if ex := r.peeked; ex != nil {
		if consume {
			r.peeked = nil
		}
		r.mu.Unlock()
		return ex, nil
	}
	ep := r.ep
	r.mu.Unlock()

	ex, err := ep.queue.pop()
	if err != nil {
		r.observe(ep, err)
		return nil, err
	}
	if !consume {
		r.mu.Lock()
		if r.ep == ep {
			r.peeked = ex
		}
		r.mu.Unlock()
	}
	return ex, nil
}

// observe folds a terminal pop result into the controller state, unless the
// epoch was already torn down by a concurrent Reset or Close.
func (r *ParallelReader) observe(ep *epoch, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ep != ep || r.state != stateRunning {
		return
	}
	switch {
	case errors.Is(err, io.EOF):
		r.state = stateEnded
	case errors.Is(err, ErrReset):
	default:
		r.state = statePoisoned
		r.poison = err
	}
}

// Reset cancels the running epoch, rewinds the data stores and returns the
// reader to idle. Batch indices restart at zero; the shuffle PRNG is
// re-seeded only when ReshuffleEachEpoch is set.
func (r *ParallelReader) Reset() error {
	r.mu.Lock()
	if r.state == stateClosed {
		r.mu.Unlock()
		return ErrClosed
	}
	ep := r.ep
	r.ep = nil
	r.peeked = nil
	r.poison = nil
	r.state = stateIdle
	r.epochNum++
	r.mu.Unlock()

	r.teardown(ep)
	return nil
}

// Close tears the reader down for good. Further operations return ErrClosed.
func (r *ParallelReader) Close() error {
	r.mu.Lock()
	if r.state == stateClosed {
		r.mu.Unlock()
		return nil
	}
	ep := r.ep
	r.ep = nil
	r.peeked = nil
	r.state = stateClosed
	r.mu.Unlock()

	r.teardown(ep)
	return nil
}

func (r *ParallelReader) teardown(ep *epoch) {
	if ep == nil {
		return
	}
	ep.abort()
	ep.queue.fail(ErrReset)
	ep.wg.Wait()
}

// Schema returns the inferred schema, or nil before the first instance has
// been observed.
func (r *ParallelReader) Schema() *schema.Schema {
	return r.schema.Load()
}

// NumBytesRead reports the bytes pulled from the data stores during the
// current epoch. It can run ahead of what the consumer has seen because of
// prefetch.
func (r *ParallelReader) NumBytesRead() uint64 {
	r.mu.Lock()
	ep := r.ep
	r.mu.Unlock()
	if ep == nil {
		return 0
	}
	return ep.bytes.Load()
}

// Examples iterates the remaining examples of the epoch. A fault is yielded
// once with a nil example, then iteration stops.
func (r *ParallelReader) Examples() iter.Seq2[*Example, error] {
	return func(yield func(*Example, error) bool) {
		for {
			ex, err := r.ReadExample()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(ex, nil) {
				return
			}
		}
	}
}
