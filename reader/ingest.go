package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/knights-analytics/mldata/dataStores"
	"github.com/knights-analytics/mldata/recordReaders"
)

// epoch is the runtime of one pass over the dataset: the ingest goroutine,
// the decode workers, the work channel feeding them and the reorder queue
// serving the consumer. Reset tears the whole epoch down and builds a fresh
// one.
type epoch struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// workCh carries batches from ingest to the decode workers. slots
	// bounds the batches outstanding anywhere between the batch former and
	// the consumer; ingest acquires a slot per batch, the reorder queue
	// returns it when the consumer moves past the batch.
	workCh chan InstanceBatch
	slots  chan struct{}
	queue  *reorderQueue

	bytes atomic.Uint64

	streamMu sync.Mutex
	stream   dataStores.InputStream
	aborting bool
}

// trackStream registers the stream ingest is currently reading so abort can
// unblock a pending read.
func (ep *epoch) trackStream(s dataStores.InputStream) {
	ep.streamMu.Lock()
	ep.stream = s
	if ep.aborting && s != nil {
		s.Abort()
	}
	ep.streamMu.Unlock()
}

// abort cancels the epoch and forces any blocked store read to fail.
func (ep *epoch) abort() {
	ep.cancel()
	ep.streamMu.Lock()
	ep.aborting = true
	if ep.stream != nil {
		ep.stream.Abort()
	}
	ep.streamMu.Unlock()
}

// fail poisons the epoch with a fatal fault and stops its tasks.
func (ep *epoch) fail(err error) {
	ep.queue.fail(err)
	ep.abort()
}

func (r *ParallelReader) ingest(ep *epoch, seed uint64) {
	defer ep.wg.Done()
	in := &ingestRun{
		r:        r,
		ep:       ep,
		skipLeft: r.params.NumInstancesToSkip,
		readLeft: r.params.NumInstancesToRead,
		limited:  r.params.NumInstancesToRead > 0,
	}
	if r.params.ShuffleInstances {
		in.shuf = newShuffler(r.params.ShuffleWindow, seed)
	}
	if r.params.SubsampleRatio < 1 {
		in.sub = newSubsampler(r.params.SubsampleRatio, seed)
	}

	issued, err := in.run()
	close(ep.workCh)
	if err != nil {
		if ep.ctx.Err() == nil {
			ep.queue.fail(err)
		}
		return
	}
	ep.queue.finish(issued)
}

// ingestRun carries the per-epoch state of the single ingest goroutine: the
// filter counters, the shuffle and subsample PRNG owners and the batch under
// construction. Nothing in here is shared with another goroutine.
type ingestRun struct {
	r  *ParallelReader
	ep *epoch

	shuf *shuffler
	sub  *subsampler

	skipLeft uint64
	readLeft uint64
	limited  bool
	shardPos uint64

	ordinal   uint64
	batch     []Instance
	issued    uint64
	discarded uint64
}

// errStopIngest ends the store loop early, e.g. when the read limit is
// reached. The residual shuffle buffer and tail batch are still emitted.
var errStopIngest = errors.New("stop ingest")

func (in *ingestRun) run() (uint64, error) {
	err := in.readStores()
	if err == nil && in.shuf != nil {
		for _, inst := range in.shuf.drain() {
			if err = in.sample(inst); err != nil {
				break
			}
		}
	}
	if err == nil {
		err = in.flushTail()
	}
	if err != nil {
		in.cleanup()
		return 0, err
	}
	if in.discarded > 0 {
		in.r.opts.Logger.Debug().
			Uint64("records", in.discarded).
			Msg("discarded non-data records")
	}
	return in.issued, nil
}

func (in *ingestRun) readStores() error {
	for _, store := range in.r.stores {
		err := in.readStore(store)
		if errors.Is(err, errStopIngest) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (in *ingestRun) readStore(store dataStores.DataStore) error {
	stream, err := store.OpenRead()
	if err != nil {
		return &StreamFault{StoreID: store.ID(), Err: err}
	}
	in.ep.trackStream(stream)
	defer func() {
		in.ep.trackStream(nil)
		_ = stream.Close()
	}()

	rr := in.r.decoder.MakeRecordReader(store, stream, in.r.opts.Allocator, in.r.opts.ChunkSize)
	var reported uint64
	for {
		if err := in.ep.ctx.Err(); err != nil {
			return err
		}
		rec, err := rr.Next()
		read := rr.NumBytesRead()
		in.ep.bytes.Add(read - reported)
		reported = read
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if in.ep.ctx.Err() != nil {
				return in.ep.ctx.Err()
			}
			return &StreamFault{StoreID: store.ID(), Err: err}
		}
		if rec.Kind != recordReaders.KindData {
			in.discarded++
			rec.Release()
			continue
		}
		if err := in.offer(Instance{StoreID: store.ID(), Bits: rec.Payload}); err != nil {
			return err
		}
	}
}

// offer runs one instance through the filter chain: skip, limit, shard,
// shuffle, subsample. Instances that survive every filter reach sample.
func (in *ingestRun) offer(inst Instance) error {
	if in.skipLeft > 0 {
		in.skipLeft--
		inst.Release()
		return nil
	}
	if err := in.inferSchema(inst); err != nil {
		inst.Release()
		return err
	}
	if in.limited {
		if in.readLeft == 0 {
			inst.Release()
			return errStopIngest
		}
		in.readLeft--
	}
	if k := in.r.params.NumShards; k > 1 {
		keep := in.shardPos%uint64(k) == uint64(in.r.params.ShardIndex)
		in.shardPos++
		if !keep {
			inst.Release()
			return nil
		}
	}
	if in.shuf != nil {
		out, emitted := in.shuf.push(inst)
		if !emitted {
			return nil
		}
		inst = out
	}
	return in.sample(inst)
}

// sample applies the subsample filter, assigns the ordinal and feeds the
// batch former.
func (in *ingestRun) sample(inst Instance) error {
	if in.sub != nil && !in.sub.keep() {
		inst.Release()
		return nil
	}
	inst.Ordinal = in.ordinal
	in.ordinal++
	in.batch = append(in.batch, inst)
	if len(in.batch) == in.r.params.BatchSize {
		return in.flush(0)
	}
	return nil
}

func (in *ingestRun) inferSchema(inst Instance) error {
	if in.r.schema.Load() != nil || inst.Bits.IsEmpty() {
		return nil
	}
	s, err := in.r.decoder.InferSchema(inst)
	if err != nil {
		return fmt.Errorf("inferring schema from store %s: %w", inst.StoreID, err)
	}
	in.r.schema.Store(s)
	return nil
}

// flush emits the batch under construction. It blocks until a prefetch slot
// is free, which is the backpressure bounding the pipeline.
func (in *ingestRun) flush(padTo int) error {
	batch := InstanceBatch{Index: in.issued, Instances: in.batch, PadTo: padTo}
	in.batch = nil
	select {
	case in.ep.slots <- struct{}{}:
	case <-in.ep.ctx.Done():
		batch.Release()
		return in.ep.ctx.Err()
	}
	select {
	case in.ep.workCh <- batch:
		in.issued++
		return nil
	case <-in.ep.ctx.Done():
		batch.Release()
		return in.ep.ctx.Err()
	}
}

func (in *ingestRun) flushTail() error {
	if len(in.batch) == 0 {
		return nil
	}
	switch in.r.params.LastBatchHandling {
	case LastBatchDrop:
		for _, inst := range in.batch {
			inst.Release()
		}
		in.batch = nil
		return nil
	case LastBatchPad:
		return in.flush(in.r.params.BatchSize)
	default:
		return in.flush(0)
	}
}

// cleanup releases instances stranded by an early exit.
func (in *ingestRun) cleanup() {
	for _, inst := range in.batch {
		inst.Release()
	}
	in.batch = nil
	if in.shuf != nil {
		in.shuf.discard()
	}
}

func (r *ParallelReader) worker(ep *epoch) {
	defer ep.wg.Done()
	for batch := range ep.workCh {
		if ep.ctx.Err() != nil {
			batch.Release()
			continue
		}
		r.decodeBatch(ep, batch)
	}
}

func (r *ParallelReader) decodeBatch(ep *epoch, batch InstanceBatch) {
	index := batch.Index
	ex, err := r.decoder.Decode(batch)
	if err != nil {
		fault := &BadBatchFault{BatchIndex: index, Err: err}
		switch r.params.BadBatchHandling {
		case BadBatchSkip:
			ep.queue.put(index, nil)
		case BadBatchWarn:
			r.opts.Logger.Warn().
				Uint64("batch", index).
				Err(err).
				Msg("dropping batch that failed to decode")
			ep.queue.put(index, nil)
		default:
			ep.fail(fault)
		}
		return
	}
	ex.BatchIndex = index
	if s := r.schema.Load(); s != nil && !s.Accepts(ex.Attributes()) {
		ep.fail(&SchemaFault{BatchIndex: index, Want: s, Got: ex.Attributes()})
		return
	}
	ep.queue.put(index, ex)
}
