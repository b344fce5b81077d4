package reader

import (
	"fmt"
	"runtime"
)

// LastBatchHandling selects what happens to the partial batch at the end of
// an epoch.
type LastBatchHandling uint8

const (
	// LastBatchNone emits the final short batch as-is.
	LastBatchNone LastBatchHandling = iota
	// LastBatchDrop discards the final short batch.
	LastBatchDrop
	// LastBatchPad zero-pads the final short batch to the full batch size
	// and records the pad count on the example.
	LastBatchPad

	numLastBatchHandlings = iota
)

func (h LastBatchHandling) String() string {
	switch h {
	case LastBatchNone:
		return "none"
	case LastBatchDrop:
		return "drop"
	case LastBatchPad:
		return "pad"
	}
	return fmt.Sprintf("lastBatchHandling(%d)", uint8(h))
}

// BadBatchHandling selects what happens when the decoder rejects a batch.
type BadBatchHandling uint8

const (
	// BadBatchError poisons the reader with the decode fault.
	BadBatchError BadBatchHandling = iota
	// BadBatchSkip silently drops the rejected batch.
	BadBatchSkip
	// BadBatchWarn drops the rejected batch and logs a warning.
	BadBatchWarn

	numBadBatchHandlings = iota
)

func (h BadBatchHandling) String() string {
	switch h {
	case BadBatchError:
		return "error"
	case BadBatchSkip:
		return "skip"
	case BadBatchWarn:
		return "warn"
	}
	return fmt.Sprintf("badBatchHandling(%d)", uint8(h))
}

// ReaderParams configures one reader. The zero value of every optional field
// selects its documented default; only BatchSize is mandatory.
type ReaderParams struct {
	// BatchSize is the number of instances per example.
	BatchSize int

	// NumPrefetchedBatches bounds the batches the background pipeline may
	// hold, queued plus in flight. 0 selects the number of CPUs.
	NumPrefetchedBatches int

	// NumParallelReads is the decode worker count. 0 selects the prefetch
	// bound.
	NumParallelReads int

	LastBatchHandling LastBatchHandling
	BadBatchHandling  BadBatchHandling

	// NumInstancesToSkip discards the leading instances of every epoch.
	NumInstancesToSkip uint64

	// NumInstancesToRead caps the instances read per epoch, applied after
	// the skip. 0 reads everything.
	NumInstancesToRead uint64

	// ShardIndex/NumShards keep only instances whose post-skip index is
	// congruent to ShardIndex modulo NumShards. NumShards of 0 or 1
	// disables sharding.
	ShardIndex int
	NumShards  int

	// ShuffleInstances enables shuffling. ShuffleWindow is the reservoir
	// size; 0 buffers the whole epoch and drains it in random order.
	ShuffleInstances bool
	ShuffleWindow    int

	// ShuffleSeed pins the shuffle PRNG. When nil a seed is sampled once
	// at construction. ReshuffleEachEpoch re-seeds on Reset; when false,
	// epochs replay the same permutation.
	ShuffleSeed        *uint64
	ReshuffleEachEpoch bool

	// SubsampleRatio keeps each instance with this probability. 0 means 1
	// (keep everything).
	SubsampleRatio float64
}

// withDefaults resolves the derived defaults without mutating the receiver.
func (p ReaderParams) withDefaults() ReaderParams {
	if p.NumPrefetchedBatches == 0 {
		p.NumPrefetchedBatches = runtime.NumCPU()
	}
	if p.NumParallelReads == 0 {
		p.NumParallelReads = p.NumPrefetchedBatches
	}
	if p.SubsampleRatio == 0 {
		p.SubsampleRatio = 1
	}
	return p
}

// Validate reports the first invalid parameter. It is called by
// NewParallelReader; a reader with invalid parameters never starts.
func (p ReaderParams) Validate() error {
	if p.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", p.BatchSize)
	}
	if p.NumPrefetchedBatches < 0 {
		return fmt.Errorf("number of prefetched batches cannot be negative, got %d", p.NumPrefetchedBatches)
	}
	if p.NumParallelReads < 0 {
		return fmt.Errorf("number of parallel reads cannot be negative, got %d", p.NumParallelReads)
	}
	if p.LastBatchHandling >= numLastBatchHandlings {
		return fmt.Errorf("unknown last batch handling %d", p.LastBatchHandling)
	}
	if p.BadBatchHandling >= numBadBatchHandlings {
		return fmt.Errorf("unknown bad batch handling %d", p.BadBatchHandling)
	}
	if p.NumShards < 0 {
		return fmt.Errorf("number of shards cannot be negative, got %d", p.NumShards)
	}
	if p.NumShards > 1 && (p.ShardIndex < 0 || p.ShardIndex >= p.NumShards) {
		return fmt.Errorf("shard index %d out of range for %d shards", p.ShardIndex, p.NumShards)
	}
	if p.ShuffleWindow < 0 {
		return fmt.Errorf("shuffle window cannot be negative, got %d", p.ShuffleWindow)
	}
	if p.SubsampleRatio < 0 || p.SubsampleRatio > 1 {
		return fmt.Errorf("subsample ratio must be in (0, 1], got %g", p.SubsampleRatio)
	}
	return nil
}
