// Package mldata reads machine learning datasets as batched tensor
// examples.
//
// Data stores (local files, S3 objects, in-memory buffers, pipes) are
// segmented into records, grouped into fixed-size batches and decoded to
// tensors by a pool of parallel workers, while the consumer sees batches
// in a deterministic order through reader.ParallelReader. Concrete
// formats live in the readers package: CSV tables, RecordIO-framed
// float32 vectors and compressed images. The datasets package assembles
// store lists from paths, globs or JSONL manifests, and the mldata
// command in cmd exposes the whole chain on the command line.
package mldata

// Version is the mldata version.
const Version = "0.1.0"
