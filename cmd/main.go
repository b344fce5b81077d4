package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-isatty"
	"github.com/phuslu/log"
	"github.com/urfave/cli/v2"

	"github.com/knights-analytics/mldata/dataStores"
	"github.com/knights-analytics/mldata/datasets"
	"github.com/knights-analytics/mldata/options"
	"github.com/knights-analytics/mldata/reader"
	"github.com/knights-analytics/mldata/readers"
)

var format string
var manifestPath string
var outputPath string
var compressionName string
var batchSize int
var numPrefetchedBatches int
var numParallelReads int
var lastBatchName string
var badBatchName string
var skipInstances uint64
var readInstances uint64
var shardIndex int
var numShards int
var shuffle bool
var shuffleWindow int
var shuffleSeed int64
var subsampleRatio float64
var csvHeader bool
var csvDelimiter string
var imageWidth int
var imageHeight int
var imageRecordIO bool
var verbose bool

var readCommand = &cli.Command{
	Name:  "read",
	Usage: "Decode data stores into batched examples and print them as JSONL",
	Description: `Read expects one or more store URLs as arguments (plain paths, file://,
s3:// or mem://), or a --manifest pointing at a JSONL file listing stores.
Each decoded batch is written as one JSON line.`,
	ArgsUsage: "[store URLs...]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "format",
			Usage:       "Store format: csv, recordio or image",
			Aliases:     []string{"t"},
			Destination: &format,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "manifest",
			Usage:       "Path to a JSONL manifest listing store URLs",
			Aliases:     []string{"m"},
			Destination: &manifestPath,
		},
		&cli.StringFlag{
			Name:        "output",
			Usage:       "Path to the output file. If omitted, output goes to stdout",
			Aliases:     []string{"o"},
			Destination: &outputPath,
		},
		&cli.StringFlag{
			Name:        "compression",
			Usage:       "Store compression: none, gzip or auto",
			Destination: &compressionName,
			Value:       "auto",
		},
		&cli.IntFlag{
			Name:        "batchSize",
			Usage:       "Number of instances per example",
			Aliases:     []string{"b"},
			Destination: &batchSize,
			Value:       32,
		},
		&cli.IntFlag{
			Name:        "prefetch",
			Usage:       "Number of batches decoded ahead of the consumer. 0 selects the CPU count",
			Destination: &numPrefetchedBatches,
		},
		&cli.IntFlag{
			Name:        "parallelReads",
			Usage:       "Number of decode workers. 0 selects the prefetch count",
			Destination: &numParallelReads,
		},
		&cli.StringFlag{
			Name:        "lastBatch",
			Usage:       "Short final batch handling: none, drop or pad",
			Destination: &lastBatchName,
			Value:       "none",
		},
		&cli.StringFlag{
			Name:        "badBatch",
			Usage:       "Undecodable batch handling: error, skip or warn",
			Destination: &badBatchName,
			Value:       "error",
		},
		&cli.Uint64Flag{
			Name:        "skip",
			Usage:       "Number of leading instances to skip",
			Destination: &skipInstances,
		},
		&cli.Uint64Flag{
			Name:        "limit",
			Usage:       "Maximum number of instances to read. 0 means unbounded",
			Destination: &readInstances,
		},
		&cli.IntFlag{
			Name:        "shardIndex",
			Usage:       "Index of the shard to read",
			Destination: &shardIndex,
		},
		&cli.IntFlag{
			Name:        "numShards",
			Usage:       "Total number of shards. 0 disables sharding",
			Destination: &numShards,
		},
		&cli.BoolFlag{
			Name:        "shuffle",
			Usage:       "Shuffle instances before batching",
			Destination: &shuffle,
		},
		&cli.IntFlag{
			Name:        "shuffleWindow",
			Usage:       "Shuffle window size. 0 buffers the whole epoch",
			Destination: &shuffleWindow,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "Shuffle seed. Negative picks a random seed",
			Destination: &shuffleSeed,
			Value:       -1,
		},
		&cli.Float64Flag{
			Name:        "subsample",
			Usage:       "Fraction of instances to keep. 0 or 1 keeps everything",
			Destination: &subsampleRatio,
		},
		&cli.BoolFlag{
			Name:        "header",
			Usage:       "csv: treat the first row of each store as a header",
			Destination: &csvHeader,
		},
		&cli.StringFlag{
			Name:        "delimiter",
			Usage:       "csv: field delimiter",
			Destination: &csvDelimiter,
			Value:       ",",
		},
		&cli.IntFlag{
			Name:        "width",
			Usage:       "image: output width in pixels",
			Destination: &imageWidth,
			Value:       224,
		},
		&cli.IntFlag{
			Name:        "height",
			Usage:       "image: output height in pixels",
			Destination: &imageHeight,
			Value:       224,
		},
		&cli.BoolFlag{
			Name:        "recordio",
			Usage:       "image: stores carry RecordIO-framed images instead of one image per store",
			Destination: &imageRecordIO,
		},
		&cli.BoolFlag{
			Name:        "verbose",
			Usage:       "Log at debug level",
			Aliases:     []string{"v"},
			Destination: &verbose,
		},
	},
	Action: func(ctx *cli.Context) error {
		logger := newLogger(verbose)

		stores, err := collectStores(ctx)
		if err != nil {
			return err
		}

		params, err := buildReaderParams()
		if err != nil {
			return err
		}

		r, err := newFormatReader(stores, params, options.WithLogger(&logger))
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()

		target, closeTarget, err := openOutput()
		if err != nil {
			return err
		}
		defer closeTarget()

		if err := writeExamples(ctx.Context, r, target); err != nil {
			return err
		}
		logger.Info().Uint64("bytesRead", r.NumBytesRead()).Msg("done")
		return nil
	},
}

func main() {
	app := &cli.App{
		Name:     "mldata",
		Usage:    "Batched parallel reading of machine learning datasets",
		Commands: []*cli.Command{readCommand},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("mldata failed")
	}
}

func newLogger(verbose bool) log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	logger := log.Logger{Level: level, Writer: log.IOWriter{Writer: os.Stderr}}
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		logger.Writer = &log.ConsoleWriter{ColorOutput: true}
	}
	return logger
}

func collectStores(ctx *cli.Context) ([]dataStores.DataStore, error) {
	if manifestPath != "" {
		if ctx.Args().Len() > 0 {
			return nil, errors.New("store URLs and --manifest are mutually exclusive")
		}
		return datasets.FromManifest(manifestPath)
	}
	if ctx.Args().Len() == 0 {
		return nil, errors.New("no store URLs given")
	}
	compression, err := datasets.ParseCompression(compressionName)
	if err != nil {
		return nil, err
	}
	return datasets.FromPaths(ctx.Args().Slice(), compression), nil
}

func buildReaderParams() (reader.ReaderParams, error) {
	params := reader.ReaderParams{
		BatchSize:            batchSize,
		NumPrefetchedBatches: numPrefetchedBatches,
		NumParallelReads:     numParallelReads,
		NumInstancesToSkip:   skipInstances,
		NumInstancesToRead:   readInstances,
		ShardIndex:           shardIndex,
		NumShards:            numShards,
		ShuffleInstances:     shuffle,
		ShuffleWindow:        shuffleWindow,
		SubsampleRatio:       subsampleRatio,
	}
	switch lastBatchName {
	case "none":
		params.LastBatchHandling = reader.LastBatchNone
	case "drop":
		params.LastBatchHandling = reader.LastBatchDrop
	case "pad":
		params.LastBatchHandling = reader.LastBatchPad
	default:
		return params, fmt.Errorf("unknown last batch handling %q", lastBatchName)
	}
	switch badBatchName {
	case "error":
		params.BadBatchHandling = reader.BadBatchError
	case "skip":
		params.BadBatchHandling = reader.BadBatchSkip
	case "warn":
		params.BadBatchHandling = reader.BadBatchWarn
	default:
		return params, fmt.Errorf("unknown bad batch handling %q", badBatchName)
	}
	if shuffleSeed >= 0 {
		seed := uint64(shuffleSeed)
		params.ShuffleSeed = &seed
	}
	return params, nil
}

func newFormatReader(stores []dataStores.DataStore, params reader.ReaderParams, opts ...options.WithOption) (*reader.ParallelReader, error) {
	switch format {
	case "csv":
		if len(csvDelimiter) != 1 {
			return nil, fmt.Errorf("delimiter must be a single character, got %q", csvDelimiter)
		}
		return readers.NewCSVReader(stores, readers.CSVParams{
			Delimiter: csvDelimiter[0],
			HasHeader: csvHeader,
		}, params, opts...)
	case "recordio":
		return readers.NewRecordIOVectorReader(stores, readers.RecordIOVectorParams{}, params, opts...)
	case "image":
		framing := readers.ImageFramingBlob
		if imageRecordIO {
			framing = readers.ImageFramingRecordIO
		}
		return readers.NewImageReader(stores, readers.ImageParams{
			Width:   imageWidth,
			Height:  imageHeight,
			Framing: framing,
		}, params, opts...)
	default:
		return nil, fmt.Errorf("unknown format %q, want csv, recordio or image", format)
	}
}

func openOutput() (io.Writer, func(), error) {
	if outputPath == "" {
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { _ = file.Close() }, nil
}

type outputTensor struct {
	Shape []int `json:"shape"`
	Data  any   `json:"data"`
}

type outputBatch struct {
	Batch   uint64                  `json:"batch"`
	Padding int                     `json:"padding,omitempty"`
	Tensors map[string]outputTensor `json:"tensors"`
}

func writeExamples(ctx context.Context, r *reader.ParallelReader, target io.Writer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		example, err := r.ReadExample()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line := outputBatch{
			Batch:   example.BatchIndex,
			Padding: example.Padding,
			Tensors: make(map[string]outputTensor, len(example.Tensors)),
		}
		for _, named := range example.Tensors {
			line.Tensors[named.Name] = outputTensor{
				Shape: named.Dense.Shape(),
				Data:  named.Dense.Data(),
			}
		}
		lineBytes, err := jsoniter.Marshal(line)
		if err != nil {
			return err
		}
		if _, err := target.Write(append(lineBytes, '\n')); err != nil {
			return err
		}
	}
}
