package lidisk

import (
	"io"
	"log/slog"

	"github.com/hupe1980/lidisk/internal/fs"
	"github.com/hupe1980/lidisk/internal/resource"
	"github.com/hupe1980/lidisk/layout"
	"github.com/hupe1980/lidisk/report"
)

type options struct {
	logger    *Logger
	observer  Observer
	sink      report.Sink
	console   io.Writer
	fs        fs.FileSystem
	workers   int
	seed      int64
	limits    resource.Config
	coldCache bool
	records   []layout.Record
}

// Option configures a Bench.
type Option func(*options)

// WithLogger configures structured logging. Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := lidisk.NewJSONLogger(slog.LevelInfo)
//	b, _ := lidisk.Open(params, lidisk.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithObserver receives one event per run. Pass nil to disable.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs == nil {
			obs = NoopObserver{}
		}
		o.observer = obs
	}
}

// WithReportSink persists a row per run. The Bench closes the sink on Close.
func WithReportSink(sink report.Sink) Option {
	return func(o *options) {
		if sink == nil {
			sink = report.Discard{}
		}
		o.sink = sink
	}
}

// WithConsole writes the human-readable summary line of each run to w.
func WithConsole(w io.Writer) Option {
	return func(o *options) {
		o.console = w
	}
}

// WithWorkers sets the worker count of disk runs. Zero or less means one
// worker per CPU.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithFileSystem replaces the local file system, e.g. with a fault-injecting
// one in tests.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fs = fsys
	}
}

// WithSeed seeds workload sampling and the stress shuffle.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithLimits bounds page pool memory and page throughput. Zero values mean
// unlimited.
func WithLimits(memoryBytes int64, pagesPerSec float64, burstPages int) Option {
	return func(o *options) {
		o.limits = resource.Config{
			MemoryLimitBytes:   memoryBytes,
			IOLimitPagesPerSec: pagesPerSec,
			IOBurstPages:       burstPages,
		}
	}
}

// WithColdCache evicts the dataset from the OS page cache before every disk
// run.
func WithColdCache(enabled bool) Option {
	return func(o *options) {
		o.coldCache = enabled
	}
}

// WithRecords supplies the dataset's records so that they are not read back
// from storage for checksums and the stress workload.
func WithRecords(records []layout.Record) Option {
	return func(o *options) {
		o.records = records
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:   NoopLogger(),
		observer: NoopObserver{},
		sink:     report.Discard{},
		fs:       fs.Default,
		seed:     42,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
