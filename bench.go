package lidisk

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/hupe1980/lidisk/index"
	"github.com/hupe1980/lidisk/index/btree"
	"github.com/hupe1980/lidisk/index/rmi"
	"github.com/hupe1980/lidisk/internal/driver"
	"github.com/hupe1980/lidisk/internal/memlookup"
	"github.com/hupe1980/lidisk/internal/resource"
	"github.com/hupe1980/lidisk/layout"
	"github.com/hupe1980/lidisk/report"
	"github.com/hupe1980/lidisk/stats"
	"github.com/hupe1980/lidisk/workload"
)

// Bench runs lookup benchmarks against one dataset.
//
// A Bench is safe for sequential use; runs must not overlap.
type Bench struct {
	ds   *layout.Dataset
	opts options
	ctrl *resource.Controller

	mu      sync.Mutex
	records []layout.Record
}

// Open opens the dataset described by p.
func Open(p layout.Params, optFns ...Option) (*Bench, error) {
	o := applyOptions(optFns)
	ds, err := layout.Open(o.fs, p)
	if err != nil {
		return nil, err
	}
	if o.records != nil && uint64(len(o.records)) != p.ItemCount() {
		return nil, &LayoutError{Field: "dataset_bytes", Reason: fmt.Sprintf("%d records supplied, dataset holds %d", len(o.records), p.ItemCount())}
	}
	return newBench(ds, o), nil
}

// Create writes records in the layout selected by p and opens the result.
// The records stay attached to the Bench.
func Create(p layout.Params, records []layout.Record, optFns ...Option) (*Bench, error) {
	o := applyOptions(optFns)
	ds, err := layout.Write(o.fs, p, records)
	if err != nil {
		return nil, err
	}
	o.records = records
	return newBench(ds, o), nil
}

func newBench(ds *layout.Dataset, o options) *Bench {
	o.logger = o.logger.WithStrategy(ds.Params.Strategy.String(), ds.Params.Compression.String())
	return &Bench{
		ds:      ds,
		opts:    o,
		ctrl:    resource.NewController(o.limits),
		records: o.records,
	}
}

// Params returns the dataset parameters.
func (b *Bench) Params() layout.Params { return b.ds.Params }

// Dataset returns the opened dataset.
func (b *Bench) Dataset() *layout.Dataset { return b.ds }

// Records returns the dataset in memory, reading it from storage on first
// use.
func (b *Bench) Records() ([]layout.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.records == nil {
		records, err := layout.ReadRecords(b.opts.fs, b.ds.Params)
		if err != nil {
			return nil, err
		}
		b.records = records
	}
	return b.records, nil
}

// Lookups samples n lookups uniformly from the dataset.
func (b *Bench) Lookups(n int) (workload.Lookups, error) {
	records, err := b.Records()
	if err != nil {
		return nil, err
	}
	return workload.Uniform(records, n, b.opts.seed), nil
}

// TrainRMI trains a two-layer model over the dataset's keys at the dataset
// granularity.
func (b *Bench) TrainRMI(fanout int) (*rmi.Model, error) {
	records, err := b.Records()
	if err != nil {
		return nil, err
	}
	return rmi.Train(keysOf(records), b.ds.Params.Granularity, fanout)
}

// BuildBTree builds a sparse B-tree model over the dataset's keys.
func (b *Bench) BuildBTree(degree int) (*btree.Model, error) {
	records, err := b.Records()
	if err != nil {
		return nil, err
	}
	return btree.Build(keysOf(records), b.ds.Params.Granularity, degree)
}

// RunLookups runs every lookup against storage: predict, refine, fetch,
// resolve. The checksum is verified against the in-memory records.
func (b *Bench) RunLookups(ctx context.Context, idx index.Index, lookups workload.Lookups) (report.Row, error) {
	if idx == nil {
		return report.Row{}, ErrNoIndex
	}
	records, err := b.Records()
	if err != nil {
		return b.fail(ctx, report.ModeLookup, err)
	}
	b.evict(ctx)

	env := b.env()
	c, err := driver.RunLookups(ctx, idx, lookups, env)
	if err != nil {
		return b.fail(ctx, report.ModeLookup, err)
	}

	expected := workload.ExpectedChecksum(records, lookups, b.ds.Params.MaxQualifying)
	return b.finish(ctx, report.ModeLookup, "", env.Workers, 0, c, expected, uint64(len(lookups)))
}

// RunMemoryLookups runs every lookup against the in-memory records on the
// calling goroutine. Page and I/O figures are zero.
func (b *Bench) RunMemoryLookups(ctx context.Context, idx index.Index, lookups workload.Lookups) (report.Row, error) {
	if idx == nil {
		return report.Row{}, ErrNoIndex
	}
	if err := b.ds.Params.Validate(); err != nil {
		return b.fail(ctx, report.ModeMemory, err)
	}
	records, err := b.Records()
	if err != nil {
		return b.fail(ctx, report.ModeMemory, err)
	}

	c, err := memlookup.Run(ctx, idx, records, lookups, memlookup.OptionsFrom(b.ds.Params))
	if err != nil {
		return b.fail(ctx, report.ModeMemory, err)
	}

	expected := workload.ExpectedChecksum(records, lookups, b.ds.Params.MaxQualifying)
	return b.finish(ctx, report.ModeMemory, "MEMORY", 1, 0, c, expected, uint64(len(lookups)))
}

// RunDiskStress measures fetch and resolve without a model over the fixed
// interval [pos-diff, pos+1) of lookupCount sampled records.
func (b *Bench) RunDiskStress(ctx context.Context, lookupCount int, diff uint64) (report.Row, error) {
	records, err := b.Records()
	if err != nil {
		return b.fail(ctx, report.ModeStress, err)
	}
	b.evict(ctx)

	s, err := driver.RunDiskStress(ctx, records, lookupCount, b.env(), diff)
	if err != nil {
		return b.fail(ctx, report.ModeStress, err)
	}
	label := fmt.Sprintf("DISK_%d", diff)
	return b.finish(ctx, report.ModeStress, label, s.Workers, diff, s.Counters, s.Expected, uint64(s.Lookups))
}

// Close closes the report sink.
func (b *Bench) Close() error {
	return b.opts.sink.Close()
}

func (b *Bench) env() driver.Env {
	workers := b.opts.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return driver.Env{
		Params:     b.ds.Params,
		Blocks:     b.ds.Blocks,
		FileBytes:  b.ds.FileBytes,
		FS:         b.opts.fs,
		Workers:    workers,
		Controller: b.ctrl,
		Logger:     b.opts.logger.Logger,
		Seed:       b.opts.seed,
	}
}

func (b *Bench) evict(ctx context.Context) {
	if !b.opts.coldCache {
		return
	}
	path := b.ds.Params.Path()
	b.opts.logger.LogPageCache(ctx, path, DropPageCache(path))
}

func (b *Bench) finish(ctx context.Context, mode report.Mode, label string, threads int, diff uint64, c stats.Counters, expected, expectedOps uint64) (report.Row, error) {
	p := b.ds.Params
	row := report.NewRow("", mode, threads, diff, p, stats.Summarize(c, p.PageBytes, expected, expectedOps))
	row.Label = label

	log := b.opts.logger.WithRun(row.RunID)
	log.LogRun(ctx, mode, row, nil)
	log.LogChecksum(ctx, row)
	b.opts.observer.OnRun(row)

	if b.opts.console != nil {
		if err := report.Console(b.opts.console, row); err != nil {
			return row, err
		}
	}
	if err := b.opts.sink.Write(ctx, row); err != nil {
		return row, fmt.Errorf("report %s run: %w", mode, err)
	}
	return row, nil
}

func (b *Bench) fail(ctx context.Context, mode report.Mode, err error) (report.Row, error) {
	b.opts.logger.LogRun(ctx, mode, report.Row{}, err)
	b.opts.observer.OnError(mode, err)
	return report.Row{}, err
}

func keysOf(records []layout.Record) []uint64 {
	keys := make([]uint64, len(records))
	for i, r := range records {
		keys[i] = r.Key
	}
	return keys
}
