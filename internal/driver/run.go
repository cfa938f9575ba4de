package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/lidisk/index"
	"github.com/hupe1980/lidisk/internal/mmap"
	"github.com/hupe1980/lidisk/internal/refine"
	"github.com/hupe1980/lidisk/internal/timing"
	"github.com/hupe1980/lidisk/layout"
	"github.com/hupe1980/lidisk/stats"
	"github.com/hupe1980/lidisk/workload"
)

// RunLookups predicts, refines, fetches and resolves every lookup. The
// returned counters are merged across workers; ElapsedNs is the wall time of
// the whole run including worker setup and join.
func RunLookups(ctx context.Context, idx index.Index, lookups workload.Lookups, env Env) (stats.Counters, error) {
	if err := env.check(); err != nil {
		return stats.Counters{}, err
	}
	g := env.Params.Granularity
	n := env.Params.ItemCount()
	c := env.Params.Compression

	query := func(ctx context.Context, w *worker, e workload.Entry) error {
		var q stats.Query
		var coarse index.SearchRange
		q.PredictNs = timing.Ns(func() { coarse = w.idx.Lookup(e.Key) })

		var r index.SearchRange
		q.ComputeNs = timing.Ns(func() { r = refine.ForScan(coarse, g, n, c) })

		if err := w.fetchResolve(ctx, e.Key, r, &q); err != nil {
			return err
		}
		w.counters.Observe(q)
		return nil
	}

	return run(ctx, &env, env.Workers, idx, lookups, query)
}

// Stress is the outcome of a disk stress run.
type Stress struct {
	Counters stats.Counters
	// Expected is the key sum of the sampled workload.
	Expected uint64
	Lookups  int
	Workers  int
}

// RunDiskStress probes fetch and resolve without a model. It samples
// lookupCount records a quarter page apart, shuffles them, and searches each
// in the fixed item range [pos-diff, pos+1). The dataset must be
// fixed-stride. A memory-resident dataset runs on one worker.
func RunDiskStress(ctx context.Context, data []layout.Record, lookupCount int, env Env, diff uint64) (Stress, error) {
	if env.Params.Compression.Compressed() {
		return Stress{}, &layout.LayoutError{Field: "compression", Reason: "disk stress requires the fixed-stride layout"}
	}
	if err := env.check(); err != nil {
		return Stress{}, err
	}
	if uint64(len(data)) != env.Params.ItemCount() {
		return Stress{}, &layout.LayoutError{Field: "dataset_bytes", Reason: fmt.Sprintf("%d records in memory, %d on storage", len(data), env.Params.ItemCount())}
	}

	lookups, expected := workload.Sample(data, lookupCount, workload.StressStride(env.Params))
	workload.Shuffle(lookups, env.Seed)

	workers := env.Workers
	if !env.Params.OnDisk {
		workers = 1
	}
	n := env.Params.ItemCount()

	query := func(ctx context.Context, w *worker, e workload.Entry) error {
		var q stats.Query
		if err := w.fetchResolve(ctx, e.Key, StressRange(e.Pos, diff, n), &q); err != nil {
			return err
		}
		w.counters.Observe(q)
		return nil
	}

	c, err := run(ctx, &env, workers, nil, lookups, query)
	if err != nil {
		return Stress{}, err
	}
	return Stress{Counters: c, Expected: expected, Lookups: len(lookups), Workers: workers}, nil
}

// StressRange is [pos-diff, pos+1) clamped to [0, n).
func StressRange(pos, diff, n uint64) index.SearchRange {
	r := index.SearchRange{Stop: min(pos+1, n)}
	if pos >= diff {
		r.Start = pos - diff
	}
	return r
}

func run(ctx context.Context, env *Env, workers int, idx index.Index, lookups workload.Lookups, query queryFunc) (stats.Counters, error) {
	var m *mmap.Mapping
	if env.Params.Strategy == layout.StrategyMapped {
		m = env.Mapping
		if m == nil {
			var err error
			if m, err = mmap.Open(env.Params.Path()); err != nil {
				return stats.Counters{}, err
			}
			defer m.Close()
		}
		if err := m.Advise(mmap.AccessRandom); err != nil {
			env.Logger.Warn("madvise failed", "path", env.Params.Path(), "error", err)
		}
	}

	var total stats.Counters
	var err error
	elapsed := timing.Ns(func() {
		if workers <= 1 || len(lookups) == 0 {
			total, err = runInline(ctx, env, idx, m, lookups, query)
			return
		}
		total, err = runParallel(ctx, env, workers, idx, m, lookups, query)
	})
	if err != nil {
		return stats.Counters{}, err
	}
	total.ElapsedNs = elapsed
	return total, nil
}

func runInline(ctx context.Context, env *Env, idx index.Index, m *mmap.Mapping, lookups workload.Lookups, query queryFunc) (stats.Counters, error) {
	w, err := newWorker(env, 0, idx, m)
	if err != nil {
		return stats.Counters{}, err
	}
	err = w.loop(ctx, lookups, query)
	if err == nil {
		env.Logger.Debug("worker finished", "worker", 0, "ops", w.counters.Ops, "pool_growths", w.poolGrowths())
	}
	if cerr := w.close(); err == nil {
		err = cerr
	}
	if err != nil {
		return stats.Counters{}, err
	}
	return w.counters, nil
}

func runParallel(ctx context.Context, env *Env, workers int, idx index.Index, m *mmap.Mapping, lookups workload.Lookups, query queryFunc) (stats.Counters, error) {
	spans := Partition(len(lookups), workers)
	slots := make([]stats.Counters, len(spans))

	g, gctx := errgroup.WithContext(ctx)
	for i, span := range spans {
		var clone index.Index
		if idx != nil {
			clone = idx.Clone()
		}

		g.Go(func() (err error) {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			w, err := newWorker(env, i, clone, m)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := w.close(); err == nil {
					err = cerr
				}
			}()

			env.Logger.Debug("worker started", "worker", i, "lookups", span.Hi-span.Lo)
			if err := w.loop(gctx, lookups[span.Lo:span.Hi], query); err != nil {
				if !errors.Is(err, context.Canceled) {
					env.Logger.Error("worker failed", "worker", i, "error", err)
				}
				return err
			}
			slots[i] = w.counters
			env.Logger.Debug("worker finished", "worker", i, "ops", w.counters.Ops, "pool_growths", w.poolGrowths())
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats.Counters{}, err
	}
	return stats.MergeAll(slots), nil
}
