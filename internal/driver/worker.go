package driver

import (
	"context"
	"errors"

	"github.com/hupe1980/lidisk/index"
	"github.com/hupe1980/lidisk/internal/fs"
	"github.com/hupe1980/lidisk/internal/lastmile"
	"github.com/hupe1980/lidisk/internal/mmap"
	"github.com/hupe1980/lidisk/internal/pageio"
	"github.com/hupe1980/lidisk/internal/timing"
	"github.com/hupe1980/lidisk/layout"
	"github.com/hupe1980/lidisk/stats"
	"github.com/hupe1980/lidisk/workload"
)

// worker owns everything one lookup thread touches.
type worker struct {
	id       int
	params   layout.Params
	blocks   *layout.BlockDirectory
	idx      index.Index
	files    []fs.File
	fetcher  pageio.Fetcher
	engine   *lastmile.Engine
	counters stats.Counters

	// Per-query state of duplicate scans that outlast the first extent.
	ctx    context.Context
	more   lastmile.ExtendFunc
	moreNs uint64
}

// queryFunc runs one lookup and records it in w.counters.
type queryFunc func(ctx context.Context, w *worker, e workload.Entry) error

func newWorker(env *Env, id int, idx index.Index, m *mmap.Mapping) (*worker, error) {
	w := &worker{
		id:       id,
		params:   env.Params,
		blocks:   env.Blocks,
		idx:      idx,
		counters: stats.New(),
	}

	opts := pageio.Options{Worker: id, Controller: env.Controller}
	switch env.Params.Strategy {
	case layout.StrategyMapped:
		w.fetcher = pageio.NewMapped(m, w.params, opts)
	default:
		files, direct, err := fs.OpenFiles(env.FS, env.Params.DataDir, []string{env.Params.FileName}, true)
		if err != nil {
			return nil, err
		}
		if !direct {
			env.fallback.Do(func() {
				env.Logger.Warn("direct I/O unsupported, using buffered reads", "path", env.Params.Path())
			})
		}
		w.files = files

		df, err := pageio.NewDirect(files[0], env.FileBytes, w.params, opts)
		if err != nil {
			_ = fs.CloseFiles(files)
			return nil, err
		}
		w.fetcher = df
	}

	engine, err := lastmile.New(w.params, w.blocks)
	if err != nil {
		_ = w.close()
		return nil, err
	}
	w.engine = engine
	w.more = w.extend
	return w, nil
}

func (w *worker) loop(ctx context.Context, lookups workload.Lookups, q queryFunc) error {
	for _, e := range lookups {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := q(ctx, w, e); err != nil {
			return err
		}
	}
	return nil
}

// fetchResolve fetches the pages holding r and resolves key in them.
func (w *worker) fetchResolve(ctx context.Context, key uint64, r index.SearchRange, q *stats.Query) error {
	start, stop := pageio.ByteRange(r, w.params, w.blocks)

	var ext pageio.Extent
	var err error
	q.IONs += timing.Ns(func() { ext, err = w.fetcher.Fetch(ctx, start, stop, w.counters.Pages) })
	if err != nil {
		return err
	}

	w.ctx, w.moreNs = ctx, 0
	var res lastmile.Result
	computeNs := timing.Ns(func() { res, err = w.engine.Resolve(ext, key, r, w.more) })
	w.ctx = nil
	if err != nil {
		return err
	}
	q.ComputeNs += computeNs - min(w.moreNs, computeNs)
	q.IONs += w.moreNs

	q.Width = res.Width
	q.Sum = res.Sum
	q.Matches = res.Matches()
	q.Pages = ext.Pages + res.Pages
	q.IOOps = ext.IOOps + res.IOOps
	return nil
}

// extend continues a duplicate scan past the first extent.
func (w *worker) extend(start, stop uint64) (pageio.Extent, error) {
	var ext pageio.Extent
	var err error
	w.moreNs += timing.Ns(func() { ext, err = w.fetcher.Fetch(w.ctx, start, stop, w.counters.Pages) })
	return ext, err
}

// poolGrowths counts direct fetches that outgrew the page pool.
func (w *worker) poolGrowths() int {
	if df, ok := w.fetcher.(*pageio.DirectFetcher); ok {
		return df.PoolGrowths()
	}
	return 0
}

func (w *worker) close() error {
	var errs []error
	if w.fetcher != nil {
		errs = append(errs, w.fetcher.Close())
	}
	errs = append(errs, fs.CloseFiles(w.files))
	return errors.Join(errs...)
}
