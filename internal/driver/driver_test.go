package driver

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lidisk/index"
	"github.com/hupe1980/lidisk/index/btree"
	"github.com/hupe1980/lidisk/index/rmi"
	"github.com/hupe1980/lidisk/internal/fs"
	"github.com/hupe1980/lidisk/internal/mmap"
	"github.com/hupe1980/lidisk/internal/pageio"
	"github.com/hupe1980/lidisk/layout"
	"github.com/hupe1980/lidisk/stats"
	"github.com/hupe1980/lidisk/testutil"
	"github.com/hupe1980/lidisk/workload"
)

type setup struct {
	ds      *layout.Dataset
	records []layout.Record
	keys    []uint64
}

func newSetup(t *testing.T, c layout.Compression, s layout.Strategy, g uint64, n int) *setup {
	t.Helper()
	keys := testutil.NewRNG(int64(n)).UniqueKeys(n, 1<<20)
	p := testutil.Params(t, c)
	p.Strategy = s
	p.Granularity = g
	records := testutil.Records(keys)
	return &setup{ds: testutil.WriteDataset(t, p, records), records: records, keys: keys}
}

func (s *setup) env(workers int) Env {
	return Env{
		Params:    s.ds.Params,
		Blocks:    s.ds.Blocks,
		FileBytes: s.ds.FileBytes,
		Workers:   workers,
		Seed:      1,
	}
}

// emptyIndex predicts an empty range for every key.
type emptyIndex struct{}

func (emptyIndex) Lookup(uint64) index.SearchRange { return index.SearchRange{Start: 3, Stop: 3} }
func (emptyIndex) Clone() index.Index              { return emptyIndex{} }

func TestPartition(t *testing.T) {
	assert.Equal(t, []Span{{0, 3}, {3, 6}, {6, 10}}, Partition(10, 3))
	assert.Equal(t, []Span{{0, 0}, {0, 0}, {0, 2}}, Partition(2, 3))
	assert.Equal(t, []Span{{0, 5}}, Partition(5, 0))
}

func TestStressRange(t *testing.T) {
	assert.Equal(t, index.SearchRange{Start: 5, Stop: 11}, StressRange(10, 5, 100))
	assert.Equal(t, index.SearchRange{Start: 0, Stop: 4}, StressRange(3, 5, 100))
	assert.Equal(t, index.SearchRange{Start: 10, Stop: 11}, StressRange(10, 0, 100))
	assert.Equal(t, index.SearchRange{Start: 90, Stop: 100}, StressRange(99, 9, 100))
}

func TestRunLookups_WorkerCountInvariant(t *testing.T) {
	layouts := []layout.Compression{layout.CompressionNone, layout.CompressionAligned, layout.CompressionSequential}
	strategies := []layout.Strategy{layout.StrategyDirect, layout.StrategyMapped}

	for _, c := range layouts {
		for _, s := range strategies {
			t.Run(c.String()+"/"+s.String(), func(t *testing.T) {
				su := newSetup(t, c, s, 8, 20_000)
				model, err := rmi.Train(su.keys, 8, 200)
				require.NoError(t, err)
				l := workload.Uniform(su.records, 3000, 5)

				one, err := RunLookups(context.Background(), model, l, su.env(1))
				require.NoError(t, err)
				four, err := RunLookups(context.Background(), model, l, su.env(4))
				require.NoError(t, err)

				assert.Equal(t, uint64(3000), one.Ops)
				assert.Equal(t, one.Ops, four.Ops)
				assert.Equal(t, one.Checksum, four.Checksum)
				assert.Equal(t, one.RangeSum, four.RangeSum)
				assert.Equal(t, one.RangeMax, four.RangeMax)
				assert.Equal(t, one.Matches, four.Matches)
				assert.Equal(t, one.PagesFetched, four.PagesFetched)
				assert.Equal(t, one.DistinctPages(), four.DistinctPages())

				assert.Equal(t, workload.ExpectedChecksum(su.records, l, 100), one.Checksum)
				assert.Positive(t, one.ElapsedNs)
			})
		}
	}
}

// pointIndex predicts the one-item range holding the first occurrence of a
// key.
type pointIndex map[uint64]uint64

func newPointIndex(keys []uint64) pointIndex {
	idx := pointIndex{}
	for i, k := range keys {
		if _, ok := idx[k]; !ok {
			idx[k] = uint64(i)
		}
	}
	return idx
}

func (p pointIndex) Lookup(key uint64) index.SearchRange {
	pos := p[key]
	return index.SearchRange{Start: pos, Stop: pos + 1}
}

func (p pointIndex) Clone() index.Index { return p }

func TestRunLookups_DuplicatesAcrossPages(t *testing.T) {
	// Runs of 30 at record 250 and 150 at record 1000 cross the page
	// boundaries at 256 and 1024.
	keys := testutil.WithRun(testutil.WithRun(testutil.DenseKeys(4000, 10, 2), 250, 30), 1000, 150)
	records := testutil.Records(keys)
	idx := newPointIndex(keys)

	var l workload.Lookups
	for _, pos := range []uint64{250, 1000, 10, 3000, 250, 1000} {
		l = append(l, workload.Entry{Key: keys[pos], Pos: pos})
	}
	want := workload.ExpectedChecksum(records, l, 100)
	assert.Equal(t, 2*(keys[250]*30+keys[1000]*100)+keys[10]+keys[3000], want)

	layouts := []layout.Compression{layout.CompressionNone, layout.CompressionAligned, layout.CompressionSequential}
	strategies := []layout.Strategy{layout.StrategyDirect, layout.StrategyMapped}
	for _, c := range layouts {
		for _, s := range strategies {
			t.Run(c.String()+"/"+s.String(), func(t *testing.T) {
				p := testutil.Params(t, c)
				p.Strategy = s
				su := &setup{ds: testutil.WriteDataset(t, p, records), records: records, keys: keys}

				one, err := RunLookups(context.Background(), idx, l, su.env(1))
				require.NoError(t, err)
				three, err := RunLookups(context.Background(), idx, l, su.env(3))
				require.NoError(t, err)

				assert.Equal(t, want, one.Checksum)
				assert.Equal(t, uint64(2*(30+100)+2), one.Matches)
				assert.Equal(t, one.Checksum, three.Checksum)
				assert.Equal(t, one.Matches, three.Matches)
				assert.Equal(t, one.PagesFetched, three.PagesFetched)
				assert.Equal(t, one.DistinctPages(), three.DistinctPages())

				if c == layout.CompressionNone {
					// each run lookup reads one page past its range
					assert.Equal(t, uint64(len(l)+4), one.PagesFetched)
				}
			})
		}
	}
}

func TestRunLookups_BTreeModel(t *testing.T) {
	su := newSetup(t, layout.CompressionNone, layout.StrategyDirect, 16, 10_000)
	model, err := btree.Build(su.keys, 16, 8)
	require.NoError(t, err)
	l := workload.Uniform(su.records, 1000, 2)

	c, err := RunLookups(context.Background(), model, l, su.env(2))
	require.NoError(t, err)
	assert.Equal(t, l.KeySum(), c.Checksum)
	// two groups minus the uncompressed stop adjustment
	assert.LessOrEqual(t, c.RangeMax, uint64(31))
}

func TestRunLookups_ZeroWidth(t *testing.T) {
	su := newSetup(t, layout.CompressionNone, layout.StrategyDirect, 1, 1000)
	l := workload.Uniform(su.records, 100, 3)

	for _, workers := range []int{1, 3} {
		c, err := RunLookups(context.Background(), emptyIndex{}, l, su.env(workers))
		require.NoError(t, err)
		assert.Equal(t, uint64(100), c.Ops)
		assert.Zero(t, c.PagesFetched)
		assert.Zero(t, c.IOOps)
		assert.Zero(t, c.Matches)
		assert.Zero(t, c.RangeSum)
	}
}

func TestFetchResolve_ZeroWidth(t *testing.T) {
	for _, s := range []layout.Strategy{layout.StrategyDirect, layout.StrategyMapped} {
		su := newSetup(t, layout.CompressionNone, s, 1, 1000)
		env := su.env(1)
		require.NoError(t, env.check())

		c, err := run(context.Background(), &env, 1, nil, workload.Lookups{{Key: su.keys[10], Pos: 10}},
			func(ctx context.Context, w *worker, e workload.Entry) error {
				var q stats.Query
				if err := w.fetchResolve(ctx, e.Key, index.SearchRange{Start: e.Pos, Stop: e.Pos}, &q); err != nil {
					return err
				}
				w.counters.Observe(q)
				return nil
			})
		require.NoError(t, err)
		assert.Zero(t, c.PagesFetched)
		assert.Zero(t, c.Matches)
	}
}

func TestRunLookups_Empty(t *testing.T) {
	su := newSetup(t, layout.CompressionNone, layout.StrategyDirect, 1, 100)
	c, err := RunLookups(context.Background(), emptyIndex{}, nil, su.env(4))
	require.NoError(t, err)
	assert.Zero(t, c.Ops)
	assert.Zero(t, c.Checksum)
}

func TestRunLookups_Scenario(t *testing.T) {
	n := 1_000_000
	if testing.Short() {
		n = 100_000
	}
	su := newSetup(t, layout.CompressionNone, layout.StrategyDirect, 8, n)
	model, err := rmi.Train(su.keys, 8, 1000)
	require.NoError(t, err)

	l, expected := workload.Sample(su.records, 10_000, uint64(n/10_000))
	c, err := RunLookups(context.Background(), model, l, su.env(4))
	require.NoError(t, err)

	s := stats.Summarize(c, su.ds.Params.PageBytes, expected, uint64(len(l)))
	assert.Equal(t, uint64(10_000), s.Ops)
	assert.Equal(t, expected, s.Checksum)
	assert.True(t, s.Correct)
	assert.Positive(t, s.Throughput)
	assert.LessOrEqual(t, s.MaxRange, model.MaxError()+2*8)
}

func TestRunLookups_IOFailure(t *testing.T) {
	su := newSetup(t, layout.CompressionNone, layout.StrategyDirect, 1, 5000)
	model, err := rmi.Train(su.keys, 1, 50)
	require.NoError(t, err)
	l := workload.Uniform(su.records, 400, 4)

	faulty := fs.NewFaultyFS(fs.Default)
	faulty.AddRule(su.ds.Params.FileName, fs.Fault{FailAfterReads: 20})

	for _, workers := range []int{1, 4} {
		env := su.env(workers)
		env.FS = faulty

		c, err := RunLookups(context.Background(), model, l, env)
		require.Error(t, err)
		assert.Zero(t, c.Ops)

		var ioErr *pageio.IOError
		require.ErrorAs(t, err, &ioErr)
		assert.ErrorIs(t, err, fs.ErrInjected)
	}
}

func TestRunLookups_InvalidConfig(t *testing.T) {
	su := newSetup(t, layout.CompressionAligned, layout.StrategyDirect, 1, 100)

	env := su.env(2)
	env.Blocks = nil
	_, err := RunLookups(context.Background(), emptyIndex{}, nil, env)
	assert.ErrorIs(t, err, layout.ErrInvalidLayout)

	env = su.env(2)
	env.Params.RecordBytes = 12
	_, err = RunLookups(context.Background(), emptyIndex{}, nil, env)
	assert.ErrorIs(t, err, layout.ErrInvalidLayout)
}

func TestRunLookups_Canceled(t *testing.T) {
	su := newSetup(t, layout.CompressionNone, layout.StrategyDirect, 1, 1000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunLookups(ctx, emptyIndex{}, workload.Uniform(su.records, 10, 1), su.env(2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunDiskStress_DiffZero(t *testing.T) {
	for _, s := range []layout.Strategy{layout.StrategyDirect, layout.StrategyMapped} {
		su := newSetup(t, layout.CompressionNone, s, 1, 50_000)

		res, err := RunDiskStress(context.Background(), su.records, 5000, su.env(4), 0)
		require.NoError(t, err)

		c := res.Counters
		assert.Equal(t, 4, res.Workers)
		assert.Equal(t, uint64(5000), c.Ops)
		// one 16-byte record never straddles a page
		assert.Equal(t, c.Ops, c.PagesFetched)
		assert.Equal(t, c.Ops, c.RangeSum)
		assert.Equal(t, uint64(1), c.RangeMax)
		assert.Equal(t, res.Expected, c.Checksum)

		sum := stats.Summarize(c, su.ds.Params.PageBytes, res.Expected, uint64(res.Lookups))
		assert.True(t, sum.Correct)
		assert.InDelta(t, 1.0, sum.AvgPages, 1e-9)
	}
}

func TestRunDiskStress_Widths(t *testing.T) {
	su := newSetup(t, layout.CompressionNone, layout.StrategyDirect, 1, 50_000)

	narrow, err := RunDiskStress(context.Background(), su.records, 2000, su.env(2), 0)
	require.NoError(t, err)
	wide, err := RunDiskStress(context.Background(), su.records, 2000, su.env(2), 1024)
	require.NoError(t, err)

	assert.Greater(t, wide.Counters.PagesFetched, narrow.Counters.PagesFetched)
	assert.Equal(t, uint64(1025), wide.Counters.RangeMax)
	assert.Equal(t, narrow.Expected, wide.Expected)
	assert.Equal(t, wide.Expected, wide.Counters.Checksum)
}

func TestRunDiskStress_MemoryResident(t *testing.T) {
	su := newSetup(t, layout.CompressionNone, layout.StrategyMapped, 1, 10_000)
	env := su.env(8)
	env.Params.OnDisk = false

	res, err := RunDiskStress(context.Background(), su.records, 1000, env, 16)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Workers)
	assert.Equal(t, uint64(1000), res.Counters.Ops)
}

func TestRunDiskStress_Errors(t *testing.T) {
	su := newSetup(t, layout.CompressionSequential, layout.StrategyDirect, 1, 100)
	_, err := RunDiskStress(context.Background(), su.records, 10, su.env(1), 0)
	assert.ErrorIs(t, err, layout.ErrInvalidLayout)

	su = newSetup(t, layout.CompressionNone, layout.StrategyDirect, 1, 100)
	_, err = RunDiskStress(context.Background(), su.records[:50], 10, su.env(1), 0)
	assert.ErrorIs(t, err, layout.ErrInvalidLayout)
}

func debugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRunDiskStress_LogsPoolGrowth(t *testing.T) {
	su := newSetup(t, layout.CompressionNone, layout.StrategyDirect, 1, 20_000)
	var buf bytes.Buffer
	env := su.env(2)
	env.Params.PoolPages = 1
	env.Logger = debugLogger(&buf)

	_, err := RunDiskStress(context.Background(), su.records, 200, env, 1000)
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(buf.String(), "worker finished"))
	assert.Regexp(t, `pool_growths=[1-9]`, buf.String())
}

func TestRunLookups_AdviseFailureLogged(t *testing.T) {
	su := newSetup(t, layout.CompressionNone, layout.StrategyMapped, 1, 1000)
	m, err := mmap.Open(su.ds.Params.Path())
	require.NoError(t, err)
	require.NoError(t, m.Close())

	var buf bytes.Buffer
	env := su.env(1)
	env.Mapping = m
	env.Logger = debugLogger(&buf)

	_, err = RunLookups(context.Background(), newPointIndex(su.keys), workload.Uniform(su.records, 10, 1), env)
	assert.ErrorIs(t, err, mmap.ErrClosed)
	assert.Contains(t, buf.String(), "madvise failed")
}
