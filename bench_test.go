package lidisk

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lidisk/internal/fs"
	"github.com/hupe1980/lidisk/layout"
	"github.com/hupe1980/lidisk/report"
	"github.com/hupe1980/lidisk/testutil"
	"github.com/hupe1980/lidisk/workload"
)

func createBench(t *testing.T, c layout.Compression, s layout.Strategy, n int, opts ...Option) *Bench {
	t.Helper()
	p := testutil.Params(t, c)
	p.Strategy = s
	records := testutil.Records(testutil.NewRNG(7).UniqueKeys(n, 1<<16))

	b, err := Create(p, records, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBench_RunLookups(t *testing.T) {
	for _, c := range []layout.Compression{layout.CompressionNone, layout.CompressionAligned, layout.CompressionSequential} {
		for _, s := range []layout.Strategy{layout.StrategyDirect, layout.StrategyMapped} {
			t.Run(c.String()+"/"+s.String(), func(t *testing.T) {
				obs := &BasicObserver{}
				var console bytes.Buffer
				b := createBench(t, c, s, 20000, WithWorkers(4), WithObserver(obs), WithConsole(&console))

				model, err := b.TrainRMI(100)
				require.NoError(t, err)
				lookups, err := b.Lookups(2000)
				require.NoError(t, err)

				row, err := b.RunLookups(context.Background(), model, lookups)
				require.NoError(t, err)

				assert.Equal(t, report.ModeLookup, row.Mode)
				assert.Equal(t, 4, row.Threads)
				assert.Equal(t, uint64(2000), row.Ops)
				assert.Equal(t, uint64(2000), row.Matches)
				assert.True(t, row.Correct, "checksum %d expected %d", row.Checksum, row.Expected)
				assert.GreaterOrEqual(t, row.AvgPages, 1.0)
				assert.NotEmpty(t, row.RunID)
				assert.Contains(t, console.String(), "FIND SUCCESS")

				mem, err := b.RunMemoryLookups(context.Background(), model, lookups)
				require.NoError(t, err)
				assert.Equal(t, row.Checksum, mem.Checksum)
				assert.Equal(t, 1, mem.Threads)
				assert.Zero(t, mem.AvgPages)
				assert.Zero(t, mem.TotalIO)

				stats := obs.GetStats()
				assert.Equal(t, int64(2), stats.Runs)
				assert.Zero(t, stats.Mismatches)
				assert.Equal(t, uint64(4000), stats.Ops)
			})
		}
	}
}

func TestBench_RunLookups_Duplicates(t *testing.T) {
	// Gaps in [0, 3] repeat roughly one key in four; runs regularly straddle
	// page boundaries.
	records := workload.Generate(20000, 3, 3)

	for _, c := range []layout.Compression{layout.CompressionNone, layout.CompressionAligned, layout.CompressionSequential} {
		for _, s := range []layout.Strategy{layout.StrategyDirect, layout.StrategyMapped} {
			t.Run(c.String()+"/"+s.String(), func(t *testing.T) {
				p := testutil.Params(t, c)
				p.Strategy = s
				b, err := Create(p, records, WithWorkers(3), WithLimits(64<<20, 1e7, 4096))
				require.NoError(t, err)
				t.Cleanup(func() { _ = b.Close() })

				model, err := b.TrainRMI(50)
				require.NoError(t, err)
				lookups, err := b.Lookups(3000)
				require.NoError(t, err)

				row, err := b.RunLookups(context.Background(), model, lookups)
				require.NoError(t, err)
				assert.Equal(t, row.Expected, row.Checksum)
				assert.True(t, row.Correct)
				assert.Greater(t, row.Matches, row.Ops)

				mem, err := b.RunMemoryLookups(context.Background(), model, lookups)
				require.NoError(t, err)
				assert.Equal(t, mem.Checksum, row.Checksum)
				assert.Equal(t, mem.Matches, row.Matches)
			})
		}
	}
}

func TestBench_BTreeModel(t *testing.T) {
	b := createBench(t, layout.CompressionNone, layout.StrategyDirect, 5000, WithWorkers(2))

	model, err := b.BuildBTree(8)
	require.NoError(t, err)
	lookups, err := b.Lookups(500)
	require.NoError(t, err)

	row, err := b.RunLookups(context.Background(), model, lookups)
	require.NoError(t, err)
	assert.True(t, row.Correct)
	assert.Equal(t, uint64(500), row.Matches)
}

func TestBench_RunDiskStress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stress.csv")
	sink, err := report.NewCSVSink(nil, path)
	require.NoError(t, err)

	b := createBench(t, layout.CompressionNone, layout.StrategyDirect, 10000, WithWorkers(3), WithReportSink(sink), WithSeed(5))

	for _, diff := range []uint64{0, 64} {
		row, err := b.RunDiskStress(context.Background(), 1000, diff)
		require.NoError(t, err)

		assert.Equal(t, report.ModeStress, row.Mode)
		assert.Equal(t, diff, row.Diff)
		assert.True(t, row.Correct)
		assert.Equal(t, uint64(1000), row.Ops)
		if diff == 0 {
			assert.Equal(t, 1.0, row.AvgPages)
			assert.Equal(t, 1.0, row.AvgRange)
		} else {
			assert.Greater(t, row.AvgRange, 1.0)
		}
	}
	require.NoError(t, b.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "3", recs[1][0])
	assert.Equal(t, "64", recs[2][1])
}

func TestBench_RunDiskStress_MemoryResident(t *testing.T) {
	p := testutil.Params(t, layout.CompressionNone)
	p.OnDisk = false
	records := testutil.Records(testutil.DenseKeys(4096, 1, 2))
	b, err := Create(p, records, WithWorkers(8))
	require.NoError(t, err)

	row, err := b.RunDiskStress(context.Background(), 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, row.Threads)
}

func TestBench_RunDiskStress_Compressed(t *testing.T) {
	obs := &BasicObserver{}
	b := createBench(t, layout.CompressionSequential, layout.StrategyDirect, 1000, WithObserver(obs))

	_, err := b.RunDiskStress(context.Background(), 10, 0)
	assert.ErrorIs(t, err, ErrInvalidLayout)
	assert.Equal(t, int64(1), obs.GetStats().Failures)
}

func TestBench_IOFailure(t *testing.T) {
	p := testutil.Params(t, layout.CompressionNone)
	faulty := fs.NewFaultyFS(nil)
	faulty.AddRule(p.FileName, fs.Fault{FailAfterReads: 10})

	records := testutil.Records(testutil.NewRNG(3).UniqueKeys(5000, 64))
	b, err := Create(p, records, WithFileSystem(faulty), WithWorkers(2))
	require.NoError(t, err)

	model, err := b.TrainRMI(50)
	require.NoError(t, err)
	lookups, err := b.Lookups(500)
	require.NoError(t, err)

	_, err = b.RunLookups(context.Background(), model, lookups)
	require.Error(t, err)
	assert.True(t, IsIOError(err))
	assert.ErrorIs(t, err, fs.ErrInjected)
}

func TestBench_Open(t *testing.T) {
	p := testutil.Params(t, layout.CompressionAligned)
	records := testutil.Records(testutil.NewRNG(1).UniqueKeys(3000, 100))
	created, err := Create(p, records)
	require.NoError(t, err)

	b, err := Open(created.Params())
	require.NoError(t, err)
	assert.NotNil(t, b.Dataset().Blocks)

	got, err := b.Records()
	require.NoError(t, err)
	assert.Equal(t, records, got)

	_, err = Open(created.Params(), WithRecords(records[:10]))
	assert.ErrorIs(t, err, ErrInvalidLayout)

	bad := created.Params()
	bad.PageBytes = 1000
	_, err = Open(bad)
	assert.ErrorIs(t, err, ErrInvalidLayout)
}

func TestBench_NilIndex(t *testing.T) {
	b := createBench(t, layout.CompressionNone, layout.StrategyDirect, 100)
	_, err := b.RunLookups(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNoIndex)
	_, err = b.RunMemoryLookups(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNoIndex)
}

func TestBench_EmptyWorkload(t *testing.T) {
	b := createBench(t, layout.CompressionNone, layout.StrategyMapped, 1000, WithWorkers(4))
	model, err := b.TrainRMI(10)
	require.NoError(t, err)

	row, err := b.RunLookups(context.Background(), model, nil)
	require.NoError(t, err)
	assert.Zero(t, row.Ops)
	assert.Zero(t, row.Throughput)
	assert.True(t, row.Correct)
}

func TestBench_ColdCache(t *testing.T) {
	var logs bytes.Buffer
	logger := NewLogger(newTextHandler(&logs))
	b := createBench(t, layout.CompressionNone, layout.StrategyDirect, 2000, WithColdCache(true), WithLogger(logger), WithWorkers(1))

	model, err := b.TrainRMI(10)
	require.NoError(t, err)
	lookups, err := b.Lookups(100)
	require.NoError(t, err)

	row, err := b.RunLookups(context.Background(), model, lookups)
	require.NoError(t, err)
	assert.True(t, row.Correct)
	assert.Contains(t, logs.String(), "page cache")
	assert.Contains(t, logs.String(), "run completed")
}

func TestDropPageCache_Missing(t *testing.T) {
	assert.Error(t, DropPageCache(filepath.Join(t.TempDir(), "missing")))
}
