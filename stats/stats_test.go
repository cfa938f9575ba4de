package stats

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
)

func TestCounters_ObserveMerge(t *testing.T) {
	a := New()
	a.Observe(Query{Width: 10, Sum: 5, Matches: 1, Pages: 2, IOOps: 2, PredictNs: 1, ComputeNs: 2, IONs: 3})
	a.Observe(Query{Width: 30, Sum: 7, Matches: 1, Pages: 1, IOOps: 1})
	a.Pages.AddMany([]uint32{1, 2, 3})
	a.ElapsedNs = 100

	b := New()
	b.Observe(Query{Width: 20, Sum: 11, Matches: 2, Pages: 1, IOOps: 0})
	b.Pages.AddMany([]uint32{3, 4})
	b.ElapsedNs = 250

	total := MergeAll([]Counters{a, b})

	assert.Equal(t, uint64(60), total.RangeSum)
	assert.Equal(t, uint64(30), total.RangeMax)
	assert.Equal(t, uint64(23), total.Checksum)
	assert.Equal(t, uint64(4), total.Matches)
	assert.Equal(t, uint64(4), total.PagesFetched)
	assert.Equal(t, uint64(3), total.IOOps)
	assert.Equal(t, uint64(3), total.Ops)
	assert.Equal(t, uint64(250), total.ElapsedNs)
	assert.Equal(t, uint64(4), total.DistinctPages())

	// inputs are not aliased
	assert.Equal(t, uint64(3), a.DistinctPages())
}

func TestCounters_MergeNilPages(t *testing.T) {
	var c Counters
	c.Merge(Counters{Ops: 1})
	assert.Zero(t, c.DistinctPages())

	p := roaring.BitmapOf(7)
	c.Merge(Counters{Pages: p})
	assert.Equal(t, uint64(1), c.DistinctPages())
}

func TestSummarize(t *testing.T) {
	c := Counters{
		RangeSum:     400,
		RangeMax:     9,
		Checksum:     1234,
		PagesFetched: 200,
		IOOps:        150,
		ElapsedNs:    2_000_000_000,
		Ops:          100,
	}

	s := Summarize(c, 4096, 1234, 100)
	assert.True(t, s.Correct)
	assert.InDelta(t, 20_000_000.0, s.LatencyNs, 1e-9)
	assert.InDelta(t, 50.0, s.Throughput, 1e-9)
	assert.InDelta(t, 2.0, s.AvgPages, 1e-9)
	assert.InDelta(t, 4.0, s.AvgRange, 1e-9)
	assert.InDelta(t, 1.5, s.AvgIO, 1e-9)
	assert.InDelta(t, 75.0, s.IOPS, 1e-9)
	assert.InDelta(t, 4096.0*200/2/(1<<30), s.BandwidthGBs, 1e-12)
	assert.Equal(t, uint64(9), s.MaxRange)
}

func TestSummarize_Checksum(t *testing.T) {
	c := Counters{Checksum: 10, Ops: 5, ElapsedNs: 1}

	assert.False(t, Summarize(c, 4096, 11, 5).Correct)
	// an aborted run does not claim a wrong result
	assert.True(t, Summarize(c, 4096, 11, 6).Correct)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(New(), 4096, 0, 0)
	assert.True(t, s.Correct)
	assert.Zero(t, s.LatencyNs)
	assert.Zero(t, s.Throughput)
	assert.Zero(t, s.BandwidthGBs)
}
