// Package stats holds per-worker lookup counters and the run summary derived
// from them.
package stats

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Counters are owned by one worker for the duration of a run and handed to
// the driver once, at join.
type Counters struct {
	RangeSum     uint64
	RangeMax     uint64
	Checksum     uint64
	Matches      uint64
	PagesFetched uint64
	IOOps        uint64
	ComputeNs    uint64
	IONs         uint64
	PredictNs    uint64
	ElapsedNs    uint64
	Ops          uint64

	// Pages holds the distinct page numbers fetched.
	Pages *roaring.Bitmap
}

// New returns zeroed counters with an empty page set.
func New() Counters {
	return Counters{Pages: roaring.New()}
}

// Query is the outcome of one lookup.
type Query struct {
	Width     uint64
	Sum       uint64
	Matches   int
	Pages     uint64
	IOOps     uint64
	PredictNs uint64
	ComputeNs uint64
	IONs      uint64
}

// Observe folds one lookup into c.
func (c *Counters) Observe(q Query) {
	c.RangeSum += q.Width
	c.RangeMax = max(c.RangeMax, q.Width)
	c.Checksum += q.Sum
	c.Matches += uint64(q.Matches)
	c.PagesFetched += q.Pages
	c.IOOps += q.IOOps
	c.PredictNs += q.PredictNs
	c.ComputeNs += q.ComputeNs
	c.IONs += q.IONs
	c.Ops++
}

// Merge adds o into c. Fields sum except RangeMax and ElapsedNs, which take
// the maximum, and Pages, which is unioned.
func (c *Counters) Merge(o Counters) {
	c.RangeSum += o.RangeSum
	c.RangeMax = max(c.RangeMax, o.RangeMax)
	c.Checksum += o.Checksum
	c.Matches += o.Matches
	c.PagesFetched += o.PagesFetched
	c.IOOps += o.IOOps
	c.ComputeNs += o.ComputeNs
	c.IONs += o.IONs
	c.PredictNs += o.PredictNs
	c.ElapsedNs = max(c.ElapsedNs, o.ElapsedNs)
	c.Ops += o.Ops

	switch {
	case o.Pages == nil:
	case c.Pages == nil:
		c.Pages = o.Pages.Clone()
	default:
		c.Pages.Or(o.Pages)
	}
}

// DistinctPages is the number of different pages fetched.
func (c Counters) DistinctPages() uint64 {
	if c.Pages == nil {
		return 0
	}
	return c.Pages.GetCardinality()
}

// MergeAll merges every slot into fresh counters.
func MergeAll(slots []Counters) Counters {
	total := New()
	for _, s := range slots {
		total.Merge(s)
	}
	return total
}
