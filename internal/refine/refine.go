// Package refine converts model output in granularity units into an item
// range clamped to the dataset.
package refine

import (
	"math"
	"math/bits"

	"github.com/hupe1980/lidisk/index"
	"github.com/hupe1980/lidisk/layout"
)

// Refine scales r by g and clamps each endpoint independently:
//
//	start' = min(start*g, n-1)
//	stop'  = min(stop*g, n)
//
// A granularity of one (or zero) only clamps. An inverted result is legal and
// means no candidates. n == 0 yields the empty range.
func Refine(r index.SearchRange, g, n uint64) index.SearchRange {
	if n == 0 {
		return index.SearchRange{}
	}
	if g > 1 {
		r.Start = mulSat(r.Start, g)
		r.Stop = mulSat(r.Stop, g)
	}
	return index.SearchRange{
		Start: min(r.Start, n-1),
		Stop:  min(r.Stop, n),
	}
}

// ForScan refines r and applies the stop adjustment the fixed-stride scan
// expects. Model ranges are inclusive at the granularity boundary while the
// scan is exclusive, so for uncompressed data with g > 1 the stop moves back
// by one item. Compressed layouts decode the full refined range.
func ForScan(r index.SearchRange, g, n uint64, c layout.Compression) index.SearchRange {
	out := Refine(r, g, n)
	if g > 1 && !c.Compressed() && out.Stop > 0 {
		out.Stop--
	}
	return out
}

// Width is the number of items in r, zero when empty or inverted.
func Width(r index.SearchRange) uint64 { return r.Width() }

func mulSat(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}
