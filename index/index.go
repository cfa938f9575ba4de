// Package index defines the capability the benchmark needs from an index
// model: predicting an approximate, granularity-scaled range for a key.
//
// Models are read-only after construction. Each benchmark worker receives its
// own copy through Clone.
package index

// SearchRange is a half-open interval [Start, Stop). Model output is in
// granularity units; after refinement it is in item positions.
type SearchRange struct {
	Start uint64
	Stop  uint64
}

// Width is Stop-Start, or zero for an empty or inverted range.
func (r SearchRange) Width() uint64 {
	if r.Stop <= r.Start {
		return 0
	}
	return r.Stop - r.Start
}

// Empty reports whether the range holds no positions.
func (r SearchRange) Empty() bool { return r.Stop <= r.Start }

// Index predicts the coarse range that contains the first occurrence of a
// key.
type Index interface {
	// Lookup returns a range in granularity units.
	Lookup(key uint64) SearchRange
	// Clone returns a copy that can be used concurrently with the original.
	Clone() Index
}

// Coarsen converts an inclusive item interval [lo, hi] into granularity
// units such that the refined range still covers hi after the scan-side
// stop adjustment applied to uncompressed layouts.
func Coarsen(lo, hi, granularity uint64) SearchRange {
	if granularity == 0 {
		granularity = 1
	}
	return SearchRange{
		Start: lo / granularity,
		Stop:  (hi+1)/granularity + 1,
	}
}
