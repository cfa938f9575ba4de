// Package memlookup runs the last-mile search against an in-memory sorted
// dataset. It produces no page or I/O figures and isolates the compute cost
// of a lookup.
package memlookup

import (
	"context"
	"sort"

	"github.com/hupe1980/lidisk/index"
	"github.com/hupe1980/lidisk/internal/refine"
	"github.com/hupe1980/lidisk/internal/timing"
	"github.com/hupe1980/lidisk/layout"
	"github.com/hupe1980/lidisk/stats"
	"github.com/hupe1980/lidisk/workload"
)

// Options select the search behaviour.
type Options struct {
	Granularity   uint64
	Mode          layout.SearchMode
	MaxQualifying int
}

// OptionsFrom copies the relevant fields of p.
func OptionsFrom(p layout.Params) Options {
	return Options{
		Granularity:   p.Granularity,
		Mode:          p.SearchMode,
		MaxQualifying: p.MaxQualifying,
	}
}

// Result of one in-memory lookup.
type Result struct {
	First   uint64
	Matches int
	Sum     uint64
	Width   uint64
}

// Resolve refines coarse against the dataset and searches it for key. The
// stop bound is not adjusted; duplicates are scanned to the end of the data.
func Resolve(records []layout.Record, key uint64, coarse index.SearchRange, opts Options) Result {
	r := refine.Refine(coarse, opts.Granularity, uint64(len(records)))
	res := Result{Width: r.Width()}
	if r.Empty() {
		return res
	}

	start, stop := int(r.Start), int(r.Stop)
	pos := stop
	if opts.Mode == layout.SearchBinary {
		i := start + sort.Search(stop-start, func(i int) bool { return records[start+i].Key >= key })
		if i < stop && records[i].Key == key {
			pos = i
		}
	} else {
		for i := start; i < stop; i++ {
			if records[i].Key == key {
				pos = i
				break
			}
		}
	}
	if pos == stop {
		return res
	}

	limit := max(opts.MaxQualifying, 1)
	n := 1
	for i := pos + 1; i < len(records) && n < limit && records[i].Key == key; i++ {
		n++
	}
	res.First = uint64(pos)
	res.Matches = n
	res.Sum = key * uint64(n)
	return res
}

// Run looks up every entry on the calling goroutine. The context is checked
// between lookups.
func Run(ctx context.Context, idx index.Index, records []layout.Record, lookups workload.Lookups, opts Options) (stats.Counters, error) {
	c := stats.New()
	var err error

	c.ElapsedNs = timing.Ns(func() {
		for _, e := range lookups {
			if err = ctx.Err(); err != nil {
				return
			}

			var coarse index.SearchRange
			predict := timing.Ns(func() { coarse = idx.Lookup(e.Key) })

			var res Result
			compute := timing.Ns(func() { res = Resolve(records, e.Key, coarse, opts) })

			c.Observe(stats.Query{
				Width:     res.Width,
				Sum:       res.Sum,
				Matches:   res.Matches,
				PredictNs: predict,
				ComputeNs: compute,
			})
		}
	})
	if err != nil {
		return stats.Counters{}, err
	}
	return c, nil
}
