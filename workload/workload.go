// Package workload builds and stores lookup workloads.
package workload

import (
	"math/rand"
	"sort"

	"github.com/hupe1980/lidisk/layout"
)

// Entry is a lookup key with the position it was sampled from.
type Entry struct {
	Key uint64
	Pos uint64
}

// Lookups is an ordered lookup workload.
type Lookups []Entry

// Keys returns the keys of l in order.
func (l Lookups) Keys() []uint64 {
	keys := make([]uint64, len(l))
	for i, e := range l {
		keys[i] = e.Key
	}
	return keys
}

// KeySum is the wrapping sum of every key in l.
func (l Lookups) KeySum() uint64 {
	var sum uint64
	for _, e := range l {
		sum += e.Key
	}
	return sum
}

// Sample takes n entries walking records with a fixed stride, wrapping to
// the start when the walk passes the end. It returns the entries and the sum
// of their keys. A stride of zero is treated as one.
func Sample(records []layout.Record, n int, stride uint64) (Lookups, uint64) {
	if len(records) == 0 || n <= 0 {
		return Lookups{}, 0
	}
	stride = max(stride, 1)

	out := make(Lookups, n)
	var sum uint64
	for i, cnt := 0, uint64(0); i < n; i++ {
		if cnt >= uint64(len(records)) {
			cnt = 0
		}
		out[i] = Entry{Key: records[cnt].Key, Pos: cnt}
		sum += records[cnt].Key
		cnt += stride
	}
	return out, sum
}

// StressStride is the sampling stride for the disk stress workload: a
// quarter page of fixed-stride records.
func StressStride(p layout.Params) uint64 {
	return max(p.RecordsPerPage()/4, 1)
}

// Uniform draws n entries at random positions.
func Uniform(records []layout.Record, n int, seed int64) Lookups {
	if len(records) == 0 || n <= 0 {
		return Lookups{}
	}
	rng := rand.New(rand.NewSource(seed))
	out := make(Lookups, n)
	for i := range out {
		pos := uint64(rng.Int63n(int64(len(records))))
		out[i] = Entry{Key: records[pos].Key, Pos: pos}
	}
	return out
}

// Shuffle permutes l in place.
func Shuffle(l Lookups, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(l), func(i, j int) { l[i], l[j] = l[j], l[i] })
}

// ExpectedChecksum is the checksum a correct run produces when every lookup
// sees the whole duplicate run of its key: key times min(occurrences, cap).
func ExpectedChecksum(records []layout.Record, l Lookups, maxQualifying int) uint64 {
	var sum uint64
	for _, e := range l {
		lo := sort.Search(len(records), func(i int) bool { return records[i].Key >= e.Key })
		hi := lo
		for hi < len(records) && records[hi].Key == e.Key && hi-lo < maxQualifying {
			hi++
		}
		sum += e.Key * uint64(hi-lo)
	}
	return sum
}
