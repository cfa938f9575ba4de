package workload

import (
	"math/rand"

	"github.com/hupe1980/lidisk/layout"
)

// Generate returns n records with ascending keys whose consecutive gaps are
// drawn uniformly from [0, maxGap]. A zero gap repeats the previous key.
// Values are item positions.
func Generate(n int, maxGap uint64, seed int64) []layout.Record {
	if n <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))
	records := make([]layout.Record, n)
	var k uint64
	for i := range records {
		if i > 0 && maxGap > 0 {
			k += rng.Uint64() % (maxGap + 1)
		}
		records[i] = layout.Record{Key: k, Value: uint64(i)}
	}
	return records
}
