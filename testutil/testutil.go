package testutil

import (
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/hupe1980/lidisk/internal/fs"
	"github.com/hupe1980/lidisk/layout"
)

// RNG wraps a seeded source. It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewSource(r.seed))
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// SortedKeys returns n ascending keys drawn uniformly from [0, maxKey).
func (r *RNG) SortedKeys(n int, maxKey uint64) []uint64 {
	r.mu.Lock()
	keys := make([]uint64, n)
	for i := range keys {
		keys[i] = r.rand.Uint64() % maxKey
	}
	r.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// UniqueKeys returns n strictly ascending keys with random gaps in
// [1, maxGap].
func (r *RNG) UniqueKeys(n int, maxGap uint64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]uint64, n)
	var k uint64
	for i := range keys {
		k += 1 + r.rand.Uint64()%maxGap
		keys[i] = k
	}
	return keys
}

// DenseKeys returns n ascending keys starting at start with the given step.
func DenseKeys(n int, start, step uint64) []uint64 {
	keys := make([]uint64, n)
	for i := range keys {
		keys[i] = start + uint64(i)*step
	}
	return keys
}

// WithRun overwrites keys[at+1 : at+count] with keys[at] so that keys[at]
// occurs count times. Keys after the run are raised where needed to stay
// sorted.
func WithRun(keys []uint64, at, count int) []uint64 {
	end := min(at+count, len(keys))
	for i := at + 1; i < end; i++ {
		keys[i] = keys[at]
	}
	for i := end; i < len(keys); i++ {
		if keys[i] <= keys[at] {
			keys[i] = keys[at] + uint64(i-end+1)
		}
	}
	return keys
}

// Records pairs each key with its position as the value.
func Records(keys []uint64) []layout.Record {
	records := make([]layout.Record, len(keys))
	for i, k := range keys {
		records[i] = layout.Record{Key: k, Value: uint64(i)}
	}
	return records
}

// Keys extracts the keys of records.
func Keys(records []layout.Record) []uint64 {
	keys := make([]uint64, len(records))
	for i, r := range records {
		keys[i] = r.Key
	}
	return keys
}

// Params returns default parameters rooted in a fresh temp directory.
func Params(t testing.TB, c layout.Compression) layout.Params {
	t.Helper()
	p := layout.DefaultParams()
	p.DataDir = t.TempDir()
	p.Compression = c
	return p
}

// WriteDataset writes records with p and fails the test on error. The
// returned dataset carries p with DatasetBytes filled in.
func WriteDataset(t testing.TB, p layout.Params, records []layout.Record) *layout.Dataset {
	t.Helper()
	ds, err := layout.Write(fs.Default, p, records)
	if err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return ds
}
