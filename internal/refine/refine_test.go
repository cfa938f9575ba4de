package refine

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/lidisk/index"
	"github.com/hupe1980/lidisk/layout"
)

func TestRefine(t *testing.T) {
	tests := []struct {
		name string
		in   index.SearchRange
		g, n uint64
		want index.SearchRange
	}{
		{"identity", index.SearchRange{Start: 3, Stop: 9}, 1, 100, index.SearchRange{Start: 3, Stop: 9}},
		{"scaled", index.SearchRange{Start: 3, Stop: 9}, 8, 100, index.SearchRange{Start: 24, Stop: 72}},
		{"clamp stop", index.SearchRange{Start: 3, Stop: 90}, 8, 100, index.SearchRange{Start: 24, Stop: 100}},
		{"clamp both", index.SearchRange{Start: 30, Stop: 90}, 8, 100, index.SearchRange{Start: 99, Stop: 100}},
		{"empty", index.SearchRange{Start: 5, Stop: 5}, 4, 100, index.SearchRange{Start: 20, Stop: 20}},
		{"no items", index.SearchRange{Start: 1, Stop: 2}, 4, 0, index.SearchRange{}},
		{"overflow", index.SearchRange{Start: 1, Stop: math.MaxUint64}, 8, 10, index.SearchRange{Start: 8, Stop: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Refine(tt.in, tt.g, tt.n))
		})
	}
}

func TestForScan(t *testing.T) {
	r := index.SearchRange{Start: 2, Stop: 4}

	assert.Equal(t, index.SearchRange{Start: 16, Stop: 31}, ForScan(r, 8, 100, layout.CompressionNone))
	assert.Equal(t, index.SearchRange{Start: 16, Stop: 32}, ForScan(r, 8, 100, layout.CompressionAligned))
	assert.Equal(t, index.SearchRange{Start: 16, Stop: 32}, ForScan(r, 8, 100, layout.CompressionSequential))
	assert.Equal(t, index.SearchRange{Start: 2, Stop: 4}, ForScan(r, 1, 100, layout.CompressionNone))

	// stop of zero is not decremented below zero
	assert.Equal(t, uint64(0), ForScan(index.SearchRange{}, 8, 100, layout.CompressionNone).Stop)
}

func TestRefine_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("start' <= n-1 and stop' <= n", prop.ForAll(
		func(s, e, g, n uint64) bool {
			out := Refine(index.SearchRange{Start: s, Stop: e}, g, n)
			if n == 0 {
				return out == index.SearchRange{}
			}
			return out.Start <= n-1 && out.Stop <= n
		},
		gen.UInt64Range(0, 1<<40),
		gen.UInt64Range(0, 1<<40),
		gen.UInt64Range(1, 1024),
		gen.UInt64Range(0, 1<<30),
	))

	properties.Property("ordered input stays ordered unless start is clamped", prop.ForAll(
		func(s, w, g, n uint64) bool {
			out := Refine(index.SearchRange{Start: s, Stop: s + w}, g, n)
			if s*g > n-1 {
				return out.Start == n-1
			}
			return out.Start <= out.Stop
		},
		gen.UInt64Range(0, 1<<20),
		gen.UInt64Range(0, 1<<10),
		gen.UInt64Range(1, 64),
		gen.UInt64Range(1, 1<<26),
	))

	properties.Property("g == 1 only clamps", prop.ForAll(
		func(s, e, n uint64) bool {
			out := Refine(index.SearchRange{Start: s, Stop: e}, 1, n)
			return out.Start == min(s, n-1) && out.Stop == min(e, n)
		},
		gen.UInt64Range(0, 1<<30),
		gen.UInt64Range(0, 1<<30),
		gen.UInt64Range(1, 1<<30),
	))

	properties.TestingRun(t)
}

func TestWidth(t *testing.T) {
	assert.Equal(t, uint64(0), Width(index.SearchRange{Start: 10, Stop: 3}))
	assert.Equal(t, uint64(7), Width(index.SearchRange{Start: 3, Stop: 10}))
}
