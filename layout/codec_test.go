package layout

import (
	"bytes"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEncoding(t *testing.T) {
	buf := make([]byte, 32)
	PutRecord(buf[16:], Record{Key: 0xdeadbeef, Value: 7})
	assert.Equal(t, uint64(0xdeadbeef), KeyAt(buf, 16))
	assert.Equal(t, uint64(7), KeyAt(buf, 24))
}

func TestAlignedRoundTrip(t *testing.T) {
	keys := []uint64{1000, 1000, 1001, 1300, 70000}
	width := (DeltaBits(70000-1000) + 7) / 8
	buf := make([]byte, BlockHeaderBytes+len(keys)*width)
	n := EncodeAligned(buf, keys, width)
	assert.Equal(t, len(buf), n)

	got, err := DecodeAligned(buf, nil)
	require.NoError(t, err)
	assert.Equal(t, keys, got)

	// A sequential decoder must refuse an aligned block.
	_, err = DecodeSequential(buf, nil)
	assert.ErrorIs(t, err, ErrCorruptBlock)
}

func TestSequentialRoundTrip_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("decode(encode(keys, L)) == keys for L <= 32", prop.ForAll(
		func(base uint64, deltas []uint32, nbits int) bool {
			mask := uint64(1)<<nbits - 1
			keys := make([]uint64, 0, len(deltas)+1)
			keys = append(keys, base)
			for _, d := range deltas {
				keys = append(keys, base+uint64(d)&mask)
			}
			sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

			buf := make([]byte, BlockHeaderBytes+sequentialPayload(len(keys), nbits))
			EncodeSequential(buf, keys, nbits)

			got, err := DecodeSequential(buf, nil)
			return err == nil && equalKeys(keys, got)
		},
		gen.UInt64Range(0, 1<<62),
		gen.SliceOfN(300, gen.UInt32()),
		gen.IntRange(0, 32),
	))

	properties.TestingRun(t)
}

func equalKeys(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDecodeSequential_NeverReadsPastDeclaredLength(t *testing.T) {
	keys := []uint64{10, 11, 13, 17, 25, 41}
	nbits := DeltaBits(41 - 10)
	size := BlockHeaderBytes + sequentialPayload(len(keys), nbits)

	// Trailing garbage after the declared payload must not influence decoding.
	buf := bytes.Repeat([]byte{0xff}, size+16)
	EncodeSequential(buf, keys, nbits)

	got, err := DecodeSequential(buf, nil)
	require.NoError(t, err)
	assert.Equal(t, keys, got)

	// Truncating into the payload is detected instead of read past.
	_, err = DecodeSequential(buf[:size-1], nil)
	assert.ErrorIs(t, err, ErrCorruptBlock)

	_, err = DecodeSequential(buf[:4], nil)
	assert.ErrorIs(t, err, ErrCorruptBlock)
}

func TestDecodeSequential_ZeroBits(t *testing.T) {
	keys := []uint64{5, 5, 5, 5}
	buf := make([]byte, BlockHeaderBytes)
	EncodeSequential(buf, keys, 0)

	got, err := DecodeSequential(buf, make([]uint64, 0, 8))
	require.NoError(t, err)
	assert.Equal(t, keys, got)
}
