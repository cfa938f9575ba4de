package layout

import (
	"bytes"
	"encoding/binary"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sortedKeys(n int, step uint64) []uint64 {
	keys := make([]uint64, n)
	for i := range keys {
		keys[i] = uint64(i) * step
	}
	return keys
}

func TestPlanBlocks_Sequential(t *testing.T) {
	p := DefaultParams()
	p.Compression = CompressionSequential
	p.BlockItems = 100
	p.MaxPayloadLength = 16

	keys := sortedKeys(1000, 3)
	// A jump wider than 16 bits must close the block.
	keys = append(keys, keys[len(keys)-1]+1<<20)

	blocks, err := PlanBlocks(keys, p)
	require.NoError(t, err)

	var next, offset uint64
	for _, b := range blocks {
		assert.Equal(t, next, b.FirstItem)
		assert.Equal(t, offset, b.Offset)
		assert.LessOrEqual(t, int(b.Count), p.BlockItems)
		assert.LessOrEqual(t, int(b.Bits), p.MaxPayloadLength)
		next += uint64(b.Count)
		offset += uint64(b.Length)
	}
	assert.Equal(t, uint64(len(keys)), next)
	assert.Equal(t, uint16(1), blocks[len(blocks)-1].Count)
}

func TestPlanBlocks_AlignedFitsInPage(t *testing.T) {
	p := DefaultParams()
	p.Compression = CompressionAligned
	p.PageBytes = 512
	p.BlockItems = 1000

	blocks, err := PlanBlocks(sortedKeys(5000, 1<<20), p)
	require.NoError(t, err)
	for i, b := range blocks {
		assert.Equal(t, uint64(i*p.PageBytes), b.Offset)
		assert.LessOrEqual(t, int(b.Length), p.PageBytes)
	}
}

func TestPlanBlocks_Unsorted(t *testing.T) {
	p := DefaultParams()
	p.Compression = CompressionSequential
	_, err := PlanBlocks([]uint64{3, 2, 1}, p)
	assert.ErrorIs(t, err, ErrUnsorted)
}

func TestBlockDirectory_FindSpanAndSerialize(t *testing.T) {
	d := &BlockDirectory{
		Compression: CompressionSequential,
		Blocks: []Block{
			{FirstItem: 0, Offset: 0, Length: 40, Count: 10, Bits: 8},
			{FirstItem: 10, Offset: 40, Length: 30, Count: 5, Bits: 4},
			{FirstItem: 15, Offset: 70, Length: 50, Count: 20, Bits: 12},
		},
	}

	assert.Equal(t, 0, d.Find(0))
	assert.Equal(t, 0, d.Find(9))
	assert.Equal(t, 1, d.Find(10))
	assert.Equal(t, 2, d.Find(34))
	assert.Equal(t, uint64(35), d.ItemCount())
	assert.Equal(t, uint64(120), d.FileBytes())

	first, last := d.Span(9, 16)
	assert.Equal(t, 0, first)
	assert.Equal(t, 3, last)

	first, last = d.Span(12, 12)
	assert.Equal(t, first, last)

	var buf bytes.Buffer
	_, err := d.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ReadBlockDirectory(&buf)
	require.NoError(t, err)
	assert.Equal(t, d, got)

	_, err = ReadBlockDirectory(bytes.NewReader([]byte("nope")))
	assert.ErrorIs(t, err, ErrCorruptDirectory)
}

func TestReadBlockDirectory_HugeCount(t *testing.T) {
	d := &BlockDirectory{
		Compression: CompressionAligned,
		Blocks:      []Block{{FirstItem: 0, Offset: 0, Length: 4096, Count: 100, Bits: 2}},
	}
	var buf bytes.Buffer
	_, err := d.WriteTo(&buf)
	require.NoError(t, err)

	// Claim 2^62 entries while holding one.
	raw := buf.Bytes()
	binary.LittleEndian.PutUint64(raw[16:], 1<<62)

	_, err = ReadBlockDirectory(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrCorruptDirectory)
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteOpen(t *testing.T) {
	records := make([]Record, 5000)
	for i := range records {
		records[i] = Record{Key: uint64(i) * 7, Value: uint64(i)}
	}

	for _, c := range []Compression{CompressionNone, CompressionAligned, CompressionSequential} {
		t.Run(c.String(), func(t *testing.T) {
			p := DefaultParams()
			p.DataDir = filepath.Join(t.TempDir(), "ds")
			p.Compression = c

			ds, err := Write(nil, p, records)
			require.NoError(t, err)
			assert.Equal(t, uint64(len(records)*p.RecordBytes), ds.Params.DatasetBytes)

			opened, err := Open(nil, ds.Params)
			require.NoError(t, err)
			if c.Compressed() {
				require.NotNil(t, opened.Blocks)
				assert.Equal(t, uint64(len(records)), opened.Blocks.ItemCount())
			}

			// values equal positions, so compressed layouts read back the same
			got, err := ReadRecords(nil, ds.Params)
			require.NoError(t, err)
			assert.Equal(t, records, got)

			bad := ds.Params
			bad.DatasetBytes += uint64(p.RecordBytes) * 10000
			_, err = Open(nil, bad)
			assert.ErrorIs(t, err, ErrInvalidLayout)
		})
	}
}
