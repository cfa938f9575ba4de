package layout

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/hupe1980/lidisk/internal/fs"
)

const (
	// BlockHeaderBytes is the fixed header in front of every compressed block.
	BlockHeaderBytes = 16

	maxBlockCount = 1<<16 - 1

	blockKindAligned    = 1
	blockKindSequential = 2

	dirMagic       = 0x4244494c // "LIDB"
	dirVersion     = 1
	dirHeaderBytes = 24
	dirEntryBytes  = 24

	// dirPrealloc bounds the entries allocated up front from an untrusted
	// header count.
	dirPrealloc = 1 << 16
)

var (
	// ErrCorruptBlock is returned when a block header disagrees with its extent.
	ErrCorruptBlock = errors.New("layout: corrupt block")
	// ErrCorruptDirectory is returned when a block directory sidecar cannot be parsed.
	ErrCorruptDirectory = errors.New("layout: corrupt block directory")
)

// Block locates one compressed block.
type Block struct {
	FirstItem uint64 // Position of the block's first key in the sorted dataset.
	Offset    uint64 // Byte offset of the block header in the dataset file.
	Length    uint32 // Header plus payload bytes.
	Count     uint16
	// Bits is the per-key payload length: bytes per delta for aligned blocks,
	// bits per delta for sequential blocks.
	Bits uint8
}

// End is the byte offset one past the block.
func (b Block) End() uint64 { return b.Offset + uint64(b.Length) }

// StopItem is the position one past the block's last key.
func (b Block) StopItem() uint64 { return b.FirstItem + uint64(b.Count) }

// BlockDirectory maps item positions to compressed blocks.
type BlockDirectory struct {
	Compression Compression
	Blocks      []Block
}

// ItemCount is the number of keys covered by the directory.
func (d *BlockDirectory) ItemCount() uint64 {
	if d == nil || len(d.Blocks) == 0 {
		return 0
	}
	return d.Blocks[len(d.Blocks)-1].StopItem()
}

// Find returns the index of the block containing item.
func (d *BlockDirectory) Find(item uint64) int {
	i := sort.Search(len(d.Blocks), func(i int) bool {
		return d.Blocks[i].FirstItem > item
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

// Span returns the half-open block index interval overlapping the items
// [start, stop). An empty item interval yields an empty span.
func (d *BlockDirectory) Span(start, stop uint64) (int, int) {
	if d == nil || stop <= start || len(d.Blocks) == 0 {
		return 0, 0
	}
	return d.Find(start), d.Find(stop-1) + 1
}

// FileBytes is the physical size of the compressed payload.
func (d *BlockDirectory) FileBytes() uint64 {
	if d == nil || len(d.Blocks) == 0 {
		return 0
	}
	return d.Blocks[len(d.Blocks)-1].End()
}

// WriteTo serializes the directory.
func (d *BlockDirectory) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var hdr [dirHeaderBytes]byte
	binary.LittleEndian.PutUint32(hdr[0:], dirMagic)
	binary.LittleEndian.PutUint32(hdr[4:], dirVersion)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(int32(d.Compression)))
	binary.LittleEndian.PutUint64(hdr[16:], uint64(len(d.Blocks)))
	if _, err := bw.Write(hdr[:]); err != nil {
		return 0, err
	}

	var e [dirEntryBytes]byte
	for _, b := range d.Blocks {
		binary.LittleEndian.PutUint64(e[0:], b.FirstItem)
		binary.LittleEndian.PutUint64(e[8:], b.Offset)
		binary.LittleEndian.PutUint32(e[16:], b.Length)
		binary.LittleEndian.PutUint16(e[20:], b.Count)
		e[22] = b.Bits
		e[23] = 0
		if _, err := bw.Write(e[:]); err != nil {
			return 0, err
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return int64(dirHeaderBytes + dirEntryBytes*len(d.Blocks)), nil
}

// ReadBlockDirectory parses a directory written by WriteTo.
func ReadBlockDirectory(r io.Reader) (*BlockDirectory, error) {
	br := bufio.NewReader(r)
	var hdr [dirHeaderBytes]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrCorruptDirectory, err)
	}
	if binary.LittleEndian.Uint32(hdr[0:]) != dirMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptDirectory)
	}
	if v := binary.LittleEndian.Uint32(hdr[4:]); v != dirVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptDirectory, v)
	}
	d := &BlockDirectory{
		Compression: Compression(int32(binary.LittleEndian.Uint32(hdr[8:]))),
	}
	n := binary.LittleEndian.Uint64(hdr[16:])

	d.Blocks = make([]Block, 0, min(n, dirPrealloc))
	var e [dirEntryBytes]byte
	var next uint64
	for i := uint64(0); i < n; i++ {
		if _, err := io.ReadFull(br, e[:]); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrCorruptDirectory, i, err)
		}
		b := Block{
			FirstItem: binary.LittleEndian.Uint64(e[0:]),
			Offset:    binary.LittleEndian.Uint64(e[8:]),
			Length:    binary.LittleEndian.Uint32(e[16:]),
			Count:     binary.LittleEndian.Uint16(e[20:]),
			Bits:      e[22],
		}
		if b.FirstItem != next {
			return nil, fmt.Errorf("%w: entry %d starts at item %d, want %d", ErrCorruptDirectory, i, b.FirstItem, next)
		}
		next = b.StopItem()
		d.Blocks = append(d.Blocks, b)
	}
	return d, nil
}

// LoadBlockDirectory reads the sidecar at path.
func LoadBlockDirectory(fsys fs.FileSystem, path string) (*BlockDirectory, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBlockDirectory(f)
}
