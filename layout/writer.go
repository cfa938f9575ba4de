package layout

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/lidisk/internal/fs"
)

// ErrUnsorted is returned when records are not in ascending key order.
var ErrUnsorted = errors.New("layout: records are not sorted by key")

// Dataset is a written or opened dataset: its parameters plus, for the
// compressed layouts, its block directory.
type Dataset struct {
	Params Params
	Blocks *BlockDirectory
	// FileBytes is the physical file size, a whole number of pages for
	// files produced by Write.
	FileBytes uint64
}

// PlanBlocks splits ascending keys into compressed blocks for p.Compression.
// A block closes when it holds BlockItems keys, when the next delta would
// need more than MaxPayloadLength bits, or (aligned) when it would overflow
// its page.
func PlanBlocks(keys []uint64, p Params) ([]Block, error) {
	if !p.Compression.Compressed() {
		return nil, fmt.Errorf("plan blocks: layout %s is not compressed", p.Compression)
	}
	aligned := p.Compression == CompressionAligned

	var blocks []Block
	var offset uint64
	for i := 0; i < len(keys); {
		base := keys[i]
		count, maxBits := 1, 0
		for i+count < len(keys) && count < p.BlockItems {
			next := keys[i+count]
			if next < keys[i+count-1] {
				return nil, ErrUnsorted
			}
			b := DeltaBits(next - base)
			if b > p.MaxPayloadLength {
				break
			}
			nb := max(maxBits, b)
			if aligned && BlockHeaderBytes+alignedPayload(count+1, (nb+7)/8) > p.PageBytes {
				break
			}
			maxBits = nb
			count++
		}

		blk := Block{FirstItem: uint64(i), Offset: offset, Count: uint16(count)}
		if aligned {
			blk.Bits = uint8((maxBits + 7) / 8)
			blk.Length = uint32(BlockHeaderBytes + alignedPayload(count, int(blk.Bits)))
			offset += uint64(p.PageBytes)
		} else {
			blk.Bits = uint8(maxBits)
			blk.Length = uint32(BlockHeaderBytes + sequentialPayload(count, maxBits))
			offset += uint64(blk.Length)
		}
		blocks = append(blocks, blk)
		i += count
	}
	return blocks, nil
}

// Write stores records under p.Path() in the layout selected by
// p.Compression. DatasetBytes of the returned parameters is set from the
// record count. The file is padded to a whole number of pages so that
// direct reads of the last page are never short.
func Write(fsys fs.FileSystem, p Params, records []Record) (*Dataset, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	for i := 1; i < len(records); i++ {
		if records[i].Key < records[i-1].Key {
			return nil, ErrUnsorted
		}
	}
	p.DatasetBytes = uint64(len(records)) * uint64(p.RecordBytes)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.DataDir != "" {
		if err := fsys.MkdirAll(p.DataDir, 0o755); err != nil {
			return nil, err
		}
	}

	f, err := fsys.OpenFile(p.Path(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	ds := &Dataset{Params: p}

	w := bufio.NewWriterSize(f, 1<<20)
	var written uint64
	if p.Compression.Compressed() {
		ds.Blocks, written, err = writeBlocks(w, p, records)
	} else {
		written, err = writeRecords(w, p, records)
	}
	if err == nil {
		err = pad(w, written, p.PageBytes)
		pb := uint64(p.PageBytes)
		ds.FileBytes = (written + pb - 1) / pb * pb
	}
	if err == nil {
		err = w.Flush()
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("write dataset %s: %w", p.Path(), err)
	}

	if ds.Blocks != nil {
		if err := saveBlocks(fsys, p.BlocksPath(), ds.Blocks); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func writeRecords(w io.Writer, p Params, records []Record) (uint64, error) {
	slot := make([]byte, p.RecordBytes)
	for _, r := range records {
		PutRecord(slot, r)
		if _, err := w.Write(slot); err != nil {
			return 0, err
		}
	}
	return uint64(len(records)) * uint64(p.RecordBytes), nil
}

func writeBlocks(w io.Writer, p Params, records []Record) (*BlockDirectory, uint64, error) {
	keys := make([]uint64, len(records))
	for i, r := range records {
		keys[i] = r.Key
	}
	blocks, err := PlanBlocks(keys, p)
	if err != nil {
		return nil, 0, err
	}

	buf := make([]byte, p.PageBytes)
	var written uint64
	for _, b := range blocks {
		if need := int(b.Length); need > len(buf) {
			buf = make([]byte, need)
		}
		blockKeys := keys[b.FirstItem:b.StopItem()]
		var n int
		if p.Compression == CompressionAligned {
			n = EncodeAligned(buf, blockKeys, int(b.Bits))
		} else {
			n = EncodeSequential(buf, blockKeys, int(b.Bits))
		}
		if written < b.Offset {
			if _, err := w.Write(make([]byte, b.Offset-written)); err != nil {
				return nil, 0, err
			}
			written = b.Offset
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return nil, 0, err
		}
		written += uint64(n)
	}
	return &BlockDirectory{Compression: p.Compression, Blocks: blocks}, written, nil
}

func pad(w io.Writer, written uint64, pageBytes int) error {
	if pageBytes <= 1 {
		return nil
	}
	rem := written % uint64(pageBytes)
	if rem == 0 {
		return nil
	}
	_, err := w.Write(make([]byte, uint64(pageBytes)-rem))
	return err
}

func saveBlocks(fsys fs.FileSystem, path string, d *BlockDirectory) error {
	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := d.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write block directory %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Open validates p against the dataset on storage and loads the block
// directory of compressed layouts.
func Open(fsys fs.FileSystem, p Params) (*Dataset, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	info, err := fsys.Stat(p.Path())
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Params: p, FileBytes: uint64(info.Size())}
	need := p.DatasetBytes
	if p.Compression.Compressed() {
		ds.Blocks, err = LoadBlockDirectory(fsys, p.BlocksPath())
		if err != nil {
			return nil, err
		}
		if ds.Blocks.Compression != p.Compression {
			return nil, &LayoutError{Field: "compression", Reason: fmt.Sprintf("dataset is %s, configured %s", ds.Blocks.Compression, p.Compression)}
		}
		if ds.Blocks.ItemCount() != p.ItemCount() {
			return nil, &LayoutError{Field: "dataset_bytes", Reason: fmt.Sprintf("directory holds %d items, configured %d", ds.Blocks.ItemCount(), p.ItemCount())}
		}
		need = ds.Blocks.FileBytes()
	}
	if uint64(info.Size()) < need {
		return nil, &LayoutError{Field: "dataset_bytes", Reason: fmt.Sprintf("file %s has %d bytes, need %d", p.Path(), info.Size(), need)}
	}
	return ds, nil
}

// ReadRecords loads a dataset into memory. Compressed layouts store keys
// only; their records carry the item position as value.
func ReadRecords(fsys fs.FileSystem, p Params) ([]Record, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(p.Path(), os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if p.Compression.Compressed() {
		dir, err := LoadBlockDirectory(fsys, p.BlocksPath())
		if err != nil {
			return nil, err
		}
		return readBlocks(f, dir)
	}

	n := p.ItemCount()
	records := make([]Record, n)
	r := bufio.NewReaderSize(io.NewSectionReader(f, 0, int64(p.DatasetBytes)), 1<<20)
	slot := make([]byte, p.RecordBytes)
	for i := uint64(0); i < n; i++ {
		if _, err := io.ReadFull(r, slot); err != nil {
			return nil, fmt.Errorf("read record %d: %w", i, err)
		}
		records[i].Key = KeyAt(slot, 0)
		if p.RecordBytes >= 2*KeyBytes {
			records[i].Value = KeyAt(slot, KeyBytes)
		}
	}
	return records, nil
}

func readBlocks(f io.ReaderAt, dir *BlockDirectory) ([]Record, error) {
	records := make([]Record, 0, dir.ItemCount())
	var buf []byte
	var keys []uint64
	for i, b := range dir.Blocks {
		if int(b.Length) > len(buf) {
			buf = make([]byte, b.Length)
		}
		block := buf[:b.Length]
		if _, err := f.ReadAt(block, int64(b.Offset)); err != nil {
			return nil, fmt.Errorf("read block %d: %w", i, err)
		}

		var err error
		if dir.Compression == CompressionAligned {
			keys, err = DecodeAligned(block, keys[:0])
		} else {
			keys, err = DecodeSequential(block, keys[:0])
		}
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		if len(keys) != int(b.Count) {
			return nil, fmt.Errorf("block %d: %w: %d keys, directory says %d", i, ErrCorruptBlock, len(keys), b.Count)
		}
		for j, k := range keys {
			records = append(records, Record{Key: k, Value: b.FirstItem + uint64(j)})
		}
	}
	return records, nil
}
