package pageio

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/lidisk/index"
	"github.com/hupe1980/lidisk/layout"
)

// Fetcher retrieves the pages covering [byteStart, byteStop) of the dataset.
// Distinct page numbers are added to pages when it is non-nil. An empty byte
// range returns an empty Extent without touching storage.
type Fetcher interface {
	Fetch(ctx context.Context, byteStart, byteStop uint64, pages *roaring.Bitmap) (Extent, error)
	// Close releases the fetcher's buffers. The underlying file or mapping
	// is owned by the caller.
	Close() error
}

// Extent is a page-aligned window of the dataset file. Data is only valid
// until the next Fetch on the same Fetcher.
type Extent struct {
	Data       []byte
	BaseOffset uint64
	FirstPage  uint64
	Pages      uint64
	IOOps      uint64
}

// Empty reports whether no pages were fetched.
func (e Extent) Empty() bool { return e.Pages == 0 }

// End is the file offset one past the last fetched byte.
func (e Extent) End() uint64 { return e.BaseOffset + uint64(len(e.Data)) }

// Contains reports whether file bytes [off, off+n) lie inside the extent.
func (e Extent) Contains(off, n uint64) bool {
	return off >= e.BaseOffset && off+n <= e.End()
}

// Slice returns file bytes [off, off+n). It panics when the window is not
// fully inside the extent.
func (e Extent) Slice(off, n uint64) []byte {
	if !e.Contains(off, n) {
		panic(fmt.Sprintf("pageio: bytes [%d, %d) outside extent [%d, %d)", off, off+n, e.BaseOffset, e.End()))
	}
	rel := off - e.BaseOffset
	return e.Data[rel : rel+n]
}

// ByteRange converts an item range into the byte range that holds it. Fixed
// stride layouts multiply by the record size; compressed layouts cover every
// block that overlaps the items. Empty ranges map to (0, 0).
func ByteRange(r index.SearchRange, p layout.Params, dir *layout.BlockDirectory) (uint64, uint64) {
	if r.Empty() {
		return 0, 0
	}
	if !p.Compression.Compressed() {
		rb := uint64(p.RecordBytes)
		return r.Start * rb, r.Stop * rb
	}

	first, last := dir.Span(r.Start, r.Stop)
	if first == last {
		return 0, 0
	}
	return dir.Blocks[first].Offset, dir.Blocks[last-1].End()
}

// pageSpan returns the first page and the page count covering the bytes.
func pageSpan(byteStart, byteStop, pageBytes uint64) (uint64, uint64) {
	first := byteStart / pageBytes
	last := (byteStop + pageBytes - 1) / pageBytes
	return first, last - first
}

func recordPages(pages *roaring.Bitmap, first, n uint64) {
	if pages == nil || n == 0 {
		return
	}
	pages.AddRange(first, first+n)
}

func checkBounds(byteStart, byteStop, size uint64) {
	if byteStop > size || byteStart > byteStop {
		panic(fmt.Sprintf("pageio: byte range [%d, %d) outside file of %d bytes", byteStart, byteStop, size))
	}
}
