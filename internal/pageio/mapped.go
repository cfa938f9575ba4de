package pageio

import (
	"context"
	"os"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/lidisk/internal/mmap"
	"github.com/hupe1980/lidisk/layout"
)

// MappedFetcher serves extents from a shared read-only mapping.
type MappedFetcher struct {
	m         *mmap.Mapping
	pageBytes uint64
	track     bool
	vec       []byte
	opts      Options
}

var _ Fetcher = (*MappedFetcher)(nil)

// NewMapped creates a fetcher over m. The mapping is shared between workers
// and is closed by its owner.
func NewMapped(m *mmap.Mapping, p layout.Params, opts Options) *MappedFetcher {
	return &MappedFetcher{
		m:         m,
		pageBytes: uint64(p.PageBytes),
		track:     p.TrackResidency,
		opts:      opts,
	}
}

// Fetch implements Fetcher. IOOps counts OS pages of the extent that were
// not resident before the fetch, and is zero unless residency tracking is
// enabled.
func (f *MappedFetcher) Fetch(ctx context.Context, byteStart, byteStop uint64, pages *roaring.Bitmap) (Extent, error) {
	if byteStop <= byteStart {
		return Extent{}, nil
	}
	size := uint64(f.m.Size())
	checkBounds(byteStart, byteStop, size)

	first, n := pageSpan(byteStart, byteStop, f.pageBytes)
	if err := f.opts.Controller.AcquirePages(ctx, int(n)); err != nil {
		return Extent{}, err
	}

	base := first * f.pageBytes
	end := min(base+n*f.pageBytes, size)

	var ioOps uint64
	if f.track {
		osPage := uint64(os.Getpagesize())
		aligned := base &^ (osPage - 1)

		missing, vec, err := f.m.Missing(int(aligned), int(end-aligned), f.vec)
		f.vec = vec
		if err != nil {
			return Extent{}, &IOError{
				Worker:   f.opts.Worker,
				Offset:   aligned,
				Length:   int(end - aligned),
				Strategy: layout.StrategyMapped,
				Err:      err,
			}
		}
		ioOps = uint64(missing)
	}

	data, err := f.m.Range(int(base), int(end))
	if err != nil {
		return Extent{}, &IOError{
			Worker:   f.opts.Worker,
			Offset:   base,
			Length:   int(end - base),
			Strategy: layout.StrategyMapped,
			Err:      err,
		}
	}

	recordPages(pages, first, n)
	return Extent{
		Data:       data,
		BaseOffset: base,
		FirstPage:  first,
		Pages:      n,
		IOOps:      ioOps,
	}, nil
}

// Close implements Fetcher.
func (f *MappedFetcher) Close() error { return nil }
