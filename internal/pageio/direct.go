package pageio

import (
	"context"
	"errors"
	"io"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/lidisk/internal/fs"
	"github.com/hupe1980/lidisk/internal/resource"
	"github.com/hupe1980/lidisk/layout"
)

// Options configure a Fetcher.
type Options struct {
	// Worker identifies the owning worker in errors.
	Worker int
	// Controller throttles page fetches and accounts pool memory. Optional.
	Controller *resource.Controller
}

// DirectFetcher reads pages with one positioned read each.
type DirectFetcher struct {
	file      io.ReaderAt
	fileBytes uint64
	pageBytes uint64
	pool      *Pool
	opts      Options
}

var _ Fetcher = (*DirectFetcher)(nil)

// NewDirect creates a direct fetcher over file, which should be opened with
// fs.OpenRead(…, true). fileBytes is the physical file size.
func NewDirect(file fs.File, fileBytes uint64, p layout.Params, opts Options) (*DirectFetcher, error) {
	pool, err := NewPool(opts.Controller, p.PoolPages, p.PageBytes)
	if err != nil {
		return nil, err
	}
	return &DirectFetcher{
		file:      file,
		fileBytes: fileBytes,
		pageBytes: uint64(p.PageBytes),
		pool:      pool,
		opts:      opts,
	}, nil
}

// Fetch implements Fetcher.
func (f *DirectFetcher) Fetch(ctx context.Context, byteStart, byteStop uint64, pages *roaring.Bitmap) (Extent, error) {
	if byteStop <= byteStart {
		return Extent{}, nil
	}
	checkBounds(byteStart, byteStop, f.fileBytes)

	first, n := pageSpan(byteStart, byteStop, f.pageBytes)
	if err := f.opts.Controller.AcquirePages(ctx, int(n)); err != nil {
		return Extent{}, err
	}

	buf, err := f.pool.Pages(int(n))
	if err != nil {
		return Extent{}, err
	}

	base := first * f.pageBytes
	for i := uint64(0); i < n; i++ {
		off := base + i*f.pageBytes
		page := buf[i*f.pageBytes : (i+1)*f.pageBytes]

		read, err := f.file.ReadAt(page, int64(off))
		if err != nil && !(errors.Is(err, io.EOF) && off+uint64(read) >= f.fileBytes) {
			return Extent{}, &IOError{
				Worker:   f.opts.Worker,
				Offset:   off,
				Length:   len(page),
				Strategy: layout.StrategyDirect,
				Err:      err,
			}
		}
	}

	recordPages(pages, first, n)
	return Extent{
		Data:       buf,
		BaseOffset: base,
		FirstPage:  first,
		Pages:      n,
		IOOps:      n,
	}, nil
}

// PoolPages is the current pool capacity in pages.
func (f *DirectFetcher) PoolPages() int { return f.pool.Cap() }

// PoolGrowths counts the fetches that outgrew the pool.
func (f *DirectFetcher) PoolGrowths() int { return f.pool.Grown() }

// Close implements Fetcher.
func (f *DirectFetcher) Close() error {
	f.pool.Release()
	return nil
}
