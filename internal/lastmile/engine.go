// Package lastmile resolves a key exactly inside a fetched extent.
//
// The layout decides how keys are read: fixed-stride records are compared in
// place, compressed blocks are decoded one at a time. The search mode decides
// how the first occurrence is found. After the first match the engine scans
// forward for duplicates until a different key, the qualifying cap, or the
// last record. A run that outlasts the fetched extent continues through the
// caller's ExtendFunc.
package lastmile

import (
	"errors"
	"fmt"

	"github.com/hupe1980/lidisk/index"
	"github.com/hupe1980/lidisk/internal/pageio"
	"github.com/hupe1980/lidisk/layout"
)

// ErrNoDirectory is returned when a compressed layout has no block directory.
var ErrNoDirectory = errors.New("lastmile: compressed layout requires a block directory")

// ExtendFunc fetches the extent covering the bytes [start, stop). Resolve
// calls it when a run of duplicates reaches the end of the data it was given.
// The returned extent may reuse the previous extent's buffer.
type ExtendFunc func(start, stop uint64) (pageio.Extent, error)

// Result of one lookup. Positions is owned by the engine and valid until the
// next Resolve.
type Result struct {
	Key       uint64
	Positions []uint64
	// Sum is the wrapping sum of every matched key.
	Sum   uint64
	Width uint64

	// Pages and IOOps count the extents fetched through ExtendFunc.
	Pages uint64
	IOOps uint64
}

// Matches is the number of qualifying records, at most the cap.
func (r Result) Matches() int { return len(r.Positions) }

// Found reports whether the key was present.
func (r Result) Found() bool { return len(r.Positions) > 0 }

type resolver interface {
	resolve(e *Engine, ext pageio.Extent, key uint64, r index.SearchRange) error
}

// Engine is a worker-private last-mile searcher.
type Engine struct {
	params   layout.Params
	dir      *layout.BlockDirectory
	resolver resolver
	items    uint64
	cap      int

	positions []uint64
	scratch   []uint64

	more       ExtendFunc
	extraPages uint64
	extraIO    uint64
}

// New creates an engine for p. dir is required for compressed layouts.
func New(p layout.Params, dir *layout.BlockDirectory) (*Engine, error) {
	e := &Engine{
		params: p,
		dir:    dir,
		items:  p.ItemCount(),
		cap:    max(p.MaxQualifying, 1),
	}
	e.positions = make([]uint64, 0, e.cap)

	switch p.Compression {
	case layout.CompressionNone:
		e.resolver = strideResolver{}
	case layout.CompressionAligned:
		e.resolver = blockResolver{decode: layout.DecodeAligned}
	case layout.CompressionSequential:
		e.resolver = blockResolver{decode: layout.DecodeSequential}
	default:
		return nil, &layout.LayoutError{Field: "compression", Reason: p.Compression.String()}
	}
	if p.Compression.Compressed() && dir == nil {
		return nil, ErrNoDirectory
	}
	return e, nil
}

// Resolve searches r, an item range, for key inside ext. An empty range
// returns no matches without decoding anything. When more is nil the
// duplicate scan stops at the end of ext.
func (e *Engine) Resolve(ext pageio.Extent, key uint64, r index.SearchRange, more ExtendFunc) (Result, error) {
	e.positions = e.positions[:0]
	e.more, e.extraPages, e.extraIO = more, 0, 0
	defer func() { e.more = nil }()

	res := Result{Key: key, Width: r.Width()}
	if r.Empty() {
		return res, nil
	}

	err := e.resolver.resolve(e, ext, key, r)
	res.Pages, res.IOOps = e.extraPages, e.extraIO
	if err != nil {
		return res, err
	}
	res.Positions = e.positions
	res.Sum = key * uint64(len(e.positions))
	return res, nil
}

// extend fetches [start, stop) for a duplicate scan. ok is false when the
// caller supplied no ExtendFunc.
func (e *Engine) extend(start, stop uint64) (ext pageio.Extent, ok bool, err error) {
	if e.more == nil || stop <= start {
		return pageio.Extent{}, false, nil
	}
	ext, err = e.more(start, stop)
	if err != nil {
		return pageio.Extent{}, false, err
	}
	e.extraPages += ext.Pages
	e.extraIO += ext.IOOps
	return ext, true, nil
}

// remaining is the number of matches still admitted by the cap.
func (e *Engine) remaining() uint64 { return uint64(e.cap - len(e.positions)) }

func (e *Engine) full() bool { return len(e.positions) >= e.cap }

func (e *Engine) add(pos uint64) { e.positions = append(e.positions, pos) }

func (e *Engine) binary() bool { return e.params.SearchMode == layout.SearchBinary }

func corrupt(b int, err error) error {
	return fmt.Errorf("block %d: %w", b, err)
}
