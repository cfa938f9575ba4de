package lastmile

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/lidisk/index"
	"github.com/hupe1980/lidisk/internal/pageio"
	"github.com/hupe1980/lidisk/layout"
)

// strideResolver compares keys of fixed-stride records in place.
type strideResolver struct{}

func (strideResolver) resolve(e *Engine, ext pageio.Extent, key uint64, r index.SearchRange) error {
	rb := uint64(e.params.RecordBytes)
	if !ext.Contains(r.Start*rb, r.Width()*rb) {
		panic(fmt.Sprintf("lastmile: items [%d, %d) outside extent [%d, %d)", r.Start, r.Stop, ext.BaseOffset, ext.End()))
	}

	data := ext.Data
	base := ext.BaseOffset
	keyAt := func(i uint64) uint64 {
		off := i*rb - base
		return binary.LittleEndian.Uint64(data[off : off+layout.KeyBytes])
	}

	pos := r.Stop
	if e.binary() {
		lo, hi := r.Start, r.Stop
		for lo < hi {
			mid := lo + (hi-lo)/2
			if keyAt(mid) < key {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo < r.Stop && keyAt(lo) == key {
			pos = lo
		}
	} else {
		for i := r.Start; i < r.Stop; i++ {
			if keyAt(i) == key {
				pos = i
				break
			}
		}
	}
	if pos == r.Stop {
		return nil
	}

	// Duplicates may continue past the range and past the fetched pages,
	// never past the last record.
	e.add(pos)
	end := min(ext.End()/rb, e.items)
	for i := pos + 1; i < e.items && !e.full(); i++ {
		if i >= end {
			next, ok, err := e.extend(i*rb, min(i+e.remaining(), e.items)*rb)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			data, base = next.Data, next.BaseOffset
			if end = min(next.End()/rb, e.items); i >= end {
				return nil
			}
		}
		if keyAt(i) != key {
			return nil
		}
		e.add(i)
	}
	return nil
}
