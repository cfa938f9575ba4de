package lastmile

import (
	"fmt"
	"sort"

	"github.com/hupe1980/lidisk/index"
	"github.com/hupe1980/lidisk/internal/pageio"
	"github.com/hupe1980/lidisk/layout"
)

type decodeFunc func(block []byte, dst []uint64) ([]uint64, error)

// blockResolver walks the compressed blocks that overlap the range,
// decoding each into scratch with its own header (width or bit length).
type blockResolver struct {
	decode decodeFunc
}

func (b blockResolver) resolve(e *Engine, ext pageio.Extent, key uint64, r index.SearchRange) error {
	blocks := e.dir.Blocks
	first, last := e.dir.Span(r.Start, r.Stop)

	for bi := first; bi < last; bi++ {
		keys, err := b.load(e, ext, bi)
		if err != nil {
			return err
		}
		blk := blocks[bi]

		// Restrict the search to the items of r held by this block.
		lo := int(max(r.Start, blk.FirstItem) - blk.FirstItem)
		hi := int(min(r.Stop, blk.StopItem()) - blk.FirstItem)

		j := hi
		if e.binary() {
			j = lo + sort.Search(hi-lo, func(i int) bool { return keys[lo+i] >= key })
			if j < hi && keys[j] != key {
				return nil // lower bound is larger: absent
			}
		} else {
			for i := lo; i < hi; i++ {
				if keys[i] == key {
					j = i
					break
				}
			}
		}
		if j == hi {
			continue
		}

		return b.collect(e, ext, key, bi, j, keys)
	}
	return nil
}

// collect gathers the match at keys[j] of block bi and the duplicates that
// follow, crossing into later blocks. Blocks outside ext are fetched through
// the engine's ExtendFunc.
func (b blockResolver) collect(e *Engine, ext pageio.Extent, key uint64, bi, j int, keys []uint64) error {
	blocks := e.dir.Blocks
	for {
		first := blocks[bi].FirstItem
		for ; j < len(keys); j++ {
			if keys[j] != key || e.full() {
				return nil
			}
			e.add(first + uint64(j))
		}

		bi++
		if bi >= len(blocks) || e.full() {
			return nil
		}
		if blk := blocks[bi]; !ext.Contains(blk.Offset, uint64(blk.Length)) {
			next, ok, err := e.extend(blk.Offset, blk.End())
			if err != nil || !ok {
				return err
			}
			ext = next
		}
		var err error
		if keys, err = b.load(e, ext, bi); err != nil {
			return err
		}
		j = 0
	}
}

func (b blockResolver) load(e *Engine, ext pageio.Extent, bi int) ([]uint64, error) {
	blk := e.dir.Blocks[bi]
	raw := ext.Slice(blk.Offset, uint64(blk.Length))

	keys, err := b.decode(raw, e.scratch)
	e.scratch = keys
	if err != nil {
		return nil, corrupt(bi, err)
	}
	if len(keys) != int(blk.Count) {
		return nil, corrupt(bi, fmt.Errorf("%w: decoded %d keys, directory says %d", layout.ErrCorruptBlock, len(keys), blk.Count))
	}
	return keys, nil
}
