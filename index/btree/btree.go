// Package btree implements a sparse block index on top of google/btree.
//
// The tree holds the first key of every group of granularity items. A lookup
// finds the last group whose first key is strictly below the search key and
// reports that group and its successor, which together contain the key's
// first occurrence.
package btree

import (
	"errors"
	"sort"

	"github.com/google/btree"

	"github.com/hupe1980/lidisk/index"
)

// DefaultDegree is the B-tree node degree.
const DefaultDegree = 32

// ErrUnsorted is returned when keys are not ascending.
var ErrUnsorted = errors.New("btree: keys must be sorted")

type entry struct {
	key   uint64
	group uint64
}

func less(a, b entry) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	return a.group < b.group
}

// Model is a sparse index over group leaders.
type Model struct {
	tree        *btree.BTreeG[entry]
	groups      uint64
	granularity uint64
}

var _ index.Index = (*Model)(nil)

// Build indexes ascending keys, where keys[i] lives at position i.
func Build(keys []uint64, granularity uint64, degree int) (*Model, error) {
	if !sort.SliceIsSorted(keys, func(i, j int) bool { return keys[i] < keys[j] }) {
		return nil, ErrUnsorted
	}
	if granularity == 0 {
		granularity = 1
	}
	if degree < 2 {
		degree = DefaultDegree
	}

	m := &Model{
		tree:        btree.NewG(degree, less),
		granularity: granularity,
	}
	for i := uint64(0); i < uint64(len(keys)); i += granularity {
		m.tree.ReplaceOrInsert(entry{key: keys[i], group: i / granularity})
		m.groups++
	}
	return m, nil
}

// Lookup implements index.Index.
func (m *Model) Lookup(key uint64) index.SearchRange {
	if m.groups == 0 {
		return index.SearchRange{}
	}

	var group uint64
	if key > 0 {
		// Entries with key-1 and any group sort at or below this pivot.
		m.tree.DescendLessOrEqual(entry{key: key - 1, group: ^uint64(0)}, func(e entry) bool {
			group = e.group
			return false
		})
	}
	return index.SearchRange{Start: group, Stop: group + 2}
}

// Clone implements index.Index. The underlying tree is copied lazily.
func (m *Model) Clone() index.Index {
	return &Model{
		tree:        m.tree.Clone(),
		groups:      m.groups,
		granularity: m.granularity,
	}
}

// Len is the number of indexed groups.
func (m *Model) Len() int { return m.tree.Len() }
