// Package rmi implements a two-layer recursive model index.
//
// Layer one maps a key to a leaf by linear interpolation over the key domain;
// each leaf is a least-squares line from key to position with its own
// minimum and maximum training error. Lookup widens the leaf prediction by
// those bounds and reports the interval in granularity units.
package rmi

import (
	"errors"
	"sort"

	"github.com/hupe1980/lidisk/index"
)

// DefaultFanout is the number of leaf models.
const DefaultFanout = 1000

// ErrUnsorted is returned when training keys are not ascending.
var ErrUnsorted = errors.New("rmi: keys must be sorted")

type leaf struct {
	model  linearModel
	minErr int64
	maxErr int64
}

// Model is a trained two-layer RMI.
type Model struct {
	globalMin   uint64
	globalMax   uint64
	itemCount   uint64
	granularity uint64
	leaves      []leaf
}

var _ index.Index = (*Model)(nil)

// Train fits a model over ascending keys, where keys[i] lives at position i.
func Train(keys []uint64, granularity uint64, fanout int) (*Model, error) {
	if !sort.SliceIsSorted(keys, func(i, j int) bool { return keys[i] < keys[j] }) {
		return nil, ErrUnsorted
	}
	if fanout <= 0 {
		fanout = DefaultFanout
	}
	if granularity == 0 {
		granularity = 1
	}

	m := &Model{
		itemCount:   uint64(len(keys)),
		granularity: granularity,
		leaves:      make([]leaf, fanout),
	}
	if len(keys) == 0 {
		return m, nil
	}
	m.globalMin = keys[0]
	m.globalMax = keys[len(keys)-1]

	bucketKeys := make([][]uint64, fanout)
	bucketPos := make([][]uint64, fanout)
	for i, k := range keys {
		b := m.bucket(k)
		bucketKeys[b] = append(bucketKeys[b], k)
		bucketPos[b] = append(bucketPos[b], uint64(i))
	}

	for b := range m.leaves {
		m.leaves[b].model = fitLinear(bucketKeys[b], bucketPos[b])
	}

	// Error bounds are measured against the first occurrence of each key,
	// which is what the last-mile search looks for.
	for i, k := range keys {
		if i > 0 && keys[i-1] == k {
			continue
		}
		l := &m.leaves[m.bucket(k)]
		err := int64(i) - l.model.predict(k)
		l.minErr = min(l.minErr, err)
		l.maxErr = max(l.maxErr, err)
	}
	return m, nil
}

func (m *Model) bucket(key uint64) int {
	if key <= m.globalMin {
		return 0
	}
	if key >= m.globalMax {
		return len(m.leaves) - 1
	}
	span := float64(m.globalMax - m.globalMin)
	b := int(float64(key-m.globalMin) / span * float64(len(m.leaves)))
	return min(max(b, 0), len(m.leaves)-1)
}

// Lookup implements index.Index.
func (m *Model) Lookup(key uint64) index.SearchRange {
	if m.itemCount == 0 {
		return index.SearchRange{}
	}
	l := m.leaves[m.bucket(key)]
	p := l.model.predict(key)

	lo := max(p+l.minErr, 0)
	hi := max(p+l.maxErr, lo)
	return index.Coarsen(uint64(lo), uint64(hi), m.granularity)
}

// Clone implements index.Index.
func (m *Model) Clone() index.Index {
	c := *m
	c.leaves = append([]leaf(nil), m.leaves...)
	return &c
}

// MaxError is the widest leaf error window in items.
func (m *Model) MaxError() uint64 {
	var w int64
	for _, l := range m.leaves {
		w = max(w, l.maxErr-l.minErr)
	}
	return uint64(w)
}

// Granularity is the number of items per reported unit.
func (m *Model) Granularity() uint64 { return m.granularity }
