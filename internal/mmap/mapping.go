package mmap

import (
	"os"
	"sync/atomic"
)

// Mapping represents a read-only memory-mapped file.
// It owns the underlying byte slice and is responsible for unmapping it.
type Mapping struct {
	data   []byte
	size   int
	closed atomic.Bool
	unmap  func([]byte) error
}

// Open maps the file at path into memory as read-only.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &Mapping{}, nil
	}
	if size < 0 {
		return nil, ErrInvalidSize
	}

	data, unmapFunc, err := osMap(f, int(size))
	if err != nil {
		return nil, err
	}

	return &Mapping{
		data:  data,
		size:  int(size),
		unmap: unmapFunc,
	}, nil
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return m.size
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.data == nil {
		return nil
	}
	return osAdvise(m.data, pattern)
}

// Missing reports how many OS pages of [off, off+n) are not resident in the
// page cache. off must be a multiple of os.Getpagesize(). vec is reused
// scratch; it is grown when too small and returned for the next call.
func (m *Mapping) Missing(off, n int, vec []byte) (int, []byte, error) {
	if m.closed.Load() {
		return 0, vec, ErrClosed
	}
	if off < 0 || n < 0 || off+n > m.size {
		return 0, vec, ErrOutOfBounds
	}
	if n == 0 {
		return 0, vec, nil
	}
	osPage := os.Getpagesize()
	if off%osPage != 0 {
		return 0, vec, ErrUnaligned
	}

	pages := (n + osPage - 1) / osPage
	if cap(vec) < pages {
		vec = make([]byte, pages)
	}
	vec = vec[:pages]

	missing, err := osMissing(m.data[off:off+n], vec)
	return missing, vec, err
}

// Range returns the mapped bytes [off, end) without copying.
func (m *Mapping) Range(off, end int) ([]byte, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if off < 0 || end < off || end > m.size {
		return nil, ErrOutOfBounds
	}
	return m.data[off:end:end], nil
}
