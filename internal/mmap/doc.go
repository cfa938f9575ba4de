// Package mmap provides read-only memory-mapped access to dataset files.
//
// # Overview
//
// The mapped fetch strategy keeps the whole dataset file resident in the
// address space for the duration of a run. Page faults are transparent to the
// caller; Missing reports, on a best-effort basis, how many pages of a range
// are not yet in the page cache so that faults can still be accounted as I/O.
//
// # Usage
//
//	m, err := mmap.Open("dataset.bin")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessRandom)
//	page, err := m.Range(off, off+4096)
//
// # Thread Safety
//
// A Mapping is safe for concurrent read access by many workers. Close is
// idempotent; slices returned by Range must not be used after Close.
//
// # Platform Support
//
// Unix only (mmap(2), madvise(2), mincore(2) via golang.org/x/sys/unix).
package mmap
