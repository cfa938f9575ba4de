package mmap

import "errors"

// AccessPattern is an madvise hint for the whole mapping.
type AccessPattern int

const (
	// AccessDefault clears any earlier hint.
	AccessDefault AccessPattern = iota
	// AccessRandom disables readahead; lookups touch scattered pages.
	AccessRandom
	// AccessWillNeed starts reading the whole file into the page cache.
	AccessWillNeed
)

var (
	// ErrClosed is returned when attempting to access a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned when the file size is invalid.
	ErrInvalidSize = errors.New("mmap: invalid file size")
	// ErrOutOfBounds is returned when a range falls outside the mapping.
	ErrOutOfBounds = errors.New("mmap: out of bounds")
	// ErrUnaligned is returned when a residency query does not start on an OS page boundary.
	ErrUnaligned = errors.New("mmap: offset not aligned to OS page size")
)
