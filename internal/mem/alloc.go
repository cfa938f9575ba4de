package mem

import (
	"unsafe"
)

// PageAlignment is the alignment used for direct I/O buffers.
const PageAlignment = 4096

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// AllocAligned allocates a byte slice of the given size whose first byte sits
// on an address divisible by align. align must be a power of two.
//
// The function over-allocates by align bytes and returns the aligned window.
// The underlying array is kept alive by the returned slice.
func AllocAligned(size, align int) []byte {
	if size <= 0 {
		return nil
	}
	if !IsPowerOfTwo(align) {
		panic("mem: alignment must be a power of two")
	}

	buf := make([]byte, size+align)

	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // unsafe is required for memory alignment
	offset := int((uintptr(align) - (addr & uintptr(align-1))) & uintptr(align-1))

	return buf[offset : offset+size : offset+size]
}

// AllocPages allocates n pages of pageBytes each, aligned to pageBytes.
func AllocPages(n, pageBytes int) []byte {
	return AllocAligned(n*pageBytes, pageBytes)
}

// IsAligned reports whether the first byte of b sits on an align boundary.
func IsAligned(b []byte, align int) bool {
	if len(b) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&b[0]))&uintptr(align-1) == 0 //nolint:gosec // unsafe is required for memory alignment
}
