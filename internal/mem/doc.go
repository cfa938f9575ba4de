// Package mem provides memory allocation utilities.
//
// # Aligned Allocation
//
// Direct (O_DIRECT) reads require the destination buffer to start on a
// logical block boundary. AllocAligned returns heap memory aligned to an
// arbitrary power-of-two boundary, typically the storage page size.
package mem
