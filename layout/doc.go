// Package layout describes how a sorted dataset is laid out on storage.
//
// Three physical layouts are supported:
//
//   - CompressionNone: fixed-stride records. Record i starts at byte
//     i*RecordBytes; its key is the first eight bytes, little-endian.
//   - CompressionAligned: frame-of-reference key blocks, each occupying
//     exactly one page. Deltas are stored with a per-block byte width.
//   - CompressionSequential: frame-of-reference key blocks stored back to
//     back. Deltas are bit-packed with a per-block payload length of at most
//     MaxPayloadLength bits; the length changes only at block boundaries.
//
// Compressed layouts carry a BlockDirectory (sidecar file "<name>.blocks")
// mapping item positions to block byte ranges.
//
// Params is immutable for the duration of a run and is copied into every
// worker.
package layout
