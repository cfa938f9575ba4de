package layout

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// Record is one dataset entry. The key occupies the first eight bytes of the
// fixed-stride record, the value the next eight.
type Record struct {
	Key   uint64
	Value uint64
}

// KeyAt decodes the key of the fixed-stride record starting at off.
func KeyAt(buf []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(buf[off : off+KeyBytes])
}

// PutRecord encodes r into a record slot of len(dst) bytes.
func PutRecord(dst []byte, r Record) {
	binary.LittleEndian.PutUint64(dst[0:], r.Key)
	if len(dst) >= 2*KeyBytes {
		binary.LittleEndian.PutUint64(dst[KeyBytes:], r.Value)
	}
}

// BlockHeader is the decoded header of a compressed block.
type BlockHeader struct {
	Count        int
	Bits         int
	Kind         byte
	PayloadBytes int
	Base         uint64
}

func putHeader(dst []byte, h BlockHeader) {
	binary.LittleEndian.PutUint16(dst[0:], uint16(h.Count))
	dst[2] = byte(h.Bits)
	dst[3] = h.Kind
	binary.LittleEndian.PutUint32(dst[4:], uint32(h.PayloadBytes))
	binary.LittleEndian.PutUint64(dst[8:], h.Base)
}

// ParseBlockHeader decodes and bounds-checks the header of block. The
// declared payload must fit inside block.
func ParseBlockHeader(block []byte) (BlockHeader, error) {
	if len(block) < BlockHeaderBytes {
		return BlockHeader{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrCorruptBlock, len(block), BlockHeaderBytes)
	}
	h := BlockHeader{
		Count:        int(binary.LittleEndian.Uint16(block[0:])),
		Bits:         int(block[2]),
		Kind:         block[3],
		PayloadBytes: int(binary.LittleEndian.Uint32(block[4:])),
		Base:         binary.LittleEndian.Uint64(block[8:]),
	}
	if BlockHeaderBytes+h.PayloadBytes > len(block) {
		return BlockHeader{}, fmt.Errorf("%w: payload %d bytes exceeds extent %d", ErrCorruptBlock, h.PayloadBytes, len(block)-BlockHeaderBytes)
	}
	return h, nil
}

// alignedPayload is the payload size of count deltas of width bytes.
func alignedPayload(count, width int) int { return count * width }

// sequentialPayload is the payload size of count deltas of nbits bits.
func sequentialPayload(count, nbits int) int { return (count*nbits + 7) / 8 }

// EncodeAligned writes an aligned block for keys into dst, which must hold
// BlockHeaderBytes+len(keys)*width bytes. keys must be ascending.
func EncodeAligned(dst []byte, keys []uint64, width int) int {
	base := keys[0]
	payload := alignedPayload(len(keys), width)
	putHeader(dst, BlockHeader{Count: len(keys), Bits: width, Kind: blockKindAligned, PayloadBytes: payload, Base: base})

	var tmp [8]byte
	out := dst[BlockHeaderBytes:]
	for i, k := range keys {
		binary.LittleEndian.PutUint64(tmp[:], k-base)
		copy(out[i*width:(i+1)*width], tmp[:width])
	}
	return BlockHeaderBytes + payload
}

// DecodeAligned decodes every key of an aligned block into dst[:0].
func DecodeAligned(block []byte, dst []uint64) ([]uint64, error) {
	h, err := ParseBlockHeader(block)
	if err != nil {
		return dst[:0], err
	}
	if h.Kind != blockKindAligned || h.Bits > 8 || alignedPayload(h.Count, h.Bits) != h.PayloadBytes {
		return dst[:0], fmt.Errorf("%w: not an aligned block (kind %d, width %d)", ErrCorruptBlock, h.Kind, h.Bits)
	}

	dst = dst[:0]
	payload := block[BlockHeaderBytes : BlockHeaderBytes+h.PayloadBytes]
	var tmp [8]byte
	for i := 0; i < h.Count; i++ {
		copy(tmp[:], payload[i*h.Bits:(i+1)*h.Bits])
		for j := h.Bits; j < 8; j++ {
			tmp[j] = 0
		}
		dst = append(dst, h.Base+binary.LittleEndian.Uint64(tmp[:]))
	}
	return dst, nil
}

// EncodeSequential writes a sequential block for keys into dst using nbits
// bits per delta. dst must hold BlockHeaderBytes+ceil(len(keys)*nbits/8)
// bytes. keys must be ascending and every delta must fit in nbits.
func EncodeSequential(dst []byte, keys []uint64, nbits int) int {
	base := keys[0]
	payload := sequentialPayload(len(keys), nbits)
	putHeader(dst, BlockHeader{Count: len(keys), Bits: nbits, Kind: blockKindSequential, PayloadBytes: payload, Base: base})

	out := dst[BlockHeaderBytes : BlockHeaderBytes+payload]
	clear(out)
	if nbits == 0 {
		return BlockHeaderBytes
	}

	var acc uint64
	filled, j := 0, 0
	for _, k := range keys {
		acc |= (k - base) << filled
		filled += nbits
		for filled >= 8 {
			out[j] = byte(acc)
			j++
			acc >>= 8
			filled -= 8
		}
	}
	if filled > 0 {
		out[j] = byte(acc)
	}
	return BlockHeaderBytes + payload
}

// DecodeSequential decodes every key of a sequential block into dst[:0].
// Reads never go past the block's declared payload.
func DecodeSequential(block []byte, dst []uint64) ([]uint64, error) {
	h, err := ParseBlockHeader(block)
	if err != nil {
		return dst[:0], err
	}
	if h.Kind != blockKindSequential || h.Bits > maxPayloadLimit || sequentialPayload(h.Count, h.Bits) != h.PayloadBytes {
		return dst[:0], fmt.Errorf("%w: not a sequential block (kind %d, bits %d)", ErrCorruptBlock, h.Kind, h.Bits)
	}

	dst = dst[:0]
	if h.Bits == 0 {
		for i := 0; i < h.Count; i++ {
			dst = append(dst, h.Base)
		}
		return dst, nil
	}

	payload := block[BlockHeaderBytes : BlockHeaderBytes+h.PayloadBytes]
	mask := uint64(1)<<h.Bits - 1
	for i := 0; i < h.Count; i++ {
		pos := i * h.Bits
		dst = append(dst, h.Base+(window(payload, pos>>3)>>(pos&7))&mask)
	}
	return dst, nil
}

// window loads up to eight little-endian bytes starting at off, zero-filling
// past the end of payload.
func window(payload []byte, off int) uint64 {
	if off+8 <= len(payload) {
		return binary.LittleEndian.Uint64(payload[off:])
	}
	var w uint64
	for i := len(payload) - 1; i >= off; i-- {
		w = w<<8 | uint64(payload[i])
	}
	return w
}

// DeltaBits is the number of bits needed to store v.
func DeltaBits(v uint64) int { return bits.Len64(v) }
