package workload

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/lidisk/internal/fs"
)

var magic = [8]byte{'L', 'I', 'D', 'W', 'K', 'L', 'D', '1'}

// ErrBadFile is returned for files that are not workloads.
var ErrBadFile = errors.New("workload: not a workload file")

// Codec names the stream compression of a workload file. It follows the file
// extension: .zst, .lz4 or .sz; anything else is stored raw.
type Codec string

const (
	CodecRaw    Codec = "raw"
	CodecZstd   Codec = "zstd"
	CodecLZ4    Codec = "lz4"
	CodecSnappy Codec = "snappy"
)

// CodecFor picks the codec from a file name.
func CodecFor(path string) Codec {
	switch filepath.Ext(path) {
	case ".zst":
		return CodecZstd
	case ".lz4":
		return CodecLZ4
	case ".sz":
		return CodecSnappy
	default:
		return CodecRaw
	}
}

// Save writes l to path as little-endian (key, pos) pairs after an 8-byte
// magic and a count.
func Save(fsys fs.FileSystem, path string, l Lookups) (err error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w, closeCodec, err := newWriter(f, CodecFor(path))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(w, 1<<16)

	var hdr [16]byte
	copy(hdr[:8], magic[:])
	binary.LittleEndian.PutUint64(hdr[8:], uint64(len(l)))
	if _, err = bw.Write(hdr[:]); err != nil {
		return err
	}

	var rec [16]byte
	for _, e := range l {
		binary.LittleEndian.PutUint64(rec[0:], e.Key)
		binary.LittleEndian.PutUint64(rec[8:], e.Pos)
		if _, err = bw.Write(rec[:]); err != nil {
			return err
		}
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = closeCodec(); err != nil {
		return err
	}
	return f.Sync()
}

// Load reads a workload written by Save.
func Load(fsys fs.FileSystem, path string) (Lookups, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, closeCodec, err := newReader(f, CodecFor(path))
	if err != nil {
		return nil, err
	}
	defer closeCodec()
	br := bufio.NewReaderSize(r, 1<<16)

	var hdr [16]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBadFile, path, err)
	}
	if [8]byte(hdr[:8]) != magic {
		return nil, fmt.Errorf("%w: %s: bad magic", ErrBadFile, path)
	}
	n := binary.LittleEndian.Uint64(hdr[8:])

	l := make(Lookups, 0, min(n, 1<<24))
	var rec [16]byte
	for i := uint64(0); i < n; i++ {
		if _, err := io.ReadFull(br, rec[:]); err != nil {
			return nil, fmt.Errorf("%w: %s: entry %d: %w", ErrBadFile, path, i, err)
		}
		l = append(l, Entry{
			Key: binary.LittleEndian.Uint64(rec[0:]),
			Pos: binary.LittleEndian.Uint64(rec[8:]),
		})
	}
	return l, nil
}

func newWriter(w io.Writer, c Codec) (io.Writer, func() error, error) {
	switch c {
	case CodecZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, nil, err
		}
		return enc, enc.Close, nil
	case CodecLZ4:
		lw := lz4.NewWriter(w)
		return lw, lw.Close, nil
	case CodecSnappy:
		sw := snappy.NewBufferedWriter(w)
		return sw, sw.Close, nil
	default:
		return w, func() error { return nil }, nil
	}
}

func newReader(r io.Reader, c Codec) (io.Reader, func(), error) {
	switch c {
	case CodecZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return dec, dec.Close, nil
	case CodecLZ4:
		return lz4.NewReader(r), func() {}, nil
	case CodecSnappy:
		return snappy.NewReader(r), func() {}, nil
	default:
		return r, func() {}, nil
	}
}
