package layout

import (
	"errors"
	"fmt"
	"path/filepath"
)

// KeyBytes is the encoded size of a key.
const KeyBytes = 8

// Defaults.
const (
	DefaultPageBytes        = 4096
	DefaultRecordBytes      = 16
	DefaultPoolPages        = 10
	DefaultMaxQualifying    = 100
	DefaultMaxPayloadLength = 32
	DefaultBlockItems       = 256
	DefaultFileName         = "dataset.bin"

	// maxPayloadLimit keeps every bit-packed delta inside an 8-byte window.
	maxPayloadLimit = 56
)

// Strategy selects how pages are fetched from storage.
type Strategy int

const (
	// StrategyDirect issues explicit unbuffered (O_DIRECT) page reads.
	StrategyDirect Strategy = iota
	// StrategyMapped reads through a persistent read-only mmap of the file.
	StrategyMapped
)

func (s Strategy) String() string {
	switch s {
	case StrategyDirect:
		return "direct"
	case StrategyMapped:
		return "mmap"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy parses "direct" or "mmap".
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "direct", "":
		return StrategyDirect, nil
	case "mmap", "mapped":
		return StrategyMapped, nil
	}
	return 0, &LayoutError{Field: "strategy", Reason: fmt.Sprintf("unknown value %q", s)}
}

// Compression selects the physical payload layout.
type Compression int

// The numeric values of the compressed modes follow the reporting convention
// of the original benchmark: 1 is reported as sequential.
const (
	CompressionNone       Compression = -1
	CompressionAligned    Compression = 0
	CompressionSequential Compression = 1
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionAligned:
		return "aligned"
	case CompressionSequential:
		return "sequential"
	default:
		return fmt.Sprintf("compression(%d)", int(c))
	}
}

// Compressed reports whether c is one of the block-compressed layouts.
func (c Compression) Compressed() bool {
	return c == CompressionAligned || c == CompressionSequential
}

// ParseCompression parses "none", "aligned" or "sequential".
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none", "":
		return CompressionNone, nil
	case "aligned", "0":
		return CompressionAligned, nil
	case "sequential", "1":
		return CompressionSequential, nil
	}
	return 0, &LayoutError{Field: "compression", Reason: fmt.Sprintf("unknown value %q", s)}
}

// SearchMode selects the last-mile search algorithm.
type SearchMode int

const (
	// SearchBinary is a lower-bound binary search over the refined interval.
	SearchBinary SearchMode = iota
	// SearchLinear scans the refined interval front to back.
	SearchLinear
)

func (m SearchMode) String() string {
	if m == SearchLinear {
		return "linear"
	}
	return "binary"
}

// ParseSearchMode parses "binary" or "linear".
func ParseSearchMode(s string) (SearchMode, error) {
	switch s {
	case "binary", "":
		return SearchBinary, nil
	case "linear":
		return SearchLinear, nil
	}
	return 0, &LayoutError{Field: "search_mode", Reason: fmt.Sprintf("unknown value %q", s)}
}

// ErrInvalidLayout is matched by every LayoutError.
var ErrInvalidLayout = errors.New("invalid layout parameters")

// LayoutError reports an inconsistent layout configuration.
type LayoutError struct {
	Field  string
	Reason string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("invalid layout: %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidLayout) hold for every LayoutError.
func (e *LayoutError) Is(target error) bool { return target == ErrInvalidLayout }

// Params are the immutable per-run layout parameters.
type Params struct {
	PageBytes   int
	RecordBytes int
	// DatasetBytes is the logical size RecordBytes*ItemCount. Compressed
	// layouts keep this convention; their physical size comes from the
	// block directory.
	DatasetBytes uint64
	Granularity  uint64

	Strategy    Strategy
	Compression Compression
	SearchMode  SearchMode

	DataDir  string
	FileName string

	// OnDisk is false when the dataset is memory resident; the stress driver
	// then runs single-threaded.
	OnDisk bool

	PoolPages        int
	MaxQualifying    int
	MaxPayloadLength int
	BlockItems       int

	// TrackResidency makes the mapped strategy count non-resident pages as I/O.
	TrackResidency bool
}

// DefaultParams returns parameters for an uncompressed 16-byte-record dataset
// read with direct I/O.
func DefaultParams() Params {
	return Params{
		PageBytes:        DefaultPageBytes,
		RecordBytes:      DefaultRecordBytes,
		Granularity:      1,
		Strategy:         StrategyDirect,
		Compression:      CompressionNone,
		SearchMode:       SearchBinary,
		FileName:         DefaultFileName,
		OnDisk:           true,
		PoolPages:        DefaultPoolPages,
		MaxQualifying:    DefaultMaxQualifying,
		MaxPayloadLength: DefaultMaxPayloadLength,
		BlockItems:       DefaultBlockItems,
	}
}

// ItemCount is the number of records in the dataset.
func (p Params) ItemCount() uint64 {
	if p.RecordBytes <= 0 {
		return 0
	}
	return p.DatasetBytes / uint64(p.RecordBytes)
}

// RecordsPerPage is the number of fixed-stride records per page.
func (p Params) RecordsPerPage() uint64 {
	if p.RecordBytes <= 0 {
		return 0
	}
	return uint64(p.PageBytes / p.RecordBytes)
}

// Path is the dataset file path.
func (p Params) Path() string {
	return filepath.Join(p.DataDir, p.FileName)
}

// BlocksPath is the block directory sidecar path.
func (p Params) BlocksPath() string {
	return p.Path() + ".blocks"
}

// Validate checks the parameters for internal consistency. It runs before
// any worker starts.
func (p Params) Validate() error {
	switch {
	case p.PageBytes <= 0 || p.PageBytes&(p.PageBytes-1) != 0:
		return &LayoutError{Field: "page_bytes", Reason: fmt.Sprintf("%d is not a positive power of two", p.PageBytes)}
	case p.RecordBytes < KeyBytes:
		return &LayoutError{Field: "record_bytes", Reason: fmt.Sprintf("%d is smaller than the %d-byte key", p.RecordBytes, KeyBytes)}
	case p.RecordBytes%KeyBytes != 0:
		return &LayoutError{Field: "record_bytes", Reason: fmt.Sprintf("%d is not a multiple of the key size", p.RecordBytes)}
	case p.RecordBytes > p.PageBytes:
		return &LayoutError{Field: "record_bytes", Reason: "record larger than a page"}
	case p.PageBytes%p.RecordBytes != 0:
		return &LayoutError{Field: "record_bytes", Reason: "records would straddle page boundaries"}
	case p.DatasetBytes%uint64(p.RecordBytes) != 0:
		return &LayoutError{Field: "dataset_bytes", Reason: fmt.Sprintf("%d is not a multiple of record_bytes %d", p.DatasetBytes, p.RecordBytes)}
	case p.Granularity == 0:
		return &LayoutError{Field: "granularity", Reason: "must be at least 1"}
	case p.PoolPages <= 0:
		return &LayoutError{Field: "pool_pages", Reason: "must be positive"}
	case p.MaxQualifying <= 0:
		return &LayoutError{Field: "max_qualifying", Reason: "must be positive"}
	case p.Strategy != StrategyDirect && p.Strategy != StrategyMapped:
		return &LayoutError{Field: "strategy", Reason: p.Strategy.String()}
	case p.SearchMode != SearchBinary && p.SearchMode != SearchLinear:
		return &LayoutError{Field: "search_mode", Reason: fmt.Sprintf("unknown mode %d", int(p.SearchMode))}
	}

	switch p.Compression {
	case CompressionNone:
	case CompressionAligned, CompressionSequential:
		if p.MaxPayloadLength < 1 || p.MaxPayloadLength > maxPayloadLimit {
			return &LayoutError{Field: "max_payload_length", Reason: fmt.Sprintf("%d outside [1, %d]", p.MaxPayloadLength, maxPayloadLimit)}
		}
		if p.BlockItems <= 0 || p.BlockItems > maxBlockCount {
			return &LayoutError{Field: "block_items", Reason: fmt.Sprintf("%d outside [1, %d]", p.BlockItems, maxBlockCount)}
		}
	default:
		return &LayoutError{Field: "compression", Reason: p.Compression.String()}
	}
	return nil
}
