package lidisk

import (
	"errors"

	"github.com/hupe1980/lidisk/internal/lastmile"
	"github.com/hupe1980/lidisk/internal/pageio"
	"github.com/hupe1980/lidisk/layout"
)

var (
	// ErrInvalidLayout is matched by every configuration inconsistency.
	ErrInvalidLayout = layout.ErrInvalidLayout

	// ErrNoRecords is returned when a run needs the dataset in memory but the
	// bench has none.
	ErrNoRecords = errors.New("no records loaded")

	// ErrNoIndex is returned by model-driven runs without an index.
	ErrNoIndex = errors.New("index must not be nil")

	// ErrCorruptBlock is returned when a compressed block disagrees with its
	// directory entry.
	ErrCorruptBlock = layout.ErrCorruptBlock

	// ErrNoDirectory is returned for a compressed layout without a block
	// directory.
	ErrNoDirectory = lastmile.ErrNoDirectory
)

// LayoutError reports an invalid layout parameter.
type LayoutError = layout.LayoutError

// IOError reports a failed storage read. Runs that hit one fail as a whole;
// their counters are discarded.
//
// The original underlying error can be accessed via errors.Unwrap.
type IOError = pageio.IOError

// IsIOError reports whether err carries a storage failure.
func IsIOError(err error) bool {
	var ioe *IOError
	return errors.As(err, &ioe)
}
