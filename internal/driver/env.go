package driver

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/hupe1980/lidisk/internal/fs"
	"github.com/hupe1980/lidisk/internal/mmap"
	"github.com/hupe1980/lidisk/internal/resource"
	"github.com/hupe1980/lidisk/layout"
)

// Env is the read-only environment of a run.
type Env struct {
	Params layout.Params
	// Blocks is required for compressed layouts.
	Blocks *layout.BlockDirectory
	// FileBytes is the physical dataset size. Zero means stat the file.
	FileBytes uint64

	FS fs.FileSystem
	// Mapping is shared by every worker of a mapped run. When nil the driver
	// maps the file for the duration of the run.
	Mapping *mmap.Mapping

	// Workers defaults to runtime.NumCPU().
	Workers    int
	Controller *resource.Controller
	Logger     *slog.Logger
	Seed       int64

	fallback *sync.Once
}

// check validates the environment before any worker starts and fills
// defaults.
func (e *Env) check() error {
	if err := e.Params.Validate(); err != nil {
		return err
	}
	if e.Params.Compression.Compressed() {
		if e.Blocks == nil {
			return &layout.LayoutError{Field: "compression", Reason: "compressed layout without block directory"}
		}
		if e.Blocks.ItemCount() != e.Params.ItemCount() {
			return &layout.LayoutError{Field: "dataset_bytes", Reason: fmt.Sprintf("directory holds %d items, configured %d", e.Blocks.ItemCount(), e.Params.ItemCount())}
		}
	}
	if e.FS == nil {
		e.FS = fs.Default
	}
	if e.Logger == nil {
		e.Logger = slog.New(slog.DiscardHandler)
	}
	e.fallback = new(sync.Once)
	if e.Workers <= 0 {
		e.Workers = runtime.NumCPU()
	}
	if e.FileBytes == 0 {
		info, err := e.FS.Stat(e.Params.Path())
		if err != nil {
			return err
		}
		e.FileBytes = uint64(info.Size())
	}
	return nil
}

// Span is a contiguous slice [Lo, Hi) of the workload.
type Span struct {
	Lo, Hi int
}

// Partition splits n lookups into workers contiguous near-equal slices. The
// remainder goes to the last slice.
func Partition(n, workers int) []Span {
	workers = max(workers, 1)
	seg := n / workers
	spans := make([]Span, workers)
	for i := range spans {
		spans[i] = Span{Lo: i * seg, Hi: (i + 1) * seg}
	}
	spans[workers-1].Hi = n
	return spans
}
