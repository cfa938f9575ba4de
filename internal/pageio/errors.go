package pageio

import (
	"fmt"

	"github.com/hupe1980/lidisk/layout"
)

// IOError is a failed storage access. It is fatal for the worker that issued
// it and is not retried.
type IOError struct {
	Worker   int
	Offset   uint64
	Length   int
	Strategy layout.Strategy
	Err      error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("worker %d: %s read of %d bytes at offset %d: %v", e.Worker, e.Strategy, e.Length, e.Offset, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
