// Package report emits run summaries: append-only rows to CSV, SQLite or a
// Prometheus registry, and a human-readable console line.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/lidisk/layout"
	"github.com/hupe1980/lidisk/stats"
)

// Mode names the kind of run a row describes.
type Mode string

const (
	ModeLookup Mode = "lookup"
	ModeStress Mode = "stress"
	ModeMemory Mode = "memory"
)

// Row is one run.
type Row struct {
	RunID       string
	Time        time.Time
	Mode        Mode
	Label       string
	Threads     int
	Diff        uint64
	Strategy    layout.Strategy
	Compression layout.Compression
	SearchMode  layout.SearchMode
	Granularity uint64
	PageBytes   int

	stats.Summary
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// NewRow describes a run over p.
func NewRow(runID string, mode Mode, threads int, diff uint64, p layout.Params, s stats.Summary) Row {
	if runID == "" {
		runID = NewRunID()
	}
	return Row{
		RunID:       runID,
		Time:        time.Now().UTC(),
		Mode:        mode,
		Threads:     threads,
		Diff:        diff,
		Strategy:    p.Strategy,
		Compression: p.Compression,
		SearchMode:  p.SearchMode,
		Granularity: p.Granularity,
		PageBytes:   p.PageBytes,
		Summary:     s,
	}
}

// Sink persists rows.
type Sink interface {
	Write(ctx context.Context, row Row) error
	Close() error
}

// Multi fans a row out to every sink and joins their errors.
type Multi []Sink

// Write implements Sink.
func (m Multi) Write(ctx context.Context, row Row) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every row.
type Discard struct{}

func (Discard) Write(context.Context, Row) error { return nil }
func (Discard) Close() error                     { return nil }
