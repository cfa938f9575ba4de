package report

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"
	"sync"

	"github.com/hupe1980/lidisk/internal/fs"
)

var csvHeader = []string{"threads", "diff", "fetch_strategy", "ops", "throughput", "latency", "run_id", "mode"}

// CSVSink appends one row per run to a delimited file. A header is written
// when the file is empty.
type CSVSink struct {
	mu   sync.Mutex
	file fs.File
	w    *csv.Writer
}

// NewCSVSink opens path for appending.
func NewCSVSink(fsys fs.FileSystem, path string) (*CSVSink, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	s := &CSVSink{file: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := s.w.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, err
		}
		s.w.Flush()
	}
	return s, nil
}

// Write implements Sink.
func (s *CSVSink) Write(_ context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := []string{
		strconv.Itoa(row.Threads),
		strconv.FormatUint(row.Diff, 10),
		row.Strategy.String(),
		strconv.FormatUint(row.Ops, 10),
		strconv.FormatFloat(row.Throughput, 'f', 2, 64),
		strconv.FormatFloat(row.LatencyNs, 'f', 2, 64),
		row.RunID,
		string(row.Mode),
	}
	if err := s.w.Write(rec); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// Close implements Sink.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}
