package report

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const createRuns = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	ts            TEXT NOT NULL,
	mode          TEXT NOT NULL,
	label         TEXT,
	threads       INTEGER NOT NULL,
	diff          INTEGER NOT NULL,
	strategy      TEXT NOT NULL,
	compression   TEXT NOT NULL,
	search_mode   TEXT NOT NULL,
	granularity   INTEGER NOT NULL,
	ops           INTEGER NOT NULL,
	elapsed_ns    INTEGER NOT NULL,
	throughput    REAL NOT NULL,
	latency_ns    REAL NOT NULL,
	avg_pages     REAL NOT NULL,
	avg_range     REAL NOT NULL,
	max_range     INTEGER NOT NULL,
	total_io      INTEGER NOT NULL,
	iops          REAL NOT NULL,
	bandwidth_gbs REAL NOT NULL,
	checksum      TEXT NOT NULL,
	expected      TEXT NOT NULL,
	correct       INTEGER NOT NULL
);`

const insertRun = `INSERT OR REPLACE INTO runs (
	run_id, ts, mode, label, threads, diff, strategy, compression, search_mode, granularity,
	ops, elapsed_ns, throughput, latency_ns, avg_pages, avg_range, max_range,
	total_io, iops, bandwidth_gbs, checksum, expected, correct
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteSink stores rows in the runs table of a SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens or creates the database at path.
func NewSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createRuns); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteSink{db: db}, nil
}

// Write implements Sink.
func (s *SQLiteSink) Write(ctx context.Context, row Row) error {
	// 64-bit checksums overflow SQLite's signed integers; store them as text.
	_, err := s.db.ExecContext(ctx, insertRun,
		row.RunID, row.Time.Format(time.RFC3339Nano), string(row.Mode), row.Label,
		row.Threads, int64(row.Diff), row.Strategy.String(), row.Compression.String(),
		row.SearchMode.String(), int64(row.Granularity),
		int64(row.Ops), int64(row.ElapsedNs), row.Throughput, row.LatencyNs,
		row.AvgPages, row.AvgRange, int64(row.MaxRange),
		int64(row.TotalIO), row.IOPS, row.BandwidthGBs,
		formatUint(row.Checksum), formatUint(row.Expected), row.Correct,
	)
	return err
}

// Count returns the number of stored runs with the given mode, or all runs
// when mode is empty.
func (s *SQLiteSink) Count(ctx context.Context, mode Mode) (int, error) {
	var n int
	var err error
	if mode == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE mode = ?`, string(mode)).Scan(&n)
	}
	return n, err
}

// Close implements Sink.
func (s *SQLiteSink) Close() error { return s.db.Close() }
