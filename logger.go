package lidisk

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/lidisk/report"
)

// Logger wraps slog.Logger with benchmark-specific context.
// Field names are shared by every run so that logs can be joined with report
// rows on run_id.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithRun adds a run_id field to the logger.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run_id", runID),
	}
}

// WithStrategy adds the fetch strategy and compression fields.
func (l *Logger) WithStrategy(strategy, compression string) *Logger {
	return &Logger{
		Logger: l.Logger.With("fetch_strategy", strategy, "compression", compression),
	}
}

// LogRun logs the outcome of a run.
func (l *Logger) LogRun(ctx context.Context, mode report.Mode, row report.Row, err error) {
	if err != nil {
		l.ErrorContext(ctx, "run failed",
			"mode", mode,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "run completed",
		"mode", mode,
		"threads", row.Threads,
		"diff", row.Diff,
		"ops", row.Ops,
		"throughput", row.Throughput,
		"latency_ns", row.LatencyNs,
		"avg_pages", row.AvgPages,
		"total_io", row.TotalIO,
	)
}

// LogChecksum warns when the checksum of a completed run disagrees with the
// workload.
func (l *Logger) LogChecksum(ctx context.Context, row report.Row) {
	if row.Correct {
		return
	}
	l.WarnContext(ctx, "checksum mismatch",
		"mode", row.Mode,
		"checksum", row.Checksum,
		"expected", row.Expected,
		"ops", row.Ops,
	)
}

// LogPageCache logs a page cache eviction before a cold run.
func (l *Logger) LogPageCache(ctx context.Context, path string, err error) {
	if err != nil {
		l.WarnContext(ctx, "page cache eviction failed",
			"path", path,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "page cache evicted",
		"path", path,
	)
}
