package lidisk

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/lidisk/layout"
	"github.com/hupe1980/lidisk/report"
	"github.com/hupe1980/lidisk/stats"
)

func newTextHandler(w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
}

func TestLogger_LogRun(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(newTextHandler(&buf)).WithRun("r1").WithStrategy("mmap", "none")

	row := report.NewRow("r1", report.ModeLookup, 2, 0, layout.DefaultParams(), stats.Summary{Ops: 10, Correct: true})
	l.LogRun(context.Background(), report.ModeLookup, row, nil)
	l.LogChecksum(context.Background(), row)

	out := buf.String()
	assert.Contains(t, out, "run completed")
	assert.Contains(t, out, "run_id=r1")
	assert.Contains(t, out, "fetch_strategy=mmap")
	assert.NotContains(t, out, "checksum mismatch")

	buf.Reset()
	row.Correct = false
	row.Checksum, row.Expected = 1, 2
	l.LogChecksum(context.Background(), row)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "checksum mismatch")

	buf.Reset()
	l.LogRun(context.Background(), report.ModeStress, report.Row{}, errors.New("boom"))
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "error=boom")
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	l.LogRun(context.Background(), report.ModeLookup, report.Row{}, errors.New("ignored"))
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}
