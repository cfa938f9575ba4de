package report

import (
	"fmt"
	"io"
	"strconv"
)

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

// Console writes the one-line human-readable summary of a run. The line is
// written whether or not the checksum matched.
func Console(w io.Writer, row Row) error {
	label := row.Label
	if label == "" {
		label = fmt.Sprintf("%s_%d", row.Mode, row.Diff)
	}

	_, err := fmt.Fprintf(w,
		"%s: %s avg_time: %.2f ns #ops: %d avg_page: %.4f avg_range: %.2f max_range: %d pred_gran: %d fetch_strategy: %s compression: %s",
		row.Mode, label, row.LatencyNs, row.Ops, row.AvgPages, row.AvgRange, row.MaxRange,
		row.Granularity, row.Strategy, row.Compression,
	)
	if err != nil {
		return err
	}

	if row.Correct {
		_, err = io.WriteString(w, " FIND SUCCESS")
	} else {
		_, err = fmt.Fprintf(w, " FIND WRONG res: %d actual res: %d", row.Checksum, row.Expected)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w,
		" #threads: %d throughput: %.2f ops/sec avg_io: %.4f total IO: %d IOPS: %.2f Bandwidth: %.6f GB/s latency: %.2f ns\n",
		row.Threads, row.Throughput, row.AvgIO, row.TotalIO, row.IOPS, row.BandwidthGBs, row.LatencyNs,
	)
	return err
}
