package stats

const (
	nsPerSec = 1e9
	gib      = 1024.0 * 1024.0 * 1024.0
)

// Summary is the reportable view of merged counters.
type Summary struct {
	Ops       uint64
	ElapsedNs uint64

	LatencyNs  float64 // elapsed / ops
	Throughput float64 // ops per second

	AvgPages      float64
	DistinctPages uint64
	AvgRange      float64
	MaxRange      uint64
	Matches       uint64

	TotalIO      uint64
	AvgIO        float64
	IOPS         float64
	BandwidthGBs float64

	AvgPredictNs float64
	AvgComputeNs float64
	AvgIONs      float64

	Checksum    uint64
	Expected    uint64
	ExpectedOps uint64
	// Correct is the checksum check. An operation count that differs from
	// the expected one marks an aborted run and is reported as correct. Two
	// wrong results can sum to the expected value; the check does not
	// detect that.
	Correct bool
}

// Summarize derives per-operation and per-second figures from c. A run with
// zero operations yields zero rates.
func Summarize(c Counters, pageBytes int, expected, expectedOps uint64) Summary {
	s := Summary{
		Ops:           c.Ops,
		ElapsedNs:     c.ElapsedNs,
		DistinctPages: c.DistinctPages(),
		MaxRange:      c.RangeMax,
		Matches:       c.Matches,
		TotalIO:       c.IOOps,
		Checksum:      c.Checksum,
		Expected:      expected,
		ExpectedOps:   expectedOps,
		Correct:       c.Checksum == expected || c.Ops != expectedOps,
	}

	if c.Ops > 0 {
		ops := float64(c.Ops)
		s.LatencyNs = float64(c.ElapsedNs) / ops
		s.AvgPages = float64(c.PagesFetched) / ops
		s.AvgRange = float64(c.RangeSum) / ops
		s.AvgIO = float64(c.IOOps) / ops
		s.AvgPredictNs = float64(c.PredictNs) / ops
		s.AvgComputeNs = float64(c.ComputeNs) / ops
		s.AvgIONs = float64(c.IONs) / ops
	}

	if c.ElapsedNs > 0 {
		secs := float64(c.ElapsedNs) / nsPerSec
		s.Throughput = float64(c.Ops) / secs
		s.IOPS = float64(c.IOOps) / secs
		s.BandwidthGBs = float64(pageBytes) / gib * float64(c.PagesFetched) / secs
	}
	return s
}
