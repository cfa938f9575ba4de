package benchmark_test

import (
	"testing"

	"github.com/hupe1980/lidisk"
	"github.com/hupe1980/lidisk/layout"
	"github.com/hupe1980/lidisk/testutil"
	"github.com/hupe1980/lidisk/workload"
)

const (
	sizeSmall  = 100_000
	sizeMedium = 1_000_000

	lookupCount = 10_000
)

// fixture is a written dataset with a trained model and a sampled workload.
type fixture struct {
	bench   *lidisk.Bench
	lookups workload.Lookups
}

func openFixture(b *testing.B, c layout.Compression, s layout.Strategy, n, workers int) *fixture {
	b.Helper()
	p := testutil.Params(b, c)
	p.Strategy = s
	records := testutil.Records(testutil.NewRNG(42).UniqueKeys(n, 1<<16))

	bench, err := lidisk.Create(p, records, lidisk.WithWorkers(workers))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = bench.Close() })

	lookups, err := bench.Lookups(lookupCount)
	if err != nil {
		b.Fatal(err)
	}
	return &fixture{bench: bench, lookups: lookups}
}

func reportRow(b *testing.B, ops float64, pages, io float64) {
	b.ReportMetric(ops, "lookups/op")
	b.ReportMetric(pages, "pages/lookup")
	b.ReportMetric(io, "io/lookup")
}
